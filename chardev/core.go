package chardev

import (
	"context"
	"sync"

	"github.com/ardnew/softchar/cyclic"
	"github.com/ardnew/softchar/pkg"
)

// Stats holds counters for one Core.
type Stats struct {
	Accepted  uint64 // bytes pushed by producers
	Rejected  uint64 // bytes refused because the buffer was full or removed
	Delivered uint64 // bytes handed to readers
	Waits     uint64 // times a reader parked on the condition variable
}

// Core is the synchronized byte store behind one device.
//
// The buffer is only accessed with mutex held. dataAvailable is only
// waited on with mutex held, and every waiter re-checks its predicate after
// waking.
type Core struct {
	mutex         sync.Mutex
	dataAvailable *sync.Cond
	buf           *cyclic.Buffer
	removed       bool
	stats         Stats
}

// NewCore creates a core whose buffer holds size bytes.
func NewCore(size int) (*Core, error) {
	buf, err := cyclic.NewChecked(size)
	if err != nil {
		return nil, err
	}
	c := &Core{buf: buf}
	c.dataAvailable = sync.NewCond(&c.mutex)
	return c, nil
}

// WriteBytes pushes bytes from src until it is consumed or the buffer is
// full, and returns how many were accepted. It never blocks, so it may be
// called from producers that must not suspend. Nothing is accepted once
// the device is removed.
func (c *Core) WriteBytes(src []byte) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.removed {
		c.stats.Rejected += uint64(len(src))
		return 0
	}

	n := 0
	for _, v := range src {
		if !c.buf.Push(v) {
			break
		}
		n++
	}

	c.stats.Accepted += uint64(n)
	c.stats.Rejected += uint64(len(src) - n)

	// Wake every reader: one reader may take fewer bytes than were written
	// and the rest must get a chance at the remainder.
	if n > 0 {
		c.dataAvailable.Broadcast()
	}
	return n
}

// ReadBytes blocks until the buffer holds at least one byte, then moves up
// to len(dst) bytes into dst.
//
// It returns [pkg.IOStatusEndOfDevice] with zero bytes once the device is
// removed, whether the removal happened before the call or while it was
// blocked. It returns [pkg.IOStatusCancelled] with zero bytes if ctx ends
// while the buffer is still empty. A zero-length dst returns immediately.
func (c *Core) ReadBytes(ctx context.Context, dst []byte) (int, pkg.IOStatus) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var stop func() bool
	defer func() {
		if stop != nil {
			stop()
		}
	}()

	if len(dst) == 0 {
		if c.removed {
			return 0, pkg.IOStatusEndOfDevice
		}
		return 0, pkg.IOStatusOK
	}

	for c.buf.IsEmpty() && !c.removed {
		if ctx.Err() != nil {
			return 0, pkg.IOStatusCancelled
		}
		if stop == nil && ctx.Done() != nil {
			stop = context.AfterFunc(ctx, c.wakeAll)
		}
		c.stats.Waits++
		c.dataAvailable.Wait()
	}

	if c.removed {
		return 0, pkg.IOStatusEndOfDevice
	}

	n := 0
	for n < len(dst) {
		v, ok := c.buf.Pop()
		if !ok {
			break
		}
		dst[n] = v
		n++
	}
	c.stats.Delivered += uint64(n)
	return n, pkg.IOStatusOK
}

// MarkRemoved permanently detaches the device. Buffered bytes are
// discarded and every blocked reader is released with end-of-device.
// Calling it again has no effect.
func (c *Core) MarkRemoved() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.removed {
		return
	}
	c.removed = true
	discarded := c.buf.Len()
	c.buf.Reset()
	c.dataAvailable.Broadcast()

	pkg.LogDebug(pkg.ComponentCore, "device removed", "discarded", discarded)
}

// wakeAll releases waiters so they re-check their predicate.
func (c *Core) wakeAll() {
	c.mutex.Lock()
	c.dataAvailable.Broadcast()
	c.mutex.Unlock()
}

// Removed reports whether MarkRemoved has been called.
func (c *Core) Removed() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.removed
}

// Buffered returns the number of unread bytes.
func (c *Core) Buffered() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.buf.Len()
}

// Cap returns the buffer capacity.
func (c *Core) Cap() int {
	return c.buf.Cap()
}

// Stats returns a snapshot of the counters.
func (c *Core) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.stats
}
