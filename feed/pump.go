package feed

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/ardnew/softchar/pkg"
)

// Default pump settings.
const (
	DefaultChunkSize = 256
	DefaultRetry     = time.Millisecond
)

// PumpOptions configures Pump.
type PumpOptions struct {
	// ChunkSize is the size of each read from the source.
	ChunkSize int

	// Retry is how long to wait before resubmitting bytes the sink
	// rejected.
	Retry time.Duration

	// Drop discards rejected bytes instead of resubmitting them, the way
	// a UART overruns when nobody drains it.
	Drop bool
}

func (o PumpOptions) chunkSize() int {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

func (o PumpOptions) retry() time.Duration {
	if o.Retry <= 0 {
		return DefaultRetry
	}
	return o.Retry
}

// PumpStats counts what a Pump moved.
type PumpStats struct {
	Read     uint64 // bytes read from the source
	Accepted uint64 // bytes the sink accepted
	Dropped  uint64 // bytes discarded on overrun
	Retries  uint64 // resubmissions after a short write
}

// deadliner is implemented by sources whose blocking reads can be
// interrupted, such as *os.File pipes and net.Conn.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Pump copies r into sink until r reports io.EOF, ctx ends, or the sink's
// device is removed. Reaching io.EOF is not an error.
//
// If r implements SetReadDeadline, a read blocked when ctx ends is
// interrupted; otherwise Pump returns after that read completes.
func Pump(ctx context.Context, r io.Reader, sink Sink, opts PumpOptions) (PumpStats, error) {
	var stats PumpStats

	if d, ok := r.(deadliner); ok {
		stop := context.AfterFunc(ctx, func() {
			d.SetReadDeadline(time.Unix(1, 0))
		})
		defer stop()
	}

	buf := make([]byte, opts.chunkSize())
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		n, rerr := r.Read(buf)
		if n > 0 {
			stats.Read += uint64(n)
			if err := submit(ctx, sink, buf[:n], opts, &stats); err != nil {
				return stats, err
			}
		}

		if rerr != nil {
			if rerr == io.EOF {
				return stats, nil
			}
			if ctx.Err() != nil && errors.Is(rerr, os.ErrDeadlineExceeded) {
				return stats, ctx.Err()
			}
			return stats, rerr
		}
	}
}

// submit hands p to sink, resubmitting the rejected tail every Retry
// interval unless opts.Drop is set.
func submit(ctx context.Context, sink Sink, p []byte, opts PumpOptions, stats *PumpStats) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		n := sink.WriteBytes(p)
		stats.Accepted += uint64(n)
		p = p[n:]
		if len(p) == 0 {
			return nil
		}

		if n == 0 && removed(sink) {
			return pkg.ErrDeviceGone
		}
		if opts.Drop {
			stats.Dropped += uint64(len(p))
			pkg.LogDebug(pkg.ComponentFeed, "overrun", "dropped", len(p))
			return nil
		}

		if timer == nil {
			timer = time.NewTimer(opts.retry())
		} else {
			timer.Reset(opts.retry())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		stats.Retries++
	}
}
