package cyclic

import (
	"fmt"

	"github.com/ardnew/softchar/pkg"
)

// Buffer is a bounded FIFO of bytes.
//
// Invariants: 0 <= count <= len(data); head and tail are always valid
// indices into data. count == 0 means empty and count == len(data) means
// full, so head == tail is never used to tell the two apart.
type Buffer struct {
	data  []byte
	head  int // next byte to pop
	tail  int // next slot to push
	count int
}

// New creates a buffer holding at most n bytes.
// It panics if n is not positive; use [NewChecked] for untrusted sizes.
func New(n int) *Buffer {
	b, err := NewChecked(n)
	if err != nil {
		panic(err)
	}
	return b
}

// NewChecked creates a buffer holding at most n bytes.
// Returns [pkg.ErrInvalidParameter] if n is not positive.
func NewChecked(n int) (*Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("cyclic buffer capacity %d: %w", n, pkg.ErrInvalidParameter)
	}
	return &Buffer{data: make([]byte, n)}, nil
}

// Push appends v. It returns false, leaving the buffer unchanged, when full.
func (b *Buffer) Push(v byte) bool {
	if b.count == len(b.data) {
		return false
	}
	b.data[b.tail] = v
	b.tail++
	if b.tail == len(b.data) {
		b.tail = 0
	}
	b.count++
	return true
}

// Pop removes and returns the oldest byte. It returns (0, false) when empty.
func (b *Buffer) Pop() (byte, bool) {
	if b.count == 0 {
		return 0, false
	}
	v := b.data[b.head]
	b.head++
	if b.head == len(b.data) {
		b.head = 0
	}
	b.count--
	return v, true
}

// IsEmpty reports whether no bytes are queued.
func (b *Buffer) IsEmpty() bool { return b.count == 0 }

// IsFull reports whether no more bytes can be pushed.
func (b *Buffer) IsFull() bool { return b.count == len(b.data) }

// Len returns the number of queued bytes.
func (b *Buffer) Len() int { return b.count }

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Free returns the number of bytes that can be pushed before the buffer is full.
func (b *Buffer) Free() int { return len(b.data) - b.count }

// Reset discards all queued bytes. Storage is kept.
func (b *Buffer) Reset() {
	b.head = 0
	b.tail = 0
	b.count = 0
}
