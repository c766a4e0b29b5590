// Package cyclic implements a fixed-capacity byte queue over a flat array
// with wraparound read and write cursors.
//
// A [Buffer] allocates its storage once, when it is created, and never
// resizes. It carries no synchronization of its own: the owner must hold an
// external lock across every sequence of calls that has to be atomic,
// including an emptiness check followed by [Buffer.Pop].
//
// # Usage
//
//	buf := cyclic.New(4096)
//	if !buf.Push(b) {
//	    // Full; the caller decides whether to drop b
//	}
//	if b, ok := buf.Pop(); ok {
//	    // Oldest byte
//	}
package cyclic
