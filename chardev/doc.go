// Package chardev implements the character-device service of the softchar
// driver stack.
//
// # Architecture
//
// Each device owns exactly one [Core]: a [cyclic.Buffer] guarded by one
// mutex, with one condition variable that readers wait on until data
// arrives. Producers (an interrupt-like feeder or a client write) fill the
// buffer through [Core.WriteBytes], which never blocks. Readers drain it
// through [Core.ReadBytes], which is the only place in the stack that
// suspends.
//
// A [Service] exposes a Core through the [Ops] operation table expected by
// the driver framework, and [Conn] runs one client connection against an
// Ops, decoding [ipc.Request] messages and routing them to it.
//
// # Removal
//
// [Core.MarkRemoved] is permanent. It releases every blocked reader and
// every later read with end-of-device and zero bytes, even if bytes were
// still buffered: removal takes precedence over draining.
//
// # Usage
//
//	core, _ := chardev.NewCore(4096)
//	srv := chardev.NewService(core)
//
//	// Producer side
//	n := core.WriteBytes(data) // n < len(data) when the buffer filled
//
//	// Client side, one goroutine per connection
//	go chardev.Conn(ctx, ipc.NewStream(conn), srv)
package chardev
