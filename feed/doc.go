// Package feed drives bytes into a character device from the producer
// side.
//
// A producer stands in for the device's interrupt handler: it pushes
// bytes into a [Sink] that never blocks and may accept fewer bytes than
// offered. Three producers are provided:
//
//   - [Pump] copies an external byte stream (a reader, pipe, or socket)
//     into the sink, resubmitting or dropping what the sink rejects.
//   - [Pattern] emits a repeating byte pattern at a fixed interval, used
//     as a synthetic input source for testing clients.
//   - [FIFO] is a named pipe that other processes can write into; pair it
//     with [Pump].
//
// All producers stop with [pkg.ErrDeviceGone] once the sink reports that
// its device was removed.
package feed
