// Package ipc defines the wire protocol between character-device clients
// and the driver host.
//
// A connection carries a stream of msgpack-encoded messages. The client
// first sends a [Connect] naming the function it wants, either by path
// ("uart0/a") or by category and index ("serial/0"), and the host answers
// with a [Response]. After that the connection belongs to the function's
// service and carries [Request]/[Response] pairs:
//
//	open   start a session
//	read   up to Len bytes; blocks until at least one byte is available
//	write  Data; N in the response may be less than len(Data)
//	close  end the session
//
// Any other request kind is a protocol violation and ends the connection.
//
// Failures travel as a [Code] so that sentinel errors from package pkg
// survive the trip and can be matched with errors.Is on the client side.
package ipc
