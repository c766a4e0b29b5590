// Package ddf is the in-process device driver framework that hosts
// softchar drivers.
//
// The framework owns the device tree and the client-facing socket. A
// driver registers with a [Host] and is called back through [Driver] when a
// device arrives or leaves. During [Driver.DevAdd] the driver creates one
// or more function nodes on the device, gives each a [ConnHandler], binds
// them, and adds them to categories such as "serial".
//
// Clients reach a bound function by path ("uart0/a") or by category and
// index ("serial/0"); see [Host.Lookup]. [Host.Serve] accepts client
// connections, reads the [ipc.Connect] handshake, and hands the connection
// to the function's handler on its own goroutine.
//
// # Lifecycle
//
//	host := ddf.NewHost(ddf.WithCategories("serial"))
//	host.Register(drv)
//	dev, err := host.AddDevice(ctx, "uart0") // calls drv.DevAdd
//	go host.Serve(ctx, listener)
//	// ...
//	host.RemoveDevice("uart0")          // calls drv.DevRemove
//	host.Close()
package ddf
