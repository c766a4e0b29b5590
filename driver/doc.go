// Package driver is the nstest serial driver: it binds a buffered
// character device to every device the host reports.
//
// For each device, [Driver.DevAdd] allocates a [chardev.Core], exposes it
// as function "a", and adds the function to the "serial" category so
// clients can reach it as "serial/N". Producers push bytes into the device
// through [Feeder]; clients read them through the function's connection.
// [Driver.DevRemove] marks the core removed, which releases every blocked
// reader with end-of-device.
package driver
