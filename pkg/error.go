package pkg

import "errors"

// Driver and protocol errors.
var (
	// ErrDeviceGone indicates the device has been permanently removed.
	ErrDeviceGone = errors.New("device gone")

	// ErrCancelled indicates a blocked request was cancelled by its caller.
	ErrCancelled = errors.New("request cancelled")

	// ErrProtocol indicates a request the service contract does not define.
	ErrProtocol = errors.New("protocol error")

	// ErrNotOpen indicates a read or write on a session that is not open.
	ErrNotOpen = errors.New("session not open")

	// ErrAlreadyOpen indicates an open on a session that is already open.
	ErrAlreadyOpen = errors.New("session already open")

	// ErrNoDevice indicates no device or function matches the given name.
	ErrNoDevice = errors.New("no such device")

	// ErrNoCategory indicates the named category is not known to the host.
	ErrNoCategory = errors.New("no such category")

	// ErrBusy indicates the name or resource is already in use.
	ErrBusy = errors.New("resource busy")

	// ErrInvalidState indicates an operation invalid for the current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotRunning indicates the host is not accepting devices or connections.
	ErrNotRunning = errors.New("not running")
)

// IOStatus represents the completion status of a device read.
type IOStatus int

// Read status values.
const (
	IOStatusOK          IOStatus = iota // At least one byte was delivered
	IOStatusEndOfDevice                 // Device removed, no data will ever come
	IOStatusCancelled                   // Caller gave up while blocked
)

// String returns a string representation of the read status.
func (s IOStatus) String() string {
	switch s {
	case IOStatusOK:
		return "ok"
	case IOStatusEndOfDevice:
		return "end-of-device"
	case IOStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error returns the corresponding error for the read status.
// End-of-device maps to [ErrDeviceGone]; callers at the service boundary
// translate it to io.EOF instead.
func (s IOStatus) Error() error {
	switch s {
	case IOStatusOK:
		return nil
	case IOStatusEndOfDevice:
		return ErrDeviceGone
	case IOStatusCancelled:
		return ErrCancelled
	default:
		return ErrProtocol
	}
}
