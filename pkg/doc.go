// Package pkg provides shared utilities for the softchar driver stack.
//
// This package contains common functionality used by the character-device
// core, the driver framework, and the executables, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error values for driver and protocol failures
//   - The [IOStatus] result of a device read
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with a per-component attribute:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentDriver, "device added", "name", "uart0")
//
// # Errors
//
// Failures are reported as sentinel values and matched with [errors.Is]:
//
//	if errors.Is(err, pkg.ErrDeviceGone) {
//	    // Device was detached; do not retry
//	}
//
// End-of-device is not a failure. Reads report it through [IOStatusEndOfDevice]
// and, at the service boundary, as [io.EOF].
package pkg
