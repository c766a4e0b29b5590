//go:build !profile

package prof

// ErrCPUProfileActive is defined for API compatibility but never returned.
var ErrCPUProfileActive error

// StartCPU is a no-op when built without the "profile" tag.
func StartCPU(_ string) error { return nil }

// StopCPU is a no-op when built without the "profile" tag.
func StopCPU() {}

// IsCPUActive always returns false when built without the "profile" tag.
func IsCPUActive() bool { return false }

// EnableContention is a no-op when built without the "profile" tag.
func EnableContention() {}

// WriteContention is a no-op when built without the "profile" tag.
func WriteContention(_ string) error { return nil }
