// Package prof captures runtime profiles of the driver process.
//
// It is conditionally compiled using the "profile" build tag:
//
//	go build -tags profile ./cmd/nstest
//
// Without the tag every function is a no-op, so call sites stay in place
// at no cost.
//
// The profiles of interest for the character-device core are CPU time and
// contention: readers park on the device condition variable and producers
// and readers share one mutex per device, so the block and mutex profiles
// show where sessions wait.
//
//	prof.EnableContention()
//	prof.StartCPU("cpu.prof")
//	defer prof.StopCPU()
//	// ... run ...
//	prof.WriteContention("profiles/")
package prof
