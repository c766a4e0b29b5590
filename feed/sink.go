package feed

// Sink accepts bytes from a producer. WriteBytes never blocks and returns
// the number of leading bytes of src it accepted.
type Sink interface {
	WriteBytes(src []byte) int
}

// remover is implemented by sinks that can report device removal.
type remover interface {
	Removed() bool
}

// removed reports whether sink belongs to a removed device.
func removed(sink Sink) bool {
	r, ok := sink.(remover)
	return ok && r.Removed()
}
