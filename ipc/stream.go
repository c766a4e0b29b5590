package ipc

import (
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Stream is a bidirectional message stream over a connection.
//
// Send and Recv may be called from different goroutines, but each must
// only be used by one goroutine at a time.
type Stream struct {
	rwc io.ReadWriteCloser
	dec *msgpack.Decoder
	enc *msgpack.Encoder

	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps rwc. The stream owns rwc from then on; every message on
// the connection must go through the stream because the decoder buffers
// reads.
func NewStream(rwc io.ReadWriteCloser) *Stream {
	return &Stream{
		rwc: rwc,
		dec: msgpack.NewDecoder(rwc),
		enc: msgpack.NewEncoder(rwc),
	}
}

// Send encodes v onto the connection.
func (s *Stream) Send(v any) error {
	return s.enc.Encode(v)
}

// Recv decodes the next message into v.
// It returns io.EOF when the peer closed the connection cleanly.
func (s *Stream) Recv(v any) error {
	return s.dec.Decode(v)
}

// Close closes the underlying connection. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.rwc.Close()
	})
	return s.closeErr
}

// Conn returns the underlying connection.
func (s *Stream) Conn() io.ReadWriteCloser {
	return s.rwc
}
