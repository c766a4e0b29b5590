package chardev

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/ardnew/softchar/ipc"
	"github.com/ardnew/softchar/pkg"
)

// Ops is the operation table a character device exposes to its clients.
type Ops interface {
	// Open starts a session.
	Open(s *Session) error

	// Close ends a session. It always succeeds for an open session.
	Close(s *Session) error

	// Read blocks until at least one byte is available and copies up to
	// len(buf) bytes. It returns io.EOF once no data will ever come.
	Read(ctx context.Context, s *Session, buf []byte) (int, error)

	// Write accepts as much of buf as fits and returns the count.
	Write(s *Session, buf []byte) (int, error)

	// DefaultHandler receives every request kind not listed above.
	// Returning an error ends the connection.
	DefaultHandler(s *Session, req *ipc.Request) error
}

// Session is one client's open/close bookkeeping.
// It carries no read or write state; the device buffer does.
type Session struct {
	ID   uuid.UUID
	open bool
}

// NewSession creates a closed session with a fresh ID.
func NewSession() *Session {
	return &Session{ID: uuid.New()}
}

// IsOpen reports whether the session has been opened and not closed.
func (s *Session) IsOpen() bool {
	return s.open
}

// Service implements Ops on top of a Core.
type Service struct {
	core *Core

	mutex    sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewService creates a service backed by core.
func NewService(core *Core) *Service {
	return &Service{
		core:     core,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Core returns the backing core.
func (srv *Service) Core() *Core {
	return srv.core
}

// Sessions returns the number of open sessions.
func (srv *Service) Sessions() int {
	srv.mutex.Lock()
	defer srv.mutex.Unlock()
	return len(srv.sessions)
}

// Open starts a session. It fails with [pkg.ErrDeviceGone] once the device
// is removed and with [pkg.ErrAlreadyOpen] if s is already open.
func (srv *Service) Open(s *Session) error {
	if srv.core.Removed() {
		return pkg.ErrDeviceGone
	}
	if s.open {
		return pkg.ErrAlreadyOpen
	}

	srv.mutex.Lock()
	srv.sessions[s.ID] = s
	srv.mutex.Unlock()
	s.open = true

	pkg.LogDebug(pkg.ComponentService, "session opened", "session", s.ID)
	return nil
}

// Close ends a session.
func (srv *Service) Close(s *Session) error {
	srv.mutex.Lock()
	delete(srv.sessions, s.ID)
	srv.mutex.Unlock()
	s.open = false

	pkg.LogDebug(pkg.ComponentService, "session closed", "session", s.ID)
	return nil
}

// Read delegates to [Core.ReadBytes]. It returns 0 and io.EOF once the
// device is removed, and [pkg.ErrCancelled] if ctx ends while waiting.
func (srv *Service) Read(ctx context.Context, s *Session, buf []byte) (int, error) {
	n, status := srv.core.ReadBytes(ctx, buf)
	switch status {
	case pkg.IOStatusOK:
		return n, nil
	case pkg.IOStatusEndOfDevice:
		return 0, io.EOF
	default:
		return 0, status.Error()
	}
}

// Write delegates to [Core.WriteBytes]. A count below len(buf) with a nil
// error means the buffer filled; the caller resubmits the rest.
func (srv *Service) Write(s *Session, buf []byte) (int, error) {
	n := srv.core.WriteBytes(buf)
	if n == 0 && len(buf) > 0 && srv.core.Removed() {
		return 0, pkg.ErrDeviceGone
	}
	return n, nil
}

// DefaultHandler rejects every request kind the service does not define.
func (srv *Service) DefaultHandler(s *Session, req *ipc.Request) error {
	pkg.LogWarn(pkg.ComponentService, "unrecognized request",
		"session", s.ID,
		"kind", req.Kind)
	return fmt.Errorf("request %q: %w", req.Kind, pkg.ErrProtocol)
}

// Compile-time interface check
var _ Ops = (*Service)(nil)
