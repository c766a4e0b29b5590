package chardev

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ardnew/softchar/ipc"
	"github.com/ardnew/softchar/pkg"
)

func newTestService(t *testing.T, size int) *Service {
	t.Helper()
	core, err := NewCore(size)
	if err != nil {
		t.Fatalf("NewCore(%d) error = %v", size, err)
	}
	return NewService(core)
}

func TestService_OpenClose(t *testing.T) {
	srv := newTestService(t, 8)

	s1, s2 := NewSession(), NewSession()
	if s1.ID == s2.ID {
		t.Fatal("sessions share an ID")
	}

	if err := srv.Open(s1); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := srv.Open(s2); err != nil {
		t.Fatalf("second session Open() error = %v", err)
	}
	if got := srv.Sessions(); got != 2 {
		t.Errorf("Sessions() = %d, want 2", got)
	}
	if err := srv.Open(s1); !errors.Is(err, pkg.ErrAlreadyOpen) {
		t.Errorf("reopen error = %v, want %v", err, pkg.ErrAlreadyOpen)
	}

	if err := srv.Close(s1); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := srv.Close(s1); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if s1.IsOpen() {
		t.Error("IsOpen() = true after Close")
	}
	if got := srv.Sessions(); got != 1 {
		t.Errorf("Sessions() = %d, want 1", got)
	}
}

func TestService_OpenAfterRemoval(t *testing.T) {
	srv := newTestService(t, 8)
	srv.Core().MarkRemoved()

	s := NewSession()
	if err := srv.Open(s); !errors.Is(err, pkg.ErrDeviceGone) {
		t.Fatalf("Open() error = %v, want %v", err, pkg.ErrDeviceGone)
	}
	if s.IsOpen() {
		t.Error("session open after failed Open")
	}
}

func TestService_ReadWrite(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		write    string
		wantN    int
		readLen  int
		wantRead string
		removed  bool
		wantWErr error
		wantRErr error
	}{
		{name: "fits", size: 8, write: "hello", wantN: 5, readLen: 8, wantRead: "hello"},
		{name: "short write", size: 4, write: "abcdef", wantN: 4, readLen: 8, wantRead: "abcd"},
		{name: "short read", size: 8, write: "abcdef", wantN: 6, readLen: 2, wantRead: "ab"},
		{name: "removed", size: 8, write: "x", removed: true, wantWErr: pkg.ErrDeviceGone, readLen: 4, wantRErr: io.EOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestService(t, tt.size)
			s := NewSession()
			if err := srv.Open(s); err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if tt.removed {
				srv.Core().MarkRemoved()
			}

			n, err := srv.Write(s, []byte(tt.write))
			if !errors.Is(err, tt.wantWErr) {
				t.Fatalf("Write() error = %v, want %v", err, tt.wantWErr)
			}
			if n != tt.wantN {
				t.Errorf("Write() = %d, want %d", n, tt.wantN)
			}

			buf := make([]byte, tt.readLen)
			n, err = srv.Read(context.Background(), s, buf)
			if !errors.Is(err, tt.wantRErr) {
				t.Fatalf("Read() error = %v, want %v", err, tt.wantRErr)
			}
			if got := string(buf[:n]); got != tt.wantRead {
				t.Errorf("Read() = %q, want %q", got, tt.wantRead)
			}
		})
	}
}

func TestService_ReadCancelled(t *testing.T) {
	srv := newTestService(t, 8)
	s := NewSession()
	srv.Open(s)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	n, err := srv.Read(ctx, s, make([]byte, 4))
	if n != 0 || !errors.Is(err, pkg.ErrCancelled) {
		t.Errorf("Read() = %d, %v; want 0, %v", n, err, pkg.ErrCancelled)
	}
}

func TestService_EmptyWriteOnRemovedDevice(t *testing.T) {
	srv := newTestService(t, 8)
	srv.Core().MarkRemoved()

	n, err := srv.Write(NewSession(), nil)
	if n != 0 || err != nil {
		t.Errorf("Write(nil) = %d, %v; want 0, nil", n, err)
	}
}

func TestService_DefaultHandler(t *testing.T) {
	srv := newTestService(t, 8)
	err := srv.DefaultHandler(NewSession(), &ipc.Request{Kind: "ioctl"})
	if !errors.Is(err, pkg.ErrProtocol) {
		t.Errorf("DefaultHandler() error = %v, want %v", err, pkg.ErrProtocol)
	}
}
