//go:build unix

package feed

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// FIFO is a named pipe used as an external producer. Anything written to
// the pipe's path by another process can be read from the FIFO.
type FIFO struct {
	path string
	file *os.File

	closeOnce sync.Once
	closeErr  error
}

// OpenFIFO creates a named pipe at path, replacing any pipe already there,
// and opens it for reading.
//
// The pipe is opened read-write and non-blocking, so opening does not wait
// for a writer and the read side never sees end-of-file when writers come
// and go.
func OpenFIFO(path string) (*FIFO, error) {
	if fi, err := os.Lstat(path); err == nil {
		if fi.Mode().Type() != fs.ModeNamedPipe {
			return nil, fmt.Errorf("fifo %s: %w", path, fs.ErrExist)
		}
		os.Remove(path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("fifo %s: %w", path, err)
	}

	if err := unix.Mkfifo(path, 0o666); err != nil {
		return nil, fmt.Errorf("mkfifo %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &FIFO{path: path, file: f}, nil
}

// Path returns the pipe's filesystem path.
func (f *FIFO) Path() string { return f.path }

// Read reads bytes written to the pipe, blocking until some arrive.
func (f *FIFO) Read(p []byte) (int, error) { return f.file.Read(p) }

// Write writes to the pipe. It is mostly useful in tests.
func (f *FIFO) Write(p []byte) (int, error) { return f.file.Write(p) }

// SetReadDeadline bounds blocked reads; Pump uses it for cancellation.
func (f *FIFO) SetReadDeadline(t time.Time) error { return f.file.SetReadDeadline(t) }

// Close closes the pipe and removes it from the filesystem.
func (f *FIFO) Close() error {
	f.closeOnce.Do(func() {
		f.closeErr = f.file.Close()
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) && f.closeErr == nil {
			f.closeErr = err
		}
	})
	return f.closeErr
}
