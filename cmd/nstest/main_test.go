//go:build unix

package main

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softchar/config"
	"github.com/ardnew/softchar/ipc"
)

// readN reads exactly n bytes from c.
func readN(t *testing.T, ctx context.Context, c *ipc.Client, n int) string {
	t.Helper()
	var out []byte
	buf := make([]byte, n)
	for len(out) < n {
		k, err := c.Read(ctx, buf[:n-len(out)])
		require.NoError(t, err)
		out = append(out, buf[:k]...)
	}
	return string(out)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Socket = filepath.Join(dir, "nstest.sock")
	cfg.Devices = []config.DeviceConfig{
		{
			Name:    "uart0",
			Pattern: &config.PatternConfig{Text: "ls\r", Interval: time.Millisecond, Limit: 6},
		},
		{
			Name:     "uart1",
			Category: "console",
			FIFO:     filepath.Join(dir, "uart1.in"),
		},
	}
	require.NoError(t, config.Validate(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addrs := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, cfg, func(a net.Addr) { addrs <- a })
	}()

	var addr net.Addr
	select {
	case addr = <-addrs:
	case err := <-done:
		t.Fatalf("run failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("driver not ready")
	}

	cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ccancel()

	// Pattern generator output on serial/0.
	serial, err := ipc.Dial(cctx, "unix", addr.String(), "serial/0")
	require.NoError(t, err)
	require.NoError(t, serial.Open(cctx))
	assert.Equal(t, "ls\rls\r", readN(t, cctx, serial, 6))

	// Bytes written into the named pipe on console/0.
	console, err := ipc.Dial(cctx, "unix", addr.String(), "console/0")
	require.NoError(t, err)
	require.NoError(t, console.Open(cctx))
	w, err := os.OpenFile(cfg.Devices[1].FIFO, os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, "hello", readN(t, cctx, console, 5))

	// Shutdown releases a blocked reader with end-of-device.
	read := make(chan error, 1)
	go func() {
		_, err := serial.Read(cctx, make([]byte, 1))
		read <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-read:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(5 * time.Second):
		t.Fatal("blocked reader not released")
	}
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}

	_, err = os.Lstat(cfg.Socket)
	assert.ErrorIs(t, err, os.ErrNotExist, "socket removed")
	_, err = os.Lstat(cfg.Devices[1].FIFO)
	assert.ErrorIs(t, err, os.ErrNotExist, "fifo removed")
}

func TestCategories(t *testing.T) {
	cfg := config.Default()
	cfg.Category = "console"
	cfg.Devices = []config.DeviceConfig{
		{Name: "uart0"},
		{Name: "uart1", Category: "console"},
		{Name: "uart2", Category: "modem"},
	}
	assert.Equal(t, []string{"serial", "console", "modem"}, categories(cfg))
}

func TestRemoveStaleSocket(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, removeStaleSocket(filepath.Join(dir, "missing.sock")))

	regular := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(regular, nil, 0o644))
	assert.Error(t, removeStaleSocket(regular))

	path := filepath.Join(dir, "stale.sock")
	l, err := net.Listen("unix", path)
	require.NoError(t, err)
	l.(*net.UnixListener).SetUnlinkOnClose(false)
	l.Close()
	require.NoError(t, removeStaleSocket(path))
	_, err = os.Lstat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
