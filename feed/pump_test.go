package feed

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softchar/chardev"
	"github.com/ardnew/softchar/pkg"
)

func newCore(t *testing.T, size int) *chardev.Core {
	t.Helper()
	core, err := chardev.NewCore(size)
	require.NoError(t, err)
	return core
}

// drain reads n bytes from core.
func drain(t *testing.T, core *chardev.Core, n int) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		k, status := core.ReadBytes(ctx, buf[:n-len(out)])
		if status != pkg.IOStatusOK {
			t.Fatalf("ReadBytes status = %v after %d bytes", status, len(out))
		}
		out = append(out, buf[:k]...)
	}
	return out
}

func TestPump_CopiesUntilEOF(t *testing.T) {
	core := newCore(t, 64)
	data := "hello, world"

	stats, err := Pump(context.Background(), strings.NewReader(data), core, PumpOptions{ChunkSize: 5})
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), stats.Read)
	assert.Equal(t, uint64(len(data)), stats.Accepted)
	assert.Zero(t, stats.Dropped)
	assert.Equal(t, data, string(drain(t, core, len(data))))
}

func TestPump_ResubmitsShortWrites(t *testing.T) {
	core := newCore(t, 4)
	data := bytes.Repeat([]byte("0123456789abcdef"), 4)

	got := make(chan []byte, 1)
	go func() { got <- drain(t, core, len(data)) }()

	stats, err := Pump(context.Background(), bytes.NewReader(data), core, PumpOptions{})
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), stats.Accepted)
	assert.Zero(t, stats.Dropped)

	select {
	case b := <-got:
		assert.Equal(t, data, b)
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not receive all bytes")
	}
}

func TestPump_DropOnOverrun(t *testing.T) {
	core := newCore(t, 4)

	stats, err := Pump(context.Background(), strings.NewReader("ABCDEFGHIJ"), core,
		PumpOptions{ChunkSize: 16, Drop: true})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), stats.Read)
	assert.Equal(t, uint64(4), stats.Accepted)
	assert.Equal(t, uint64(6), stats.Dropped)
	assert.Equal(t, "ABCD", string(drain(t, core, 4)))
}

func TestPump_DeviceGone(t *testing.T) {
	core := newCore(t, 4)
	core.MarkRemoved()

	_, err := Pump(context.Background(), strings.NewReader("AB"), core, PumpOptions{})
	assert.ErrorIs(t, err, pkg.ErrDeviceGone)
}

func TestPump_CancelDuringRetry(t *testing.T) {
	core := newCore(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	stats, err := Pump(ctx, strings.NewReader("ABCDEF"), core, PumpOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, uint64(2), stats.Accepted)
}

func TestPump_CancelBlockedRead(t *testing.T) {
	core := newCore(t, 8)
	src, peer := net.Pipe()
	defer peer.Close()
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Pump(ctx, src, core, PumpOptions{})
		done <- err
	}()

	_, err := peer.Write([]byte("xy"))
	require.NoError(t, err)
	assert.Equal(t, "xy", string(drain(t, core, 2)))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Pump did not return after cancel")
	}
}

func TestPump_ReadError(t *testing.T) {
	errBoom := errors.New("boom")
	_, err := Pump(context.Background(), iotest.ErrReader(errBoom), newCore(t, 4), PumpOptions{})
	assert.ErrorIs(t, err, errBoom)
}
