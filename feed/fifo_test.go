//go:build unix

package feed

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFO_PumpFromWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uart0.in")
	fifo, err := OpenFIFO(path)
	require.NoError(t, err)
	defer fifo.Close()

	fi, err := os.Lstat(path)
	require.NoError(t, err)
	assert.Equal(t, fs.ModeNamedPipe, fi.Mode().Type())

	core := newCore(t, 32)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Pump(ctx, fifo, core, PumpOptions{})
		done <- err
	}()

	// A writer coming and going does not end the pump.
	for _, msg := range []string{"hello ", "world"} {
		w, err := os.OpenFile(path, os.O_WRONLY, 0)
		require.NoError(t, err)
		_, err = w.Write([]byte(msg))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}
	assert.Equal(t, "hello world", string(drain(t, core, 11)))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Pump did not return after cancel")
	}

	require.NoError(t, fifo.Close())
	require.NoError(t, fifo.Close())
	_, err = os.Lstat(path)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestFIFO_ReplacesStalePipe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in")
	first, err := OpenFIFO(path)
	require.NoError(t, err)
	first.file.Close()

	second, err := OpenFIFO(path)
	require.NoError(t, err)
	assert.Equal(t, path, second.Path())
	second.Close()
}

func TestFIFO_RefusesRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := OpenFIFO(path)
	assert.ErrorIs(t, err, fs.ErrExist)
}
