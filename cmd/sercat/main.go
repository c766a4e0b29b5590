// Package main is a client for character devices served by nstest.
//
// Usage:
//
//	go run ./cmd/sercat [options]
//
// By default sercat opens the device and copies everything it reads to
// stdout until the device is removed. With -write it copies stdin to the
// device instead, resubmitting whatever the device buffer could not take.
//
// Options:
//
//	-socket path      Unix socket of the driver process
//	-path name        Function to open, "dev/fun" or "category/index" (default: serial/0)
//	-write            Write stdin to the device instead of reading
//	-n count          Stop after reading count bytes (default: 0, unlimited)
//	-retry duration   Delay before resubmitting a short write (default: 1ms)
//	-v                Enable verbose (debug) logging
//	-json             Use JSON log format
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardnew/softchar/config"
	"github.com/ardnew/softchar/ipc"
	"github.com/ardnew/softchar/pkg"
)

// component identifies this executable for structured logging.
const component = pkg.ComponentIPC

func main() {
	socket := flag.String("socket", config.DefaultSocket(), "unix socket of the driver process")
	path := flag.String("path", "serial/0", "function to open")
	write := flag.Bool("write", false, "write stdin to the device instead of reading")
	limit := flag.Int64("n", 0, "stop after reading this many bytes (0: unlimited)")
	retry := flag.Duration("retry", time.Millisecond, "delay before resubmitting a short write")
	verbose := flag.Bool("v", false, "enable verbose (debug) logging")
	jsonLog := flag.Bool("json", false, "use JSON log format")
	flag.Parse()

	if *verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	}
	if *jsonLog {
		pkg.SetLogFormat(pkg.LogFormatJSON)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := ipc.Dial(ctx, "unix", *socket, *path)
	if err != nil {
		pkg.LogError(component, "failed to connect", "socket", *socket, "path", *path, "error", err)
		os.Exit(1)
	}
	defer c.Close()

	if err := c.Open(ctx); err != nil {
		pkg.LogError(component, "failed to open device", "path", *path, "error", err)
		os.Exit(1)
	}

	var n int64
	if *write {
		n, err = writeFrom(ctx, c, os.Stdin, *retry)
	} else {
		out := bufio.NewWriter(os.Stdout)
		n, err = readTo(ctx, c, out, *limit)
		if ferr := out.Flush(); err == nil {
			err = ferr
		}
	}
	pkg.LogDebug(component, "done", "bytes", n)

	if err != nil && !errors.Is(err, context.Canceled) {
		pkg.LogError(component, "transfer failed", "error", err)
		c.Close()
		os.Exit(1)
	}
}

// reader and writer are the client calls readTo and writeFrom need.
type (
	reader interface {
		Read(ctx context.Context, p []byte) (int, error)
	}
	writer interface {
		Write(ctx context.Context, p []byte) (int, error)
	}
)

// readTo copies from the device to w until the device is removed, limit
// bytes have been copied (if limit > 0), or ctx ends. End-of-device is not
// an error.
func readTo(ctx context.Context, c reader, w io.Writer, limit int64) (int64, error) {
	var total int64
	buf := make([]byte, ipc.MaxTransfer)
	for limit <= 0 || total < limit {
		p := buf
		if limit > 0 && int64(len(p)) > limit-total {
			p = p[:limit-total]
		}

		n, err := c.Read(ctx, p)
		if n > 0 {
			if _, werr := w.Write(p[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
			if f, ok := w.(interface{ Flush() error }); ok {
				if err := f.Flush(); err != nil {
					return total, err
				}
			}
		}
		if errors.Is(err, io.EOF) {
			pkg.LogInfo(component, "end of device", "bytes", total)
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// writeFrom copies r to the device. The device accepts what fits in its
// buffer; the rest is resubmitted after retry until accepted.
func writeFrom(ctx context.Context, c writer, r io.Reader, retry time.Duration) (int64, error) {
	var total int64
	buf := make([]byte, ipc.MaxTransfer)
	for {
		n, rerr := r.Read(buf)
		p := buf[:n]
		for len(p) > 0 {
			k, err := c.Write(ctx, p)
			total += int64(k)
			if err != nil {
				return total, err
			}
			p = p[k:]
			if len(p) == 0 {
				break
			}
			pkg.LogDebug(component, "short write", "accepted", k, "pending", len(p))
			select {
			case <-ctx.Done():
				return total, ctx.Err()
			case <-time.After(retry):
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}
