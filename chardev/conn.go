package chardev

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/ardnew/softchar/ipc"
	"github.com/ardnew/softchar/pkg"
)

// Conn serves one client connection against ops until the client hangs
// up, ctx ends, or the client breaks the protocol.
//
// Requests are handled one at a time in arrival order. While a read is
// blocked, a hang-up by the client cancels it. A session left open when the
// connection ends is closed. Conn closes st before returning.
//
// The returned error is nil for a clean hang-up or cancellation and
// wraps [pkg.ErrProtocol] or [pkg.ErrNotOpen] for a protocol violation.
func Conn(ctx context.Context, st *ipc.Stream, ops Ops) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer st.Close()

	sess := NewSession()
	defer func() {
		if sess.IsOpen() {
			ops.Close(sess)
		}
	}()

	// Requests are decoded on their own goroutine so that a hang-up is
	// noticed even while a read is blocked in ops.
	reqs := make(chan ipc.Request)
	var recvErr error
	go func() {
		defer close(reqs)
		for {
			var req ipc.Request
			if err := st.Recv(&req); err != nil {
				recvErr = err
				cancel()
				return
			}
			select {
			case reqs <- req:
			case <-connCtx.Done():
				return
			}
		}
	}()

	for {
		var req ipc.Request
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-reqs:
			if !ok {
				if isHangup(recvErr) {
					return nil
				}
				return fmt.Errorf("decode request: %w", recvErr)
			}
			req = r
		}

		resp, err := dispatch(connCtx, sess, ops, &req)
		if sendErr := st.Send(resp); sendErr != nil {
			if err == nil && !isHangup(sendErr) {
				err = fmt.Errorf("send response: %w", sendErr)
			}
			if err == nil {
				return nil
			}
		}
		if err != nil {
			pkg.LogWarn(pkg.ComponentIPC, "closing connection",
				"session", sess.ID,
				"error", err)
			return err
		}
	}
}

// dispatch routes one request. A non-nil error is fatal for the connection;
// ordinary failures are reported in the response only.
func dispatch(ctx context.Context, sess *Session, ops Ops, req *ipc.Request) (ipc.Response, error) {
	switch req.Kind {
	case ipc.KindOpen:
		if err := ops.Open(sess); err != nil {
			return ipc.ErrorResponse(err), nil
		}
		return ipc.Response{Status: ipc.StatusOK}, nil

	case ipc.KindClose:
		if sess.IsOpen() {
			ops.Close(sess)
		}
		return ipc.Response{Status: ipc.StatusOK}, nil

	case ipc.KindRead:
		if !sess.IsOpen() {
			err := fmt.Errorf("%s before open: %w", req.Kind, pkg.ErrNotOpen)
			return ipc.ErrorResponse(err), err
		}
		size := req.Len
		if size < 0 {
			size = 0
		}
		if size > ipc.MaxTransfer {
			size = ipc.MaxTransfer
		}
		buf := make([]byte, size)
		n, err := ops.Read(ctx, sess, buf)
		switch {
		case errors.Is(err, io.EOF):
			return ipc.Response{Status: ipc.StatusEndOfDevice}, nil
		case err != nil:
			return ipc.ErrorResponse(err), nil
		}
		return ipc.Response{Status: ipc.StatusOK, N: n, Data: buf[:n]}, nil

	case ipc.KindWrite:
		if !sess.IsOpen() {
			err := fmt.Errorf("%s before open: %w", req.Kind, pkg.ErrNotOpen)
			return ipc.ErrorResponse(err), err
		}
		n, err := ops.Write(sess, req.Data)
		if err != nil {
			return ipc.ErrorResponse(err), nil
		}
		return ipc.Response{Status: ipc.StatusOK, N: n}, nil

	default:
		err := ops.DefaultHandler(sess, req)
		if err == nil {
			// Unknown requests never succeed.
			err = fmt.Errorf("request %q: %w", req.Kind, pkg.ErrProtocol)
		}
		return ipc.ErrorResponse(err), err
	}
}

// isHangup reports whether err means the peer went away.
func isHangup(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}
