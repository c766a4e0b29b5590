package ipc

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ardnew/softchar/pkg"
)

// Client is a connection to one character-device function.
// A Client is not safe for concurrent use; open one per goroutine.
type Client struct {
	conn   net.Conn
	stream *Stream

	mutex  sync.Mutex
	broken bool
}

// Dial connects to the host at addr and attaches to the function at path.
func Dial(ctx context.Context, network, addr, path string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	c := NewClient(conn)
	resp, err := c.roundTrip(ctx, Connect{Path: path})
	if err != nil {
		c.stream.Close()
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	if err := resp.Err(); err != nil {
		c.stream.Close()
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	return c, nil
}

// NewClient wraps a connection that is already attached to a function.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn, stream: NewStream(conn)}
}

// Open starts a session.
func (c *Client) Open(ctx context.Context) error {
	resp, err := c.Call(ctx, Request{Kind: KindOpen})
	if err != nil {
		return err
	}
	return resp.Err()
}

// Read reads up to len(p) bytes, blocking until at least one is available.
// It returns io.EOF once the device has been removed.
func (c *Client) Read(ctx context.Context, p []byte) (int, error) {
	if len(p) > MaxTransfer {
		p = p[:MaxTransfer]
	}
	resp, err := c.Call(ctx, Request{Kind: KindRead, Len: len(p)})
	if err != nil {
		return 0, err
	}
	switch resp.Status {
	case StatusEndOfDevice:
		return 0, io.EOF
	case StatusOK:
		return copy(p, resp.Data), nil
	default:
		return 0, resp.Err()
	}
}

// Write submits p and returns how many bytes the device accepted.
// A short count with a nil error means the device buffer filled; the
// caller resubmits the remainder.
func (c *Client) Write(ctx context.Context, p []byte) (int, error) {
	if len(p) > MaxTransfer {
		p = p[:MaxTransfer]
	}
	resp, err := c.Call(ctx, Request{Kind: KindWrite, Data: p})
	if err != nil {
		return 0, err
	}
	if err := resp.Err(); err != nil {
		return 0, err
	}
	return resp.N, nil
}

// Close ends the session and closes the connection.
func (c *Client) Close() error {
	c.mutex.Lock()
	broken := c.broken
	c.mutex.Unlock()

	if !broken {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err := c.Call(ctx, Request{Kind: KindClose})
		cancel()
		if err != nil {
			pkg.LogDebug(pkg.ComponentIPC, "close request failed", "error", err)
		}
	}
	return c.stream.Close()
}

// Call sends req and waits for its response.
func (c *Client) Call(ctx context.Context, req Request) (Response, error) {
	return c.roundTrip(ctx, req)
}

// roundTrip sends msg and receives one response. If ctx ends first the
// connection deadline is forced into the past, which aborts the exchange
// and leaves the client unusable.
func (c *Client) roundTrip(ctx context.Context, msg any) (Response, error) {
	c.mutex.Lock()
	if c.broken {
		c.mutex.Unlock()
		return Response{}, pkg.ErrNotRunning
	}
	c.mutex.Unlock()

	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	var resp Response
	err := c.stream.Send(msg)
	if err == nil {
		err = c.stream.Recv(&resp)
	}
	if err != nil {
		c.mutex.Lock()
		c.broken = true
		c.mutex.Unlock()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, ctxErr
		}
		if err == io.EOF {
			return Response{}, fmt.Errorf("connection closed by host: %w", io.ErrUnexpectedEOF)
		}
		return Response{}, err
	}
	return resp, nil
}
