package ipc

import (
	"errors"

	"github.com/ardnew/softchar/pkg"
)

// MaxTransfer is the largest payload carried by a single read or write.
const MaxTransfer = 4096

// Kind identifies a request.
type Kind string

// Request kinds understood by the character-device service.
const (
	KindOpen  Kind = "open"
	KindClose Kind = "close"
	KindRead  Kind = "read"
	KindWrite Kind = "write"
)

// Status is the outcome carried by a Response.
type Status string

// Response status values.
const (
	StatusOK          Status = "ok"
	StatusEndOfDevice Status = "eod"
	StatusError       Status = "error"
)

// Connect is the first message on a connection.
type Connect struct {
	Path string `msgpack:"path"`
}

// Request is a single client call.
type Request struct {
	Kind Kind   `msgpack:"kind"`
	Len  int    `msgpack:"len,omitempty"`
	Data []byte `msgpack:"data,omitempty"`
}

// Response answers a Connect or a Request.
type Response struct {
	Status  Status `msgpack:"status"`
	N       int    `msgpack:"n,omitempty"`
	Data    []byte `msgpack:"data,omitempty"`
	Code    Code   `msgpack:"code,omitempty"`
	Message string `msgpack:"msg,omitempty"`
}

// Err returns the error described by an error response, or nil.
func (r *Response) Err() error {
	if r.Status != StatusError {
		return nil
	}
	base := r.Code.Err()
	if r.Message == "" || r.Message == base.Error() {
		return base
	}
	return &RemoteError{Code: r.Code, Message: r.Message}
}

// ErrorResponse builds an error response for err.
func ErrorResponse(err error) Response {
	return Response{Status: StatusError, Code: CodeOf(err), Message: err.Error()}
}

// Code is a stable, wire-facing error identifier.
type Code string

// Canonical codes.
const (
	CodeDeviceGone       Code = "device_gone"
	CodeCancelled        Code = "cancelled"
	CodeProtocol         Code = "protocol"
	CodeNotOpen          Code = "not_open"
	CodeAlreadyOpen      Code = "already_open"
	CodeNoDevice         Code = "no_device"
	CodeBusy             Code = "busy"
	CodeInvalidParameter Code = "invalid_params"
	CodeNotRunning       Code = "not_running"
	CodeError            Code = "error" // generic fallback
)

// codeErrors pairs each code with the sentinel it stands for.
var codeErrors = []struct {
	code Code
	err  error
}{
	{CodeDeviceGone, pkg.ErrDeviceGone},
	{CodeCancelled, pkg.ErrCancelled},
	{CodeProtocol, pkg.ErrProtocol},
	{CodeNotOpen, pkg.ErrNotOpen},
	{CodeAlreadyOpen, pkg.ErrAlreadyOpen},
	{CodeNoDevice, pkg.ErrNoDevice},
	{CodeBusy, pkg.ErrBusy},
	{CodeInvalidParameter, pkg.ErrInvalidParameter},
	{CodeNotRunning, pkg.ErrNotRunning},
}

// errGeneric is returned for codes without a sentinel.
var errGeneric = errors.New("remote error")

// CodeOf extracts a Code from an error, defaulting to CodeError.
func CodeOf(err error) Code {
	for _, ce := range codeErrors {
		if errors.Is(err, ce.err) {
			return ce.code
		}
	}
	return CodeError
}

// Err returns the sentinel error for the code.
func (c Code) Err() error {
	for _, ce := range codeErrors {
		if ce.code == c {
			return ce.err
		}
	}
	return errGeneric
}

// RemoteError is an error reported by the peer, with its original message.
type RemoteError struct {
	Code    Code
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// Unwrap returns the sentinel for the error's code.
func (e *RemoteError) Unwrap() error { return e.Code.Err() }
