// Package reactor drives concurrent persistent HTTP/1.1 connections through per-connection state machines
package reactor

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInterrupted is returned when the run is cancelled before every connection finished
var ErrInterrupted = errors.New("benchmark interrupted")

// ConnectError reports that the connection phase failed. It covers the whole
// batch of connections; no handler has run when it is returned.
type ConnectError struct {
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Address, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func (e *ConnectError) Cause() error { return e.Err }

// ProtocolError reports a response the benchmark cannot account for, such as a chunked body
type ProtocolError struct {
	Connection int
	Reason     string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("connection %d: protocol error: %s", e.Connection, e.Reason)
}

// ParseError reports a response body that is not the expected JSON
type ParseError struct {
	Connection int
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("connection %d: failed to parse response: %v", e.Connection, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Cause() error { return e.Err }

// StatusError reports a non-2xx response
type StatusError struct {
	Connection int
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("connection %d: %s %s returned status %d: %s", e.Connection, e.Method, e.Path, e.StatusCode, e.Body)
}

// NewStatusError builds a StatusError, truncating long bodies
func NewStatusError(connection int, req *Request, resp *Response) *StatusError {
	body := string(resp.Body)
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return &StatusError{
		Connection: connection,
		Method:     req.Method,
		Path:       req.Path,
		StatusCode: resp.StatusCode,
		Body:       body,
	}
}
