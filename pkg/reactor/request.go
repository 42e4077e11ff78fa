// Package reactor drives concurrent persistent HTTP/1.1 connections through per-connection state machines
package reactor

import (
	"bytes"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpguts"
)

// Request is one HTTP/1.1 request issued by a handler
type Request struct {
	Method string
	Path   string
	Body   []byte
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Status     string
	Chunked    bool
	Body       []byte
	// Latency is the time from handing the request to the transport until the body was read
	Latency time.Duration
}

// OK reports whether the status code is 2xx
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// encoder serialises requests with the headers every request carries
type encoder struct {
	host          string
	authorization string
}

func newEncoder(host, credentials string) (*encoder, error) {
	if !httpguts.ValidHostHeader(host) {
		return nil, errors.Errorf("invalid host header %q", host)
	}
	e := &encoder{host: host}
	if credentials != "" {
		e.authorization = "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
		if !httpguts.ValidHeaderFieldValue(e.authorization) {
			return nil, errors.New("invalid credentials")
		}
	}
	return e, nil
}

func (e *encoder) encode(req *Request) ([]byte, error) {
	if !httpguts.ValidHeaderFieldName(req.Method) {
		return nil, errors.Errorf("invalid method %q", req.Method)
	}
	if req.Path == "" || !validPath(req.Path) {
		return nil, errors.Errorf("invalid request path %q", req.Path)
	}

	var buf bytes.Buffer
	buf.Grow(256 + len(req.Body))
	buf.WriteString(req.Method)
	buf.WriteByte(' ')
	buf.WriteString(req.Path)
	buf.WriteString(" HTTP/1.1\r\n")
	writeHeader(&buf, "Host", e.host)
	writeHeader(&buf, "Connection", "keep-alive")
	writeHeader(&buf, "Content-Type", "application/json")
	if e.authorization != "" {
		writeHeader(&buf, "Authorization", e.authorization)
	}
	if req.Body != nil {
		writeHeader(&buf, "Content-Length", strconv.Itoa(len(req.Body)))
	}
	buf.WriteString("\r\n")
	buf.Write(req.Body)
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, name, value string) {
	buf.WriteString(name)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

func validPath(path string) bool {
	for i := 0; i < len(path); i++ {
		if c := path[i]; c <= ' ' || c == 0x7f {
			return false
		}
	}
	return true
}
