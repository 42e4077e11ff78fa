// Package reactor drives concurrent persistent HTTP/1.1 connections through per-connection state machines
package reactor

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/docbench_go/pkg/metrics"
)

// Handler is the operation state machine of one connection. All methods are
// called from the connection's event loop, one at a time.
type Handler interface {
	// Connected is called once the connection is established
	Connected(c *Conn) error
	// WriteComplete is called when the last request has been fully handed to the transport.
	// It may arrive after the response to that request.
	WriteComplete(c *Conn)
	// ResponseStarted is called when the status line and headers have been read
	ResponseStarted(c *Conn)
	// ResponseReceived is called with the complete response
	ResponseReceived(c *Conn, resp *Response) error
}

type eventKind int

const (
	eventWriteComplete eventKind = iota
	eventResponseStarted
	eventResponse
	eventReadError
)

type event struct {
	kind eventKind
	seq  uint64
	resp *Response
	err  error
}

type writeJob struct {
	seq  uint64
	data []byte
}

// Conn is one persistent connection and its event loop
type Conn struct {
	id      int
	netConn net.Conn
	encoder *encoder
	logger  logrus.FieldLogger
	metrics *metrics.Phase

	events chan event
	writes chan writeJob
	done   chan struct{}

	// owned by the event loop
	seq     uint64
	sentAt  time.Time
	closed  bool
	lastReq *Request
}

func newConn(id int, netConn net.Conn, enc *encoder, logger logrus.FieldLogger, m *metrics.Phase) *Conn {
	return &Conn{
		id:      id,
		netConn: netConn,
		encoder: enc,
		logger:  logger.WithField("connection", id),
		metrics: m,
		events:  make(chan event, 4),
		writes:  make(chan writeJob, 1),
		done:    make(chan struct{}),
	}
}

// ID returns the zero-based index of the connection
func (c *Conn) ID() int {
	return c.id
}

// Logger returns the connection scoped logger
func (c *Conn) Logger() logrus.FieldLogger {
	return c.logger
}

// LastRequest returns the request most recently sent
func (c *Conn) LastRequest() *Request {
	return c.lastReq
}

// Send serialises req and hands it to the writer. The body length is reported to
// metrics; handlers account JSON bytes on their own statistics.
func (c *Conn) Send(req *Request) error {
	if c.closed {
		return errors.Errorf("connection %d: send on closed connection", c.id)
	}
	data, err := c.encoder.encode(req)
	if err != nil {
		return errors.Wrapf(err, "connection %d", c.id)
	}

	c.seq++
	c.lastReq = req
	c.sentAt = time.Now()
	c.metrics.RequestSent(len(req.Body))

	select {
	case c.writes <- writeJob{seq: c.seq, data: data}:
		return nil
	case <-c.done:
		return errors.Errorf("connection %d: send on closed connection", c.id)
	}
}

// Close ends the event loop after the current handler call returns
func (c *Conn) Close() {
	c.closed = true
}

func (c *Conn) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case job := <-c.writes:
			_, err := c.netConn.Write(job.data)
			c.post(event{kind: eventWriteComplete, seq: job.seq, err: err})
			if err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) readLoop() {
	reader := bufio.NewReader(c.netConn)
	for {
		resp, err := http.ReadResponse(reader, nil)
		if err != nil {
			c.post(event{kind: eventReadError, err: err})
			return
		}
		c.post(event{kind: eventResponseStarted})

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			c.post(event{kind: eventReadError, err: err})
			return
		}
		c.post(event{kind: eventResponse, resp: &Response{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Chunked:    isChunked(resp.TransferEncoding),
			Body:       body,
		}})
	}
}

func isChunked(transferEncoding []string) bool {
	for _, te := range transferEncoding {
		if te == "chunked" {
			return true
		}
	}
	return false
}

// run drives h until it closes the connection, a fatal error occurs or ctx is done
func (c *Conn) run(ctx context.Context, h Handler) error {
	defer c.shutdown()
	go c.writeLoop()
	go c.readLoop()

	if err := h.Connected(c); err != nil {
		return err
	}

	for !c.closed {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			switch ev.kind {
			case eventWriteComplete:
				if ev.err != nil {
					return errors.Wrapf(ev.err, "connection %d: write failed", c.id)
				}
				if ev.seq != c.seq {
					c.logger.Debugf("dropping stale write completion %d", ev.seq)
					continue
				}
				h.WriteComplete(c)
			case eventResponseStarted:
				h.ResponseStarted(c)
			case eventResponse:
				ev.resp.Latency = time.Since(c.sentAt)
				c.metrics.ResponseReceived(ev.resp.StatusCode, len(ev.resp.Body), ev.resp.Latency)
				if err := h.ResponseReceived(c, ev.resp); err != nil {
					return err
				}
			case eventReadError:
				return errors.Wrapf(ev.err, "connection %d: read failed", c.id)
			}
		}
	}
	return nil
}

func (c *Conn) shutdown() {
	c.closed = true
	close(c.done)
	c.netConn.Close()
}
