// Package bulkinsert generates bulk insert payloads and drives bulk insert connections
package bulkinsert

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/docbench_go/pkg/reactor"
	"github.com/docbench_go/pkg/stats"
)

// Handler sends every batch of one connection in sequence, one request in flight
type Handler struct {
	connection int
	path       string
	generator  Generator
	stats      stats.BulkInsertStatistics
	sent       int
}

// NewHandler creates the state machine of one bulk insert connection
func NewHandler(connection int, path string, generator Generator, st stats.BulkInsertStatistics) *Handler {
	return &Handler{
		connection: connection,
		path:       path,
		generator:  generator,
		stats:      st,
	}
}

// Statistics returns the connection's statistics
func (h *Handler) Statistics() stats.BulkInsertStatistics {
	return h.stats
}

func (h *Handler) Connected(c *reactor.Conn) error {
	return h.sendNextOrClose(c)
}

func (h *Handler) WriteComplete(*reactor.Conn) {
	h.stats.AdvanceIf(stats.PhaseSendData, stats.PhaseRemoteProcessing)
}

func (h *Handler) ResponseStarted(*reactor.Conn) {
	h.stats.Start(stats.PhaseReceiveData)
}

func (h *Handler) ResponseReceived(c *reactor.Conn, resp *reactor.Response) error {
	if resp.Chunked {
		return &reactor.ProtocolError{Connection: h.connection, Reason: "bulk insert response is chunked"}
	}
	h.stats.ReceivedJSONBytes(len(resp.Body))
	if !resp.OK() {
		return reactor.NewStatusError(h.connection, c.LastRequest(), resp)
	}
	if !gjson.ValidBytes(resp.Body) {
		return &reactor.ParseError{Connection: h.connection, Err: errors.New("bulk insert response is not valid JSON")}
	}
	h.stats.RecordLatency(resp.Latency)
	return h.sendNextOrClose(c)
}

func (h *Handler) sendNextOrClose(c *reactor.Conn) error {
	if h.sent >= h.generator.Len() {
		h.stats.Finish()
		c.Close()
		return nil
	}

	h.stats.Start(stats.PhaseLocalProcessing)
	body, err := h.generator.Batch(h.sent)
	if err != nil {
		return errors.Wrapf(err, "connection %d", h.connection)
	}
	h.sent++

	h.stats.SentJSONBytes(len(body))
	h.stats.Start(stats.PhaseSendData)
	return c.Send(&reactor.Request{Method: http.MethodPost, Path: h.path, Body: body})
}
