// Package crud generates CRUD scripts and drives CRUD connections
package crud

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/docbench_go/pkg/document"
	"github.com/docbench_go/pkg/reactor"
	"github.com/docbench_go/pkg/stats"
)

// DocumentState is the document a script is working on. Each step that changes it
// produces a new value.
type DocumentState struct {
	ID   string
	Rev  string
	Body document.Document
}

// WithRevision returns the state at a new revision
func (s DocumentState) WithRevision(rev string) DocumentState {
	s.Rev = rev
	return s
}

var remotePhase = map[Op]stats.Phase{
	OpCreate: stats.PhaseRemoteCreate,
	OpRead:   stats.PhaseRemoteRead,
	OpUpdate: stats.PhaseRemoteUpdate,
	OpDelete: stats.PhaseRemoteDelete,
}

// Handler runs a Script over one connection
type Handler struct {
	connection int
	path       string
	script     Script
	schema     *document.Schema
	values     document.ValueGenerator
	stats      stats.CrudStatistics

	completed int
	current   *DocumentState
	pending   *DocumentState
}

// NewHandler creates the state machine of one CRUD connection. path is the database
// path documents live under, without a trailing slash.
func NewHandler(connection int, path string, script Script, schema *document.Schema, values document.ValueGenerator, st stats.CrudStatistics) *Handler {
	return &Handler{
		connection: connection,
		path:       path,
		script:     script,
		schema:     schema,
		values:     values,
		stats:      st,
	}
}

// Statistics returns the connection's statistics
func (h *Handler) Statistics() stats.CrudStatistics {
	return h.stats
}

// Current returns the document the script is working on
func (h *Handler) Current() (DocumentState, bool) {
	if h.current == nil {
		return DocumentState{}, false
	}
	return *h.current, true
}

// Completed returns the number of finished steps
func (h *Handler) Completed() int {
	return h.completed
}

func (h *Handler) Connected(c *reactor.Conn) error {
	return h.performNextOrClose(c)
}

func (h *Handler) WriteComplete(*reactor.Conn) {
	if h.completed >= len(h.script) {
		return
	}
	h.stats.AdvanceIf(stats.PhaseSendData, remotePhase[h.script[h.completed].Op])
}

// ResponseStarted is a no-op; the response read is part of the remote phase.
func (h *Handler) ResponseStarted(*reactor.Conn) {}

func (h *Handler) ResponseReceived(c *reactor.Conn, resp *reactor.Response) error {
	h.stats.Start(stats.PhaseLocalProcessing)

	if resp.Chunked {
		return &reactor.ProtocolError{Connection: h.connection, Reason: "CRUD response is chunked"}
	}
	h.stats.ReceivedJSONBytes(len(resp.Body))
	if !resp.OK() {
		return reactor.NewStatusError(h.connection, c.LastRequest(), resp)
	}

	step := h.script[h.completed]
	switch step.Op {
	case OpCreate, OpUpdate:
		rev, ok := document.Revision(resp.Body)
		if !ok {
			return &reactor.ParseError{Connection: h.connection, Err: errors.Errorf("%s response has no rev", step.Op)}
		}
		next := h.pending.WithRevision(rev)
		h.current = &next
	case OpRead:
		doc, err := document.Parse(resp.Body)
		if err != nil {
			return &reactor.ParseError{Connection: h.connection, Err: err}
		}
		id, okID := doc.GetString(document.IDField)
		rev, okRev := doc.GetString(document.RevisionField)
		if !okID || !okRev {
			return &reactor.ParseError{Connection: h.connection, Err: errors.New("read response lacks _id or _rev")}
		}
		h.current = &DocumentState{ID: id, Rev: rev, Body: doc}
	case OpDelete:
		if !gjson.ValidBytes(resp.Body) {
			return &reactor.ParseError{Connection: h.connection, Err: errors.New("delete response is not valid JSON")}
		}
		h.current = nil
	}
	h.pending = nil

	h.stats.RecordLatency(resp.Latency)
	h.completed++
	return h.performNextOrClose(c)
}

func (h *Handler) performNextOrClose(c *reactor.Conn) error {
	if h.completed >= len(h.script) {
		h.stats.Finish()
		c.Close()
		return nil
	}

	h.stats.Start(stats.PhaseLocalProcessing)
	req, err := h.buildRequest(h.script[h.completed])
	if err != nil {
		return errors.Wrapf(err, "connection %d step %d", h.connection, h.completed)
	}
	if req.Body != nil {
		h.stats.SentJSONBytes(len(req.Body))
	}
	h.stats.Start(stats.PhaseSendData)
	return c.Send(req)
}

func (h *Handler) buildRequest(step Step) (*reactor.Request, error) {
	switch step.Op {
	case OpCreate:
		body := h.schema.Generate(h.values).WithFirst(document.IDField, step.DocumentID)
		h.pending = &DocumentState{ID: step.DocumentID, Body: body}
		return h.put(step.DocumentID, body)
	case OpRead:
		return &reactor.Request{Method: http.MethodGet, Path: h.documentPath(step.DocumentID)}, nil
	case OpUpdate:
		if h.current == nil {
			return nil, errors.New("update without a current document")
		}
		body := h.schema.Generate(h.values).
			WithFirst(document.RevisionField, h.current.Rev).
			WithFirst(document.IDField, h.current.ID)
		h.pending = &DocumentState{ID: h.current.ID, Rev: h.current.Rev, Body: body}
		return h.put(h.current.ID, body)
	case OpDelete:
		if h.current == nil {
			return nil, errors.New("delete without a current document")
		}
		path := h.documentPath(h.current.ID) + "?rev=" + url.QueryEscape(h.current.Rev)
		return &reactor.Request{Method: http.MethodDelete, Path: path}, nil
	default:
		return nil, errors.Errorf("unknown operation %s", step.Op)
	}
}

func (h *Handler) put(id string, body document.Document) (*reactor.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &reactor.Request{Method: http.MethodPut, Path: h.documentPath(id), Body: data}, nil
}

func (h *Handler) documentPath(id string) string {
	return h.path + "/" + url.PathEscape(id)
}
