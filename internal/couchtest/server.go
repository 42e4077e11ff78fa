// Package couchtest provides an in-memory CouchDB-like HTTP responder for tests
package couchtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/docbench_go/pkg/document"
)

// Request is one request observed by the server
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Body     string
	Auth     string
}

type stored struct {
	generation int
	rev        string
	doc        document.Document
}

// Server answers bulk insert and CRUD requests for one database
type Server struct {
	*httptest.Server
	database string

	mu       sync.Mutex
	docs     map[string]stored
	requests []Request
	counter  int

	// Chunked makes every response use chunked transfer encoding
	Chunked bool
}

// NewServer starts a server for database and stops it when the test ends
func NewServer(t testing.TB, database string) *Server {
	t.Helper()
	s := &Server{database: database, docs: map[string]stored{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Address returns host:port of the server
func (s *Server) Address() string {
	return strings.TrimPrefix(s.URL, "http://")
}

// Requests returns the requests seen so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Len returns the number of stored documents
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// Revision returns the current revision of id
func (s *Server) Revision(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	return d.rev, ok
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Body:     string(body),
		Auth:     r.Header.Get("Authorization"),
	})

	prefix := "/" + s.database
	if r.URL.Path == prefix+"/_bulk_docs" && r.Method == http.MethodPost {
		s.bulkDocs(w, body)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, prefix+"/")
	if id == r.URL.Path || id == "" || strings.Contains(id, "/") {
		s.write(w, http.StatusNotFound, `{"error":"not_found","reason":"missing"}`)
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.put(w, id, body)
	case http.MethodGet:
		s.get(w, id)
	case http.MethodDelete:
		s.delete(w, id, r.URL.Query().Get("rev"))
	default:
		s.write(w, http.StatusMethodNotAllowed, `{"error":"method_not_allowed"}`)
	}
}

func (s *Server) nextRev(generation int) string {
	s.counter++
	return fmt.Sprintf("%d-%032x", generation, s.counter)
}

func (s *Server) bulkDocs(w http.ResponseWriter, body []byte) {
	if !gjson.ValidBytes(body) {
		s.write(w, http.StatusBadRequest, `{"error":"bad_request","reason":"invalid UTF-8 JSON"}`)
		return
	}
	var results []string
	for _, raw := range gjson.GetBytes(body, "docs").Array() {
		doc, err := document.Parse([]byte(raw.Raw))
		if err != nil {
			s.write(w, http.StatusBadRequest, `{"error":"bad_request"}`)
			return
		}
		id, _ := doc.GetString(document.IDField)
		rev := s.nextRev(1)
		s.docs[id] = stored{generation: 1, rev: rev, doc: doc}
		results = append(results, fmt.Sprintf(`{"ok":true,"id":%q,"rev":%q}`, id, rev))
	}
	s.write(w, http.StatusCreated, "["+strings.Join(results, ",")+"]")
}

func (s *Server) put(w http.ResponseWriter, id string, body []byte) {
	doc, err := document.Parse(body)
	if err != nil {
		s.write(w, http.StatusBadRequest, `{"error":"bad_request","reason":"invalid UTF-8 JSON"}`)
		return
	}
	generation := 1
	if current, ok := s.docs[id]; ok {
		rev, _ := doc.GetString(document.RevisionField)
		if rev != current.rev {
			s.write(w, http.StatusConflict, `{"error":"conflict","reason":"Document update conflict."}`)
			return
		}
		generation = current.generation + 1
	}
	rev := s.nextRev(generation)
	s.docs[id] = stored{generation: generation, rev: rev, doc: doc.Without(document.RevisionField)}
	s.write(w, http.StatusCreated, fmt.Sprintf(`{"ok":true,"id":%q,"rev":%q}`, id, rev))
}

func (s *Server) get(w http.ResponseWriter, id string) {
	current, ok := s.docs[id]
	if !ok {
		s.write(w, http.StatusNotFound, `{"error":"not_found","reason":"missing"}`)
		return
	}
	doc := current.doc.WithFirst(document.RevisionField, current.rev).WithFirst(document.IDField, id)
	data, _ := json.Marshal(doc)
	s.write(w, http.StatusOK, string(data))
}

func (s *Server) delete(w http.ResponseWriter, id, rev string) {
	current, ok := s.docs[id]
	if !ok {
		s.write(w, http.StatusNotFound, `{"error":"not_found","reason":"deleted"}`)
		return
	}
	if rev != current.rev {
		s.write(w, http.StatusConflict, `{"error":"conflict","reason":"Document update conflict."}`)
		return
	}
	delete(s.docs, id)
	s.write(w, http.StatusOK, fmt.Sprintf(`{"ok":true,"id":%q,"rev":%q}`, id, s.nextRev(current.generation+1)))
}

func (s *Server) write(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	if s.Chunked {
		w.WriteHeader(status)
		io.WriteString(w, body[:len(body)/2])
		w.(http.Flusher).Flush()
		io.WriteString(w, body[len(body)/2:])
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	io.WriteString(w, body)
}
