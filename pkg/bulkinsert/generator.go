// Package bulkinsert generates bulk insert payloads and drives bulk insert connections
package bulkinsert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/docbench_go/pkg/document"
)

// Layout is the shape of a bulk insert run
type Layout struct {
	DocumentsPerInsert int
	InsertOperations   int
}

// DocumentsPerConnection returns the number of documents each connection inserts
func (l Layout) DocumentsPerConnection() int64 {
	return int64(l.DocumentsPerInsert) * int64(l.InsertOperations)
}

// FirstID returns the first document id inserted by connection
func (l Layout) FirstID(connection int) int64 {
	return int64(connection) * l.DocumentsPerConnection()
}

// BatchRange returns the half-open id range [first, end) of one batch
func (l Layout) BatchRange(connection, batch int) (int64, int64) {
	first := l.FirstID(connection) + int64(batch)*int64(l.DocumentsPerInsert)
	return first, first + int64(l.DocumentsPerInsert)
}

// Options configures document generation for one connection
type Options struct {
	Schema         *document.Schema
	Layout         Layout
	Seed           int64
	MaxArrayLength int
}

// Generator returns the request body of each batch of one connection
type Generator interface {
	Batch(batch int) ([]byte, error)
	Len() int
}

// New returns a Precomputed generator when precompute is set, otherwise an OnDemand one
func New(precompute bool, connection int, opts Options) (Generator, error) {
	if precompute {
		return NewPrecomputed(connection, opts)
	}
	return NewOnDemand(connection, opts), nil
}

// OnDemand builds each batch when it is requested
type OnDemand struct {
	connection int
	opts       Options
}

// NewOnDemand creates a lazy generator
func NewOnDemand(connection int, opts Options) *OnDemand {
	return &OnDemand{connection: connection, opts: opts}
}

func (g *OnDemand) Len() int {
	return g.opts.Layout.InsertOperations
}

func (g *OnDemand) Batch(batch int) ([]byte, error) {
	if batch < 0 || batch >= g.Len() {
		return nil, fmt.Errorf("batch %d out of range [0, %d)", batch, g.Len())
	}
	return encodeBatch(g.connection, batch, g.opts)
}

// Precomputed builds every batch up front and serves them from memory
type Precomputed struct {
	batches [][]byte
}

// NewPrecomputed creates an eager generator
func NewPrecomputed(connection int, opts Options) (*Precomputed, error) {
	batches := make([][]byte, opts.Layout.InsertOperations)
	for i := range batches {
		body, err := encodeBatch(connection, i, opts)
		if err != nil {
			return nil, err
		}
		batches[i] = body
	}
	return &Precomputed{batches: batches}, nil
}

func (g *Precomputed) Len() int {
	return len(g.batches)
}

func (g *Precomputed) Batch(batch int) ([]byte, error) {
	if batch < 0 || batch >= len(g.batches) {
		return nil, fmt.Errorf("batch %d out of range [0, %d)", batch, len(g.batches))
	}
	return g.batches[batch], nil
}

// encodeBatch renders {"docs":[...]} for one batch. The value generator is seeded
// from (seed, connection, batch) alone so both generators agree byte for byte.
func encodeBatch(connection, batch int, opts Options) ([]byte, error) {
	values := document.NewRandomValues(BatchSeed(opts.Seed, connection, batch), opts.MaxArrayLength)
	first, end := opts.Layout.BatchRange(connection, batch)

	var buf bytes.Buffer
	buf.WriteString(`{"docs":[`)
	for id := first; id < end; id++ {
		if id > first {
			buf.WriteByte(',')
		}
		doc := opts.Schema.Generate(values).WithFirst(document.IDField, strconv.FormatInt(id, 10))
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode document %d: %w", id, err)
		}
		buf.Write(data)
	}
	buf.WriteString(`]}`)
	return buf.Bytes(), nil
}

// BatchSeed mixes the run seed with a connection and batch index
func BatchSeed(seed int64, connection, batch int) int64 {
	x := uint64(seed) ^ uint64(connection)<<32 ^ uint64(batch)
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return int64(x)
}
