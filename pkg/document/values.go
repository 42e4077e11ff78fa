// Package document provides ordered JSON documents and schema driven document generation
package document

import (
	"encoding/json"
	"math/rand"
	"strconv"

	"github.com/google/uuid"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ValueGenerator produces the leaf values of generated documents
type ValueGenerator interface {
	Text() string
	Integer() json.Number
	Float() json.Number
	Boolean() bool
	UUID() string
	// ArrayLength returns the number of elements of a generated array
	ArrayLength() int
}

// RandomValues is a ValueGenerator backed by a seeded pseudo random source.
// Two instances created with the same seed produce the same values.
type RandomValues struct {
	rand           *rand.Rand
	minStringLen   int
	maxStringLen   int
	maxArrayLength int
}

// NewRandomValues creates a value generator for the given seed
func NewRandomValues(seed int64, maxArrayLength int) *RandomValues {
	if maxArrayLength < 1 {
		maxArrayLength = 1
	}
	return &RandomValues{
		rand:           rand.New(rand.NewSource(seed)),
		minStringLen:   4,
		maxStringLen:   16,
		maxArrayLength: maxArrayLength,
	}
}

func (r *RandomValues) Text() string {
	n := r.minStringLen + r.rand.Intn(r.maxStringLen-r.minStringLen+1)
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanumeric[r.rand.Intn(len(alphanumeric))]
	}
	return string(b)
}

func (r *RandomValues) Integer() json.Number {
	return json.Number(strconv.FormatInt(r.rand.Int63n(1<<31), 10))
}

func (r *RandomValues) Float() json.Number {
	return json.Number(strconv.FormatFloat(r.rand.Float64()*1e6, 'f', 4, 64))
}

func (r *RandomValues) Boolean() bool {
	return r.rand.Intn(2) == 1
}

func (r *RandomValues) UUID() string {
	id, err := uuid.NewRandomFromReader(r.rand)
	if err != nil {
		// *rand.Rand reads never fail
		return uuid.Nil.String()
	}
	return id.String()
}

func (r *RandomValues) ArrayLength() int {
	return 1 + r.rand.Intn(r.maxArrayLength)
}
