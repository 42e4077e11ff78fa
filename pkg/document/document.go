// Package document provides ordered JSON documents and schema driven document generation
package document

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Reserved document fields
const (
	IDField       = "_id"
	RevisionField = "_rev"
)

// Field is one key/value pair of a document
type Field struct {
	Key   string
	Value interface{}
}

// Document is a JSON object whose fields keep their insertion order.
// Values are strings, json.Number, bool, nil, []interface{} or nested Documents.
// A Document is never modified in place; With and Without return copies.
type Document []Field

// Get returns the value stored under key
func (d Document) Get(key string) (interface{}, bool) {
	for _, f := range d {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// GetString returns the value stored under key if it is a string
func (d Document) GetString(key string) (string, bool) {
	v, ok := d.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// With returns a copy of d where key holds value. An existing field keeps its position;
// a new field is appended.
func (d Document) With(key string, value interface{}) Document {
	out := make(Document, len(d), len(d)+1)
	copy(out, d)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, Field{Key: key, Value: value})
}

// WithFirst returns a copy of d where key holds value and is the first field
func (d Document) WithFirst(key string, value interface{}) Document {
	out := make(Document, 0, len(d)+1)
	out = append(out, Field{Key: key, Value: value})
	for _, f := range d {
		if f.Key != key {
			out = append(out, f)
		}
	}
	return out
}

// Without returns a copy of d without key
func (d Document) Without(key string) Document {
	out := make(Document, 0, len(d))
	for _, f := range d {
		if f.Key != key {
			out = append(out, f)
		}
	}
	return out
}

// Keys returns the field names in order
func (d Document) Keys() []string {
	keys := make([]string, len(d))
	for i, f := range d {
		keys[i] = f.Key
	}
	return keys
}

// MarshalJSON encodes the document with its fields in order
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Parse decodes a JSON object keeping field order and number literals
func Parse(data []byte) (Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON document")
	}
	result := gjson.ParseBytes(data)
	if !result.IsObject() {
		return nil, fmt.Errorf("JSON value is not an object")
	}
	return fromObject(result), nil
}

func fromObject(result gjson.Result) Document {
	doc := Document{}
	result.ForEach(func(key, value gjson.Result) bool {
		doc = append(doc, Field{Key: key.String(), Value: fromValue(value)})
		return true
	})
	return doc
}

func fromValue(v gjson.Result) interface{} {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.String:
		return v.Str
	}
	if v.IsArray() {
		items := v.Array()
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = fromValue(item)
		}
		return out
	}
	return fromObject(v)
}

// Revision extracts the top-level "rev" field from a write response
func Revision(body []byte) (string, bool) {
	rev := gjson.GetBytes(body, "rev")
	if rev.Type != gjson.String || rev.Str == "" {
		return "", false
	}
	return rev.Str, true
}
