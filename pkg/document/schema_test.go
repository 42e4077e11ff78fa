package document

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchema_Generate(t *testing.T) {
	schema, err := ParseSchema([]byte(`{"name":"string","n":"integer","f":"float","b":"boolean","id":"uuid","tags":["integer"],"inner":{"k":"string"}}`))
	require.NoError(t, err)
	assert.Equal(t, 7, schema.Fields())

	doc := schema.Generate(NewRandomValues(1, 3))
	assert.Equal(t, []string{"name", "n", "f", "b", "id", "tags", "inner"}, doc.Keys())

	name, _ := doc.Get("name")
	assert.IsType(t, "", name)
	n, _ := doc.Get("n")
	assert.IsType(t, json.Number(""), n)
	b, _ := doc.Get("b")
	assert.IsType(t, true, b)

	id, _ := doc.GetString("id")
	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	tags, _ := doc.Get("tags")
	require.IsType(t, []interface{}{}, tags)
	assert.GreaterOrEqual(t, len(tags.([]interface{})), 1)
	assert.LessOrEqual(t, len(tags.([]interface{})), 3)

	inner, _ := doc.Get("inner")
	require.IsType(t, Document{}, inner)
	assert.Equal(t, []string{"k"}, inner.(Document).Keys())
}

func TestParseSchema_Errors(t *testing.T) {
	tests := map[string]string{
		"not json":       `{`,
		"not an object":  `["string"]`,
		"unknown type":   `{"a":"date"}`,
		"number leaf":    `{"a":1}`,
		"empty array":    `{"a":[]}`,
		"two elements":   `{"a":["string","integer"]}`,
		"reserved id":    `{"_id":"string"}`,
		"nested unknown": `{"a":{"b":["nope"]}}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSchema([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestSchema_DeterministicForSeed(t *testing.T) {
	schema := DefaultSchema()

	a, err := json.Marshal(schema.Generate(NewRandomValues(99, 4)))
	require.NoError(t, err)
	b, err := json.Marshal(schema.Generate(NewRandomValues(99, 4)))
	require.NoError(t, err)
	c, err := json.Marshal(schema.Generate(NewRandomValues(100, 4)))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestLoadSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"title":"string"}`), 0o600))

	schema, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, 1, schema.Fields())

	_, err = LoadSchema(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
