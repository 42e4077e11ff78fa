package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PreservesOrderAndNumbers(t *testing.T) {
	doc, err := Parse([]byte(`{"z":1,"_id":"7","a":1.50,"nested":{"y":true,"x":null},"list":["a",2]}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"z", "_id", "a", "nested", "list"}, doc.Keys())

	a, ok := doc.Get("a")
	require.True(t, ok)
	assert.Equal(t, json.Number("1.50"), a)

	nested, ok := doc.Get("nested")
	require.True(t, ok)
	assert.Equal(t, Document{{Key: "y", Value: true}, {Key: "x", Value: nil}}, nested)

	list, _ := doc.Get("list")
	assert.Equal(t, []interface{}{"a", json.Number("2")}, list)

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"z":1,"_id":"7","a":1.50,"nested":{"y":true,"x":null},"list":["a",2]}`, string(out))
	assert.Equal(t, `{"z":1,"_id":"7","a":1.50,"nested":{"y":true,"x":null},"list":["a",2]}`, string(out))
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"malformed": `{"a":`,
		"array":     `[1,2]`,
		"empty":     ``,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestDocument_WithIsImmutable(t *testing.T) {
	base := Document{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}

	replaced := base.With("a", "x")
	appended := base.With("c", "3")
	first := base.WithFirst(IDField, "42")
	removed := base.Without("a")

	assert.Equal(t, Document{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}, base)
	assert.Equal(t, Document{{Key: "a", Value: "x"}, {Key: "b", Value: "2"}}, replaced)
	assert.Equal(t, []string{"a", "b", "c"}, appended.Keys())
	assert.Equal(t, []string{IDField, "a", "b"}, first.Keys())
	assert.Equal(t, []string{"b"}, removed.Keys())

	id, ok := first.GetString(IDField)
	assert.True(t, ok)
	assert.Equal(t, "42", id)
}

func TestRevision(t *testing.T) {
	rev, ok := Revision([]byte(`{"ok":true,"id":"1","rev":"1-abc"}`))
	assert.True(t, ok)
	assert.Equal(t, "1-abc", rev)

	_, ok = Revision([]byte(`{"error":"conflict","reason":"Document update conflict."}`))
	assert.False(t, ok)
}
