// Package document provides ordered JSON documents and schema driven document generation
package document

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// Leaf type names accepted in a schema file
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeBoolean = "boolean"
	TypeUUID    = "uuid"
)

// defaultSchema is used when no schema file is configured
const defaultSchema = `{
  "name": "string",
  "email": "string",
  "age": "integer",
  "score": "float",
  "active": "boolean",
  "account": "uuid",
  "tags": ["string"],
  "address": {
    "street": "string",
    "city": "string",
    "zip": "integer"
  }
}`

// Schema describes the shape of generated documents. It is read-only after
// parsing and may be shared by all connections.
type Schema struct {
	root objectNode
}

type node interface {
	generate(values ValueGenerator) interface{}
}

type leafNode string

type arrayNode struct {
	element node
}

type objectField struct {
	key  string
	node node
}

type objectNode []objectField

func (l leafNode) generate(values ValueGenerator) interface{} {
	switch string(l) {
	case TypeString:
		return values.Text()
	case TypeInteger:
		return values.Integer()
	case TypeFloat:
		return values.Float()
	case TypeBoolean:
		return values.Boolean()
	default:
		return values.UUID()
	}
}

func (a arrayNode) generate(values ValueGenerator) interface{} {
	n := values.ArrayLength()
	out := make([]interface{}, n)
	for i := range out {
		out[i] = a.element.generate(values)
	}
	return out
}

func (o objectNode) generate(values ValueGenerator) interface{} {
	return o.document(values)
}

func (o objectNode) document(values ValueGenerator) Document {
	doc := make(Document, len(o))
	for i, f := range o {
		doc[i] = Field{Key: f.key, Value: f.node.generate(values)}
	}
	return doc
}

// DefaultSchema returns the built-in schema
func DefaultSchema() *Schema {
	s, err := ParseSchema([]byte(defaultSchema))
	if err != nil {
		panic(fmt.Sprintf("document: invalid default schema: %v", err))
	}
	return s
}

// LoadSchema reads a schema from a JSON file
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	s, err := ParseSchema(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}
	return s, nil
}

// ParseSchema parses a schema whose leaves are type names, arrays hold exactly one
// element schema and objects nest. Field order is preserved.
func ParseSchema(data []byte) (*Schema, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON")
	}
	result := gjson.ParseBytes(data)
	if !result.IsObject() {
		return nil, fmt.Errorf("schema root must be an object")
	}
	root, err := parseObject(result, "")
	if err != nil {
		return nil, err
	}
	return &Schema{root: root}, nil
}

func parseObject(result gjson.Result, path string) (objectNode, error) {
	var obj objectNode
	var err error
	result.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if name == IDField || name == RevisionField {
			err = fmt.Errorf("%s%s: field name is reserved", path, name)
			return false
		}
		var n node
		n, err = parseNode(value, path+name)
		if err != nil {
			return false
		}
		obj = append(obj, objectField{key: name, node: n})
		return true
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func parseNode(value gjson.Result, path string) (node, error) {
	switch {
	case value.IsObject():
		return parseObject(value, path+".")
	case value.IsArray():
		items := value.Array()
		if len(items) != 1 {
			return nil, fmt.Errorf("%s: array schema must have exactly one element", path)
		}
		element, err := parseNode(items[0], path+"[]")
		if err != nil {
			return nil, err
		}
		return arrayNode{element: element}, nil
	case value.Type == gjson.String:
		switch value.Str {
		case TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeUUID:
			return leafNode(value.Str), nil
		}
		return nil, fmt.Errorf("%s: unknown type %q", path, value.Str)
	default:
		return nil, fmt.Errorf("%s: expected a type name, array or object", path)
	}
}

// Generate produces one document body without an id
func (s *Schema) Generate(values ValueGenerator) Document {
	return s.root.document(values)
}

// Fields returns the number of top-level fields
func (s *Schema) Fields() int {
	return len(s.root)
}
