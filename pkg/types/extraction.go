// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"go.yaml.in/yaml/v3"
)

// NotFound is displayed in place of an empty or null field value.
const NotFound = "Not Found"

// Field is one name/value pair of an extraction result. Raw holds the JSON
// value exactly as the service sent it (a string, number, bool or null).
type Field struct {
	Name string          `json:"name" yaml:"name"`
	Raw  json.RawMessage `json:"value" yaml:"-"`
}

// Text returns the display form of the value: the string contents for JSON
// strings, "" for null, and the literal JSON text for other scalars.
func (f Field) Text() string {
	raw := bytes.TrimSpace(f.Raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// Display returns Text, or NotFound when the value is empty.
func (f Field) Display() string {
	if v := f.Text(); v != "" {
		return v
	}
	return NotFound
}

// StringField builds a Field holding a JSON string value.
func StringField(name, value string) Field {
	raw, _ := json.Marshal(value)
	return Field{Name: name, Raw: raw}
}

// NullField builds a Field holding JSON null.
func NullField(name string) Field {
	return Field{Name: name, Raw: json.RawMessage("null")}
}

// ExtractionResult is the structured field/value data returned by the
// extraction service. It decodes from and encodes to a JSON object while
// keeping the key order the service used.
type ExtractionResult struct {
	Fields []Field
}

// Len returns the number of fields.
func (r ExtractionResult) Len() int {
	return len(r.Fields)
}

// RawText renders the result as "key: value" lines in field order, with
// NotFound substituted for empty values. It is the fallback shown when the
// service returns no OCR text.
func (r ExtractionResult) RawText() string {
	lines := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		lines[i] = f.Name + ": " + f.Display()
	}
	return strings.Join(lines, "\n")
}

// MarshalJSON encodes the result as a JSON object in field order.
func (r ExtractionResult) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, fmt.Errorf("encoding key %q: %w", f.Name, err)
		}
		b.Write(key)
		b.WriteByte(':')
		raw := bytes.TrimSpace(f.Raw)
		if len(raw) == 0 {
			raw = []byte("null")
		}
		b.Write(raw)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, recording keys in document order.
// Nested objects and arrays are rejected: results are flat by contract.
func (r *ExtractionResult) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("reading result: %w", err)
	}
	if tok == nil {
		r.Fields = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("extraction result must be a JSON object, got %v", tok)
	}

	var fields []Field
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("reading result key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected result key %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("reading value for %q: %w", key, err)
		}
		if c := firstByte(raw); c == '{' || c == '[' {
			return fmt.Errorf("value for %q is not a scalar", key)
		}
		fields = append(fields, Field{Name: key, Raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("reading end of result: %w", err)
	}

	r.Fields = fields
	return nil
}

// MarshalYAML encodes the result as a mapping node in field order.
func (r ExtractionResult) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range r.Fields {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Name}
		node.Content = append(node.Content, key, yamlValue(f))
	}
	return node, nil
}

// UnmarshalYAML decodes a YAML mapping, keeping key order.
func (r *ExtractionResult) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("extraction result must be a mapping (line %d)", node.Line)
	}

	fields := make([]Field, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return fmt.Errorf("value for %q is not a scalar (line %d)", key.Value, val.Line)
		}
		fields = append(fields, Field{Name: key.Value, Raw: scalarJSON(val)})
	}
	r.Fields = fields
	return nil
}

func yamlValue(f Field) *yaml.Node {
	raw := bytes.TrimSpace(f.Raw)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case raw[0] == '"':
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Text()}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: string(raw)}
	}
}

func scalarJSON(n *yaml.Node) json.RawMessage {
	switch n.ShortTag() {
	case "!!null":
		return json.RawMessage("null")
	case "!!int", "!!float", "!!bool":
		if json.Valid([]byte(n.Value)) {
			return json.RawMessage(n.Value)
		}
	}
	raw, _ := json.Marshal(n.Value)
	return raw
}

func firstByte(b []byte) byte {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}
