// Package codec reads and writes workflow documents as JSON or YAML.
//
// Decoding is strict: input is checked against an embedded JSON Schema, then decoded,
// then loaded into a graph.Model so that dangling references and duplicate ids are
// reported as *domain.MalformedDocumentError instead of being repaired.
package codec

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/graph"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://triage.dev/schemas/document.json"

// Format is a document serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml and yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal document schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add document schema resource: %w", err)
	}
	return c.Compile(schemaURL)
})

// Decode parses and checks a document.
func Decode(data []byte, format Format) (*domain.Document, error) {
	raw, err := toJSON(data, format)
	if err != nil {
		return nil, &domain.MalformedDocumentError{Reason: "syntax", Err: err}
	}

	if err := CheckSchema(raw); err != nil {
		return nil, err
	}

	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &domain.MalformedDocumentError{Reason: "decode", Err: err}
	}
	if _, err := graph.FromDocument(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DecodeModel decodes a document and loads it into a model.
func DecodeModel(data []byte, format Format) (*graph.Model, *domain.Document, error) {
	doc, err := Decode(data, format)
	if err != nil {
		return nil, nil, err
	}
	m, err := graph.FromDocument(doc)
	if err != nil {
		return nil, nil, err
	}
	return m, doc, nil
}

// CheckSchema validates raw JSON against the document schema.
func CheckSchema(raw []byte) error {
	schema, err := compiled()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return &domain.MalformedDocumentError{Reason: "syntax", Err: err}
	}
	if err := schema.Validate(inst); err != nil {
		return &domain.MalformedDocumentError{Reason: "schema", Err: violations(err)}
	}
	return nil
}

// Encode serializes doc. JSON output is indented; YAML output keeps the JSON key order.
func Encode(doc *domain.Document, format Format) ([]byte, error) {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	switch format {
	case FormatJSON:
		return append(raw, '\n'), nil
	case FormatYAML:
		return jsonToYAML(raw)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

func toJSON(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// jsonToYAML re-reads JSON as a YAML node tree, which preserves key order,
// and emits it in block style.
func jsonToYAML(raw []byte) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	blockStyle(&root)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func blockStyle(n *yaml.Node) {
	if n.Kind != yaml.ScalarNode || n.Tag != "!!str" || !ambiguous(n.Value) {
		n.Style = 0
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// ambiguous reports whether an unquoted string would read back as another type.
func ambiguous(s string) bool {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return true
	}
	_, isString := v.(string)
	return !isString || v != s
}

func violations(err error) error {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}
	var out []string
	var walk func(*jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			out = append(out, fmt.Sprintf("/%s: %s", strings.Join(v.InstanceLocation, "/"), v.Error()))
			return
		}
		for _, c := range v.Causes {
			walk(c)
		}
	}
	walk(verr)
	return fmt.Errorf("%s", strings.Join(out, "; "))
}
