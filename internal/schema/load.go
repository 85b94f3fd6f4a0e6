package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Declaration is the file and wire form of a schema.
type Declaration struct {
	OutputFormat OutputFormat `json:"output_format,omitempty" yaml:"output_format,omitempty"`
	Fields       []Field      `json:"fields" yaml:"fields"`
}

// Build constructs the schema described by d.
func (d Declaration) Build() (*Schema, error) {
	return New(d.OutputFormat, d.Fields...)
}

// Load reads a YAML (or JSON) schema declaration.
func Load(r io.Reader) (*Schema, error) {
	var d Declaration
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		if err == io.EOF {
			return nil, schemaErr("", "empty schema document")
		}
		return nil, &SchemaError{Reason: fmt.Sprintf("decode: %v", err)}
	}
	return d.Build()
}

// LoadFile reads a schema declaration from path.
func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema %s: %w", path, err)
	}
	defer f.Close()
	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", path, err)
	}
	return s, nil
}
