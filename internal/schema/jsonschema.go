package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaResource = "schema.json"

// JSONSchema returns a JSON-Schema (draft 2020-12 subset) for the field set. Unknown
// properties are allowed since they are dropped during validation.
func (s *Schema) JSONSchema() map[string]any {
	return cloneDoc(s.doc)
}

// Conforms strictly validates a raw model document against JSONSchema. It is a
// diagnostic; the lenient validation engine decides the outcome of a chunk.
func (s *Schema) Conforms(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

func buildJSONSchema(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		props[f.Name] = fieldProp(f)
		if f.IsRequired() {
			required = append(required, f.Name)
		}
	}
	doc := map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"additionalProperties": true,
		"properties":           props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func fieldProp(f Field) map[string]any {
	p := map[string]any{}
	switch f.Type {
	case String:
		p["type"] = "string"
	case Integer:
		p["type"] = "integer"
	case Float:
		p["type"] = "number"
	case Date:
		p["type"] = "string"
		p["format"] = "date"
	}
	if f.Description != "" {
		p["description"] = f.Description
	}
	if r := f.Rule; r != nil {
		if r.MinLength != nil {
			p["minLength"] = *r.MinLength
		}
		if r.MaxLength != nil {
			p["maxLength"] = *r.MaxLength
		}
		if r.MinValue != nil {
			p["minimum"] = *r.MinValue
		}
		if r.MaxValue != nil {
			p["maximum"] = *r.MaxValue
		}
		if r.Pattern != "" {
			p["pattern"] = r.Pattern
		}
	}
	return p
}

func compileJSONSchema(doc map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaResource, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}

func cloneDoc(doc map[string]any) map[string]any {
	out := maps.Clone(doc)
	if props, ok := doc["properties"].(map[string]any); ok {
		cp := make(map[string]any, len(props))
		for k, v := range props {
			cp[k] = maps.Clone(v.(map[string]any))
		}
		out["properties"] = cp
	}
	if req, ok := doc["required"].([]string); ok {
		out["required"] = append([]string(nil), req...)
	}
	return out
}
