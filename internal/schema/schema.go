// Package schema declares what to extract from a document: named, typed fields with
// optional validation rules, and the output format of the result.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator coerces a raw value for one field and applies its rule.
// It returns the canonical value or a FieldError.
type Validator func(value any) (any, *FieldError)

// Schema is an ordered, immutable set of fields. Build it with New.
type Schema struct {
	fields   []Field
	index    map[string]int
	patterns map[string]*regexp.Regexp
	format   OutputFormat

	doc      map[string]any
	compiled *jsonschema.Schema
}

// New validates the declaration and returns a ready schema. Any problem is reported as a
// *SchemaError.
func New(format OutputFormat, fields ...Field) (*Schema, error) {
	format, err := ParseOutputFormat(string(format))
	if err != nil {
		return nil, schemaErr("", "%v", err)
	}
	if len(fields) == 0 {
		return nil, schemaErr("", "at least one field is required")
	}

	s := &Schema{
		fields:   make([]Field, 0, len(fields)),
		index:    make(map[string]int, len(fields)),
		patterns: make(map[string]*regexp.Regexp),
		format:   format,
	}
	for _, f := range fields {
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return nil, schemaErr("", "field name must not be empty")
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, schemaErr(f.Name, "duplicate field name")
		}
		f.Type = FieldType(strings.ToUpper(strings.TrimSpace(string(f.Type))))
		if !f.Type.Valid() {
			return nil, schemaErr(f.Name, "unknown field type %q", f.Type)
		}
		f = f.clone()
		if f.Rule != nil {
			re, err := f.Rule.validate(f.Name, f.Type)
			if err != nil {
				return nil, err
			}
			if re != nil {
				s.patterns[f.Name] = re
			}
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}

	s.doc = buildJSONSchema(s.fields)
	compiled, err := compileJSONSchema(s.doc)
	if err != nil {
		return nil, schemaErr("", "%v", err)
	}
	s.compiled = compiled
	return s, nil
}

// MustNew is New for static declarations; it panics on error.
func MustNew(format OutputFormat, fields ...Field) *Schema {
	s, err := New(format, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Format is the requested output format.
func (s *Schema) Format() OutputFormat { return s.format }

// Len is the number of declared fields.
func (s *Schema) Len() int { return len(s.fields) }

// Fields returns a copy of the fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.clone()
	}
	return out
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i].clone(), true
}

// Names returns the field names in declaration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// ValidatorFor returns the coercion and rule function for the named field.
func (s *Schema) ValidatorFor(name string) (Validator, bool) {
	f, ok := s.Field(name)
	if !ok {
		return nil, false
	}
	re := s.patterns[name]
	return func(value any) (any, *FieldError) {
		v, err := Coerce(f.Type, value)
		if err != nil {
			return nil, &FieldError{
				Field:   f.Name,
				Kind:    KindTypeMismatch,
				Message: fmt.Sprintf("expected %s: %v", f.Type, err),
				Value:   value,
			}
		}
		if f.Rule != nil {
			if fe := f.Rule.apply(f.Name, v, re); fe != nil {
				return nil, fe
			}
		}
		return v, nil
	}, true
}

// Describe renders the fields one per line for prompts and CLI output.
func (s *Schema) Describe() string {
	var b strings.Builder
	for i, f := range s.fields {
		if i > 0 {
			b.WriteByte('\n')
		}
		req := "required"
		if !f.IsRequired() {
			req = "optional"
		}
		fmt.Fprintf(&b, "- %s (%s, %s", f.Name, f.Type, req)
		if f.Type == Date {
			b.WriteString(", YYYY-MM-DD")
		}
		b.WriteString(")")
		if d := strings.TrimSpace(f.Description); d != "" {
			b.WriteString(": ")
			b.WriteString(d)
		}
		if f.Rule != nil && !f.Rule.IsZero() {
			b.WriteString(" [")
			b.WriteString(f.Rule.Describe())
			b.WriteString("]")
		}
	}
	return b.String()
}

// Declaration returns the serializable form of the schema.
func (s *Schema) Declaration() Declaration {
	return Declaration{OutputFormat: s.format, Fields: s.Fields()}
}
