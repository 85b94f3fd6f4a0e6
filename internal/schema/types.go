package schema

import (
	"fmt"
	"strings"
)

// FieldType is the declared target type of a field.
type FieldType string

const (
	String  FieldType = "STRING"
	Integer FieldType = "INTEGER"
	Float   FieldType = "FLOAT"
	Date    FieldType = "DATE"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case String, Integer, Float, Date:
		return true
	}
	return false
}

func (t FieldType) numeric() bool {
	return t == Integer || t == Float
}

// OutputFormat selects how an extraction result is rendered.
type OutputFormat string

const (
	FormatJSON    OutputFormat = "json"
	FormatTable   OutputFormat = "table"
	FormatRecords OutputFormat = "records"
)

// ParseOutputFormat accepts the canonical names plus the aliases "dataframe" and "dict".
// An empty string selects JSON.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "table", "dataframe":
		return FormatTable, nil
	case "records", "dict", "mapping":
		return FormatRecords, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Field declares one named, typed piece of information to extract.
type Field struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Type        FieldType `json:"type" yaml:"type"`
	Rule        *Rule     `json:"rules,omitempty" yaml:"rules,omitempty"`
	Required    *bool     `json:"required,omitempty" yaml:"required,omitempty"`
}

// IsRequired reports whether the field must be present. Fields are required unless
// explicitly marked otherwise.
func (f Field) IsRequired() bool {
	return f.Required == nil || *f.Required
}

// Optional returns a copy of f that may be absent from a record.
func (f Field) Optional() Field {
	no := false
	f.Required = &no
	return f
}

// clone copies f together with its rule and required flag.
func (f Field) clone() Field {
	if f.Rule != nil {
		r := f.Rule.Clone()
		f.Rule = &r
	}
	f.Required = clonePtr(f.Required)
	return f
}

// WithRule returns a copy of f carrying rule r.
func (f Field) WithRule(r Rule) Field {
	f.Rule = &r
	return f
}
