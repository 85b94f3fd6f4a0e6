package schema

import (
	"errors"
	"fmt"
)

// ErrSchema is matched by every schema construction failure.
var ErrSchema = errors.New("invalid schema")

// SchemaError reports a schema that cannot be constructed. It is fatal and surfaced to the
// caller immediately.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema: field %q: %s", e.Field, e.Reason)
	}
	return "schema: " + e.Reason
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

func schemaErr(field, format string, args ...any) *SchemaError {
	return &SchemaError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ErrorKind classifies a per-field validation failure.
type ErrorKind string

const (
	KindMissing       ErrorKind = "MISSING"
	KindTypeMismatch  ErrorKind = "TYPE_MISMATCH"
	KindRuleViolation ErrorKind = "RULE_VIOLATION"
)

// FieldError is a non-fatal failure of one field in one candidate record.
type FieldError struct {
	Field   string    `json:"field"`
	Kind    ErrorKind `json:"kind"`
	Rule    RuleKind  `json:"rule,omitempty"`
	Message string    `json:"message"`
	Value   any       `json:"value,omitempty"`
}

func (e FieldError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("%s: %s (%s): %s", e.Field, e.Kind, e.Rule, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Field, e.Kind, e.Message)
}
