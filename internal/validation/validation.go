// Package validation turns an untrusted candidate record into canonical field values and
// per-field errors, driven by a schema.
package validation

import (
	"fmt"

	"github.com/joseph-ayodele/docminer/internal/schema"
)

// Status summarizes a validated record.
type Status string

const (
	StatusValid   Status = "VALID"
	StatusPartial Status = "PARTIAL"
	StatusInvalid Status = "INVALID"
)

// Result is the outcome of validating one candidate record.
type Result struct {
	Values map[string]any
	Errors []schema.FieldError
	Status Status
}

// Valid reports whether the record has no field errors.
func (r Result) Valid() bool { return r.Status == StatusValid }

// Validate checks every schema field against candidate in declaration order. Keys the
// schema does not declare are dropped. It never panics; malformed input is reported as
// FieldErrors.
func Validate(s *schema.Schema, candidate map[string]any) (res Result) {
	res.Values = make(map[string]any, s.Len())
	defer func() {
		if r := recover(); r != nil {
			res.Errors = append(res.Errors, schema.FieldError{
				Kind:    schema.KindTypeMismatch,
				Message: fmt.Sprintf("validation aborted: %v", r),
			})
			res.Status = statusOf(res)
		}
	}()

	for _, f := range s.Fields() {
		raw, present := candidate[f.Name]
		if !present || schema.IsBlank(raw) {
			if f.IsRequired() {
				res.Errors = append(res.Errors, schema.FieldError{
					Field:   f.Name,
					Kind:    schema.KindMissing,
					Message: "required field is missing",
				})
			}
			continue
		}
		validate, _ := s.ValidatorFor(f.Name)
		v, fe := validate(raw)
		if fe != nil {
			res.Errors = append(res.Errors, *fe)
			continue
		}
		res.Values[f.Name] = v
	}
	res.Status = statusOf(res)
	return res
}

func statusOf(r Result) Status {
	switch {
	case len(r.Errors) == 0:
		return StatusValid
	case len(r.Values) > 0:
		return StatusPartial
	default:
		return StatusInvalid
	}
}
