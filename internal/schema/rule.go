package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// RuleKind names a single constraint inside a Rule.
type RuleKind string

const (
	RuleMinLength RuleKind = "min_length"
	RuleMaxLength RuleKind = "max_length"
	RuleMinValue  RuleKind = "min_value"
	RuleMaxValue  RuleKind = "max_value"
	RulePattern   RuleKind = "pattern"
)

// Rule is a declarative set of constraints on a field value. Unset members are no-ops.
type Rule struct {
	MinLength *int     `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength *int     `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	MinValue  *float64 `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	MaxValue  *float64 `json:"max_value,omitempty" yaml:"max_value,omitempty"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// RuleCheck is one introspectable constraint of a Rule.
type RuleCheck struct {
	Kind  RuleKind
	Limit any
}

func (r Rule) WithMinLength(n int) Rule     { r.MinLength = &n; return r }
func (r Rule) WithMaxLength(n int) Rule     { r.MaxLength = &n; return r }
func (r Rule) WithMinValue(v float64) Rule  { r.MinValue = &v; return r }
func (r Rule) WithMaxValue(v float64) Rule  { r.MaxValue = &v; return r }
func (r Rule) WithPattern(expr string) Rule { r.Pattern = expr; return r }

// Clone returns a copy of r that shares no bounds with it.
func (r Rule) Clone() Rule {
	r.MinLength = clonePtr(r.MinLength)
	r.MaxLength = clonePtr(r.MaxLength)
	r.MinValue = clonePtr(r.MinValue)
	r.MaxValue = clonePtr(r.MaxValue)
	return r
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IsZero reports whether no constraint is set.
func (r Rule) IsZero() bool {
	return len(r.Checks()) == 0
}

// Checks lists the configured constraints in evaluation order: length bounds, numeric
// bounds, then pattern.
func (r Rule) Checks() []RuleCheck {
	var out []RuleCheck
	if r.MinLength != nil {
		out = append(out, RuleCheck{Kind: RuleMinLength, Limit: *r.MinLength})
	}
	if r.MaxLength != nil {
		out = append(out, RuleCheck{Kind: RuleMaxLength, Limit: *r.MaxLength})
	}
	if r.MinValue != nil {
		out = append(out, RuleCheck{Kind: RuleMinValue, Limit: *r.MinValue})
	}
	if r.MaxValue != nil {
		out = append(out, RuleCheck{Kind: RuleMaxValue, Limit: *r.MaxValue})
	}
	if r.Pattern != "" {
		out = append(out, RuleCheck{Kind: RulePattern, Limit: r.Pattern})
	}
	return out
}

// Describe renders the constraints for humans, e.g. "at least 2 characters, >= 0".
func (r Rule) Describe() string {
	checks := r.Checks()
	parts := make([]string, 0, len(checks))
	for _, c := range checks {
		parts = append(parts, c.describe())
	}
	return strings.Join(parts, ", ")
}

func (c RuleCheck) describe() string {
	switch c.Kind {
	case RuleMinLength:
		return fmt.Sprintf("at least %d characters", c.Limit)
	case RuleMaxLength:
		return fmt.Sprintf("at most %d characters", c.Limit)
	case RuleMinValue:
		return ">= " + formatLimit(c.Limit)
	case RuleMaxValue:
		return "<= " + formatLimit(c.Limit)
	case RulePattern:
		return fmt.Sprintf("matches /%s/", c.Limit)
	}
	return string(c.Kind)
}

// message is the FieldError text for a failed check.
func (c RuleCheck) message() string {
	switch c.Kind {
	case RuleMinValue, RuleMaxValue:
		return "must be " + c.describe()
	case RulePattern:
		return fmt.Sprintf("must match pattern %q", c.Limit)
	}
	return "must be " + c.describe()
}

func formatLimit(v any) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// validate checks the rule against the field type it is attached to.
func (r Rule) validate(field string, t FieldType) (*regexp.Regexp, error) {
	if (r.MinLength != nil || r.MaxLength != nil || r.Pattern != "") && t != String {
		return nil, schemaErr(field, "length and pattern rules apply only to STRING fields, got %s", t)
	}
	if (r.MinValue != nil || r.MaxValue != nil) && !t.numeric() {
		return nil, schemaErr(field, "value bounds apply only to INTEGER and FLOAT fields, got %s", t)
	}
	if r.MinLength != nil && *r.MinLength < 0 {
		return nil, schemaErr(field, "min_length must not be negative")
	}
	if r.MaxLength != nil && *r.MaxLength < 0 {
		return nil, schemaErr(field, "max_length must not be negative")
	}
	if r.MinLength != nil && r.MaxLength != nil && *r.MinLength > *r.MaxLength {
		return nil, schemaErr(field, "min_length %d exceeds max_length %d", *r.MinLength, *r.MaxLength)
	}
	if r.MinValue != nil && r.MaxValue != nil && *r.MinValue > *r.MaxValue {
		return nil, schemaErr(field, "min_value %v exceeds max_value %v", *r.MinValue, *r.MaxValue)
	}
	if r.Pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return nil, schemaErr(field, "invalid pattern %q: %v", r.Pattern, err)
	}
	return re, nil
}

// apply runs the checks against an already coerced value and returns the first violation.
func (r Rule) apply(field string, value any, re *regexp.Regexp) *FieldError {
	for _, c := range r.Checks() {
		if c.holds(value, re) {
			continue
		}
		return &FieldError{
			Field:   field,
			Kind:    KindRuleViolation,
			Rule:    c.Kind,
			Message: c.message(),
			Value:   value,
		}
	}
	return nil
}

func (c RuleCheck) holds(value any, re *regexp.Regexp) bool {
	switch c.Kind {
	case RuleMinLength, RuleMaxLength:
		s, ok := value.(string)
		if !ok {
			return true
		}
		n := utf8.RuneCountInString(s)
		if c.Kind == RuleMinLength {
			return n >= c.Limit.(int)
		}
		return n <= c.Limit.(int)
	case RuleMinValue, RuleMaxValue:
		f, ok := asFloat(value)
		if !ok {
			return true
		}
		if c.Kind == RuleMinValue {
			return f >= c.Limit.(float64)
		}
		return f <= c.Limit.(float64)
	case RulePattern:
		s, ok := value.(string)
		if !ok || re == nil {
			return true
		}
		return re.MatchString(s)
	}
	return true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}
