package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docminer/internal/schema"
)

func productSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(schema.FormatJSON,
		schema.Field{Name: "product_name", Type: schema.String, Rule: &schema.Rule{MinLength: ptr(2)}},
		schema.Field{Name: "price", Type: schema.Float, Rule: &schema.Rule{MinValue: ptr(0.0)}},
	)
	require.NoError(t, err)
	return s
}

func ptr[T any](v T) *T { return &v }

func TestValidateCoercesStringNumbers(t *testing.T) {
	res := Validate(productSchema(t), map[string]any{"product_name": "Laptop", "price": "2399.99"})
	assert.Equal(t, StatusValid, res.Status)
	assert.True(t, res.Valid())
	assert.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{"product_name": "Laptop", "price": 2399.99}, res.Values)
}

func TestValidateRuleViolations(t *testing.T) {
	res := Validate(productSchema(t), map[string]any{"product_name": "A", "price": -5.0})
	require.Len(t, res.Errors, 2)
	assert.Equal(t, StatusInvalid, res.Status)

	assert.Equal(t, "product_name", res.Errors[0].Field)
	assert.Equal(t, schema.KindRuleViolation, res.Errors[0].Kind)
	assert.Equal(t, schema.RuleMinLength, res.Errors[0].Rule)

	assert.Equal(t, "price", res.Errors[1].Field)
	assert.Equal(t, schema.KindRuleViolation, res.Errors[1].Kind)
	assert.Equal(t, schema.RuleMinValue, res.Errors[1].Rule)
}

func TestValidatePartialKeepsGoodValues(t *testing.T) {
	res := Validate(productSchema(t), map[string]any{"product_name": "Desk", "price": "cheap"})
	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, map[string]any{"product_name": "Desk"}, res.Values)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, schema.KindTypeMismatch, res.Errors[0].Kind)
	assert.Equal(t, "cheap", res.Errors[0].Value)
}

func TestValidateMissing(t *testing.T) {
	s, err := schema.New(schema.FormatJSON,
		schema.Field{Name: "a", Type: schema.String},
		schema.Field{Name: "b", Type: schema.String},
		schema.Field{Name: "c", Type: schema.String},
		schema.Field{Name: "d", Type: schema.Integer}.Optional(),
	)
	require.NoError(t, err)

	res := Validate(s, map[string]any{"b": nil, "c": "   "})
	require.Len(t, res.Errors, 3)
	for i, name := range []string{"a", "b", "c"} {
		assert.Equal(t, name, res.Errors[i].Field)
		assert.Equal(t, schema.KindMissing, res.Errors[i].Kind)
	}
	assert.Equal(t, StatusInvalid, res.Status)
	assert.Empty(t, res.Values)
}

func TestValidateOptionalAbsentIsSilent(t *testing.T) {
	s, err := schema.New(schema.FormatJSON,
		schema.Field{Name: "name", Type: schema.String},
		schema.Field{Name: "qty", Type: schema.Integer}.Optional(),
	)
	require.NoError(t, err)
	res := Validate(s, map[string]any{"name": "x"})
	assert.Equal(t, StatusValid, res.Status)
	_, has := res.Values["qty"]
	assert.False(t, has)
}

func TestValidateDropsUnknownKeys(t *testing.T) {
	res := Validate(productSchema(t), map[string]any{
		"product_name": "Chair",
		"price":        10,
		"color":        "red",
		"nested":       map[string]any{"x": 1},
	})
	assert.Equal(t, StatusValid, res.Status)
	assert.Len(t, res.Values, 2)
	assert.NotContains(t, res.Values, "color")
}

func TestValidateDates(t *testing.T) {
	s, err := schema.New(schema.FormatJSON, schema.Field{Name: "on", Type: schema.Date})
	require.NoError(t, err)
	res := Validate(s, map[string]any{"on": "Jan 5, 2023"})
	require.Equal(t, StatusValid, res.Status)
	assert.Equal(t, time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC), res.Values["on"])
}

func TestValidateNilCandidate(t *testing.T) {
	res := Validate(productSchema(t), nil)
	assert.Equal(t, StatusInvalid, res.Status)
	assert.Len(t, res.Errors, 2)
}
