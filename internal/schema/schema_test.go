package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productFields() []Field {
	return []Field{
		{Name: "product_name", Description: "Name of the product", Type: String, Rule: &Rule{MinLength: intp(2)}},
		{Name: "price", Description: "Unit price", Type: Float, Rule: &Rule{MinValue: floatp(0)}},
	}
}

func intp(n int) *int           { return &n }
func floatp(f float64) *float64 { return &f }

func TestNewRejectsInvalidDeclarations(t *testing.T) {
	cases := map[string][]Field{
		"empty":          nil,
		"blank name":     {{Name: " ", Type: String}},
		"duplicate":      {{Name: "a", Type: String}, {Name: "a", Type: Float}},
		"unknown type":   {{Name: "a", Type: "BLOB"}},
		"bad pattern":    {{Name: "a", Type: String, Rule: &Rule{Pattern: "(["}}},
		"inverted len":   {{Name: "a", Type: String, Rule: &Rule{MinLength: intp(5), MaxLength: intp(2)}}},
		"inverted value": {{Name: "a", Type: Float, Rule: &Rule{MinValue: floatp(10), MaxValue: floatp(1)}}},
		"pattern on int": {{Name: "a", Type: Integer, Rule: &Rule{Pattern: `^\d+$`}}},
		"bounds on text": {{Name: "a", Type: String, Rule: &Rule{MinValue: floatp(1)}}},
	}
	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(FormatJSON, fields...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchema))
			var se *SchemaError
			assert.True(t, errors.As(err, &se))
		})
	}
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New("xml", Field{Name: "a", Type: String})
	assert.ErrorIs(t, err, ErrSchema)
}

func TestNewNormalizesTypeCase(t *testing.T) {
	s, err := New("dataframe", Field{Name: "total", Type: "float"})
	require.NoError(t, err)
	f, ok := s.Field("total")
	require.True(t, ok)
	assert.Equal(t, Float, f.Type)
	assert.Equal(t, FormatTable, s.Format())
}

func TestFieldsAreCopied(t *testing.T) {
	s := MustNew(FormatJSON, productFields()...)
	fs := s.Fields()
	fs[0].Name = "changed"
	assert.Equal(t, []string{"product_name", "price"}, s.Names())
}

func TestRulesAreCopied(t *testing.T) {
	minLen, minPrice, req := 2, 0.0, true
	in := []Field{
		{Name: "product_name", Type: String, Rule: &Rule{MinLength: &minLen}, Required: &req},
		{Name: "price", Type: Float, Rule: &Rule{MinValue: &minPrice}},
	}
	s := MustNew(FormatJSON, in...)
	before := s.Describe()
	doc := s.JSONSchema()

	minLen, minPrice, req = 50, 100, false
	*s.Fields()[0].Rule.MinLength = 40
	*s.Fields()[0].Required = false
	f, _ := s.Field("price")
	*f.Rule.MinValue = 99

	assert.Equal(t, before, s.Describe())
	assert.Equal(t, doc, s.JSONSchema())
	got, _ := s.Field("product_name")
	assert.True(t, got.IsRequired())
	validate, _ := s.ValidatorFor("product_name")
	v, fe := validate("Tea")
	assert.Nil(t, fe)
	assert.Equal(t, "Tea", v)
	validate, _ = s.ValidatorFor("price")
	_, fe = validate(5.0)
	assert.Nil(t, fe)
}

func TestRequiredDefault(t *testing.T) {
	assert.True(t, Field{Name: "a"}.IsRequired())
	assert.False(t, Field{Name: "a"}.Optional().IsRequired())
}

func TestDescribeIsDeterministic(t *testing.T) {
	s := MustNew(FormatJSON,
		Field{Name: "product_name", Description: "Name of the product", Type: String, Rule: &Rule{MinLength: intp(2)}},
		Field{Name: "price", Type: Float, Rule: &Rule{MinValue: floatp(0)}},
		Field{Name: "sold_on", Type: Date}.Optional(),
	)
	want := strings.Join([]string{
		"- product_name (STRING, required): Name of the product [at least 2 characters]",
		"- price (FLOAT, required) [>= 0]",
		"- sold_on (DATE, optional, YYYY-MM-DD)",
	}, "\n")
	assert.Equal(t, want, s.Describe())
	assert.Equal(t, s.Describe(), s.Describe())
}

func TestRuleChecksOrder(t *testing.T) {
	r := Rule{}.WithPattern("^a").WithMaxLength(9).WithMinLength(1)
	checks := r.Checks()
	require.Len(t, checks, 3)
	assert.Equal(t, RuleMinLength, checks[0].Kind)
	assert.Equal(t, RuleMaxLength, checks[1].Kind)
	assert.Equal(t, RulePattern, checks[2].Kind)
	assert.True(t, Rule{}.IsZero())
	assert.Equal(t, ">= 0, <= 5", Rule{}.WithMinValue(0).WithMaxValue(5).Describe())
}

func TestValidatorFor(t *testing.T) {
	s := MustNew(FormatJSON, productFields()...)

	v, ok := s.ValidatorFor("product_name")
	require.True(t, ok)
	got, fe := v("  Laptop ")
	require.Nil(t, fe)
	assert.Equal(t, "Laptop", got)

	_, fe = v("A")
	require.NotNil(t, fe)
	assert.Equal(t, KindRuleViolation, fe.Kind)
	assert.Equal(t, RuleMinLength, fe.Rule)
	assert.Equal(t, "must be at least 2 characters", fe.Message)

	price, _ := s.ValidatorFor("price")
	_, fe = price(-5.0)
	require.NotNil(t, fe)
	assert.Equal(t, RuleMinValue, fe.Rule)

	_, fe = price("abc")
	require.NotNil(t, fe)
	assert.Equal(t, KindTypeMismatch, fe.Kind)

	_, ok = s.ValidatorFor("nope")
	assert.False(t, ok)
}

func TestPatternRule(t *testing.T) {
	s := MustNew(FormatJSON, Field{Name: "sku", Type: String, Rule: &Rule{Pattern: `^[A-Z]{3}-\d+$`}})
	v, _ := s.ValidatorFor("sku")
	_, fe := v("ABC-12")
	assert.Nil(t, fe)
	_, fe = v("abc-12")
	require.NotNil(t, fe)
	assert.Equal(t, RulePattern, fe.Rule)
}

func TestJSONSchemaAndConforms(t *testing.T) {
	s := MustNew(FormatJSON, productFields()...)
	doc := s.JSONSchema()
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, true, doc["additionalProperties"])
	assert.ElementsMatch(t, []string{"product_name", "price"}, doc["required"])

	props := doc["properties"].(map[string]any)
	props["price"].(map[string]any)["type"] = "string"
	assert.Equal(t, "number", s.JSONSchema()["properties"].(map[string]any)["price"].(map[string]any)["type"])

	assert.NoError(t, s.Conforms([]byte(`{"product_name":"Laptop","price":2399.99,"extra":1}`)))
	assert.Error(t, s.Conforms([]byte(`{"product_name":"Laptop","price":"2399.99"}`)))
	assert.Error(t, s.Conforms([]byte(`{"product_name":"A","price":1}`)))
	assert.Error(t, s.Conforms([]byte(`not json`)))
}

func TestLoad(t *testing.T) {
	doc := `
output_format: records
fields:
  - name: product_name
    description: Name of the product
    type: string
    rules:
      min_length: 2
  - name: price
    type: FLOAT
    rules:
      min_value: 0
  - name: note
    type: string
    required: false
`
	s, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, FormatRecords, s.Format())
	assert.Equal(t, []string{"product_name", "price", "note"}, s.Names())
	note, _ := s.Field("note")
	assert.False(t, note.IsRequired())
	price, _ := s.Field("price")
	require.NotNil(t, price.Rule)
	assert.Equal(t, 0.0, *price.Rule.MinValue)

	d := s.Declaration()
	again, err := d.Build()
	require.NoError(t, err)
	assert.Equal(t, s.Describe(), again.Describe())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrSchema)

	_, err = Load(strings.NewReader("fields:\n  - name: a\n    type: string\n    bogus: 1\n"))
	assert.ErrorIs(t, err, ErrSchema)

	_, err = LoadFile("/does/not/exist.yaml")
	assert.Error(t, err)
}
