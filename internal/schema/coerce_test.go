package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceFloat(t *testing.T) {
	ok := map[string]float64{
		"2399.99":      2399.99,
		" 42 ":         42,
		"$1,234.50":    1234.50,
		"-$5":          -5,
		"$-5":          -5,
		"(1,200.00)":   -1200,
		"1,234,567.89": 1234567.89,
		"1,200 USD":    1200,
		"EUR 99.5":     99.5,
		"€10":          10,
		"£3.25":        3.25,
		".5":           0.5,
		"1e3":          1000,
		"+7":           7,
	}
	for in, want := range ok {
		got, err := Coerce(Float, in)
		if assert.NoError(t, err, in) {
			assert.InDelta(t, want, got, 1e-9, in)
		}
	}

	bad := []any{"abc", "1,23", "12,34.5", "1.2.3", "1.234,5", "", "NaN", "Inf", true, []any{1}, map[string]any{}}
	for _, in := range bad {
		_, err := Coerce(Float, in)
		assert.Error(t, err, "%v", in)
	}

	got, err := Coerce(Float, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
}

func TestCoerceInteger(t *testing.T) {
	got, err := Coerce(Integer, "3.0")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)

	got, err = Coerce(Integer, 12.0)
	require.NoError(t, err)
	assert.Equal(t, int64(12), got)

	got, err = Coerce(Integer, "1,000")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got)

	got, err = Coerce(Integer, "(7)")
	require.NoError(t, err)
	assert.Equal(t, int64(-7), got)

	_, err = Coerce(Integer, "2.5")
	assert.Error(t, err)
	_, err = Coerce(Integer, 2.5)
	assert.Error(t, err)
	_, err = Coerce(Integer, false)
	assert.Error(t, err)
	_, err = Coerce(Integer, 1e300)
	assert.Error(t, err)
}

func TestCoerceString(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{" hi ", "hi"},
		{12.0, "12"},
		{2399.99, "2399.99"},
		{int64(5), "5"},
		{true, "true"},
		{map[string]any{"a": 1.0}, `{"a":1}`},
		{[]any{"x", 2.0}, `["x",2]`},
	}
	for _, c := range cases {
		got, err := Coerce(String, c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestCoerceDate(t *testing.T) {
	want := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"2024-03-09", "2024/03/09", "03/09/2024", "09.03.2024",
		"March 9, 2024", "Mar 9, 2024", "9 March 2024", "9 Mar 2024",
		"2024-03-09T17:45:00+02:00",
	} {
		got, err := Coerce(Date, in)
		if assert.NoError(t, err, in) {
			assert.True(t, want.Equal(got.(time.Time)), in)
		}
	}
	_, err := Coerce(Date, "yesterday")
	assert.Error(t, err)
	_, err = Coerce(Date, 20240309.0)
	assert.Error(t, err)
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(nil))
	assert.True(t, IsBlank("  \t"))
	assert.False(t, IsBlank("x"))
	assert.False(t, IsBlank(0.0))
}
