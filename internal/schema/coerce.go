package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reThousands    = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)
	reNumber       = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)([eE][-+]?\d+)?$`)
	reTrailingCode = regexp.MustCompile(`^(.*?)\s*([A-Z]{3})$`)
	reLeadingCode  = regexp.MustCompile(`^([A-Z]{3})\s*(.*)$`)

	currencySymbols = []string{"US$", "$", "€", "£", "¥", "₹"}

	dateLayouts = []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"02.01.2006",
		"January 2, 2006",
		"Jan 2, 2006",
		"2 January 2006",
		"2 Jan 2006",
		time.RFC3339,
	}

	errNotNumeric = errors.New("not a numeric value")
)

// DateLayout is the canonical rendering of DATE values.
const DateLayout = "2006-01-02"

// IsBlank reports whether v counts as absent: nil or a whitespace-only string.
func IsBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

// Coerce converts a raw model value into the canonical Go type for t:
// string, int64, float64 or time.Time. Text is kept as given apart from trimming
// surrounding whitespace. Numeric text may carry currency decoration and comma thousands
// grouping.
func Coerce(t FieldType, v any) (any, error) {
	switch t {
	case String:
		return coerceString(v)
	case Integer:
		return coerceInteger(v)
	case Float:
		f, err := coerceFloat(v)
		if err != nil {
			return nil, err
		}
		return f, nil
	case Date:
		return coerceDate(v)
	}
	return nil, fmt.Errorf("unknown field type %q", t)
}

func coerceString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case bool:
		return strconv.FormatBool(t), nil
	case time.Time:
		return t.Format(DateLayout), nil
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return "", fmt.Errorf("stringify: %w", err)
		}
		return string(b), nil
	}
	return fmt.Sprint(v), nil
}

func coerceInteger(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
	case string:
		lit, neg, err := normalizeNumeric(t)
		if err != nil {
			return 0, err
		}
		if n, err := strconv.ParseInt(lit, 10, 64); err == nil {
			if neg {
				n = -n
			}
			return n, nil
		}
	}
	f, err := coerceFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not a whole number", f)
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%v is out of integer range", f)
	}
	return int64(f), nil
}

func coerceFloat(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, errNotNumeric
		}
		f = n
	case string:
		lit, neg, err := normalizeNumeric(t)
		if err != nil {
			return 0, err
		}
		n, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return 0, errNotNumeric
		}
		if neg {
			n = -n
		}
		f = n
	default:
		return 0, errNotNumeric
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumeric
	}
	return f, nil
}

// normalizeNumeric strips currency decoration and digit grouping from s and returns an
// unsigned decimal literal plus its sign.
func normalizeNumeric(s string) (string, bool, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s, neg = takeSign(s, neg)

	stripped := false
	for _, sym := range currencySymbols {
		if strings.HasPrefix(s, sym) {
			s = strings.TrimSpace(strings.TrimPrefix(s, sym))
			stripped = true
			break
		}
	}
	if !stripped {
		if m := reLeadingCode.FindStringSubmatch(s); m != nil {
			s = m[2]
			stripped = true
		}
	}
	if !stripped {
		if m := reTrailingCode.FindStringSubmatch(s); m != nil {
			s = m[1]
		}
	}
	s, neg = takeSign(strings.TrimSpace(s), neg)

	if strings.Contains(s, ",") {
		if !reThousands.MatchString(s) {
			return "", false, errNotNumeric
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	if !reNumber.MatchString(s) {
		return "", false, errNotNumeric
	}
	return s, neg, nil
}

func takeSign(s string, neg bool) (string, bool) {
	switch {
	case strings.HasPrefix(s, "-"):
		return strings.TrimSpace(s[1:]), !neg
	case strings.HasPrefix(s, "+"):
		return strings.TrimSpace(s[1:]), neg
	}
	return s, neg
}

func coerceDate(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return midnight(t), nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, s); err == nil {
				return midnight(d), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}
	return time.Time{}, fmt.Errorf("expected a date string, got %T", v)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
