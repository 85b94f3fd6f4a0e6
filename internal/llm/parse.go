package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

const (
	// MaxResponseBytes bounds the reply size ParseCandidate will scan.
	MaxResponseBytes = 1 << 20
	maxSpanAttempts  = 32
)

// ParseCandidate pulls one JSON object out of a model reply. It tries the whole reply,
// then the first fenced code block, then the balanced {...} spans from left to right.
func ParseCandidate(response string) (map[string]any, error) {
	content := strings.TrimSpace(response)
	if content == "" {
		return nil, fmt.Errorf("%w: empty response", ErrNoJSONObject)
	}
	if len(content) > MaxResponseBytes {
		return nil, fmt.Errorf("%w: response is %d bytes, limit %d", ErrNoJSONObject, len(content), MaxResponseBytes)
	}

	candidates := []string{content}
	if fenced := stripCodeFences(content); fenced != "" && fenced != content {
		candidates = append(candidates, fenced)
	}
	for _, c := range candidates {
		if obj, ok := decodeObject(c); ok {
			return obj, nil
		}
	}
	for i, span := range balancedObjects(content) {
		if i == maxSpanAttempts {
			break
		}
		if obj, ok := decodeObject(span); ok {
			return obj, nil
		}
	}
	return nil, ErrNoJSONObject
}

func decodeObject(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return obj, obj != nil
}

// stripCodeFences returns the body of the first ``` block, ignoring a language tag.
func stripCodeFences(content string) string {
	start := strings.Index(content, "```")
	if start < 0 {
		return ""
	}
	rest := content[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(rest[:nl]); !strings.ContainsAny(tag, "{}") {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}

// balancedObjects lists the brace-balanced spans of s ordered by their opening brace, in
// one pass. Quotes only open string literals inside an object, so prose apostrophes and
// quotes around it do not hide braces.
func balancedObjects(s string) []string {
	type span struct{ start, end int }
	var (
		spans    []span
		stack    []int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = len(stack) > 0
		case '{':
			stack = append(stack, i)
		case '}':
			if n := len(stack); n > 0 {
				spans = append(spans, span{stack[n-1], i})
				stack = stack[:n-1]
			}
		}
	}
	slices.SortFunc(spans, func(a, b span) int { return a.start - b.start })
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = s[sp.start : sp.end+1]
	}
	return out
}
