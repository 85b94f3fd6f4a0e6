package llm

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/docminer/internal/schema"
)

const truncatedMarker = "…(truncated)"

// PromptOptions tunes BuildPrompt.
type PromptOptions struct {
	// MaxChunkChars truncates the chunk text to this many characters. Zero keeps it whole.
	MaxChunkChars int
	// Instructions is appended to the rule list.
	Instructions string
}

// BuildPrompt composes the extraction prompt for one chunk. The output depends only on its
// inputs.
func BuildPrompt(s *schema.Schema, chunk string, opts PromptOptions) string {
	rules := []string{
		"Return ONLY one JSON object. No prose, no markdown, no code fences.",
		"Use the field names exactly as listed.",
		"If a field is not present in the text, omit it. Never output null.",
		"Write dates as ISO-8601 (YYYY-MM-DD).",
		"Write numbers as plain JSON numbers without currency symbols or thousands separators.",
	}
	if extra := strings.TrimSpace(opts.Instructions); extra != "" {
		rules = append(rules, extra)
	}

	var b strings.Builder
	b.WriteString("You are an information extraction engine. Extract the fields described below from the text.\n\n")
	b.WriteString("Rules:\n")
	for _, r := range rules {
		b.WriteString("- ")
		b.WriteString(r)
		b.WriteByte('\n')
	}
	b.WriteString("\nFields:\n")
	b.WriteString(s.Describe())
	b.WriteString("\n\nJSON Schema:\n")
	b.WriteString(mustJSON(s.JSONSchema()))
	b.WriteString("\n\nText:\n")
	b.WriteString(truncate(chunk, opts.MaxChunkChars))
	return b.String()
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + truncatedMarker
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
