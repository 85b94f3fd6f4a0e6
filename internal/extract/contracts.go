// Package extract runs one chunk of text through the model and the validation engine and
// reports the result as an Outcome.
package extract

import (
	"maps"
	"slices"
	"time"

	"github.com/joseph-ayodele/docminer/internal/schema"
)

// SourceRef locates a chunk inside the document it came from.
type SourceRef struct {
	Filename    string `json:"filename,omitempty"`
	FileType    string `json:"filetype,omitempty"`
	PageNumber  int    `json:"page_number,omitempty"`
	ChunkNumber int    `json:"chunk_number,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Chunk is a unit of text submitted for extraction. Index is its position in the submitted
// sequence.
type Chunk struct {
	Index  int
	Text   string
	Source SourceRef
}

// ChunksFromTexts indexes plain texts in order.
func ChunksFromTexts(texts []string) []Chunk {
	out := make([]Chunk, len(texts))
	for i, t := range texts {
		out[i] = Chunk{Index: i, Text: t}
	}
	return out
}

// Record is the validated values extracted from one chunk. Values hold only declared
// fields, coerced to string, int64, float64 or time.Time.
type Record struct {
	ChunkIndex int            `json:"chunk_index"`
	Values     map[string]any `json:"values"`
	Source     SourceRef      `json:"source,omitzero"`
}

// OutcomeKind tags an Outcome.
type OutcomeKind string

const (
	OutcomeValid   OutcomeKind = "VALID"
	OutcomePartial OutcomeKind = "PARTIAL"
	OutcomeFailed  OutcomeKind = "FAILED"
)

// FailureKind explains a FAILED outcome.
type FailureKind string

const (
	FailureParse     FailureKind = "PARSE_ERROR"
	FailureModel     FailureKind = "MODEL_ERROR"
	FailureCancelled FailureKind = "CANCELLED"
)

// Failure describes why no record could be produced for a chunk.
type Failure struct {
	Kind   FailureKind `json:"kind"`
	Detail string      `json:"detail"`
}

// Outcome is the result for one chunk.
//   - VALID: Record set, Errors empty.
//   - PARTIAL: Record set (possibly with no values), Errors non-empty.
//   - FAILED: Record nil, Failure set.
type Outcome struct {
	Index    int                 `json:"index"`
	Kind     OutcomeKind         `json:"kind"`
	Record   *Record             `json:"record,omitempty"`
	Errors   []schema.FieldError `json:"errors,omitempty"`
	Failure  *Failure            `json:"failure,omitempty"`
	Raw      string              `json:"raw,omitempty"`
	Conforms bool                `json:"conforms"`
	Duration time.Duration       `json:"duration"`
	Source   SourceRef           `json:"source,omitzero"`
}

// Valid reports whether the outcome carries a fully valid record.
func (o Outcome) Valid() bool { return o.Kind == OutcomeValid }

// Clone returns a copy that shares no record, values, errors or failure with o.
func (o Outcome) Clone() Outcome {
	if o.Record != nil {
		rec := *o.Record
		rec.Values = maps.Clone(rec.Values)
		o.Record = &rec
	}
	o.Errors = slices.Clone(o.Errors)
	if o.Failure != nil {
		f := *o.Failure
		o.Failure = &f
	}
	return o
}

// Failed is the outcome for a chunk that produced no record.
func Failed(c Chunk, kind FailureKind, detail string) Outcome {
	return Outcome{
		Index:   c.Index,
		Kind:    OutcomeFailed,
		Failure: &Failure{Kind: kind, Detail: detail},
		Source:  c.Source,
	}
}
