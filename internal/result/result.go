// Package result merges per-chunk outcomes into one immutable, queryable extraction result.
package result

import (
	"maps"
	"slices"

	"github.com/joseph-ayodele/docminer/internal/extract"
	"github.com/joseph-ayodele/docminer/internal/schema"
)

// ChunkError is one problem reported for a chunk: a field error or, for failed chunks, the
// failure itself.
type ChunkError struct {
	ChunkIndex int             `json:"chunk_index"`
	Field      string          `json:"field,omitempty"`
	Kind       string          `json:"kind"`
	Rule       schema.RuleKind `json:"rule,omitempty"`
	Message    string          `json:"message"`
}

// Summary counts outcomes by kind.
type Summary struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Partial int `json:"partial"`
	Failed  int `json:"failed"`
}

// ExtractionResult is built once by Aggregate and never mutated.
type ExtractionResult struct {
	schema   *schema.Schema
	outcomes []extract.Outcome
	errors   map[int][]ChunkError
	summary  Summary
}

// Aggregate copies and orders outcomes by chunk index and derives the error map and
// summary. It does not modify its input.
func Aggregate(s *schema.Schema, outcomes []extract.Outcome) *ExtractionResult {
	ordered := cloneOutcomes(outcomes)
	slices.SortStableFunc(ordered, func(a, b extract.Outcome) int { return a.Index - b.Index })

	r := &ExtractionResult{
		schema:   s,
		outcomes: ordered,
		errors:   make(map[int][]ChunkError),
		summary:  Summary{Total: len(ordered)},
	}
	for _, o := range ordered {
		switch o.Kind {
		case extract.OutcomeValid:
			r.summary.Valid++
		case extract.OutcomePartial:
			r.summary.Partial++
			for _, fe := range o.Errors {
				r.errors[o.Index] = append(r.errors[o.Index], ChunkError{
					ChunkIndex: o.Index,
					Field:      fe.Field,
					Kind:       string(fe.Kind),
					Rule:       fe.Rule,
					Message:    fe.Message,
				})
			}
		default:
			r.summary.Failed++
			ce := ChunkError{ChunkIndex: o.Index, Kind: string(extract.FailureModel)}
			if o.Failure != nil {
				ce.Kind = string(o.Failure.Kind)
				ce.Message = o.Failure.Detail
			}
			r.errors[o.Index] = append(r.errors[o.Index], ce)
		}
	}
	return r
}

// Schema is the schema the result was extracted with.
func (r *ExtractionResult) Schema() *schema.Schema { return r.schema }

// Outcomes returns every outcome in chunk order.
func (r *ExtractionResult) Outcomes() []extract.Outcome { return cloneOutcomes(r.outcomes) }

func cloneOutcomes(in []extract.Outcome) []extract.Outcome {
	if in == nil {
		return nil
	}
	out := make([]extract.Outcome, len(in))
	for i, o := range in {
		out[i] = o.Clone()
	}
	return out
}

// IsValid is true when there is at least one outcome and every outcome is VALID.
func (r *ExtractionResult) IsValid() bool {
	return r.summary.Total > 0 && r.summary.Valid == r.summary.Total
}

// ValidationErrors maps chunk index to its errors, for chunks that have any.
func (r *ExtractionResult) ValidationErrors() map[int][]ChunkError {
	out := make(map[int][]ChunkError, len(r.errors))
	for k, v := range r.errors {
		out[k] = slices.Clone(v)
	}
	return out
}

// ErrorList flattens ValidationErrors in chunk order.
func (r *ExtractionResult) ErrorList() []ChunkError {
	keys := slices.Sorted(maps.Keys(r.errors))
	var out []ChunkError
	for _, k := range keys {
		out = append(out, r.errors[k]...)
	}
	return out
}

// GetValidResults returns the records of VALID outcomes only.
func (r *ExtractionResult) GetValidResults() []extract.Record {
	return r.records(extract.OutcomeValid)
}

// PartialResults returns the records of PARTIAL outcomes, with their retained values.
func (r *ExtractionResult) PartialResults() []extract.Record {
	return r.records(extract.OutcomePartial)
}

// Failures returns the FAILED outcomes.
func (r *ExtractionResult) Failures() []extract.Outcome {
	var out []extract.Outcome
	for _, o := range r.outcomes {
		if o.Kind == extract.OutcomeFailed {
			out = append(out, o.Clone())
		}
	}
	return out
}

func (r *ExtractionResult) Summary() Summary { return r.summary }

func (r *ExtractionResult) records(kind extract.OutcomeKind) []extract.Record {
	var out []extract.Record
	for _, o := range r.outcomes {
		if o.Kind != kind || o.Record == nil {
			continue
		}
		rec := *o.Record
		rec.Values = maps.Clone(rec.Values)
		out = append(out, rec)
	}
	return out
}
