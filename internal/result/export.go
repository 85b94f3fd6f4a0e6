package result

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/joseph-ayodele/docminer/internal/extract"
	"github.com/joseph-ayodele/docminer/internal/schema"
)

// ChunkIndexColumn names the optional chunk index column of a Table.
const ChunkIndexColumn = "chunk_index"

// Table is a row-oriented view: Rows[i][j] belongs to Columns[j].
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// TableOptions tunes ToTable.
type TableOptions struct {
	IncludeChunkIndex bool
	IncludePartial    bool
}

// ToRecords returns the valid records as plain mappings holding schema keys only. Absent
// optional fields are omitted.
func (r *ExtractionResult) ToRecords() []map[string]any {
	recs := r.GetValidResults()
	out := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		out = append(out, r.project(rec))
	}
	return out
}

// ToTable lays the valid records out with schema declaration order as column order.
// Absent values are nil.
func (r *ExtractionResult) ToTable(opts ...TableOptions) Table {
	var o TableOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	names := r.schema.Names()
	cols := make([]string, 0, len(names)+1)
	if o.IncludeChunkIndex {
		cols = append(cols, ChunkIndexColumn)
	}
	cols = append(cols, names...)

	t := Table{Columns: cols, Rows: [][]any{}}
	for _, out := range r.outcomes {
		if out.Record == nil {
			continue
		}
		if out.Kind != extract.OutcomeValid && !(o.IncludePartial && out.Kind == extract.OutcomePartial) {
			continue
		}
		row := make([]any, 0, len(cols))
		if o.IncludeChunkIndex {
			row = append(row, out.Index)
		}
		for _, n := range names {
			row = append(row, out.Record.Values[n])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// ToJSON renders the valid records as a JSON array. Dates are written as YYYY-MM-DD.
func (r *ExtractionResult) ToJSON() ([]byte, error) {
	recs := r.ToRecords()
	for _, rec := range recs {
		for k, v := range rec {
			rec[k] = JSONValue(v)
		}
	}
	b, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return b, nil
}

// Render dispatches on the schema output format: JSON bytes, a Table or the record
// mappings.
func (r *ExtractionResult) Render() (any, error) {
	switch r.schema.Format() {
	case schema.FormatTable:
		return r.ToTable(), nil
	case schema.FormatRecords:
		return r.ToRecords(), nil
	default:
		return r.ToJSON()
	}
}

// JSONValue converts a canonical field value to its JSON-friendly form.
func JSONValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format(schema.DateLayout)
	}
	return v
}

func (r *ExtractionResult) project(rec extract.Record) map[string]any {
	m := make(map[string]any, len(rec.Values))
	for _, n := range r.schema.Names() {
		if v, ok := rec.Values[n]; ok {
			m[n] = v
		}
	}
	return m
}
