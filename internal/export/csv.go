package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/joseph-ayodele/docminer/internal/result"
)

// WriteCSV writes the table with a header row. Absent values are empty cells.
func WriteCSV(w io.Writer, t result.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for j := range rec {
			rec[j] = ""
			if j < len(row) {
				rec[j] = csvValue(row[j])
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvValue(v any) string {
	switch x := result.JSONValue(v).(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
