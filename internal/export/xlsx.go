// Package export writes extraction results to spreadsheet formats.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docminer/internal/result"
)

const (
	RecordsSheet = "Records"
	ErrorsSheet  = "Errors"
)

// XLSXOptions tunes the workbook layout.
type XLSXOptions struct {
	IncludePartial bool // also write partial records, marked in a status column
	SkipErrors     bool // omit the Errors sheet
	MaxCellChars   int  // truncate long text cells; 0 keeps everything
}

// Service renders results as XLSX workbooks.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// WriteXLSX returns a workbook (as bytes) with one row per record in the Records sheet and
// one row per chunk error in the Errors sheet.
func (s *Service) WriteXLSX(res *result.ExtractionResult, opts XLSXOptions) ([]byte, error) {
	start := time.Now()
	if res == nil {
		return nil, fmt.Errorf("xlsx: nil result")
	}

	f := excelize.NewFile()
	defer f.Close()

	// The default workbook ships with "Sheet1"; rename it rather than leave it empty.
	if err := f.SetSheetName(f.GetSheetName(0), RecordsSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	table := res.ToTable(result.TableOptions{IncludeChunkIndex: true, IncludePartial: opts.IncludePartial})
	rows, err := s.writeRecords(f, table, header, opts)
	if err != nil {
		return nil, err
	}

	errCount := 0
	if !opts.SkipErrors {
		if errCount, err = s.writeErrors(f, res.ErrorList(), header, opts); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"rows", rows,
		"errors", errCount,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) writeRecords(f *excelize.File, t result.Table, header int, opts XLSXOptions) (int, error) {
	if err := writeRow(f, RecordsSheet, 1, stringsToAny(t.Columns)); err != nil {
		return 0, err
	}
	for i, row := range t.Rows {
		vals := make([]any, len(row))
		for j, v := range row {
			vals[j] = cellValue(v, opts.MaxCellChars)
		}
		if err := writeRow(f, RecordsSheet, i+2, vals); err != nil {
			return 0, err
		}
	}
	if err := styleHeader(f, RecordsSheet, len(t.Columns), header); err != nil {
		return 0, err
	}
	_ = f.SetColWidth(RecordsSheet, "A", "A", 12) // chunk index
	if len(t.Columns) > 1 {
		last, _ := excelize.ColumnNumberToName(len(t.Columns))
		_ = f.SetColWidth(RecordsSheet, "B", last, 24)
	}
	return len(t.Rows), nil
}

func (s *Service) writeErrors(f *excelize.File, errs []result.ChunkError, header int, opts XLSXOptions) (int, error) {
	if _, err := f.NewSheet(ErrorsSheet); err != nil {
		return 0, fmt.Errorf("xlsx sheet: %w", err)
	}
	cols := []any{"Chunk", "Field", "Kind", "Rule", "Message"}
	if err := writeRow(f, ErrorsSheet, 1, cols); err != nil {
		return 0, err
	}
	for i, e := range errs {
		row := []any{e.ChunkIndex, e.Field, e.Kind, string(e.Rule), cellValue(e.Message, opts.MaxCellChars)}
		if err := writeRow(f, ErrorsSheet, i+2, row); err != nil {
			return 0, err
		}
	}
	if err := styleHeader(f, ErrorsSheet, len(cols), header); err != nil {
		return 0, err
	}
	_ = f.SetColWidth(ErrorsSheet, "A", "A", 8)
	_ = f.SetColWidth(ErrorsSheet, "B", "D", 18)
	_ = f.SetColWidth(ErrorsSheet, "E", "E", 60)
	return len(errs), nil
}

func writeRow(f *excelize.File, sheet string, row int, vals []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		return fmt.Errorf("xlsx row %d: %w", row, err)
	}
	return nil
}

func styleHeader(f *excelize.File, sheet string, n, style int) error {
	if n == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(n, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

// cellValue keeps numbers numeric and renders dates as YYYY-MM-DD text.
func cellValue(v any, max int) any {
	switch x := result.JSONValue(v).(type) {
	case nil:
		return ""
	case string:
		return truncate(x, max)
	default:
		return x
	}
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
