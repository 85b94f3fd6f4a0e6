package export

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docminer/internal/extract"
	"github.com/joseph-ayodele/docminer/internal/result"
	"github.com/joseph-ayodele/docminer/internal/schema"
)

func sampleResult(t *testing.T) *result.ExtractionResult {
	t.Helper()
	s, err := schema.New(schema.FormatTable,
		schema.Field{Name: "product_name", Type: schema.String},
		schema.Field{Name: "price", Type: schema.Float},
		schema.Field{Name: "sold_on", Type: schema.Date}.Optional(),
	)
	require.NoError(t, err)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return result.Aggregate(s, []extract.Outcome{
		{Index: 0, Kind: extract.OutcomeValid, Record: &extract.Record{Values: map[string]any{"product_name": "Laptop", "price": 2399.99, "sold_on": day}}},
		{Index: 1, Kind: extract.OutcomePartial, Record: &extract.Record{ChunkIndex: 1, Values: map[string]any{"product_name": "Desk"}},
			Errors: []schema.FieldError{{Field: "price", Kind: schema.KindMissing, Message: "required field is missing"}}},
		{Index: 2, Kind: extract.OutcomeFailed, Failure: &extract.Failure{Kind: extract.FailureModel, Detail: "timeout"}},
		{Index: 3, Kind: extract.OutcomeValid, Record: &extract.Record{ChunkIndex: 3, Values: map[string]any{"product_name": "Chair", "price": 80.0}}},
	})
}

func TestWriteXLSX(t *testing.T) {
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)))
	b, err := svc.WriteXLSX(sampleResult(t), XLSXOptions{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{RecordsSheet, ErrorsSheet}, f.GetSheetList())

	rows, err := f.GetRows(RecordsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"chunk_index", "product_name", "price", "sold_on"}, rows[0])
	assert.Equal(t, []string{"0", "Laptop", "2399.99", "2024-05-01"}, rows[1])
	assert.Equal(t, []string{"3", "Chair", "80"}, rows[2][:3])

	errs, err := f.GetRows(ErrorsSheet)
	require.NoError(t, err)
	require.Len(t, errs, 3)
	assert.Equal(t, []string{"Chunk", "Field", "Kind", "Rule", "Message"}, errs[0])
	assert.Equal(t, "MISSING", errs[1][2])
	assert.Equal(t, "MODEL_ERROR", errs[2][2])
	assert.Equal(t, "timeout", errs[2][4])
}

func TestWriteXLSXOptions(t *testing.T) {
	svc := NewService(nil)
	b, err := svc.WriteXLSX(sampleResult(t), XLSXOptions{IncludePartial: true, SkipErrors: true})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{RecordsSheet}, f.GetSheetList())
	rows, err := f.GetRows(RecordsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Equal(t, "Desk", rows[2][1])

	_, err = svc.WriteXLSX(nil, XLSXOptions{})
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	table := sampleResult(t).ToTable()
	require.NoError(t, WriteCSV(&buf, table))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"product_name,price,sold_on",
		"Laptop,2399.99,2024-05-01",
		"Chair,80,",
	}, lines)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 0))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "é", truncate("éé", 1))
}
