package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docminer/internal/document"
	"github.com/joseph-ayodele/docminer/internal/extract"
	"github.com/joseph-ayodele/docminer/internal/llm/llmtest"
	"github.com/joseph-ayodele/docminer/internal/pipeline"
	"github.com/joseph-ayodele/docminer/internal/result"
	"github.com/joseph-ayodele/docminer/internal/schema"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.txt"), "a")
	write(t, filepath.Join(root, "sub", "b.pdf"), "b")
	write(t, filepath.Join(root, "c.exe"), "c")
	write(t, filepath.Join(root, ".hidden", "d.txt"), "d")

	paths, stats, err := ScanDirectory(root, nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.txt"), filepath.Join(root, "sub", "b.pdf")}, paths)
	assert.Equal(t, uint32(2), stats.Matched)

	paths, _, err = ScanDirectory(root, ExtSet([]string{".TXT"}), false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, ".hidden", "d.txt"), filepath.Join(root, "a.txt")}, paths)

	_, _, err = ScanDirectory(filepath.Join(root, "missing"), nil, false)
	assert.Error(t, err)
	_, _, err = ScanDirectory(" ", nil, false)
	assert.Error(t, err)
}

func newProcessor(t *testing.T, sinks ...Sink) *Processor {
	t.Helper()
	s, err := schema.New(schema.FormatJSON, schema.Field{Name: "total", Type: schema.Float})
	require.NoError(t, err)
	stub := llmtest.NewStub(llmtest.Reply{Text: `{"total": null}`}).
		OnText("TOTAL 12.50", `{"total": "12.50"}`)
	orch := pipeline.New(extract.NewUnit(stub, quiet()), pipeline.WithLogger(quiet()))
	loader := document.NewLoader(document.DefaultProcessingConfig(), quiet())
	return NewProcessor(s, loader, orch, quiet(), sinks...)
}

func TestProcessFileWritesReport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "receipt.txt")
	write(t, src, "Corner shop TOTAL 12.50 thanks")
	out := filepath.Join(dir, "out")

	var seen []string
	p := newProcessor(t, JSONSink{Dir: out}, SinkFunc(func(_ context.Context, source string, res *result.ExtractionResult) error {
		seen = append(seen, source)
		return nil
	}))
	res, err := p.ProcessFile(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
	assert.Equal(t, []string{src}, seen)

	b, err := os.ReadFile(filepath.Join(out, "receipt.json"))
	require.NoError(t, err)
	var report struct {
		IsValid bool             `json:"is_valid"`
		Records []map[string]any `json:"records"`
	}
	require.NoError(t, json.Unmarshal(b, &report))
	assert.True(t, report.IsValid)
	assert.Equal(t, []map[string]any{{"total": 12.5}}, report.Records)
}

func TestRunCountsDocuments(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	bad := filepath.Join(dir, "bad.txt")
	write(t, good, "TOTAL 12.50")
	write(t, bad, "no amount here")

	paths := make(chan string, 3)
	paths <- good
	paths <- bad
	paths <- filepath.Join(dir, "missing.txt")
	close(paths)

	st := newProcessor(t).Run(context.Background(), paths)
	assert.Equal(t, Stats{Processed: 3, Valid: 1, Failed: 1}, st)
}

func TestWatcherEmitsNewFiles(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "existing.txt"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		Debounce:    20 * time.Millisecond,
		Logger:      quiet(),
	})
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watcher event")
			return ""
		}
	}
	assert.Equal(t, filepath.Join(root, "existing.txt"), next())

	write(t, filepath.Join(root, "ignored.bin"), "x")
	write(t, filepath.Join(root, "new.md"), "# hi")
	assert.Equal(t, filepath.Join(root, "new.md"), next())

	cancel()
	for range events {
	}

	_, _, err = StartWatcher(context.Background(), WatchConfig{})
	assert.Error(t, err)
}
