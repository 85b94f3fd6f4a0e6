package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/docminer/internal/pipeline"
	"github.com/joseph-ayodele/docminer/internal/result"
	"github.com/joseph-ayodele/docminer/internal/schema"
)

// Sink receives the result of each processed document.
type Sink interface {
	Write(ctx context.Context, source string, res *result.ExtractionResult) error
}

type SinkFunc func(ctx context.Context, source string, res *result.ExtractionResult) error

func (f SinkFunc) Write(ctx context.Context, source string, res *result.ExtractionResult) error {
	return f(ctx, source, res)
}

// Stats counts processed documents.
type Stats struct {
	Processed int
	Valid     int
	Failed    int
}

// Processor extracts one document at a time with a shared orchestrator.
type Processor struct {
	schema *schema.Schema
	source pipeline.ChunkSource
	orch   *pipeline.Orchestrator
	sinks  []Sink
	logger *slog.Logger
}

func NewProcessor(s *schema.Schema, src pipeline.ChunkSource, orch *pipeline.Orchestrator, logger *slog.Logger, sinks ...Sink) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{schema: s, source: src, orch: orch, sinks: sinks, logger: logger}
}

// ProcessFile loads, extracts and aggregates path, then hands the result to every sink. A
// failing sink is logged and does not fail the document.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*result.ExtractionResult, error) {
	start := time.Now()
	outcomes, err := p.orch.ExtractDocuments(ctx, p.schema, p.source, path)
	if err != nil {
		p.logger.Error("ingest.file.error", "path", path, "error", err)
		return nil, fmt.Errorf("process %s: %w", path, err)
	}
	res := result.Aggregate(p.schema, outcomes)
	for _, s := range p.sinks {
		if err := s.Write(ctx, path, res); err != nil {
			p.logger.Warn("ingest.sink.error", "path", path, "error", err)
		}
	}
	sum := res.Summary()
	p.logger.Info("ingest.file.ok",
		"path", path,
		"chunks", sum.Total,
		"valid", sum.Valid,
		"is_valid", res.IsValid(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// Run processes paths until the channel closes or ctx is done.
func (p *Processor) Run(ctx context.Context, paths <-chan string) Stats {
	var st Stats
	for {
		select {
		case <-ctx.Done():
			return st
		case path, ok := <-paths:
			if !ok {
				return st
			}
			st.Processed++
			res, err := p.ProcessFile(ctx, path)
			switch {
			case err != nil:
				st.Failed++
			case res.IsValid():
				st.Valid++
			}
		}
	}
}

// JSONSink writes <dir>/<file name>.json for each document.
type JSONSink struct {
	Dir string
}

type fileReport struct {
	Source           string              `json:"source"`
	IsValid          bool                `json:"is_valid"`
	Summary          result.Summary      `json:"summary"`
	Records          json.RawMessage     `json:"records"`
	ValidationErrors []result.ChunkError `json:"validation_errors"`
}

func (s JSONSink) Write(_ context.Context, source string, res *result.ExtractionResult) error {
	recs, err := res.ToJSON()
	if err != nil {
		return err
	}
	errs := res.ErrorList()
	if errs == nil {
		errs = []result.ChunkError{}
	}
	b, err := json.MarshalIndent(fileReport{
		Source:           source,
		IsValid:          res.IsValid(),
		Summary:          res.Summary(),
		Records:          recs,
		ValidationErrors: errs,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)) + ".json"
	return os.WriteFile(filepath.Join(s.Dir, name), b, 0o644)
}
