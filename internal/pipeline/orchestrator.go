// Package pipeline fans chunks out to the extraction unit under a concurrency bound and
// collects the outcomes in input order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docminer/internal/async"
	"github.com/joseph-ayodele/docminer/internal/extract"
	"github.com/joseph-ayodele/docminer/internal/schema"
)

const DefaultConcurrency = 4

var (
	ErrNoChunks  = errors.New("no chunks to extract")
	ErrNilSchema = errors.New("schema is required")
)

// ChunkSource turns document sources into ordered chunks.
type ChunkSource interface {
	Chunks(ctx context.Context, sources ...string) ([]extract.Chunk, error)
}

type Orchestrator struct {
	unit         *extract.Unit
	logger       *slog.Logger
	concurrency  int
	chunkTimeout time.Duration
	pool         *async.Pool
}

type Option func(*Orchestrator)

// WithConcurrency bounds the number of model calls in flight.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithChunkTimeout bounds each model call. Zero means no per-call limit.
func WithChunkTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.chunkTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPool runs every extraction on a shared pool. Its capacity replaces the configured
// concurrency.
func WithPool(p *async.Pool) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.pool = p
			o.concurrency = p.Workers()
		}
	}
}

func New(unit *extract.Unit, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		unit:        unit,
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Concurrency is the effective bound on in-flight model calls.
func (o *Orchestrator) Concurrency() int { return o.concurrency }

// Extract runs every chunk and returns one outcome per chunk, index-aligned with chunks.
// Only precondition failures are returned as errors. Once ctx is done, chunks that have not
// started resolve to CANCELLED; calls already in flight run to completion.
func (o *Orchestrator) Extract(ctx context.Context, s *schema.Schema, chunks []extract.Chunk) ([]extract.Outcome, error) {
	if s == nil {
		return nil, ErrNilSchema
	}
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	rid := uuid.New().String()
	start := time.Now()
	pool := o.pool
	if pool == nil {
		var err error
		pool, err = async.New(
			async.WithWorkers(min(o.concurrency, len(chunks))),
			async.WithName("extract"),
			async.WithLogger(o.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("extract: %w", err)
		}
		defer pool.Shutdown(context.WithoutCancel(ctx))
	}
	o.logger.Info("pipeline.extract.start",
		"req_id", rid,
		"chunks", len(chunks),
		"concurrency", pool.Workers(),
		"fields", s.Len(),
	)

	outcomes := make([]extract.Outcome, len(chunks))
	callCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for i, c := range chunks {
		c.Index = i
		wg.Add(1)
		err := pool.Submit(ctx, func() {
			defer wg.Done()
			outcomes[i] = o.run(ctx, callCtx, s, c)
		})
		if err != nil {
			wg.Done()
			outcomes[i] = extract.Failed(c, extract.FailureCancelled, err.Error())
		}
	}
	wg.Wait()

	var valid, partial, failed int
	for _, out := range outcomes {
		switch out.Kind {
		case extract.OutcomeValid:
			valid++
		case extract.OutcomePartial:
			partial++
		default:
			failed++
		}
	}
	o.logger.Info("pipeline.extract.done",
		"req_id", rid,
		"chunks", len(chunks),
		"valid", valid,
		"partial", partial,
		"failed", failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return outcomes, nil
}

func (o *Orchestrator) run(ctx, callCtx context.Context, s *schema.Schema, c extract.Chunk) (out extract.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = extract.Failed(c, extract.FailureModel, fmt.Sprintf("extraction panicked: %v", r))
		}
	}()
	if err := ctx.Err(); err != nil {
		return extract.Failed(c, extract.FailureCancelled, err.Error())
	}
	if o.chunkTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, o.chunkTimeout)
		defer cancel()
	}
	return o.unit.ExtractChunk(callCtx, s, c)
}

// ExtractTexts indexes texts in order and extracts them.
func (o *Orchestrator) ExtractTexts(ctx context.Context, s *schema.Schema, texts []string) ([]extract.Outcome, error) {
	return o.Extract(ctx, s, extract.ChunksFromTexts(texts))
}

// ExtractDocuments loads and chunks sources, then extracts every chunk. Chunks keep their
// document metadata.
func (o *Orchestrator) ExtractDocuments(ctx context.Context, s *schema.Schema, src ChunkSource, sources ...string) ([]extract.Outcome, error) {
	if s == nil {
		return nil, ErrNilSchema
	}
	chunks, err := src.Chunks(ctx, sources...)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	return o.Extract(ctx, s, chunks)
}
