// Package server exposes extraction over gRPC.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docminer/internal/common"
	"github.com/joseph-ayodele/docminer/internal/extract"
	"github.com/joseph-ayodele/docminer/internal/pipeline"
	"github.com/joseph-ayodele/docminer/internal/repository"
	"github.com/joseph-ayodele/docminer/internal/result"
	"github.com/joseph-ayodele/docminer/internal/schema"
)

// MaxRequestConcurrency caps the per request concurrency override.
const MaxRequestConcurrency = 64

// ExtractionService implements ExtractionServer on top of a pipeline.
type ExtractionService struct {
	unit        *extract.Unit
	concurrency int
	timeout     time.Duration
	runs        repository.RunRepository
	logger      *slog.Logger
}

type Option func(*ExtractionService)

// WithRunStore persists every completed extraction.
func WithRunStore(r repository.RunRepository) Option {
	return func(s *ExtractionService) { s.runs = r }
}

func WithConcurrency(n int) Option {
	return func(s *ExtractionService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithChunkTimeout bounds each model call.
func WithChunkTimeout(d time.Duration) Option {
	return func(s *ExtractionService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewExtractionService(unit *extract.Unit, logger *slog.Logger, opts ...Option) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ExtractionService{unit: unit, concurrency: pipeline.DefaultConcurrency, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

type extractRequest struct {
	Schema      schema.Declaration `json:"schema"`
	Chunks      []chunkInput       `json:"chunks"`
	Concurrency int                `json:"concurrency"`
}

// chunkInput accepts either a bare string or {"text": ..., "source": {...}}.
type chunkInput struct {
	Text   string            `json:"text"`
	Source extract.SourceRef `json:"source"`
}

func (c *chunkInput) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		c.Text = s
		return nil
	}
	type plain chunkInput
	return json.Unmarshal(b, (*plain)(c))
}

type extractResponse struct {
	RunID            string              `json:"run_id,omitempty"`
	IsValid          bool                `json:"is_valid"`
	OutputFormat     schema.OutputFormat `json:"output_format"`
	Summary          result.Summary      `json:"summary"`
	Records          []map[string]any    `json:"records"`
	PartialRecords   []map[string]any    `json:"partial_records"`
	Table            *result.Table       `json:"table,omitempty"`
	ValidationErrors []result.ChunkError `json:"validation_errors"`
}

// Extract validates the request schema, runs every chunk and returns the aggregated result.
func (s *ExtractionService) Extract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := common.LoggerFromContext(ctx, s.logger)
	var req extractRequest
	if err := decode(in, &req); err != nil {
		return nil, common.InvalidArgumentErrorf("decode request: %v", err)
	}
	sc, err := req.Schema.Build()
	if err != nil {
		return nil, schemaStatus(err)
	}
	if len(req.Chunks) == 0 {
		return nil, common.InvalidArgumentError(pipeline.ErrNoChunks.Error())
	}
	if req.Concurrency < 0 || req.Concurrency > MaxRequestConcurrency {
		return nil, common.InvalidArgumentErrorf("concurrency must be between 1 and %d", MaxRequestConcurrency)
	}

	chunks := make([]extract.Chunk, len(req.Chunks))
	for i, c := range req.Chunks {
		chunks[i] = extract.Chunk{Index: i, Text: c.Text, Source: c.Source}
	}
	conc := s.concurrency
	if req.Concurrency > 0 {
		conc = req.Concurrency
	}
	orch := pipeline.New(s.unit,
		pipeline.WithConcurrency(conc),
		pipeline.WithChunkTimeout(s.timeout),
		pipeline.WithLogger(log),
	)

	started := time.Now()
	outcomes, err := orch.Extract(ctx, sc, chunks)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoChunks) || errors.Is(err, pipeline.ErrNilSchema) {
			return nil, common.InvalidArgumentError(err.Error())
		}
		log.Error("extract failed", "error", err)
		return nil, common.InternalError("extract failed")
	}
	res := result.Aggregate(sc, outcomes)
	resp := extractResponse{
		IsValid:          res.IsValid(),
		OutputFormat:     sc.Format(),
		Summary:          res.Summary(),
		Records:          jsonRecords(res.ToRecords()),
		PartialRecords:   partialRecords(res),
		ValidationErrors: orEmpty(res.ErrorList()),
	}
	if sc.Format() == schema.FormatTable {
		t := res.ToTable()
		for _, row := range t.Rows {
			for j, v := range row {
				row[j] = result.JSONValue(v)
			}
		}
		resp.Table = &t
	}

	if s.runs != nil {
		id, err := s.runs.SaveRun(context.WithoutCancel(ctx), repository.RunInput{
			Result:     res,
			StartedAt:  started,
			FinishedAt: time.Now(),
		})
		if err != nil {
			log.Warn("run not stored", "error", err)
		} else {
			resp.RunID = id.String()
		}
	}
	return encode(resp)
}

type describeResponse struct {
	OutputFormat schema.OutputFormat `json:"output_format"`
	Fields       []string            `json:"fields"`
	Description  string              `json:"description"`
	JSONSchema   map[string]any      `json:"json_schema"`
}

// Describe validates a schema and returns its prompt facing description.
func (s *ExtractionService) Describe(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		Schema schema.Declaration `json:"schema"`
	}
	if err := decode(in, &req); err != nil {
		return nil, common.InvalidArgumentErrorf("decode request: %v", err)
	}
	sc, err := req.Schema.Build()
	if err != nil {
		return nil, schemaStatus(err)
	}
	return encode(describeResponse{
		OutputFormat: sc.Format(),
		Fields:       sc.Names(),
		Description:  sc.Describe(),
		JSONSchema:   sc.JSONSchema(),
	})
}

func schemaStatus(err error) error {
	if errors.Is(err, schema.ErrSchema) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return common.InternalErrorf("schema: %v", err)
}

func decode(in *structpb.Struct, v any) error {
	b, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

func jsonRecords(recs []map[string]any) []map[string]any {
	for _, rec := range recs {
		for k, v := range rec {
			rec[k] = result.JSONValue(v)
		}
	}
	if recs == nil {
		return []map[string]any{}
	}
	return recs
}

func partialRecords(res *result.ExtractionResult) []map[string]any {
	parts := res.PartialResults()
	out := make([]map[string]any, 0, len(parts))
	for _, rec := range parts {
		m := make(map[string]any, len(rec.Values)+1)
		for k, v := range rec.Values {
			m[k] = result.JSONValue(v)
		}
		m[result.ChunkIndexColumn] = rec.ChunkIndex
		out = append(out, m)
	}
	return out
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

var _ ExtractionServer = (*ExtractionService)(nil)
