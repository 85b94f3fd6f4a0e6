package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docminer/constants"
	"github.com/joseph-ayodele/docminer/internal/extract"
	"github.com/joseph-ayodele/docminer/internal/result"
	"github.com/joseph-ayodele/docminer/internal/schema"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// RunInput is one finished extraction to persist.
type RunInput struct {
	Result     *result.ExtractionResult
	Sources    []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Run is a stored extraction run.
type Run struct {
	ID                uuid.UUID
	OutputFormat      schema.OutputFormat
	SchemaDescription string
	Sources           []string
	Summary           result.Summary
	IsValid           bool
	Status            constants.RunStatus
	StartedAt         time.Time
	FinishedAt        time.Time
}

// StoredOutcome is one chunk outcome of a stored run.
type StoredOutcome struct {
	ChunkIndex    int
	Kind          extract.OutcomeKind
	FailureKind   extract.FailureKind
	FailureDetail string
	Record        map[string]any
	Errors        []schema.FieldError
	Source        extract.SourceRef
	Duration      time.Duration
}

type RunRepository interface {
	SaveRun(ctx context.Context, in RunInput) (uuid.UUID, error)
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListOutcomes(ctx context.Context, id uuid.UUID) ([]StoredOutcome, error)
}

type runRepo struct {
	db  *DB
	log *slog.Logger
}

func NewRunRepository(db *DB, log *slog.Logger) RunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &runRepo{db: db, log: log}
}

var runColumns = []string{
	"id", "output_format", "schema_description", "sources",
	"total", "valid", "partial", "failed", "is_valid", "status", "started_at", "finished_at",
}

func (r *runRepo) SaveRun(ctx context.Context, in RunInput) (uuid.UUID, error) {
	if in.Result == nil {
		return uuid.Nil, errors.New("save run: nil result")
	}
	id := uuid.New()
	s := in.Result.Schema()
	sum := in.Result.Summary()
	sources, err := json.Marshal(orEmpty(in.Sources))
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode sources: %w", err)
	}
	b := entsql.Dialect(r.db.dialect)

	tx, err := r.db.drv.Tx(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	q, args := b.Insert(runsTable).Columns(runColumns...).Values(
		id.String(), string(s.Format()), s.Describe(), string(sources),
		sum.Total, sum.Valid, sum.Partial, sum.Failed, in.Result.IsValid(),
		string(runStatus(in.Result.IsValid(), sum)), formatTime(in.StartedAt), formatTime(in.FinishedAt),
	).Query()
	if err := tx.Exec(ctx, q, args, nil); err != nil {
		_ = tx.Rollback()
		r.log.Error("run save failed", "run_id", id, "err", err)
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}

	outs := in.Result.Outcomes()
	if len(outs) > 0 {
		ins := b.Insert(outcomesTable).Columns(
			"run_id", "chunk_index", "kind", "failure_kind", "failure_detail",
			"record", "errors", "source", "duration_ms",
		)
		for _, o := range outs {
			vals, err := outcomeValues(id, o)
			if err != nil {
				_ = tx.Rollback()
				return uuid.Nil, err
			}
			ins.Values(vals...)
		}
		q, args := ins.Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			_ = tx.Rollback()
			r.log.Error("run save failed", "run_id", id, "err", err)
			return uuid.Nil, fmt.Errorf("insert outcomes: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, err
	}
	r.log.Info("run saved", "run_id", id, "outcomes", len(outs), "is_valid", in.Result.IsValid())
	return id, nil
}

func outcomeValues(id uuid.UUID, o extract.Outcome) ([]any, error) {
	var record, errs, failKind, failDetail any
	if o.Record != nil {
		m := make(map[string]any, len(o.Record.Values))
		for k, v := range o.Record.Values {
			m[k] = result.JSONValue(v)
		}
		b, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("encode record %d: %w", o.Index, err)
		}
		record = string(b)
	}
	if len(o.Errors) > 0 {
		b, err := json.Marshal(o.Errors)
		if err != nil {
			return nil, fmt.Errorf("encode errors %d: %w", o.Index, err)
		}
		errs = string(b)
	}
	if o.Failure != nil {
		failKind, failDetail = string(o.Failure.Kind), o.Failure.Detail
	}
	src, err := json.Marshal(o.Source)
	if err != nil {
		return nil, fmt.Errorf("encode source %d: %w", o.Index, err)
	}
	return []any{
		id.String(), o.Index, string(o.Kind), failKind, failDetail,
		record, errs, string(src), o.Duration.Milliseconds(),
	}, nil
}

func (r *runRepo) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	b := entsql.Dialect(r.db.dialect)
	q, args := b.Select(runColumns...).
		From(b.Table(runsTable)).
		Where(entsql.EQ("id", id.String())).
		Query()
	runs, err := r.queryRuns(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return &runs[0], nil
}

// ListRuns returns the most recent runs first. limit <= 0 means no limit.
func (r *runRepo) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	b := entsql.Dialect(r.db.dialect)
	sel := b.Select(runColumns...).
		From(b.Table(runsTable)).
		OrderBy(entsql.Desc("started_at"), entsql.Asc("id"))
	if limit > 0 {
		sel.Limit(limit)
	}
	q, args := sel.Query()
	return r.queryRuns(ctx, q, args)
}

func (r *runRepo) queryRuns(ctx context.Context, q string, args []any) ([]Run, error) {
	var rows entsql.Rows
	if err := r.db.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run                                   Run
			id, format, sources, status, from, to string
		)
		if err := rows.Scan(&id, &format, &run.SchemaDescription, &sources,
			&run.Summary.Total, &run.Summary.Valid, &run.Summary.Partial, &run.Summary.Failed,
			&run.IsValid, &status, &from, &to); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		var err error
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		run.OutputFormat = schema.OutputFormat(format)
		run.Status = constants.RunStatus(status)
		if err := json.Unmarshal([]byte(sources), &run.Sources); err != nil {
			return nil, fmt.Errorf("decode sources: %w", err)
		}
		run.StartedAt, _ = time.Parse(timeLayout, from)
		run.FinishedAt, _ = time.Parse(timeLayout, to)
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *runRepo) ListOutcomes(ctx context.Context, id uuid.UUID) ([]StoredOutcome, error) {
	b := entsql.Dialect(r.db.dialect)
	q, args := b.Select("chunk_index", "kind", "failure_kind", "failure_detail", "record", "errors", "source", "duration_ms").
		From(b.Table(outcomesTable)).
		Where(entsql.EQ("run_id", id.String())).
		OrderBy("chunk_index").
		Query()

	var rows entsql.Rows
	if err := r.db.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []StoredOutcome
	for rows.Next() {
		var (
			o                                          StoredOutcome
			kind                                       string
			failKind, failDetail, record, errs, source *string
			ms                                         int64
		)
		if err := rows.Scan(&o.ChunkIndex, &kind, &failKind, &failDetail, &record, &errs, &source, &ms); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Kind = extract.OutcomeKind(kind)
		o.Duration = time.Duration(ms) * time.Millisecond
		if failKind != nil {
			o.FailureKind = extract.FailureKind(*failKind)
		}
		if failDetail != nil {
			o.FailureDetail = *failDetail
		}
		if record != nil {
			if err := json.Unmarshal([]byte(*record), &o.Record); err != nil {
				return nil, fmt.Errorf("decode record: %w", err)
			}
		}
		if errs != nil {
			if err := json.Unmarshal([]byte(*errs), &o.Errors); err != nil {
				return nil, fmt.Errorf("decode errors: %w", err)
			}
		}
		if source != nil {
			if err := json.Unmarshal([]byte(*source), &o.Source); err != nil {
				return nil, fmt.Errorf("decode source: %w", err)
			}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func runStatus(valid bool, sum result.Summary) constants.RunStatus {
	switch {
	case valid:
		return constants.RunStatusValid
	case sum.Valid == 0:
		return constants.RunStatusFailed
	default:
		return constants.RunStatusPartial
	}
}

// timeLayout is fixed width so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func orEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
