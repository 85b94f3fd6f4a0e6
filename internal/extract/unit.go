package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/docminer/internal/llm"
	"github.com/joseph-ayodele/docminer/internal/schema"
	"github.com/joseph-ayodele/docminer/internal/validation"
)

// Unit extracts one chunk: prompt, model call, parse, validate.
type Unit struct {
	caller llm.Caller
	logger *slog.Logger
	prompt llm.PromptOptions
	keep   bool
}

// UnitOption configures a Unit.
type UnitOption func(*Unit)

// WithPromptOptions sets the prompt options used for every chunk.
func WithPromptOptions(opts llm.PromptOptions) UnitOption {
	return func(u *Unit) { u.prompt = opts }
}

// WithRawResponses keeps the model reply on each outcome.
func WithRawResponses(keep bool) UnitOption {
	return func(u *Unit) { u.keep = keep }
}

func NewUnit(caller llm.Caller, logger *slog.Logger, opts ...UnitOption) *Unit {
	if logger == nil {
		logger = slog.Default()
	}
	u := &Unit{caller: caller, logger: logger, keep: true}
	for _, o := range opts {
		o(u)
	}
	return u
}

// ExtractChunk never returns an error: model and parse failures become FAILED outcomes.
func (u *Unit) ExtractChunk(ctx context.Context, s *schema.Schema, c Chunk) Outcome {
	start := time.Now()
	out := u.extract(ctx, s, c)
	out.Duration = time.Since(start)

	attrs := []any{
		"chunk", c.Index,
		"kind", out.Kind,
		"errors", len(out.Errors),
		"elapsed_ms", out.Duration.Milliseconds(),
	}
	switch out.Kind {
	case OutcomeFailed:
		u.logger.Warn("extract.chunk.failed", append(attrs, "failure", out.Failure.Kind, "detail", out.Failure.Detail)...)
	case OutcomePartial:
		u.logger.Info("extract.chunk.partial", attrs...)
	default:
		u.logger.Debug("extract.chunk.ok", attrs...)
	}
	return out
}

func (u *Unit) extract(ctx context.Context, s *schema.Schema, c Chunk) Outcome {
	if err := ctx.Err(); err != nil {
		return Failed(c, FailureCancelled, err.Error())
	}

	prompt := llm.BuildPrompt(s, c.Text, u.prompt)
	u.logger.Debug("extract.chunk.start", "chunk", c.Index, "text_len", len(c.Text), "prompt_len", len(prompt))

	raw, err := u.call(ctx, prompt)
	if err != nil {
		return Failed(c, FailureModel, err.Error())
	}

	candidate, err := llm.ParseCandidate(raw)
	if err != nil {
		out := Failed(c, FailureParse, err.Error())
		if u.keep {
			out.Raw = raw
		}
		return out
	}

	out := Outcome{Index: c.Index, Source: c.Source}
	if u.keep {
		out.Raw = raw
	}
	if doc, err := json.Marshal(candidate); err == nil {
		if err := s.Conforms(doc); err != nil {
			u.logger.Debug("extract.chunk.nonconforming", "chunk", c.Index, "error", err)
		} else {
			out.Conforms = true
		}
	}

	res := validation.Validate(s, candidate)
	out.Record = &Record{ChunkIndex: c.Index, Values: res.Values, Source: c.Source}
	out.Errors = res.Errors
	if res.Status == validation.StatusValid {
		out.Kind = OutcomeValid
	} else {
		out.Kind = OutcomePartial
	}
	return out
}

// call shields the unit from panicking callers.
func (u *Unit) call(ctx context.Context, prompt string) (raw string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model call panicked: %v", r)
		}
	}()
	if u.caller == nil {
		return "", errors.New("no model caller configured")
	}
	return u.caller.Call(ctx, prompt)
}
