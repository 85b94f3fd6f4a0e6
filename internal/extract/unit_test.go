package extract

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docminer/internal/llm"
	"github.com/joseph-ayodele/docminer/internal/llm/llmtest"
	"github.com/joseph-ayodele/docminer/internal/schema"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func productSchema(t *testing.T) *schema.Schema {
	t.Helper()
	name := schema.Rule{}.WithMinLength(2)
	s, err := schema.New(schema.FormatJSON,
		schema.Field{Name: "product_name", Type: schema.String, Rule: &name},
		schema.Field{Name: "price", Type: schema.Float, Rule: &schema.Rule{MinValue: new(float64)}},
	)
	require.NoError(t, err)
	return s
}

func TestExtractChunkValid(t *testing.T) {
	stub := llmtest.NewStub(llmtest.Reply{Text: `{"product_name": "Laptop", "price": "2399.99", "color": "grey"}`})
	u := NewUnit(stub, quietLogger())

	out := u.ExtractChunk(context.Background(), productSchema(t), Chunk{Index: 3, Text: "Laptop $2399.99"})
	assert.Equal(t, OutcomeValid, out.Kind)
	assert.True(t, out.Valid())
	assert.Equal(t, 3, out.Index)
	require.NotNil(t, out.Record)
	assert.Equal(t, 3, out.Record.ChunkIndex)
	assert.Equal(t, map[string]any{"product_name": "Laptop", "price": 2399.99}, out.Record.Values)
	assert.Empty(t, out.Errors)
	assert.Nil(t, out.Failure)
	assert.False(t, out.Conforms, "string price does not satisfy the strict schema")
	assert.Equal(t, 1, stub.Calls())
}

func TestExtractChunkConforming(t *testing.T) {
	stub := llmtest.NewStub(llmtest.Reply{Text: "```json\n{\"product_name\":\"Desk\",\"price\":120}\n```"})
	out := NewUnit(stub, quietLogger()).ExtractChunk(context.Background(), productSchema(t), Chunk{Text: "Desk"})
	assert.Equal(t, OutcomeValid, out.Kind)
	assert.True(t, out.Conforms)
}

func TestExtractChunkRuleViolations(t *testing.T) {
	stub := llmtest.NewStub(llmtest.Reply{Text: `{"product_name":"A","price":-5}`})
	out := NewUnit(stub, quietLogger()).ExtractChunk(context.Background(), productSchema(t), Chunk{Text: "A -5"})

	assert.Equal(t, OutcomePartial, out.Kind)
	require.NotNil(t, out.Record)
	assert.Empty(t, out.Record.Values)
	require.Len(t, out.Errors, 2)
	assert.Equal(t, schema.RuleMinLength, out.Errors[0].Rule)
	assert.Equal(t, schema.RuleMinValue, out.Errors[1].Rule)
}

func TestExtractChunkPartial(t *testing.T) {
	stub := llmtest.NewStub(llmtest.Reply{Text: `{"product_name":"Chair"}`})
	out := NewUnit(stub, quietLogger()).ExtractChunk(context.Background(), productSchema(t), Chunk{Text: "Chair"})
	assert.Equal(t, OutcomePartial, out.Kind)
	assert.Equal(t, map[string]any{"product_name": "Chair"}, out.Record.Values)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, schema.KindMissing, out.Errors[0].Kind)
}

func TestExtractChunkModelError(t *testing.T) {
	stub := llmtest.NewStub(llmtest.Reply{Err: &llm.ProviderError{Kind: llm.ErrorTransport, Message: "connection reset"}})
	out := NewUnit(stub, quietLogger()).ExtractChunk(context.Background(), productSchema(t), Chunk{Index: 1, Text: "x"})
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Nil(t, out.Record)
	require.NotNil(t, out.Failure)
	assert.Equal(t, FailureModel, out.Failure.Kind)
	assert.Contains(t, out.Failure.Detail, "connection reset")
}

func TestExtractChunkParseError(t *testing.T) {
	stub := llmtest.NewStub(llmtest.Reply{Text: "I could not find anything."})
	out := NewUnit(stub, quietLogger()).ExtractChunk(context.Background(), productSchema(t), Chunk{Text: "x"})
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Equal(t, FailureParse, out.Failure.Kind)
	assert.Equal(t, "I could not find anything.", out.Raw)
}

func TestExtractChunkRecoversPanics(t *testing.T) {
	stub := llmtest.NewStub(llmtest.Reply{Panic: "kaboom"})
	out := NewUnit(stub, quietLogger()).ExtractChunk(context.Background(), productSchema(t), Chunk{Text: "x"})
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Equal(t, FailureModel, out.Failure.Kind)
	assert.Contains(t, out.Failure.Detail, "kaboom")
}

func TestExtractChunkCancelledBeforeCall(t *testing.T) {
	stub := llmtest.NewStub(llmtest.Reply{Text: `{}`})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := NewUnit(stub, quietLogger()).ExtractChunk(ctx, productSchema(t), Chunk{Text: "x"})
	assert.Equal(t, FailureCancelled, out.Failure.Kind)
	assert.Zero(t, stub.Calls())
}

func TestExtractChunkWithoutRaw(t *testing.T) {
	stub := llmtest.NewStub(llmtest.Reply{Text: `{"product_name":"Lamp","price":3}`})
	out := NewUnit(stub, nil, WithRawResponses(false)).ExtractChunk(context.Background(), productSchema(t), Chunk{Text: "x"})
	assert.Empty(t, out.Raw)
}

func TestExtractChunkNilCaller(t *testing.T) {
	out := NewUnit(nil, quietLogger()).ExtractChunk(context.Background(), productSchema(t), Chunk{Text: "x"})
	assert.Equal(t, FailureModel, out.Failure.Kind)
}

func TestExtractChunkUsesPromptOptions(t *testing.T) {
	stub := llmtest.NewStub(llmtest.Reply{Text: `{}`})
	u := NewUnit(stub, quietLogger(), WithPromptOptions(llm.PromptOptions{Instructions: "Prices are in EUR."}))
	u.ExtractChunk(context.Background(), productSchema(t), Chunk{Text: "x"})
	require.Len(t, stub.Prompts(), 1)
	assert.Contains(t, stub.Prompts()[0], "Prices are in EUR.")
}

func TestChunksFromTexts(t *testing.T) {
	cs := ChunksFromTexts([]string{"a", "b"})
	require.Len(t, cs, 2)
	assert.Equal(t, 1, cs[1].Index)
	assert.Equal(t, "b", cs[1].Text)
}
