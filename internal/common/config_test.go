package common

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL", "DB_URL", "GRPC_ADDR",
		"DOCMINER_LLM_API_KEY", "DOCMINER_LLM_MODEL", "DOCMINER_PIPELINE_CONCURRENCY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, 500, cfg.Document.ChunkSize)
	assert.Equal(t, ":8080", cfg.Server.GRPCAddr)
	assert.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())

	err = cfg.RequireAPIKey()
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docminer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  model: gpt-4o
  temperature: 0.2
pipeline:
  concurrency: 8
  chunk_timeout: 30s
log:
  level: debug
`), 0o644))
	clearEnv(t)
	t.Setenv("DOCMINER_PIPELINE_CONCURRENCY", "16")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")
	t.Setenv("DB_URL", "sqlite://runs.db")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 16, cfg.Pipeline.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.ChunkTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "sk-fallback", cfg.LLM.APIKey)
	assert.Equal(t, "sqlite://runs.db", cfg.Database.DSN)
	assert.NoError(t, cfg.RequireAPIKey())

	t.Setenv("DOCMINER_LLM_API_KEY", "sk-primary")
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-primary", cfg.LLM.APIKey)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}

func TestValidateReportsKeys(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Pipeline.Concurrency = 0
	cfg.Log.Level = "loud"

	err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := map[string]string{}
	for _, e := range verrs {
		fields[e.Field] = e.Message
	}
	assert.Equal(t, "must be >= 1", fields["pipeline.concurrency"])
	assert.Equal(t, "must be one of: debug info warn error", fields["log.level"])
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, codes.OK, StatusCode(nil))
	assert.Equal(t, codes.InvalidArgument, StatusCode(NewAppError("BAD", "x", ErrInvalidInput)))
	assert.Equal(t, codes.NotFound, StatusCode(WrapError(ErrNotFound, "get")))
	assert.Equal(t, codes.DeadlineExceeded, StatusCode(context.DeadlineExceeded))
	assert.Equal(t, codes.Unavailable, StatusCode(status.Error(codes.Unavailable, "down")))
	assert.Equal(t, codes.Internal, StatusCode(errors.New("boom")))
	assert.Nil(t, WrapError(nil, "x"))
}

func TestContextHelpers(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	assert.NotEmpty(t, id)
	ctx2, id2 := EnsureRequestID(ctx)
	assert.Equal(t, id, id2)
	assert.Equal(t, id, RequestIDFromContext(ctx2))

	var buf bytes.Buffer
	l := NewLogger(&buf, LogConfig{Level: "debug", Format: "text"})
	assert.Same(t, l, LoggerFromContext(WithLogger(ctx, l), nil))
	assert.NotNil(t, LoggerFromContext(context.Background(), nil))

	l.Debug("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
