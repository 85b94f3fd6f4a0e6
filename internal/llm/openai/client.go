// Package openai implements llm.Caller on the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/joseph-ayodele/docminer/internal/llm"
)

type Client struct {
	cfg    Config
	sdk    openai.Client
	logger *slog.Logger
}

var _ llm.Caller = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// retries are driven by Call so they can be logged and classified
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		cfg:    cfg,
		sdk:    openai.NewClient(opts...),
		logger: logger,
	}
}

// Model is the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Call sends prompt as a JSON-mode chat completion and returns the reply text.
func (c *Client) Call(ctx context.Context, prompt string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.logger.Debug("llm.call.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"prompt_len", len(prompt),
	)

	var content string
	err := retry.Do(
		func() error {
			out, err := c.once(ctx, prompt)
			if err != nil {
				return err
			}
			content = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxRetries+1)),
		retry.Delay(c.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(llm.IsTemporary),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("llm.call.retry",
				"req_id", rid, "attempt", n+1, "error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		}),
	)
	if err != nil {
		c.logger.Error("llm.call.error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	c.logger.Info("llm.call.ok",
		"req_id", rid,
		"model", c.cfg.Model,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func (c *Client) once(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.sdk.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.cfg.System),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.cfg.Temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &llm.ProviderError{Kind: llm.ErrorEmpty, Message: "no choices in openai response"}
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", &llm.ProviderError{Kind: llm.ErrorEmpty, Message: "empty message content"}
	}
	return content, nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		pe := &llm.ProviderError{
			Kind:       llm.ErrorProvider,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
		if pe.Message == "" {
			pe.Message = http.StatusText(apiErr.StatusCode)
		}
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			pe.Kind = llm.ErrorRateLimit
			if apiErr.Response != nil {
				pe.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
		case http.StatusUnauthorized, http.StatusForbidden:
			pe.Kind = llm.ErrorAuth
		case http.StatusRequestTimeout:
			pe.Kind = llm.ErrorTimeout
		}
		return pe
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.ProviderError{Kind: llm.ErrorTimeout, Message: "request timed out", Err: err}
	}
	return &llm.ProviderError{Kind: llm.ErrorTransport, Message: fmt.Sprint(err), Err: err}
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}
