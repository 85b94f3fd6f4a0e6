package openai

import (
	"net/http"
	"os"
	"time"
)

const (
	defaultModel      = "gpt-4o-mini"
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = 500 * time.Millisecond
)

// Config for the OpenAI client.
type Config struct {
	APIKey      string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL     string        // optional, e.g. a compatible gateway or a test server
	Model       string        // defaults to gpt-4o-mini, env OPENAI_MODEL
	Temperature float64       // 0..2
	Timeout     time.Duration // per attempt
	MaxRetries  int           // retries after the first attempt for transient failures
	RetryDelay  time.Duration // base backoff delay
	System      string        // optional system message
	HTTPClient  *http.Client  // optional (tests)
}

func (c Config) withDefaults() Config {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Model == "" {
		c.Model = os.Getenv("OPENAI_MODEL")
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.System == "" {
		c.System = "You extract structured data from documents and reply with a single JSON object."
	}
	return c
}
