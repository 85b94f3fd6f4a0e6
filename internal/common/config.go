package common

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override: llm.api_key is DOCMINER_LLM_API_KEY.
const EnvPrefix = "DOCMINER"

// Config holds all application configuration
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Document DocumentConfig `mapstructure:"document"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Model       string        `mapstructure:"model" validate:"required"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url" validate:"omitempty,url"`
	Temperature float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
}

// PipelineConfig holds extraction fan-out configuration
type PipelineConfig struct {
	Concurrency  int           `mapstructure:"concurrency" validate:"gte=1,lte=256"`
	ChunkTimeout time.Duration `mapstructure:"chunk_timeout" validate:"gte=0"`
}

// DocumentConfig holds document loading configuration
type DocumentConfig struct {
	ChunkSize        int    `mapstructure:"chunk_size" validate:"gte=1"`
	MaxWorkers       int    `mapstructure:"max_workers" validate:"gte=1,lte=64"`
	HiResPDF         bool   `mapstructure:"hi_res_pdf"`
	RemoveHeaders    bool   `mapstructure:"remove_headers"`
	RemoveReferences bool   `mapstructure:"remove_references"`
	OCRForImages     bool   `mapstructure:"ocr_for_images"`
	OCRLanguage      string `mapstructure:"ocr_language"`
	PDFToText        string `mapstructure:"pdftotext"`
	Tesseract        string `mapstructure:"tesseract"`
	HEICConverter    string `mapstructure:"heic_converter" validate:"omitempty,oneof=heif-convert magick sips"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr   string `mapstructure:"grpc_addr" validate:"required"`
	StoreRuns  bool   `mapstructure:"store_runs"`
	Reflection bool   `mapstructure:"reflection"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `mapstructure:"dsn"`
	MaxConns         int32         `mapstructure:"max_conns" validate:"gte=0"`
	MinConns         int32         `mapstructure:"min_conns" validate:"gte=0,ltefield=MaxConns"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `mapstructure:"max_conn_idle_time"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", 500*time.Millisecond)

	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.chunk_timeout", time.Duration(0))

	v.SetDefault("document.chunk_size", 500)
	v.SetDefault("document.max_workers", 4)
	v.SetDefault("document.hi_res_pdf", false)
	v.SetDefault("document.remove_headers", false)
	v.SetDefault("document.remove_references", false)
	v.SetDefault("document.ocr_for_images", false)
	v.SetDefault("document.ocr_language", "eng")
	v.SetDefault("document.pdftotext", "pdftotext")
	v.SetDefault("document.tesseract", "tesseract")
	v.SetDefault("document.heic_converter", "magick")

	v.SetDefault("server.grpc_addr", ":8080")
	v.SetDefault("server.store_runs", false)
	v.SetDefault("server.reflection", true)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("database.dial_timeout", 3*time.Second)
	v.SetDefault("database.statement_timeout", time.Duration(0))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig reads defaults, the optional YAML file at path and the environment, in
// increasing precedence. The unprefixed OPENAI_API_KEY, OPENAI_MODEL, DB_URL and GRPC_ADDR
// variables are honoured when the prefixed ones are unset.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, fallback := range map[string]string{
		"llm.api_key":      "OPENAI_API_KEY",
		"llm.model":        "OPENAI_MODEL",
		"llm.base_url":     "OPENAI_BASE_URL",
		"database.dsn":     "DB_URL",
		"server.grpc_addr": "GRPC_ADDR",
	} {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, fallback); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "bind env "+key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("read config file %s", path), err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NewAppError("CONFIG_ERROR", "unmarshal config", err)
	}
	return &cfg, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if err := ValidateStruct(c); err != nil {
		return NewAppError("CONFIG_ERROR", "invalid configuration", err)
	}
	return nil
}

// RequireAPIKey fails when no LLM credentials are configured.
func (c *Config) RequireAPIKey() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY (or DOCMINER_LLM_API_KEY) is required", ErrInvalidInput)
	}
	return nil
}
