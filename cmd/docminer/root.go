package main

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docminer/internal/common"
	"github.com/joseph-ayodele/docminer/internal/document"
	"github.com/joseph-ayodele/docminer/internal/extract"
	"github.com/joseph-ayodele/docminer/internal/llm"
	"github.com/joseph-ayodele/docminer/internal/llm/openai"
	"github.com/joseph-ayodele/docminer/internal/pipeline"
)

// errNotValid marks a completed extraction whose result is not valid.
var errNotValid = errors.New("extraction result is not valid")

// app carries what every command shares: configuration, logger and the model factory.
type app struct {
	cfgFile  string
	logLevel string

	stdout io.Writer
	stderr io.Writer

	// newCaller builds the model client; tests swap in a stub.
	newCaller func(cfg common.LLMConfig, logger *slog.Logger) (llm.Caller, error)

	cfg    *common.Config
	logger *slog.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, newCaller: openaiCaller}
}

func openaiCaller(cfg common.LLMConfig, logger *slog.Logger) (llm.Caller, error) {
	if cfg.APIKey == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "OPENAI_API_KEY (or DOCMINER_LLM_API_KEY) is required", common.ErrInvalidInput)
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = -1 // the client treats 0 as "use the default"
	}
	return openai.NewClient(openai.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		MaxRetries:  retries,
		RetryDelay:  cfg.RetryDelay,
	}, logger), nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "docminer",
		Short: "Schema driven structured data extraction from documents with an LLM",
		Long: `docminer loads documents, splits them into chunks, asks a language model to
fill a declared schema for every chunk and validates each answer field by field.

Every chunk yields a valid record, a partial record with field errors, or a failure;
one bad chunk never fails the batch.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level: debug, info, warn or error")

	root.AddCommand(
		newExtractCmd(a),
		newDescribeCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := common.LoadConfig(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = common.NewLogger(a.stderr, cfg.Log)
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) processingConfig() document.ProcessingConfig {
	d := a.cfg.Document
	pc := document.DefaultProcessingConfig()
	pc.ChunkSize = d.ChunkSize
	pc.MaxWorkers = d.MaxWorkers
	pc.HiResPDF = d.HiResPDF
	pc.RemoveHeaders = d.RemoveHeaders
	pc.RemoveReferences = d.RemoveReferences
	pc.OCRForImages = d.OCRForImages
	pc.OCRLanguage = d.OCRLanguage
	pc.HEICConverter = d.HEICConverter
	return pc
}

func (a *app) loader() *document.Loader {
	return document.NewLoader(a.processingConfig(), a.logger,
		document.WithBinaries(a.cfg.Document.PDFToText, a.cfg.Document.Tesseract))
}

func (a *app) unit() (*extract.Unit, error) {
	caller, err := a.newCaller(a.cfg.LLM, a.logger)
	if err != nil {
		return nil, err
	}
	return extract.NewUnit(caller, a.logger), nil
}

func (a *app) orchestrator(unit *extract.Unit) *pipeline.Orchestrator {
	return pipeline.New(unit,
		pipeline.WithConcurrency(a.cfg.Pipeline.Concurrency),
		pipeline.WithChunkTimeout(a.cfg.Pipeline.ChunkTimeout),
		pipeline.WithLogger(a.logger),
	)
}

// durationFlag applies a non zero flag value over a config value.
func durationFlag(flag, cfg time.Duration) time.Duration {
	if flag > 0 {
		return flag
	}
	return cfg
}
