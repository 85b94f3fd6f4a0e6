package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docminer/internal/export"
	"github.com/joseph-ayodele/docminer/internal/repository"
	"github.com/joseph-ayodele/docminer/internal/result"
	"github.com/joseph-ayodele/docminer/internal/schema"
)

type extractFlags struct {
	schemaPath     string
	concurrency    int
	chunkTimeout   time.Duration
	chunkSize      int
	out            string
	xlsx           string
	csv            string
	store          string
	includePartial bool
	errorsOut      bool
}

func newExtractCmd(a *app) *cobra.Command {
	var f extractFlags
	cmd := &cobra.Command{
		Use:   "extract --schema schema.yaml [flags] sources...",
		Short: "Extract records from files or URLs",
		Long: `Load every source, extract one record per chunk and print the result in the
schema's output format (json, table as CSV, or records). Exits with status 2 when
the result is not valid.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.extract(cmd.Context(), f, args)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.schemaPath, "schema", "s", "", "schema declaration file (YAML or JSON)")
	fl.IntVarP(&f.concurrency, "concurrency", "c", 0, "in-flight model calls (default pipeline.concurrency)")
	fl.DurationVar(&f.chunkTimeout, "chunk-timeout", 0, "per chunk model call timeout")
	fl.IntVar(&f.chunkSize, "chunk-size", 0, "words per chunk (default document.chunk_size)")
	fl.StringVarP(&f.out, "out", "o", "", "write the rendered result to this file instead of stdout")
	fl.StringVar(&f.xlsx, "xlsx", "", "also write an XLSX workbook")
	fl.StringVar(&f.csv, "csv", "", "also write the table as CSV")
	fl.StringVar(&f.store, "store", "", "persist the run to this database (postgres:// or sqlite://)")
	fl.BoolVar(&f.includePartial, "include-partial", false, "include partial records in table outputs")
	fl.BoolVar(&f.errorsOut, "errors", false, "print validation errors to stderr")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func (a *app) extract(ctx context.Context, f extractFlags, sources []string) error {
	sc, err := schema.LoadFile(f.schemaPath)
	if err != nil {
		return err
	}
	if f.concurrency > 0 {
		a.cfg.Pipeline.Concurrency = f.concurrency
	}
	a.cfg.Pipeline.ChunkTimeout = durationFlag(f.chunkTimeout, a.cfg.Pipeline.ChunkTimeout)
	if f.chunkSize > 0 {
		a.cfg.Document.ChunkSize = f.chunkSize
	}
	unit, err := a.unit()
	if err != nil {
		return err
	}

	started := time.Now()
	outcomes, err := a.orchestrator(unit).ExtractDocuments(ctx, sc, a.loader(), sources...)
	if err != nil {
		return err
	}
	res := result.Aggregate(sc, outcomes)

	if err := a.writeRendered(res, f); err != nil {
		return err
	}
	if f.errorsOut {
		for _, e := range res.ErrorList() {
			fmt.Fprintf(a.stderr, "chunk %d: %s %s: %s\n", e.ChunkIndex, e.Field, e.Kind, e.Message)
		}
	}
	tableOpts := result.TableOptions{IncludePartial: f.includePartial}
	if f.csv != "" {
		if err := writeFile(f.csv, func(w io.Writer) error {
			return export.WriteCSV(w, res.ToTable(tableOpts))
		}); err != nil {
			return err
		}
	}
	if f.xlsx != "" {
		b, err := export.NewService(a.logger).WriteXLSX(res, export.XLSXOptions{IncludePartial: f.includePartial})
		if err != nil {
			return err
		}
		if err := os.WriteFile(f.xlsx, b, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.xlsx, err)
		}
	}
	if dsn := firstNonEmpty(f.store, a.storeDSN()); dsn != "" {
		if err := a.storeRun(ctx, dsn, repository.RunInput{
			Result: res, Sources: sources, StartedAt: started, FinishedAt: time.Now(),
		}); err != nil {
			return err
		}
	}

	sum := res.Summary()
	a.logger.Info("extract.done", "chunks", sum.Total, "valid", sum.Valid, "partial", sum.Partial,
		"failed", sum.Failed, "elapsed_ms", time.Since(started).Milliseconds())
	if !res.IsValid() {
		return errNotValid
	}
	return nil
}

// storeDSN is the configured database, used only when runs are to be stored.
func (a *app) storeDSN() string {
	if a.cfg.Server.StoreRuns {
		return a.cfg.Database.DSN
	}
	return ""
}

func (a *app) writeRendered(res *result.ExtractionResult, f extractFlags) error {
	rendered, err := res.Render()
	if err != nil {
		return err
	}
	write := func(w io.Writer) error {
		switch v := rendered.(type) {
		case []byte:
			var buf bytes.Buffer
			if err := json.Indent(&buf, v, "", "  "); err != nil {
				return err
			}
			buf.WriteByte('\n')
			_, err := buf.WriteTo(w)
			return err
		case result.Table:
			if f.includePartial {
				v = res.ToTable(result.TableOptions{IncludePartial: true})
			}
			return export.WriteCSV(w, v)
		default:
			recs := res.ToRecords()
			for _, rec := range recs {
				for k, val := range rec {
					rec[k] = result.JSONValue(val)
				}
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(recs)
		}
	}
	if f.out == "" {
		return write(a.stdout)
	}
	return writeFile(f.out, write)
}

func (a *app) storeRun(ctx context.Context, dsn string, in repository.RunInput) error {
	dbCfg := a.databaseConfig()
	dbCfg.DSN = dsn
	db, err := repository.Open(ctx, dbCfg, a.logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	id, err := repository.NewRunRepository(db, a.logger).SaveRun(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "run %s stored\n", id)
	return nil
}

func (a *app) databaseConfig() repository.Config {
	d := a.cfg.Database
	return repository.Config{
		DSN:              d.DSN,
		MaxConns:         d.MaxConns,
		MinConns:         d.MinConns,
		MaxConnLifetime:  d.MaxConnLifetime,
		MaxConnIdleTime:  d.MaxConnIdleTime,
		DialTimeout:      d.DialTimeout,
		StatementTimeout: d.StatementTimeout,
	}
}

func writeFile(path string, fn func(io.Writer) error) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(fh); err != nil {
		_ = fh.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return fh.Close()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
