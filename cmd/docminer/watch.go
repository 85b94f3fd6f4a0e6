package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docminer/internal/ingest"
	"github.com/joseph-ayodele/docminer/internal/repository"
	"github.com/joseph-ayodele/docminer/internal/result"
	"github.com/joseph-ayodele/docminer/internal/schema"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		schemaPath  string
		outDir      string
		exts        []string
		initialScan bool
		debounce    time.Duration
		once        bool
	)
	cmd := &cobra.Command{
		Use:   "watch --schema schema.yaml --out dir roots...",
		Short: "Extract every document that appears under the given directories",
		Long: `Watch directories recursively and extract each created or modified document,
writing <out>/<name>.json per document. With --once the directories are scanned a
single time and the command exits.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, roots []string) error {
			ctx := cmd.Context()
			sc, err := schema.LoadFile(schemaPath)
			if err != nil {
				return err
			}
			unit, err := a.unit()
			if err != nil {
				return err
			}
			sinks := []ingest.Sink{ingest.JSONSink{Dir: outDir}}
			if dsn := a.storeDSN(); dsn != "" {
				cfg := a.databaseConfig()
				db, err := repository.Open(ctx, cfg, a.logger)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := db.Migrate(ctx); err != nil {
					return err
				}
				runs := repository.NewRunRepository(db, a.logger)
				sinks = append(sinks, ingest.SinkFunc(func(ctx context.Context, source string, res *result.ExtractionResult) error {
					now := time.Now()
					_, err := runs.SaveRun(ctx, repository.RunInput{Result: res, Sources: []string{source}, StartedAt: now, FinishedAt: now})
					return err
				}))
			}
			proc := ingest.NewProcessor(sc, a.loader(), a.orchestrator(unit), a.logger, sinks...)
			allowed := ingest.ExtSet(exts)

			var st ingest.Stats
			if once {
				paths := make(chan string)
				go func() {
					defer close(paths)
					for _, root := range roots {
						found, _, err := ingest.ScanDirectory(root, allowed, true)
						if err != nil {
							a.logger.Error("watch.scan.error", "root", root, "error", err)
							continue
						}
						for _, p := range found {
							select {
							case paths <- p:
							case <-ctx.Done():
								return
							}
						}
					}
				}()
				st = proc.Run(ctx, paths)
			} else {
				events, _, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
					Roots:       roots,
					AllowedExts: allowed,
					InitialScan: initialScan,
					Debounce:    debounce,
					Logger:      a.logger,
				})
				if err != nil {
					return err
				}
				st = proc.Run(ctx, events)
			}
			a.logger.Info("watch.done", "processed", st.Processed, "valid", st.Valid, "failed", st.Failed)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&schemaPath, "schema", "s", "", "schema declaration file (YAML or JSON)")
	fl.StringVarP(&outDir, "out", "o", "results", "directory for per document JSON reports")
	fl.StringSliceVar(&exts, "ext", nil, "only these extensions (default every supported type)")
	fl.BoolVar(&initialScan, "initial-scan", true, "process documents already present")
	fl.DurationVar(&debounce, "debounce", 500*time.Millisecond, "coalesce bursts of file events")
	fl.BoolVar(&once, "once", false, "scan once and exit instead of watching")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}
