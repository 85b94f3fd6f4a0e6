package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docminer/internal/repository"
	"github.com/joseph-ayodele/docminer/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve docminer.v1.ExtractionService over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = a.cfg.Server.GRPCAddr
			}
			unit, err := a.unit()
			if err != nil {
				return err
			}
			opts := []server.Option{
				server.WithConcurrency(a.cfg.Pipeline.Concurrency),
				server.WithChunkTimeout(a.cfg.Pipeline.ChunkTimeout),
			}
			if a.cfg.Server.StoreRuns {
				db, err := repository.Open(ctx, a.databaseConfig(), a.logger)
				if err != nil {
					return fmt.Errorf("open database: %w", err)
				}
				defer db.Close()
				if err := db.HealthCheck(ctx, a.cfg.Database.DialTimeout); err != nil {
					return fmt.Errorf("database health: %w", err)
				}
				if err := db.Migrate(ctx); err != nil {
					return err
				}
				opts = append(opts, server.WithRunStore(repository.NewRunRepository(db, a.logger)))
			}

			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			svc := server.NewExtractionService(unit, a.logger, opts...)
			a.logger.Info("docminer listening", "addr", lis.Addr().String())
			return server.NewServer(svc, a.logger, a.cfg.Server.Reflection).Serve(ctx, lis)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.grpc_addr)")
	return cmd
}
