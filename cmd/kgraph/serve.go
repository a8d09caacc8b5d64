// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/kgraph/internal/server"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

func (c *cli) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the knowledge graph over HTTP",
		Long:  "Open the store, cache and embedder from configuration and serve the HTTP API until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.v.BindPFlag("networking.listen", cmd.Flags().Lookup("listen")); err != nil {
				return kgerr.Errorf(kgerr.CodeCLISetupFailure, "binding listen flag: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.withGraph(cmd, func(_ context.Context, rt *runtime) error {
				return serve(ctx, rt)
			})
		},
	}
	cmd.Flags().String("listen", "", "override listen address (host:port)")
	return cmd
}

func serve(ctx context.Context, rt *runtime) error {
	srv, err := server.New(server.Config{
		ListenAddr:  rt.cfg.Networking.Listen,
		CORSOrigins: rt.cfg.Networking.CORSOrigins,
		BackupDir:   rt.cfg.Maintenance.BackupDir,
		Version:     version,
		Logger:      rt.logger.With("component", "server"),
		Gatherer:    rt.registry,
	}, rt.graph)
	if err != nil {
		return err
	}

	storeErr, cacheErr := rt.graph.Health(ctx)
	if storeErr != nil {
		return kgerr.Errorf(kgerr.CodeCLISetupFailure, "store not usable: %v", storeErr)
	}
	if cacheErr != nil {
		rt.logger.Warn("cache unreachable, serving from the store until it recovers", "error", cacheErr)
	}
	if rt.cfg.Maintenance.BackupDir == "" {
		rt.logger.Info("HTTP backup and restore disabled: maintenance.backup_dir is not set")
	}
	return srv.Start(ctx)
}
