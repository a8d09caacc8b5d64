// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package knowledge

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sigil-dev/kgraph/internal/maintenance"
	"github.com/sigil-dev/kgraph/internal/store"
)

// Maintenance operations assume no concurrent writers.

func (g *Graph) CheckConsistency(ctx context.Context, repair bool) (*maintenance.Report, error) {
	return traced(ctx, g, "knowledge.CheckConsistency",
		[]attribute.KeyValue{attribute.Bool("kgraph.repair", repair)},
		func(ctx context.Context) (*maintenance.Report, error) { return g.maint.CheckConsistency(ctx, repair) })
}

func (g *Graph) FindOrphans(ctx context.Context, olderThan time.Duration) ([]*store.Entity, error) {
	return traced(ctx, g, "knowledge.FindOrphans",
		[]attribute.KeyValue{attribute.String("kgraph.older_than", olderThan.String())},
		func(ctx context.Context) ([]*store.Entity, error) { return g.maint.FindOrphans(ctx, olderThan) })
}

func (g *Graph) PruneOrphans(ctx context.Context, ids []int64) ([]int64, error) {
	return traced(ctx, g, "knowledge.PruneOrphans",
		[]attribute.KeyValue{attribute.Int("kgraph.requested", len(ids))},
		func(ctx context.Context) ([]int64, error) { return g.maint.PruneOrphans(ctx, ids) })
}

func (g *Graph) Backup(ctx context.Context, path string) (*maintenance.BackupInfo, error) {
	return traced(ctx, g, "knowledge.Backup", nil,
		func(ctx context.Context) (*maintenance.BackupInfo, error) { return g.maint.Backup(ctx, path) })
}

func (g *Graph) Restore(ctx context.Context, path string) (*maintenance.RestoreInfo, error) {
	return traced(ctx, g, "knowledge.Restore", nil,
		func(ctx context.Context) (*maintenance.RestoreInfo, error) { return g.maint.Restore(ctx, path) })
}

func (g *Graph) Stats(ctx context.Context) (*store.Stats, error) {
	return traced(ctx, g, "knowledge.Stats", nil, g.maint.Stats)
}

func (g *Graph) Clear(ctx context.Context) (store.Counts, error) {
	return traced(ctx, g, "knowledge.Clear", nil, g.maint.Clear)
}

func (g *Graph) Vacuum(ctx context.Context) error {
	_, err := traced(ctx, g, "knowledge.Vacuum", nil,
		func(ctx context.Context) (struct{}, error) { return struct{}{}, g.maint.Vacuum(ctx) })
	return err
}
