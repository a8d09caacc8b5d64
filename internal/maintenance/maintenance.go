// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package maintenance runs whole-store operations directly against the
// store and then drops the entire cache. Callers must ensure no concurrent
// writes while a maintenance operation runs.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/sigil-dev/kgraph/internal/cache"
	"github.com/sigil-dev/kgraph/internal/store"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

// Engine runs maintenance operations.
type Engine struct {
	store  store.GraphStore
	cache  *cache.Cache
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(st store.GraphStore, c *cache.Cache, opts ...Option) *Engine {
	if c == nil {
		c = cache.Disabled()
	}
	e := &Engine{store: st, cache: c, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Report is the outcome of a consistency check.
type Report struct {
	DanglingRelations    []int64 `json:"dangling_relations"`
	DanglingObservations []int64 `json:"dangling_observations"`
	Repaired             bool    `json:"repaired"`
}

// Consistent reports whether nothing dangled.
func (r *Report) Consistent() bool {
	return len(r.DanglingRelations) == 0 && len(r.DanglingObservations) == 0
}

// CheckConsistency finds relations and observations pointing at missing
// entities. With repair set they are deleted in one transaction.
func (e *Engine) CheckConsistency(ctx context.Context, repair bool) (*Report, error) {
	var (
		d   store.Dangling
		err error
	)
	if repair {
		d, err = e.store.RemoveDangling(ctx)
	} else {
		d, err = e.store.FindDangling(ctx)
	}
	if err != nil {
		return nil, err
	}

	rep := &Report{
		DanglingRelations:    nonNil(d.RelationIDs),
		DanglingObservations: nonNil(d.ObservationIDs),
		Repaired:             repair && !d.Empty(),
	}
	if rep.Repaired {
		e.cache.InvalidateAll(ctx)
		e.logger.InfoContext(ctx, "removed dangling rows",
			slog.Int("relations", len(rep.DanglingRelations)),
			slog.Int("observations", len(rep.DanglingObservations)),
		)
	} else if !rep.Consistent() {
		e.logger.WarnContext(ctx, "store has dangling rows",
			slog.Int("relations", len(rep.DanglingRelations)),
			slog.Int("observations", len(rep.DanglingObservations)),
		)
	}
	return rep, nil
}

// FindOrphans lists entities with no relations and no observations that
// are older than olderThan. Nothing is deleted.
func (e *Engine) FindOrphans(ctx context.Context, olderThan time.Duration) ([]*store.Entity, error) {
	if olderThan < 0 {
		return nil, kgerr.Errorf(kgerr.CodeStoreInvalidInput, "orphan age must be non-negative, got %s", olderThan)
	}
	return e.store.OrphanEntities(ctx, e.now().Add(-olderThan))
}

// PruneOrphans deletes the given entities if they are still orphans and
// returns the IDs actually deleted.
func (e *Engine) PruneOrphans(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return []int64{}, nil
	}
	deleted, err := e.store.DeleteOrphans(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(deleted) > 0 {
		e.cache.InvalidateAll(ctx)
	}
	e.logger.InfoContext(ctx, "pruned orphan entities",
		slog.Int("requested", len(ids)), slog.Int("deleted", len(deleted)))
	return nonNil(deleted), nil
}

// Stats describes the store contents.
func (e *Engine) Stats(ctx context.Context) (*store.Stats, error) {
	return e.store.Stats(ctx)
}

// Clear deletes everything in one transaction.
func (e *Engine) Clear(ctx context.Context) (store.Counts, error) {
	counts, err := e.store.Clear(ctx)
	if err != nil {
		return store.Counts{}, err
	}
	e.cache.InvalidateAll(ctx)
	e.logger.InfoContext(ctx, "cleared knowledge graph",
		slog.Int64("entities", counts.Entities),
		slog.Int64("relations", counts.Relations),
		slog.Int64("observations", counts.Observations),
	)
	return counts, nil
}

// Vacuum compacts the underlying database file.
func (e *Engine) Vacuum(ctx context.Context) error {
	return e.store.Vacuum(ctx)
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
