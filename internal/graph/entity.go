// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package graph

import (
	"context"
	"log/slog"

	"github.com/sigil-dev/kgraph/internal/cache"
	"github.com/sigil-dev/kgraph/internal/store"
)

func (o *Operations) CreateEntity(ctx context.Context, in store.NewEntity) (*store.Entity, error) {
	if in.Embedding == nil && in.Name != "" {
		in.Embedding = o.embedName(ctx, in.Name)
	}
	e, err := o.store.CreateEntity(ctx, in)
	if err != nil {
		return nil, err
	}
	o.invalidate(ctx, cache.EntityKey(e.ID))
	return e, nil
}

func (o *Operations) GetEntity(ctx context.Context, id int64) (*store.Entity, bool, error) {
	return Cached(ctx, o, cache.EntityKey(id), func(ctx context.Context) (*store.Entity, bool, error) {
		return o.store.GetEntity(ctx, id)
	})
}

// UpdateEntity applies patch. A renamed entity is re-embedded unless the
// patch carries its own embedding instructions.
func (o *Operations) UpdateEntity(ctx context.Context, id int64, patch store.EntityPatch) (*store.Entity, error) {
	if patch.Name != nil && *patch.Name != "" && patch.Embedding == nil && !patch.ClearEmbedding {
		patch.Embedding = o.embedName(ctx, *patch.Name)
	}
	e, err := o.store.UpdateEntity(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	o.invalidate(ctx, cache.EntityKey(id))
	return e, nil
}

// DeleteEntity removes the entity and its cascade, then invalidates every
// key the cascade touched.
func (o *Operations) DeleteEntity(ctx context.Context, id int64) (store.DeleteResult, error) {
	res, err := o.store.DeleteEntity(ctx, id)
	if err != nil {
		return store.DeleteResult{}, err
	}
	keys := make([]string, 0, 1+len(res.RelationIDs)+len(res.ObservationIDs))
	keys = append(keys, cache.EntityKey(id))
	keys = append(keys, cache.RelationKeys(res.RelationIDs)...)
	keys = append(keys, cache.ObservationKeys(res.ObservationIDs)...)
	o.invalidate(ctx, keys...)
	return res, nil
}

func (o *Operations) embedName(ctx context.Context, name string) []float32 {
	if o.embedder == nil {
		return nil
	}
	v, err := o.embedder.Embed(ctx, name)
	if err != nil {
		o.logger.WarnContext(ctx, "entity embedding failed, storing without embedding",
			slog.String("name", name), slog.Any("error", err))
		return nil
	}
	return v
}
