// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package graph

import (
	"context"

	"github.com/sigil-dev/kgraph/internal/cache"
	"github.com/sigil-dev/kgraph/internal/store"
)

func (o *Operations) CreateRelation(ctx context.Context, in store.NewRelation) (*store.Relation, error) {
	r, err := o.store.CreateRelation(ctx, in)
	if err != nil {
		return nil, err
	}
	o.invalidate(ctx, cache.RelationKey(r.ID))
	return r, nil
}

func (o *Operations) GetRelation(ctx context.Context, id int64) (*store.Relation, bool, error) {
	return Cached(ctx, o, cache.RelationKey(id), func(ctx context.Context) (*store.Relation, bool, error) {
		return o.store.GetRelation(ctx, id)
	})
}

func (o *Operations) UpdateRelation(ctx context.Context, id int64, patch store.RelationPatch) (*store.Relation, error) {
	r, err := o.store.UpdateRelation(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	o.invalidate(ctx, cache.RelationKey(id))
	return r, nil
}

func (o *Operations) DeleteRelation(ctx context.Context, id int64) (bool, error) {
	deleted, err := o.store.DeleteRelation(ctx, id)
	if err != nil {
		return false, err
	}
	o.invalidate(ctx, cache.RelationKey(id))
	return deleted, nil
}

type relationListParams struct {
	EntityID  int64           `json:"entity_id"`
	Direction store.Direction `json:"direction"`
	Type      string          `json:"type"`
}

// ListRelations returns the relations touching entityID. Results are cached
// with search results since any relation write can change them.
func (o *Operations) ListRelations(ctx context.Context, entityID int64, filter store.RelationFilter) ([]*store.Relation, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if filter.Direction == "" {
		filter.Direction = store.DirectionBoth
	}
	key := cache.SearchKey("relations", relationListParams{
		EntityID:  entityID,
		Direction: filter.Direction,
		Type:      filter.Type,
	})
	rels, _, err := Cached(ctx, o, key, func(ctx context.Context) ([]*store.Relation, bool, error) {
		rels, err := o.store.ListRelations(ctx, entityID, filter)
		return rels, err == nil, err
	})
	return rels, err
}
