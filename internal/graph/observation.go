// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package graph

import (
	"context"

	"github.com/sigil-dev/kgraph/internal/cache"
	"github.com/sigil-dev/kgraph/internal/store"
)

func (o *Operations) CreateObservation(ctx context.Context, in store.NewObservation) (*store.Observation, error) {
	obs, err := o.store.CreateObservation(ctx, in)
	if err != nil {
		return nil, err
	}
	o.invalidate(ctx, cache.ObservationKey(obs.ID))
	return obs, nil
}

func (o *Operations) GetObservation(ctx context.Context, id int64) (*store.Observation, bool, error) {
	return Cached(ctx, o, cache.ObservationKey(id), func(ctx context.Context) (*store.Observation, bool, error) {
		return o.store.GetObservation(ctx, id)
	})
}

func (o *Operations) UpdateObservation(ctx context.Context, id int64, patch store.ObservationPatch) (*store.Observation, error) {
	obs, err := o.store.UpdateObservation(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	o.invalidate(ctx, cache.ObservationKey(id))
	return obs, nil
}

func (o *Operations) DeleteObservation(ctx context.Context, id int64) (bool, error) {
	deleted, err := o.store.DeleteObservation(ctx, id)
	if err != nil {
		return false, err
	}
	o.invalidate(ctx, cache.ObservationKey(id))
	return deleted, nil
}

// ListObservations returns up to limit observations of entityID in
// creation order.
func (o *Operations) ListObservations(ctx context.Context, entityID int64, limit int) ([]*store.Observation, error) {
	key := cache.SearchKey("observations", map[string]int64{"entity_id": entityID, "limit": int64(limit)})
	obs, _, err := Cached(ctx, o, key, func(ctx context.Context) ([]*store.Observation, bool, error) {
		obs, err := o.store.ListObservations(ctx, entityID, limit)
		return obs, err == nil, err
	})
	return obs, err
}
