// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"context"
	"time"
)

// EntityStore persists entities.
//
// Get methods report absence with found=false and a nil error.
// Update methods return a not-found error for absent IDs.
type EntityStore interface {
	CreateEntity(ctx context.Context, in NewEntity) (*Entity, error)
	GetEntity(ctx context.Context, id int64) (*Entity, bool, error)
	UpdateEntity(ctx context.Context, id int64, patch EntityPatch) (*Entity, error)
	// DeleteEntity removes the entity, its relations (either direction) and its
	// observations in one transaction. Deleting an absent ID is a no-op.
	DeleteEntity(ctx context.Context, id int64) (DeleteResult, error)
	FindEntities(ctx context.Context, q EntityQuery) ([]*Entity, error)
	// NearestEntities scans every embedded entity and returns the K closest,
	// ordered by distance then ID.
	NearestEntities(ctx context.Context, vector []float32, q NearestQuery) ([]ScoredEntity, error)
}

// RelationStore persists relations.
type RelationStore interface {
	CreateRelation(ctx context.Context, in NewRelation) (*Relation, error)
	GetRelation(ctx context.Context, id int64) (*Relation, bool, error)
	UpdateRelation(ctx context.Context, id int64, patch RelationPatch) (*Relation, error)
	DeleteRelation(ctx context.Context, id int64) (bool, error)
	ListRelations(ctx context.Context, entityID int64, filter RelationFilter) ([]*Relation, error)
}

// ObservationStore persists observations.
type ObservationStore interface {
	CreateObservation(ctx context.Context, in NewObservation) (*Observation, error)
	GetObservation(ctx context.Context, id int64) (*Observation, bool, error)
	UpdateObservation(ctx context.Context, id int64, patch ObservationPatch) (*Observation, error)
	DeleteObservation(ctx context.Context, id int64) (bool, error)
	ListObservations(ctx context.Context, entityID int64, limit int) ([]*Observation, error)
}

// MaintenanceStore exposes whole-store primitives. Each method is atomic.
type MaintenanceStore interface {
	FindDangling(ctx context.Context) (Dangling, error)
	// RemoveDangling finds and deletes dangling rows in one transaction.
	RemoveDangling(ctx context.Context) (Dangling, error)
	// OrphanEntities lists entities with no relations and no observations
	// created before the cutoff.
	OrphanEntities(ctx context.Context, createdBefore time.Time) ([]*Entity, error)
	// DeleteOrphans deletes those of ids that are still orphans and returns them.
	DeleteOrphans(ctx context.Context, ids []int64) ([]int64, error)
	Snapshot(ctx context.Context) (*Snapshot, error)
	// ReplaceAll swaps the store contents for the snapshot, preserving IDs.
	// On failure the prior contents are untouched.
	ReplaceAll(ctx context.Context, snap *Snapshot) error
	Stats(ctx context.Context) (*Stats, error)
	Clear(ctx context.Context) (Counts, error)
	Vacuum(ctx context.Context) error
}

// GraphStore is the complete persistence contract of the knowledge graph.
type GraphStore interface {
	EntityStore
	RelationStore
	ObservationStore
	MaintenanceStore
	Close() error
}
