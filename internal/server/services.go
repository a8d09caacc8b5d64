// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"time"

	"github.com/sigil-dev/kgraph/internal/maintenance"
	"github.com/sigil-dev/kgraph/internal/search"
	"github.com/sigil-dev/kgraph/internal/store"
	"github.com/sigil-dev/kgraph/pkg/health"
)

// Graph is the knowledge graph as the routes use it. *knowledge.Graph
// implements it.
type Graph interface {
	CreateEntity(ctx context.Context, in store.NewEntity) (*store.Entity, error)
	GetEntity(ctx context.Context, id int64) (*store.Entity, bool, error)
	UpdateEntity(ctx context.Context, id int64, patch store.EntityPatch) (*store.Entity, error)
	DeleteEntity(ctx context.Context, id int64) (store.DeleteResult, error)

	CreateRelation(ctx context.Context, in store.NewRelation) (*store.Relation, error)
	GetRelation(ctx context.Context, id int64) (*store.Relation, bool, error)
	UpdateRelation(ctx context.Context, id int64, patch store.RelationPatch) (*store.Relation, error)
	DeleteRelation(ctx context.Context, id int64) (bool, error)
	ListRelations(ctx context.Context, entityID int64, filter store.RelationFilter) ([]*store.Relation, error)

	CreateObservation(ctx context.Context, in store.NewObservation) (*store.Observation, error)
	GetObservation(ctx context.Context, id int64) (*store.Observation, bool, error)
	UpdateObservation(ctx context.Context, id int64, patch store.ObservationPatch) (*store.Observation, error)
	DeleteObservation(ctx context.Context, id int64) (bool, error)
	ListObservations(ctx context.Context, entityID int64, limit int) ([]*store.Observation, error)

	FindByNameAndType(ctx context.Context, name, typ string) ([]*store.Entity, error)
	FindByType(ctx context.Context, typ string, offset, limit int) ([]*store.Entity, error)
	FindByName(ctx context.Context, q search.NameQuery) ([]search.NameMatch, error)
	Neighbors(ctx context.Context, startID int64, opts search.TraverseOptions) (*search.Subgraph, error)
	FindPath(ctx context.Context, fromID, toID int64, opts search.TraverseOptions) (*search.Path, bool, error)
	Similar(ctx context.Context, text string, opts search.SimilarOptions) ([]store.ScoredEntity, error)
	SimilarToVector(ctx context.Context, vec []float32, opts search.SimilarOptions) ([]store.ScoredEntity, error)

	CheckConsistency(ctx context.Context, repair bool) (*maintenance.Report, error)
	FindOrphans(ctx context.Context, olderThan time.Duration) ([]*store.Entity, error)
	PruneOrphans(ctx context.Context, ids []int64) ([]int64, error)
	Backup(ctx context.Context, path string) (*maintenance.BackupInfo, error)
	Restore(ctx context.Context, path string) (*maintenance.RestoreInfo, error)
	Stats(ctx context.Context) (*store.Stats, error)
	Clear(ctx context.Context) (store.Counts, error)
	Vacuum(ctx context.Context) error

	Health(ctx context.Context) (storeErr, cacheErr error)
	CacheEnabled() bool
	EmbedderHealth() (health.Metrics, bool)
}
