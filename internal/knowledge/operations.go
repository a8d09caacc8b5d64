// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package knowledge

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sigil-dev/kgraph/internal/store"
)

func (g *Graph) CreateEntity(ctx context.Context, in store.NewEntity) (*store.Entity, error) {
	return traced(ctx, g, "knowledge.CreateEntity",
		[]attribute.KeyValue{attribute.String("kgraph.entity.type", in.Type)},
		func(ctx context.Context) (*store.Entity, error) { return g.ops.CreateEntity(ctx, in) })
}

func (g *Graph) GetEntity(ctx context.Context, id int64) (*store.Entity, bool, error) {
	return tracedFind(ctx, g, "knowledge.GetEntity", idAttr("kgraph.entity.id", id),
		func(ctx context.Context) (*store.Entity, bool, error) { return g.ops.GetEntity(ctx, id) })
}

func (g *Graph) UpdateEntity(ctx context.Context, id int64, patch store.EntityPatch) (*store.Entity, error) {
	return traced(ctx, g, "knowledge.UpdateEntity", idAttr("kgraph.entity.id", id),
		func(ctx context.Context) (*store.Entity, error) { return g.ops.UpdateEntity(ctx, id, patch) })
}

// DeleteEntity removes the entity with its relations and observations.
// Deleting an absent entity reports Deleted=false and no error.
func (g *Graph) DeleteEntity(ctx context.Context, id int64) (store.DeleteResult, error) {
	return traced(ctx, g, "knowledge.DeleteEntity", idAttr("kgraph.entity.id", id),
		func(ctx context.Context) (store.DeleteResult, error) { return g.ops.DeleteEntity(ctx, id) })
}

func (g *Graph) CreateRelation(ctx context.Context, in store.NewRelation) (*store.Relation, error) {
	return traced(ctx, g, "knowledge.CreateRelation",
		[]attribute.KeyValue{
			attribute.Int64("kgraph.relation.source_id", in.SourceID),
			attribute.Int64("kgraph.relation.target_id", in.TargetID),
			attribute.String("kgraph.relation.type", in.Type),
		},
		func(ctx context.Context) (*store.Relation, error) { return g.ops.CreateRelation(ctx, in) })
}

func (g *Graph) GetRelation(ctx context.Context, id int64) (*store.Relation, bool, error) {
	return tracedFind(ctx, g, "knowledge.GetRelation", idAttr("kgraph.relation.id", id),
		func(ctx context.Context) (*store.Relation, bool, error) { return g.ops.GetRelation(ctx, id) })
}

func (g *Graph) UpdateRelation(ctx context.Context, id int64, patch store.RelationPatch) (*store.Relation, error) {
	return traced(ctx, g, "knowledge.UpdateRelation", idAttr("kgraph.relation.id", id),
		func(ctx context.Context) (*store.Relation, error) { return g.ops.UpdateRelation(ctx, id, patch) })
}

func (g *Graph) DeleteRelation(ctx context.Context, id int64) (bool, error) {
	return traced(ctx, g, "knowledge.DeleteRelation", idAttr("kgraph.relation.id", id),
		func(ctx context.Context) (bool, error) { return g.ops.DeleteRelation(ctx, id) })
}

func (g *Graph) ListRelations(ctx context.Context, entityID int64, filter store.RelationFilter) ([]*store.Relation, error) {
	return traced(ctx, g, "knowledge.ListRelations",
		[]attribute.KeyValue{
			attribute.Int64("kgraph.entity.id", entityID),
			attribute.String("kgraph.relation.direction", string(filter.Direction)),
		},
		func(ctx context.Context) ([]*store.Relation, error) {
			return g.ops.ListRelations(ctx, entityID, filter)
		})
}

func (g *Graph) CreateObservation(ctx context.Context, in store.NewObservation) (*store.Observation, error) {
	return traced(ctx, g, "knowledge.CreateObservation", idAttr("kgraph.entity.id", in.EntityID),
		func(ctx context.Context) (*store.Observation, error) { return g.ops.CreateObservation(ctx, in) })
}

func (g *Graph) GetObservation(ctx context.Context, id int64) (*store.Observation, bool, error) {
	return tracedFind(ctx, g, "knowledge.GetObservation", idAttr("kgraph.observation.id", id),
		func(ctx context.Context) (*store.Observation, bool, error) { return g.ops.GetObservation(ctx, id) })
}

func (g *Graph) UpdateObservation(ctx context.Context, id int64, patch store.ObservationPatch) (*store.Observation, error) {
	return traced(ctx, g, "knowledge.UpdateObservation", idAttr("kgraph.observation.id", id),
		func(ctx context.Context) (*store.Observation, error) { return g.ops.UpdateObservation(ctx, id, patch) })
}

func (g *Graph) DeleteObservation(ctx context.Context, id int64) (bool, error) {
	return traced(ctx, g, "knowledge.DeleteObservation", idAttr("kgraph.observation.id", id),
		func(ctx context.Context) (bool, error) { return g.ops.DeleteObservation(ctx, id) })
}

func (g *Graph) ListObservations(ctx context.Context, entityID int64, limit int) ([]*store.Observation, error) {
	return traced(ctx, g, "knowledge.ListObservations", idAttr("kgraph.entity.id", entityID),
		func(ctx context.Context) ([]*store.Observation, error) {
			return g.ops.ListObservations(ctx, entityID, limit)
		})
}
