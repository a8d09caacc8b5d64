// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package knowledge

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sigil-dev/kgraph/internal/search"
	"github.com/sigil-dev/kgraph/internal/store"
)

func (g *Graph) FindByID(ctx context.Context, id int64) (*store.Entity, bool, error) {
	return tracedFind(ctx, g, "knowledge.FindByID", idAttr("kgraph.entity.id", id),
		func(ctx context.Context) (*store.Entity, bool, error) { return g.search.ByID(ctx, id) })
}

func (g *Graph) FindByNameAndType(ctx context.Context, name, typ string) ([]*store.Entity, error) {
	return traced(ctx, g, "knowledge.FindByNameAndType",
		[]attribute.KeyValue{attribute.String("kgraph.entity.type", typ)},
		func(ctx context.Context) ([]*store.Entity, error) { return g.search.ByNameAndType(ctx, name, typ) })
}

func (g *Graph) FindByType(ctx context.Context, typ string, offset, limit int) ([]*store.Entity, error) {
	return traced(ctx, g, "knowledge.FindByType",
		[]attribute.KeyValue{attribute.String("kgraph.entity.type", typ)},
		func(ctx context.Context) ([]*store.Entity, error) { return g.search.ByType(ctx, typ, offset, limit) })
}

// FindByName ranks entities whose names match q.Text.
func (g *Graph) FindByName(ctx context.Context, q search.NameQuery) ([]search.NameMatch, error) {
	return traced(ctx, g, "knowledge.FindByName", nil,
		func(ctx context.Context) ([]search.NameMatch, error) { return g.search.ByName(ctx, q) })
}

func (g *Graph) Neighbors(ctx context.Context, startID int64, opts search.TraverseOptions) (*search.Subgraph, error) {
	return traced(ctx, g, "knowledge.Neighbors",
		[]attribute.KeyValue{
			attribute.Int64("kgraph.entity.id", startID),
			attribute.Int("kgraph.search.depth", opts.Depth),
		},
		func(ctx context.Context) (*search.Subgraph, error) { return g.search.Neighbors(ctx, startID, opts) })
}

// FindPath returns a shortest path between two entities, found=false when
// none exists within the depth bound.
func (g *Graph) FindPath(ctx context.Context, fromID, toID int64, opts search.TraverseOptions) (*search.Path, bool, error) {
	return tracedFind(ctx, g, "knowledge.FindPath",
		[]attribute.KeyValue{
			attribute.Int64("kgraph.path.from", fromID),
			attribute.Int64("kgraph.path.to", toID),
		},
		func(ctx context.Context) (*search.Path, bool, error) {
			return g.search.FindPath(ctx, fromID, toID, opts)
		})
}

func (g *Graph) Similar(ctx context.Context, text string, opts search.SimilarOptions) ([]store.ScoredEntity, error) {
	return traced(ctx, g, "knowledge.Similar",
		[]attribute.KeyValue{attribute.Int("kgraph.search.k", opts.K)},
		func(ctx context.Context) ([]store.ScoredEntity, error) { return g.search.Similar(ctx, text, opts) })
}

func (g *Graph) SimilarToVector(ctx context.Context, vec []float32, opts search.SimilarOptions) ([]store.ScoredEntity, error) {
	return traced(ctx, g, "knowledge.SimilarToVector",
		[]attribute.KeyValue{attribute.Int("kgraph.search.k", opts.K)},
		func(ctx context.Context) ([]store.ScoredEntity, error) {
			return g.search.SimilarToVector(ctx, vec, opts)
		})
}
