// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package knowledge_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/sigil-dev/kgraph/internal/cache"
	"github.com/sigil-dev/kgraph/internal/cache/cachetest"
	"github.com/sigil-dev/kgraph/internal/embedding"
	"github.com/sigil-dev/kgraph/internal/knowledge"
	"github.com/sigil-dev/kgraph/internal/search"
	"github.com/sigil-dev/kgraph/internal/store"
	"github.com/sigil-dev/kgraph/internal/store/sqlite"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

func newGraph(t *testing.T, c *cache.Cache, mutate ...func(*knowledge.Deps)) *knowledge.Graph {
	t.Helper()
	st, err := sqlite.New(store.StorageConfig{Path: filepath.Join(t.TempDir(), "kg.db")})
	require.NoError(t, err)
	deps := knowledge.Deps{Store: st, Cache: c}
	for _, m := range mutate {
		m(&deps)
	}
	g, err := knowledge.New(deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestNewRequiresStore(t *testing.T) {
	_, err := knowledge.New(knowledge.Deps{})
	require.Error(t, err)
	assert.True(t, kgerr.IsInvalidInput(err))
}

func TestNewRejectsDepthAboveBound(t *testing.T) {
	st, err := sqlite.New(store.StorageConfig{Path: store.MemoryPath})
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	_, err = knowledge.New(knowledge.Deps{Store: st, MaxDepth: search.MaxDepth + 1})
	assert.True(t, kgerr.IsInvalidInput(err))
}

func TestDeleteCascadeScenario(t *testing.T) {
	ctx := context.Background()
	c, _ := cachetest.Local()
	g := newGraph(t, c)

	file, err := g.CreateEntity(ctx, store.NewEntity{Name: "foo.py", Type: "file"})
	require.NoError(t, err)
	fn, err := g.CreateEntity(ctx, store.NewEntity{Name: "parse", Type: "function"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), file.ID)
	assert.Equal(t, int64(2), fn.ID)

	rel, err := g.CreateRelation(ctx, store.NewRelation{SourceID: file.ID, TargetID: fn.ID, Type: "contains"})
	require.NoError(t, err)

	// Warm every read path that the delete must invalidate.
	incoming, err := g.ListRelations(ctx, fn.ID, store.RelationFilter{Direction: store.DirectionIncoming})
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	_, found, err := g.GetRelation(ctx, rel.ID)
	require.NoError(t, err)
	require.True(t, found)
	_, found, err = g.GetEntity(ctx, file.ID)
	require.NoError(t, err)
	require.True(t, found)

	res, err := g.DeleteEntity(ctx, file.ID)
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Equal(t, []int64{rel.ID}, res.RelationIDs)

	_, found, err = g.GetEntity(ctx, file.ID)
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = g.GetRelation(ctx, rel.ID)
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = g.GetEntity(ctx, fn.ID)
	require.NoError(t, err)
	assert.True(t, found)

	incoming, err = g.ListRelations(ctx, fn.ID, store.RelationFilter{Direction: store.DirectionIncoming})
	require.NoError(t, err)
	assert.Empty(t, incoming)
}

func TestFailOpenEndToEnd(t *testing.T) {
	ctx := context.Background()
	c, backend := cachetest.Failing()
	g := newGraph(t, c, func(d *knowledge.Deps) { d.Embedder = embedding.NewHash(8) })

	a, err := g.CreateEntity(ctx, store.NewEntity{Name: "router", Type: "module"})
	require.NoError(t, err)
	b, err := g.CreateEntity(ctx, store.NewEntity{Name: "handler", Type: "module"})
	require.NoError(t, err)
	_, err = g.CreateRelation(ctx, store.NewRelation{SourceID: a.ID, TargetID: b.ID, Type: "calls"})
	require.NoError(t, err)
	_, err = g.CreateObservation(ctx, store.NewObservation{EntityID: a.ID, Content: "hot path"})
	require.NoError(t, err)

	got, found, err := g.GetEntity(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "router", got.Name)

	sub, err := g.Neighbors(ctx, a.ID, search.TraverseOptions{Depth: 1})
	require.NoError(t, err)
	assert.Len(t, sub.Entities, 2)

	path, found, err := g.FindPath(ctx, a.ID, b.ID, search.TraverseOptions{})
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, path.Relations, 1)

	matches, err := g.FindByName(ctx, search.NameQuery{Text: "rout"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, a.ID, matches[0].Entity.ID)

	similar, err := g.Similar(ctx, "router", search.SimilarOptions{K: 1})
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, a.ID, similar[0].Entity.ID)

	obs, err := g.ListObservations(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.Len(t, obs, 1)

	assert.Positive(t, backend.Calls.Load())
	storeErr, _ := g.Health(ctx)
	assert.NoError(t, storeErr)
}

func TestBackupRestoreThroughFacade(t *testing.T) {
	ctx := context.Background()
	c, _ := cachetest.Local()
	g := newGraph(t, c)

	a, err := g.CreateEntity(ctx, store.NewEntity{Name: "a", Type: "file"})
	require.NoError(t, err)
	b, err := g.CreateEntity(ctx, store.NewEntity{Name: "b", Type: "file"})
	require.NoError(t, err)
	_, err = g.CreateRelation(ctx, store.NewRelation{SourceID: a.ID, TargetID: b.ID, Type: "imports"})
	require.NoError(t, err)
	_, err = g.CreateObservation(ctx, store.NewObservation{EntityID: b.ID, Content: "generated"})
	require.NoError(t, err)

	before, err := g.Stats(ctx)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "backup.json")
	_, err = g.Backup(ctx, path)
	require.NoError(t, err)

	_, err = g.Clear(ctx)
	require.NoError(t, err)
	byType, err := g.FindByType(ctx, "file", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, byType)

	_, err = g.Restore(ctx, path)
	require.NoError(t, err)

	after, err := g.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Counts, after.Counts)

	byType, err = g.FindByType(ctx, "file", 0, 0)
	require.NoError(t, err)
	assert.Len(t, byType, 2, "restore drops cached empty results")

	rep, err := g.CheckConsistency(ctx, false)
	require.NoError(t, err)
	assert.True(t, rep.Consistent())
}

func TestSpansRecordErrors(t *testing.T) {
	ctx := context.Background()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	g := newGraph(t, nil, func(d *knowledge.Deps) { d.TracerProvider = tp })

	_, _, err := g.GetEntity(ctx, 99)
	require.NoError(t, err)
	_, err = g.UpdateEntity(ctx, 99, store.EntityPatch{Name: ptr("x")})
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "knowledge.GetEntity", spans[0].Name())
	assert.Equal(t, "knowledge.UpdateEntity", spans[1].Name())
	assert.NotEmpty(t, spans[1].Events(), "error recorded on span")
}

func TestCloseIsIdempotent(t *testing.T) {
	c, _ := cachetest.Local()
	g := newGraph(t, c)
	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
	assert.False(t, newGraph(t, nil).CacheEnabled())
}

func ptr[T any](v T) *T { return &v }

func TestEmbedderHealth(t *testing.T) {
	g := newGraph(t, nil)
	_, ok := g.EmbedderHealth()
	assert.False(t, ok, "no provider configured")

	g = newGraph(t, nil, func(d *knowledge.Deps) {
		d.Embedder = embedding.NewGuard(embedding.NewHash(8), "hash", 0)
	})
	m, ok := g.EmbedderHealth()
	require.True(t, ok)
	assert.Equal(t, "hash", m.Provider)
	assert.True(t, m.Available)
	assert.Zero(t, m.FailureCount)
}
