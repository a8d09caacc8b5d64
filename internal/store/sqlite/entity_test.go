// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/kgraph/internal/store"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

func TestStore_EntityCRUD(t *testing.T) {
	ctx := context.Background()
	s, _ := openFile(t, "entities", 0)

	created, err := s.CreateEntity(ctx, store.NewEntity{
		Name:       "parse",
		Type:       "function",
		Properties: map[string]any{"exported": true},
	})
	require.NoError(t, err)
	assert.Positive(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, found, err := s.GetEntity(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "parse", got.Name)
	assert.Equal(t, "function", got.Type)
	assert.Equal(t, true, got.Properties["exported"])
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	updated, err := s.UpdateEntity(ctx, created.ID, store.EntityPatch{Name: ptr("parseConfig")})
	require.NoError(t, err)
	assert.Equal(t, "parseConfig", updated.Name)
	assert.Equal(t, "function", updated.Type)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	got, _, err = s.GetEntity(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "parseConfig", got.Name)
	assert.True(t, updated.UpdatedAt.Equal(got.UpdatedAt))
}

func TestStore_GetEntityMissingIsNotAnError(t *testing.T) {
	s := openMemory(t)
	got, found, err := s.GetEntity(context.Background(), 999)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestStore_UpdateEntityMissing(t *testing.T) {
	s := openMemory(t)
	_, err := s.UpdateEntity(context.Background(), 42, store.EntityPatch{Name: ptr("x")})
	require.Error(t, err)
	assert.True(t, kgerr.IsNotFound(err))
}

func TestStore_CreateEntityValidation(t *testing.T) {
	s := openMemory(t)
	_, err := s.CreateEntity(context.Background(), store.NewEntity{Type: "file"})
	require.Error(t, err)
	assert.True(t, kgerr.IsInvalidInput(err))
}

func TestStore_EmbeddingDimensionFixedByFirstWrite(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	e := mustEntity(t, s, "a", "concept", 1, 0, 0)
	got, _, err := s.GetEntity(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, got.Embedding)

	_, err = s.CreateEntity(ctx, store.NewEntity{Name: "b", Type: "concept", Embedding: []float32{1, 0}})
	require.Error(t, err)
	assert.True(t, kgerr.IsInvalidInput(err))

	_, err = s.UpdateEntity(ctx, e.ID, store.EntityPatch{Embedding: []float32{1, 2, 3, 4}})
	require.Error(t, err)
	assert.True(t, kgerr.IsInvalidInput(err))

	cleared, err := s.UpdateEntity(ctx, e.ID, store.EntityPatch{ClearEmbedding: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.Embedding)
}

func TestStore_ConfiguredDimension(t *testing.T) {
	s, _ := openFile(t, "dims", 2)
	_, err := s.CreateEntity(context.Background(), store.NewEntity{Name: "a", Type: "t", Embedding: []float32{1, 2, 3}})
	require.Error(t, err)
	assert.True(t, kgerr.IsInvalidInput(err))
	mustEntity(t, s, "b", "t", 1, 2)
}

func TestStore_FindEntities(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	var ids []int64
	for _, name := range []string{"parse", "parse_args", "render", "a_b%"} {
		ids = append(ids, mustEntity(t, s, name, "function").ID)
	}
	mustEntity(t, s, "parse", "concept")

	byType, err := s.FindEntities(ctx, store.EntityQuery{Type: "function"})
	require.NoError(t, err)
	require.Len(t, byType, 4)
	for i, e := range byType {
		assert.Equal(t, ids[i], e.ID, "ordered by creation then id")
	}

	page, err := s.FindEntities(ctx, store.EntityQuery{Type: "function", Offset: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	exact, err := s.FindEntities(ctx, store.EntityQuery{Name: "parse", Type: "function"})
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, ids[0], exact[0].ID)

	contains, err := s.FindEntities(ctx, store.EntityQuery{NameContains: "PARSE"})
	require.NoError(t, err)
	assert.Len(t, contains, 3)

	literal, err := s.FindEntities(ctx, store.EntityQuery{NameContains: "_b%"})
	require.NoError(t, err)
	require.Len(t, literal, 1)
	assert.Equal(t, "a_b%", literal[0].Name)

	none, err := s.FindEntities(ctx, store.EntityQuery{Type: "module"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_FindEntitiesFoldsUnicode(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	elan := mustEntity(t, s, "ÉlanParser", "class")
	cafe := mustEntity(t, s, "Cafe\u0301Menu", "class")
	strasse := mustEntity(t, s, "Straße", "place")

	for _, tc := range []struct {
		name  string
		query string
		want  int64
	}{
		{"lowercase accented", "élan", elan.ID},
		{"uppercase accented", "ÉLANP", elan.ID},
		{"composed query matches decomposed name", "CAFÉ", cafe.ID},
		{"full case folding", "STRASSE", strasse.ID},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.FindEntities(ctx, store.EntityQuery{NameContains: tc.query})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, tc.want, got[0].ID)
		})
	}

	// Renames keep the folded key in step with the name.
	_, err := s.UpdateEntity(ctx, elan.ID, store.EntityPatch{Name: ptr("Überblick")})
	require.NoError(t, err)
	gone, err := s.FindEntities(ctx, store.EntityQuery{NameContains: "élan"})
	require.NoError(t, err)
	assert.Empty(t, gone)
	renamed, err := s.FindEntities(ctx, store.EntityQuery{NameContains: "überb"})
	require.NoError(t, err)
	require.Len(t, renamed, 1)
	assert.Equal(t, elan.ID, renamed[0].ID)
}

func TestStore_NearestEntities(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	empty, err := s.NearestEntities(ctx, []float32{1, 0}, store.NearestQuery{K: 3})
	require.NoError(t, err)
	assert.Empty(t, empty)

	a := mustEntity(t, s, "a", "concept", 1, 0)
	b := mustEntity(t, s, "b", "concept", 0, 1)
	c := mustEntity(t, s, "c", "function", 1, 0)
	d := mustEntity(t, s, "d", "concept", 0.7, 0.7)
	mustEntity(t, s, "no-embedding", "concept")

	got, err := s.NearestEntities(ctx, []float32{1, 0}, store.NearestQuery{K: 3})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, a.ID, got[0].Entity.ID, "tie broken by id")
	assert.Equal(t, c.ID, got[1].Entity.ID)
	assert.Equal(t, d.ID, got[2].Entity.ID)
	assert.InDelta(t, 0, got[0].Distance, 1e-6)
	assert.InDelta(t, got[0].Distance, got[1].Distance, 1e-9)
	assert.LessOrEqual(t, got[1].Distance, got[2].Distance)

	all, err := s.NearestEntities(ctx, []float32{1, 0}, store.NearestQuery{K: 10})
	require.NoError(t, err)
	assert.Len(t, all, 4, "only embedded entities are candidates")
	assert.Equal(t, b.ID, all[3].Entity.ID)

	typed, err := s.NearestEntities(ctx, []float32{1, 0}, store.NearestQuery{K: 10, Type: "function"})
	require.NoError(t, err)
	require.Len(t, typed, 1)
	assert.Equal(t, c.ID, typed[0].Entity.ID)

	l2, err := s.NearestEntities(ctx, []float32{0, 1}, store.NearestQuery{K: 1, Metric: store.MetricL2})
	require.NoError(t, err)
	require.Len(t, l2, 1)
	assert.Equal(t, b.ID, l2[0].Entity.ID)

	_, err = s.NearestEntities(ctx, []float32{1, 0, 0}, store.NearestQuery{K: 1})
	assert.True(t, kgerr.IsInvalidInput(err))
	_, err = s.NearestEntities(ctx, []float32{1, 0}, store.NearestQuery{K: 0})
	assert.True(t, kgerr.IsInvalidInput(err))
	_, err = s.NearestEntities(ctx, []float32{1, 0}, store.NearestQuery{K: 1, Metric: "manhattan"})
	assert.True(t, kgerr.IsInvalidInput(err))
}

func TestStore_ZeroVectorsRejected(t *testing.T) {
	ctx := context.Background()
	s, path := openFile(t, "zero-vectors", 0)
	a := mustEntity(t, s, "a", "concept", 1, 0, 0)

	_, err := s.CreateEntity(ctx, store.NewEntity{Name: "z", Type: "concept", Embedding: []float32{0, 0, 0}})
	assert.True(t, kgerr.IsInvalidInput(err), "create: %v", err)
	_, err = s.UpdateEntity(ctx, a.ID, store.EntityPatch{Embedding: []float32{0, 0, 0}})
	assert.True(t, kgerr.IsInvalidInput(err), "update: %v", err)
	_, err = s.NearestEntities(ctx, []float32{0, 0, 0}, store.NearestQuery{K: 5})
	assert.True(t, kgerr.IsInvalidInput(err), "query: %v", err)

	// A zero vector stored by an older build must not break the scan.
	raw, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	require.NoError(t, err)
	defer func() { _ = raw.Close() }()
	ts := "2026-01-01T00:00:00.000000000Z"
	_, err = raw.Exec(`INSERT INTO entities (name, entity_type, embedding, embedding_dim, created_at, updated_at)
VALUES ('legacy', 'concept', ?, 3, ?, ?)`, make([]byte, 12), ts, ts)
	require.NoError(t, err)

	for _, metric := range []store.Metric{store.MetricCosine, store.MetricL2} {
		got, err := s.NearestEntities(ctx, []float32{1, 0, 0}, store.NearestQuery{K: 5, Metric: metric})
		require.NoError(t, err, metric)
		require.NotEmpty(t, got)
		assert.Equal(t, a.ID, got[0].Entity.ID)
	}
}

func TestStore_DeleteEntityCascade(t *testing.T) {
	ctx := context.Background()
	s, _ := openFile(t, "cascade", 0)

	foo := mustEntity(t, s, "foo.py", "file")
	parse := mustEntity(t, s, "parse", "function")
	contains := mustRelation(t, s, foo.ID, parse.ID, "contains")
	note := mustObservation(t, s, parse.ID, "parses the config file")

	res, err := s.DeleteEntity(ctx, foo.ID)
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Equal(t, []int64{contains.ID}, res.RelationIDs)
	assert.Empty(t, res.ObservationIDs)

	_, found, err := s.GetRelation(ctx, contains.ID)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = s.GetEntity(ctx, parse.ID)
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = s.GetObservation(ctx, note.ID)
	require.NoError(t, err)
	assert.True(t, found)

	again, err := s.DeleteEntity(ctx, foo.ID)
	require.NoError(t, err)
	assert.False(t, again.Deleted)
	assert.Zero(t, again.RelationsRemoved())
	assert.Zero(t, again.ObservationsRemoved())
}

func TestStore_DeleteEntityRemovesBothDirectionsAndObservations(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	hub := mustEntity(t, s, "hub", "module")
	in := mustEntity(t, s, "caller", "function")
	out := mustEntity(t, s, "callee", "function")
	r1 := mustRelation(t, s, in.ID, hub.ID, "imports")
	r2 := mustRelation(t, s, hub.ID, out.ID, "calls")
	r3 := mustRelation(t, s, hub.ID, hub.ID, "recurses")
	untouched := mustRelation(t, s, in.ID, out.ID, "calls")
	o1 := mustObservation(t, s, hub.ID, "entry point")
	o2 := mustObservation(t, s, hub.ID, "deprecated")

	res, err := s.DeleteEntity(ctx, hub.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{r1.ID, r2.ID, r3.ID}, res.RelationIDs)
	assert.ElementsMatch(t, []int64{o1.ID, o2.ID}, res.ObservationIDs)

	rels, err := s.ListRelations(ctx, in.ID, store.RelationFilter{})
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, untouched.ID, rels[0].ID)
}

func TestStore_CanceledWriteIsNotStarted(t *testing.T) {
	s := openMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.CreateEntity(ctx, store.NewEntity{Name: "x", Type: "y"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, kgerr.IsCanceled(err))

	found, err := s.FindEntities(context.Background(), store.EntityQuery{})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestStore_AbandonedReadIsCanceled(t *testing.T) {
	s := openMemory(t)
	e := mustEntity(t, s, "x", "y")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.GetEntity(ctx, e.ID)
	require.Error(t, err)
	assert.True(t, kgerr.IsCanceled(err), "got %v", err)
	assert.False(t, kgerr.HasCode(err, kgerr.CodeStoreDatabaseFailure))

	ctx, cancel = context.WithTimeout(context.Background(), -time.Second)
	defer cancel()
	_, err = s.FindEntities(ctx, store.EntityQuery{})
	assert.True(t, kgerr.IsTimeout(err), "got %v", err)
}

func TestStore_TimestampsOrderLexically(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	first := mustEntity(t, s, "first", "t")
	time.Sleep(time.Millisecond)
	second := mustEntity(t, s, "second", "t")

	got, err := s.FindEntities(ctx, store.EntityQuery{Type: "t"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)
}
