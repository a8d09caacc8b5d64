// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/kgraph/internal/store"
	"github.com/sigil-dev/kgraph/internal/store/sqlite"
)

// testDir creates a temp directory for a test and removes it on cleanup.
func testDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "kgraph-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(testDir(t), name+".db")
}

// openFile opens a file-backed store closed on cleanup.
func openFile(t *testing.T, name string, dims int) (*sqlite.Store, string) {
	t.Helper()
	path := testDBPath(t, name)
	s, err := sqlite.New(store.StorageConfig{Path: path, VectorDimensions: dims})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

// openMemory opens a private in-memory store closed on cleanup.
func openMemory(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(store.StorageConfig{Path: store.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustEntity(t *testing.T, s *sqlite.Store, name, typ string, emb ...float32) *store.Entity {
	t.Helper()
	in := store.NewEntity{Name: name, Type: typ}
	if len(emb) > 0 {
		in.Embedding = emb
	}
	e, err := s.CreateEntity(context.Background(), in)
	require.NoError(t, err)
	return e
}

func mustRelation(t *testing.T, s *sqlite.Store, from, to int64, typ string) *store.Relation {
	t.Helper()
	r, err := s.CreateRelation(context.Background(), store.NewRelation{SourceID: from, TargetID: to, Type: typ})
	require.NoError(t, err)
	return r
}

func mustObservation(t *testing.T, s *sqlite.Store, entityID int64, content string) *store.Observation {
	t.Helper()
	o, err := s.CreateObservation(context.Background(), store.NewObservation{EntityID: entityID, Content: content})
	require.NoError(t, err)
	return o
}

func ptr[T any](v T) *T { return &v }
