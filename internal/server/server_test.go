// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/kgraph/internal/cache/cachetest"
	"github.com/sigil-dev/kgraph/internal/embedding"
	"github.com/sigil-dev/kgraph/internal/knowledge"
	"github.com/sigil-dev/kgraph/internal/server"
	"github.com/sigil-dev/kgraph/internal/store"
	"github.com/sigil-dev/kgraph/internal/store/sqlite"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

type fixture struct {
	srv       *server.Server
	backupDir string
}

func newTestServer(t *testing.T, mutate ...func(*server.Config)) *fixture {
	t.Helper()
	st, err := sqlite.New(store.StorageConfig{Path: filepath.Join(t.TempDir(), "kg.db"), VectorDimensions: 8})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	c, _ := cachetest.Local()
	g, err := knowledge.New(knowledge.Deps{
		Store:      st,
		Cache:      c,
		Embedder:   embedding.NewHash(8),
		Registerer: reg,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	cfg := server.Config{
		ListenAddr: "127.0.0.1:0",
		BackupDir:  t.TempDir(),
		Gatherer:   reg,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	srv, err := server.New(cfg, g)
	require.NoError(t, err)
	return &fixture{srv: srv, backupDir: cfg.BackupDir}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// listing collects the list fields of the various responses.
type listing struct {
	Entities  []store.Entity       `json:"entities"`
	Relations []store.Relation     `json:"relations"`
	Results   []store.ScoredEntity `json:"results"`
	Deleted   []int64              `json:"deleted"`
}

func (f *fixture) entity(t *testing.T, name, typ string) *store.Entity {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/entities", map[string]any{"name": name, "type": typ})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[*store.Entity](t, w)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := server.New(server.Config{}, nil)
	require.Error(t, err)
	assert.True(t, kgerr.HasCode(err, kgerr.CodeServerConfigInvalid))
	assert.Contains(t, err.Error(), "listen address is required")

	_, err = server.New(server.Config{ListenAddr: "127.0.0.1:0"}, nil)
	require.Error(t, err)
	assert.True(t, kgerr.HasCode(err, kgerr.CodeServerConfigInvalid))
}

func TestGraphSatisfiesInterface(t *testing.T) {
	var _ server.Graph = (*knowledge.Graph)(nil)
}

func TestHealth(t *testing.T) {
	f := newTestServer(t)

	w := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]string](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["store"])
	assert.Equal(t, "ok", body["cache"])
}

func TestOpenAPIDocument(t *testing.T) {
	f := newTestServer(t)

	w := f.do(t, http.MethodGet, "/openapi.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	for _, path := range []string{
		"/api/v1/entities/{id}",
		"/api/v1/search/by-name",
		"/api/v1/search/similar",
		"/api/v1/maintenance/backup",
	} {
		assert.Contains(t, body, path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newTestServer(t)
	f.entity(t, "router.go", "file")
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/search/by-type?type=file", nil).Code)

	w := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `kgraph_search_duration_seconds_count{mode="type"}`)
}

func TestEntityLifecycle(t *testing.T) {
	f := newTestServer(t)
	e := f.entity(t, "parse", "function")
	path := "/api/v1/entities/" + itoa(e.ID)

	w := f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "parse", decode[*store.Entity](t, w).Name)

	w = f.do(t, http.MethodPatch, path, map[string]any{"name": "parse_args"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "parse_args", decode[*store.Entity](t, w).Name)

	w = f.do(t, http.MethodGet, path, nil)
	assert.Equal(t, "parse_args", decode[*store.Entity](t, w).Name)

	w = f.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[store.DeleteResult](t, w).Deleted)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPatch, path, map[string]any{"name": "x"}).Code)
}

func TestErrorStatuses(t *testing.T) {
	f := newTestServer(t)
	e := f.entity(t, "main.go", "file")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing entity", http.MethodGet, "/api/v1/entities/999", nil, http.StatusNotFound},
		{"empty name", http.MethodPost, "/api/v1/entities", map[string]any{"name": "", "type": "file"}, http.StatusBadRequest},
		{"relation to missing entity", http.MethodPost, "/api/v1/relations",
			map[string]any{"source_id": e.ID, "target_id": 999, "type": "calls"}, http.StatusConflict},
		{"observation on missing entity", http.MethodPost, "/api/v1/observations",
			map[string]any{"entity_id": 999, "content": "hot path"}, http.StatusConflict},
		{"depth above bound", http.MethodGet, "/api/v1/entities/" + itoa(e.ID) + "/neighbors?depth=9", nil, http.StatusBadRequest},
		{"similar needs one input", http.MethodPost, "/api/v1/search/similar", map[string]any{}, http.StatusBadRequest},
		{"bad orphan age", http.MethodGet, "/api/v1/maintenance/orphans?older_than=soon", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestDeleteCascadesOverHTTP(t *testing.T) {
	f := newTestServer(t)
	file := f.entity(t, "foo.py", "file")
	fn := f.entity(t, "parse", "function")

	w := f.do(t, http.MethodPost, "/api/v1/relations",
		map[string]any{"source_id": file.ID, "target_id": fn.ID, "type": "contains"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rel := decode[*store.Relation](t, w)

	w = f.do(t, http.MethodPost, "/api/v1/observations",
		map[string]any{"entity_id": file.ID, "content": "entry point"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	incoming := "/api/v1/entities/" + itoa(fn.ID) + "/relations?direction=incoming"
	w = f.do(t, http.MethodGet, incoming, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[listing](t, w).Relations, 1)

	w = f.do(t, http.MethodDelete, "/api/v1/entities/"+itoa(file.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[store.DeleteResult](t, w)
	assert.Equal(t, []int64{rel.ID}, res.RelationIDs)
	assert.Len(t, res.ObservationIDs, 1)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/relations/"+itoa(rel.ID), nil).Code)
	w = f.do(t, http.MethodGet, incoming, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[listing](t, w).Relations)
}

func TestSearchRoutes(t *testing.T) {
	f := newTestServer(t)
	a := f.entity(t, "router", "module")
	b := f.entity(t, "route_table", "struct")
	c := f.entity(t, "handler", "function")
	for _, r := range [][2]int64{{a.ID, b.ID}, {b.ID, c.ID}} {
		w := f.do(t, http.MethodPost, "/api/v1/relations",
			map[string]any{"source_id": r[0], "target_id": r[1], "type": "uses"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := f.do(t, http.MethodGet, "/api/v1/search/exact?name=router&type=module", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[listing](t, w).Entities, 1)

	w = f.do(t, http.MethodGet, "/api/v1/search/by-type?type=function", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[listing](t, w).Entities, 1)

	w = f.do(t, http.MethodGet, "/api/v1/search/by-name?q=rout", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var matches struct {
		Matches []struct {
			Entity store.Entity `json:"entity"`
			Score  float64      `json:"score"`
		} `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &matches))
	require.Len(t, matches.Matches, 2)
	assert.Equal(t, "router", matches.Matches[0].Entity.Name)

	w = f.do(t, http.MethodGet, "/api/v1/search/path?from="+itoa(a.ID)+"&to="+itoa(c.ID)+"&depth=3", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var path struct {
		Found bool `json:"found"`
		Path  struct {
			Entities []store.Entity `json:"entities"`
		} `json:"path"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &path))
	assert.True(t, path.Found)
	assert.Len(t, path.Path.Entities, 3)

	w = f.do(t, http.MethodGet, "/api/v1/search/path?from="+itoa(c.ID)+"&to="+itoa(a.ID)+"&direction=outgoing", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[map[string]any](t, w)["found"].(bool))

	w = f.do(t, http.MethodGet, "/api/v1/entities/"+itoa(a.ID)+"/neighbors?depth=2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[listing](t, w).Entities, 3)

	w = f.do(t, http.MethodPost, "/api/v1/search/similar", map[string]any{"text": "router", "k": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotNil(t, decode[listing](t, w).Results)
}

func TestMaintenanceRoutes(t *testing.T) {
	f := newTestServer(t)
	linked := f.entity(t, "a.go", "file")
	other := f.entity(t, "b.go", "file")
	orphan := f.entity(t, "unused", "function")
	w := f.do(t, http.MethodPost, "/api/v1/relations",
		map[string]any{"source_id": linked.ID, "target_id": other.ID, "type": "imports"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/maintenance/stats", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := decode[store.Stats](t, w)
	assert.Equal(t, int64(3), stats.Entities)
	assert.Equal(t, int64(1), stats.Relations)

	w = f.do(t, http.MethodPost, "/api/v1/maintenance/check?repair=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decode[map[string]any](t, w)["dangling_relations"])

	w = f.do(t, http.MethodGet, "/api/v1/maintenance/orphans", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	orphans := decode[listing](t, w).Entities
	require.Len(t, orphans, 1)
	assert.Equal(t, orphan.ID, orphans[0].ID)

	w = f.do(t, http.MethodPost, "/api/v1/maintenance/prune", map[string]any{"ids": []int64{orphan.ID, linked.ID}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []int64{orphan.ID}, decode[listing](t, w).Deleted)

	w = f.do(t, http.MethodPost, "/api/v1/maintenance/vacuum", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/v1/maintenance/clear", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(2), decode[store.Counts](t, w).Entities)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/entities/"+itoa(linked.ID), nil).Code)
}

func TestBackupAndRestore(t *testing.T) {
	f := newTestServer(t)
	e := f.entity(t, "kept.go", "file")

	w := f.do(t, http.MethodPost, "/api/v1/maintenance/backup", map[string]any{"name": "snap.json"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.FileExists(t, filepath.Join(f.backupDir, "snap.json"))

	w = f.do(t, http.MethodPost, "/api/v1/maintenance/backup", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	entries, err := os.ReadDir(f.backupDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, "/api/v1/entities/"+itoa(e.ID), nil).Code)

	w = f.do(t, http.MethodPost, "/api/v1/maintenance/restore", map[string]any{"name": "snap.json"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/entities/"+itoa(e.ID), nil).Code)

	for _, name := range []string{"../escape.json", "sub/dir.json", ".hidden"} {
		w = f.do(t, http.MethodPost, "/api/v1/maintenance/backup", map[string]any{"name": name})
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
	w = f.do(t, http.MethodPost, "/api/v1/maintenance/restore", map[string]any{"name": "absent.json"})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestBackupDisabledWithoutDirectory(t *testing.T) {
	f := newTestServer(t, func(c *server.Config) { c.BackupDir = "" })

	w := f.do(t, http.MethodPost, "/api/v1/maintenance/backup", map[string]any{})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = f.do(t, http.MethodPost, "/api/v1/maintenance/restore", map[string]any{"name": "x.json"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
