// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sigil-dev/kgraph/internal/cache"
	"github.com/sigil-dev/kgraph/internal/config"
	_ "github.com/sigil-dev/kgraph/internal/embedding/openai"
	"github.com/sigil-dev/kgraph/internal/search"
	"github.com/sigil-dev/kgraph/internal/secrets"
	_ "github.com/sigil-dev/kgraph/internal/store/sqlite"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

// memSecrets is an in-memory secrets.Store.
type memSecrets map[string]string

func (m memSecrets) Get(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", kgerr.Errorf(kgerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	return v, nil
}

func (m memSecrets) Set(service, key, value string) error {
	m[service+"/"+key] = value
	return nil
}

func (m memSecrets) Delete(service, key string) error {
	delete(m, service+"/"+key)
	return nil
}

func (m memSecrets) Keys(string) ([]string, error) { return nil, nil }

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "kgraph.db", cfg.Storage.Path)
	assert.Equal(t, config.CacheLocal, cfg.Cache.Backend)
	assert.Equal(t, cache.DefaultTTL, cfg.Cache.TTL)
	assert.Equal(t, cache.DefaultRetryBackoff, cfg.Cache.RetryBackoff)
	assert.Equal(t, cache.DefaultTimeout, cfg.Cache.Timeout)
	assert.Equal(t, "none", cfg.Embedding.Provider)
	assert.Equal(t, search.MaxDepth, cfg.Search.MaxDepth)
	assert.Equal(t, "127.0.0.1:18790", cfg.Networking.Listen)
}

func TestLoad_DefaultFileMatchesDefaults(t *testing.T) {
	fromFile, err := config.Load(writeConfig(t, string(config.DefaultConfigYAML)))
	require.NoError(t, err)
	builtin, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, builtin, fromFile)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(config.DefaultConfigYAML, &doc))
	assert.Contains(t, doc, "cache")
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  path: /tmp/graph.db
  vector_dimensions: 384
cache:
  backend: redis
  ttl: 1h
  timeout: 100ms
  retry_backoff: 5s
  redis:
    url: redis://cache:6379/2
embedding:
  provider: hash
search:
  max_depth: 3
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/graph.db", cfg.Storage.Path)
	assert.Equal(t, config.CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 100*time.Millisecond, cfg.Cache.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Cache.RetryBackoff)
	assert.Equal(t, "redis://cache:6379/2", cfg.Cache.Redis.URL)
	assert.Equal(t, 3, cfg.Search.MaxDepth)

	assert.Equal(t, 384, cfg.StoreConfig().VectorDimensions)
	emb := cfg.EmbedderConfig()
	assert.Equal(t, "hash", emb.Provider)
	assert.Equal(t, 384, emb.Dimensions, "embedding dimensions follow the store")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("KGRAPH_NETWORKING_LISTEN", "10.0.0.1:8080")
	t.Setenv("KGRAPH_CACHE_BACKEND", "none")
	t.Setenv("KGRAPH_EMBEDDING_PROVIDER", "openai")
	t.Setenv("KGRAPH_EMBEDDING_API_KEY", "sk-env")
	t.Setenv("KGRAPH_NETWORKING_CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8080", cfg.Networking.Listen)
	assert.Equal(t, config.CacheNone, cfg.Cache.Backend)
	assert.Equal(t, "sk-env", cfg.Embedding.APIKey)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Networking.CORSOrigins)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load("/nonexistent/kgraph.yaml")
	require.Error(t, err)
	assert.Equal(t, kgerr.CodeConfigLoadReadFailure, kgerr.CodeOf(err))

	_, err = config.Load(writeConfig(t, "search:\n  max_depth: 9\ncache:\n  backend: memcached\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.max_depth")
	assert.Contains(t, err.Error(), "cache.backend", "all problems reported together")
}

func TestFromViper_ResolvesKeyringRefs(t *testing.T) {
	sec := memSecrets{"kgraph/openai": "sk-from-keyring"}

	v := viper.New()
	config.SetDefaults(v)
	v.Set("embedding.provider", "openai")
	v.Set("embedding.api_key", "keyring://kgraph/openai")

	cfg, err := config.FromViper(v, sec)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-keyring", cfg.Embedding.APIKey)

	v.Set("embedding.api_key", "keyring://kgraph/missing")
	_, err = config.FromViper(v, sec)
	require.Error(t, err)
	assert.True(t, kgerr.IsNotFound(err))
}

// validConfig returns a config that passes all validation.
func validConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{Backend: "sqlite", Path: "kgraph.db"},
		Cache: config.CacheConfig{
			Backend:      config.CacheLocal,
			TTL:          time.Minute,
			Timeout:      time.Second,
			RetryBackoff: time.Second,
			Redis:        config.RedisConfig{URL: "redis://localhost:6379"},
			Local:        config.LocalCacheConfig{MaxEntries: 10},
		},
		Embedding:  config.EmbeddingConfig{Provider: "none"},
		Search:     config.SearchConfig{MaxDepth: 2},
		Networking: config.NetworkingConfig{Listen: "127.0.0.1:18790"},
		Logging:    config.LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.Empty(t, validConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
		field  string
	}{
		{"unknown storage backend", func(c *config.Config) { c.Storage.Backend = "postgres" }, "storage.backend"},
		{"empty storage path", func(c *config.Config) { c.Storage.Path = "" }, "storage.path"},
		{"negative dimensions", func(c *config.Config) { c.Storage.VectorDimensions = -1 }, "storage.vector_dimensions"},
		{"unknown cache backend", func(c *config.Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"redis without url", func(c *config.Config) {
			c.Cache.Backend = config.CacheRedis
			c.Cache.Redis.URL = ""
		}, "cache.redis.url"},
		{"redis with http url", func(c *config.Config) {
			c.Cache.Backend = config.CacheRedis
			c.Cache.Redis.URL = "http://localhost:6379"
		}, "cache.redis.url"},
		{"zero ttl", func(c *config.Config) { c.Cache.TTL = 0 }, "cache.ttl"},
		{"zero timeout", func(c *config.Config) { c.Cache.Timeout = 0 }, "cache.timeout"},
		{"zero retry backoff", func(c *config.Config) { c.Cache.RetryBackoff = 0 }, "cache.retry_backoff"},
		{"zero local size", func(c *config.Config) { c.Cache.Local.MaxEntries = 0 }, "cache.local.max_entries"},
		{"unknown provider", func(c *config.Config) { c.Embedding.Provider = "cohere" }, "embedding.provider"},
		{"dimension mismatch", func(c *config.Config) {
			c.Storage.VectorDimensions = 384
			c.Embedding.Dimensions = 768
		}, "embedding.dimensions"},
		{"openai without key", func(c *config.Config) { c.Embedding.Provider = "openai" }, "embedding.api_key"},
		{"unresolved keyring ref", func(c *config.Config) { c.Embedding.APIKey = "keyring://kgraph/x" }, "embedding.api_key"},
		{"depth zero", func(c *config.Config) { c.Search.MaxDepth = 0 }, "search.max_depth"},
		{"depth too deep", func(c *config.Config) { c.Search.MaxDepth = search.MaxDepth + 1 }, "search.max_depth"},
		{"empty listen", func(c *config.Config) { c.Networking.Listen = "" }, "networking.listen"},
		{"missing port", func(c *config.Config) { c.Networking.Listen = "127.0.0.1" }, "networking.listen"},
		{"port too high", func(c *config.Config) { c.Networking.Listen = "127.0.0.1:70000" }, "networking.listen"},
		{"missing backup dir", func(c *config.Config) { c.Maintenance.BackupDir = "/nonexistent/backups" }, "maintenance.backup_dir"},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			errs := cfg.Validate()
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0].Error(), tt.field)
			assert.True(t, kgerr.IsInvalidInput(errs[0]))
		})
	}
}

func TestValidate_HashNeedsNoKey(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Provider = "hash"
	cfg.Embedding.Dimensions = 32
	assert.Empty(t, cfg.Validate())
}

func TestBootstrap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kgraph.yaml")

	wrote, err := config.Bootstrap(path)
	require.NoError(t, err)
	assert.True(t, wrote)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	wrote, err = config.Bootstrap(path)
	require.NoError(t, err)
	assert.False(t, wrote, "existing file is left alone")
}

var _ secrets.Store = memSecrets{}
