// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sigil-dev/kgraph/internal/cache"
	"github.com/sigil-dev/kgraph/internal/config"
	"github.com/sigil-dev/kgraph/internal/embedding"
	_ "github.com/sigil-dev/kgraph/internal/embedding/google" // register google provider
	_ "github.com/sigil-dev/kgraph/internal/embedding/openai" // register openai provider
	"github.com/sigil-dev/kgraph/internal/knowledge"
	"github.com/sigil-dev/kgraph/internal/store"
	_ "github.com/sigil-dev/kgraph/internal/store/sqlite" // register sqlite backend
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

// runtime holds the wired subsystems of one command invocation.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	graph    *knowledge.Graph
}

func (r *runtime) Close() error {
	return r.graph.Close()
}

// wire opens the store, cache and embedder described by cfg.
func wire(cfg *config.Config, logOut io.Writer) (*runtime, error) {
	logger := newLogger(cfg.Logging, logOut)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	st, err := store.Open(cfg.StoreConfig())
	if err != nil {
		return nil, err
	}

	backend, err := cacheBackend(cfg.Cache)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	c := cache.New(backend, cache.Options{
		TTL:          cfg.Cache.TTL,
		Timeout:      cfg.Cache.Timeout,
		Namespace:    cfg.Cache.Namespace,
		RetryBackoff: cfg.Cache.RetryBackoff,
		Logger:       logger.With("component", "cache"),
		Registerer:   reg,
	})

	emb, err := embedding.New(cfg.EmbedderConfig())
	if err != nil {
		_ = c.Close()
		_ = st.Close()
		return nil, err
	}

	g, err := knowledge.New(knowledge.Deps{
		Store:      st,
		Cache:      c,
		Embedder:   emb,
		Logger:     logger,
		MaxDepth:   cfg.Search.MaxDepth,
		Registerer: reg,
	})
	if err != nil {
		_ = c.Close()
		_ = st.Close()
		return nil, err
	}

	logger.Debug("knowledge graph ready",
		slog.String("storage", cfg.Storage.Backend),
		slog.String("path", cfg.Storage.Path),
		slog.String("cache", cfg.Cache.Backend),
		slog.String("embedding", cfg.Embedding.Provider),
	)
	return &runtime{cfg: cfg, logger: logger, registry: reg, graph: g}, nil
}

// cacheBackend returns nil for CacheNone, which disables caching.
func cacheBackend(cfg config.CacheConfig) (cache.Backend, error) {
	switch cfg.Backend {
	case config.CacheRedis:
		return cache.NewRedisBackend(cache.RedisOptions{URL: cfg.Redis.URL})
	case config.CacheLocal:
		return cache.NewLocalBackend(cfg.Local.MaxEntries), nil
	case config.CacheNone, "":
		return nil, nil
	default:
		return nil, kgerr.Errorf(kgerr.CodeCacheConfigInvalid, "unknown cache backend %q", cfg.Backend)
	}
}

func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// withGraph loads config, wires the graph, runs fn and closes everything.
func (c *cli) withGraph(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	rt, err := wire(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			rt.logger.Warn("closing knowledge graph", "error", err)
		}
	}()
	return fn(cmd.Context(), rt)
}
