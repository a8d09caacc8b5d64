// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package knowledge is the single entry point to the knowledge graph. It
// owns the store and the cache and routes every call through the graph,
// search and maintenance engines.
package knowledge

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sigil-dev/kgraph/internal/cache"
	"github.com/sigil-dev/kgraph/internal/embedding"
	"github.com/sigil-dev/kgraph/internal/graph"
	"github.com/sigil-dev/kgraph/internal/maintenance"
	"github.com/sigil-dev/kgraph/internal/search"
	"github.com/sigil-dev/kgraph/internal/store"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
	"github.com/sigil-dev/kgraph/pkg/health"
)

const tracerName = "github.com/sigil-dev/kgraph/internal/knowledge"

// Deps are the resources a Graph is built from. Store is required; a nil
// Cache disables caching and a nil Embedder disables text similarity.
type Deps struct {
	Store    store.GraphStore
	Cache    *cache.Cache
	Embedder embedding.Embedder
	Logger   *slog.Logger

	// MaxDepth lowers the traversal bound. Zero keeps search.MaxDepth.
	MaxDepth int

	// Registerer receives search metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Graph is the knowledge graph facade. It is safe for concurrent use.
type Graph struct {
	store  store.GraphStore
	cache  *cache.Cache
	ops    *graph.Operations
	search *search.Engine
	maint  *maintenance.Engine
	logger *slog.Logger
	tracer trace.Tracer

	closeOnce sync.Once
	closeErr  error
}

func New(deps Deps) (*Graph, error) {
	if deps.Store == nil {
		return nil, kgerr.New(kgerr.CodeStoreInvalidInput, "knowledge graph requires a store")
	}
	if deps.Cache == nil {
		deps.Cache = cache.Disabled()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.TracerProvider == nil {
		deps.TracerProvider = otel.GetTracerProvider()
	}
	if deps.MaxDepth < 0 || deps.MaxDepth > search.MaxDepth {
		return nil, kgerr.Errorf(kgerr.CodeSearchQueryInvalid,
			"max traversal depth must be between 1 and %d, got %d", search.MaxDepth, deps.MaxDepth)
	}

	logger := deps.Logger.With(slog.String("component", "knowledge"))
	ops := graph.New(deps.Store, deps.Cache,
		graph.WithLogger(logger),
		graph.WithEmbedder(deps.Embedder),
	)
	searchOpts := []search.Option{search.WithRegisterer(deps.Registerer)}
	if deps.MaxDepth > 0 {
		searchOpts = append(searchOpts, search.WithMaxDepth(deps.MaxDepth))
	}

	return &Graph{
		store:  deps.Store,
		cache:  deps.Cache,
		ops:    ops,
		search: search.New(ops, searchOpts...),
		maint:  maintenance.New(deps.Store, deps.Cache, maintenance.WithLogger(logger)),
		logger: logger,
		tracer: deps.TracerProvider.Tracer(tracerName),
	}, nil
}

// Close releases the store and the cache. Later calls return the first result.
func (g *Graph) Close() error {
	g.closeOnce.Do(func() {
		g.closeErr = errors.Join(g.cache.Close(), g.store.Close())
	})
	return g.closeErr
}

// Health reports whether the store answers and, separately, whether the
// cache backend does. A cache failure never makes the graph unhealthy.
func (g *Graph) Health(ctx context.Context) (storeErr, cacheErr error) {
	ctx, span := g.start(ctx, "knowledge.Health")
	defer span.End()

	_, storeErr = g.store.Stats(ctx)
	cacheErr = g.cache.Ping(ctx)
	g.finish(span, storeErr)
	return storeErr, cacheErr
}

// CacheEnabled reports whether a cache backend is attached.
func (g *Graph) CacheEnabled() bool { return g.cache.Enabled() }

// EmbedderHealth snapshots the embedding provider. ok is false when no
// provider is configured or the provider does not track its health.
func (g *Graph) EmbedderHealth() (m health.Metrics, ok bool) {
	r, ok := g.ops.Embedder().(health.Reporter)
	if !ok {
		return health.Metrics{}, false
	}
	return r.HealthMetrics(), true
}

// MaxTraversalDepth is the effective traversal bound.
func (g *Graph) MaxTraversalDepth() int { return g.search.MaxTraversalDepth() }

func (g *Graph) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return g.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (g *Graph) finish(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if code := kgerr.CodeOf(err); code != "" {
		span.SetAttributes(attribute.String("kgraph.error.code", string(code)))
	}
}

func traced[T any](ctx context.Context, g *Graph, name string, attrs []attribute.KeyValue, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := g.start(ctx, name, attrs...)
	defer span.End()
	out, err := fn(ctx)
	g.finish(span, err)
	return out, err
}

func tracedFind[T any](ctx context.Context, g *Graph, name string, attrs []attribute.KeyValue, fn func(context.Context) (T, bool, error)) (T, bool, error) {
	ctx, span := g.start(ctx, name, attrs...)
	defer span.End()
	out, found, err := fn(ctx)
	span.SetAttributes(attribute.Bool("kgraph.found", found))
	g.finish(span, err)
	return out, found, err
}

func idAttr(key string, id int64) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.Int64(key, id)}
}
