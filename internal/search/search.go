// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package search implements structured lookup, graph traversal and
// embedding similarity over the knowledge graph. Every result is cached
// under the search prefix, which any graph mutation invalidates.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sigil-dev/kgraph/internal/cache"
	"github.com/sigil-dev/kgraph/internal/graph"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500

	DefaultNameLimit = 10

	DefaultDepth = 1
	MaxDepth     = 5

	DefaultK = 10
	MaxK     = 100

	// nameScanLimit bounds how many substring matches ByName ranks.
	nameScanLimit = 1000
)

// Engine runs searches through graph Operations.
type Engine struct {
	ops      *graph.Operations
	logger   *slog.Logger
	maxDepth int
	duration *prometheus.HistogramVec
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	maxDepth   int
	registerer prometheus.Registerer
}

// WithMaxDepth lowers the traversal bound below MaxDepth.
func WithMaxDepth(d int) Option {
	return func(o *engineOptions) { o.maxDepth = d }
}

// WithRegisterer registers search latency metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *engineOptions) { o.registerer = reg }
}

func New(ops *graph.Operations, opts ...Option) *Engine {
	eo := engineOptions{maxDepth: MaxDepth}
	for _, opt := range opts {
		opt(&eo)
	}
	if eo.maxDepth <= 0 || eo.maxDepth > MaxDepth {
		eo.maxDepth = MaxDepth
	}
	return &Engine{
		ops:      ops,
		logger:   ops.Logger(),
		maxDepth: eo.maxDepth,
		duration: promauto.With(eo.registerer).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kgraph_search_duration_seconds",
			Help:    "Search latency by mode, cache hits included.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"mode"}),
	}
}

// MaxTraversalDepth is the effective depth bound.
func (e *Engine) MaxTraversalDepth() int { return e.maxDepth }

// run serves a search result from the cache or computes it.
func run[T any](ctx context.Context, e *Engine, mode string, params any, compute func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	defer func() { e.duration.WithLabelValues(mode).Observe(time.Since(start).Seconds()) }()

	v, _, err := graph.Cached(ctx, e.ops, cache.SearchKey(mode, params), func(ctx context.Context) (T, bool, error) {
		v, err := compute(ctx)
		return v, err == nil, err
	})
	return v, err
}

func invalidQuery(format string, args ...any) error {
	return kgerr.Errorf(kgerr.CodeSearchQueryInvalid, format, args...)
}

func normalizeLimit(offset, limit, def int) (int, int, error) {
	if offset < 0 {
		return 0, 0, invalidQuery("offset must be non-negative, got %d", offset)
	}
	if limit < 0 {
		return 0, 0, invalidQuery("limit must be non-negative, got %d", limit)
	}
	if limit == 0 {
		limit = def
	}
	if limit > MaxLimit {
		return 0, 0, invalidQuery("limit %d exceeds maximum %d", limit, MaxLimit)
	}
	return offset, limit, nil
}
