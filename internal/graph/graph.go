// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package graph is the read/write path for entities, relations and
// observations. Reads go through the cache; writes go to the store and
// then invalidate.
package graph

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sigil-dev/kgraph/internal/cache"
	"github.com/sigil-dev/kgraph/internal/embedding"
	"github.com/sigil-dev/kgraph/internal/store"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

// Operations composes a GraphStore with a Cache.
type Operations struct {
	store    store.GraphStore
	cache    *cache.Cache
	embedder embedding.Embedder
	logger   *slog.Logger

	group singleflight.Group
}

// Option configures Operations.
type Option func(*Operations)

func WithLogger(l *slog.Logger) Option {
	return func(o *Operations) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithEmbedder enables automatic embedding of entity names.
func WithEmbedder(e embedding.Embedder) Option {
	return func(o *Operations) { o.embedder = e }
}

// New builds Operations. A nil cache disables caching.
func New(st store.GraphStore, c *cache.Cache, opts ...Option) *Operations {
	if c == nil {
		c = cache.Disabled()
	}
	o := &Operations{
		store:  st,
		cache:  c,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Operations) Store() store.GraphStore      { return o.store }
func (o *Operations) Cache() *cache.Cache          { return o.cache }
func (o *Operations) Embedder() embedding.Embedder { return o.embedder }
func (o *Operations) Logger() *slog.Logger         { return o.logger }

// loadTimeout bounds a shared load once it no longer follows any caller.
const loadTimeout = time.Minute

type flight[T any] struct {
	value T
	found bool
}

// Cached serves key from the cache, falling back to load on a miss. Only
// found values are cached. Concurrent misses on one key share a single
// load, but only while no invalidation of the key happened in between: a
// read that starts after a write never joins a load that began before it.
// The shared load does not follow any one caller's cancellation; each
// caller stops waiting when its own ctx is done.
func Cached[T any](ctx context.Context, o *Operations, key string, load func(context.Context) (T, bool, error)) (T, bool, error) {
	var v T
	if o.cache.Get(ctx, key, &v) {
		return v, true, nil
	}

	tok := o.cache.Token(key)
	ch := o.group.DoChan(key+"#"+tok.Version(), func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		loaded, found, err := load(lctx)
		if err != nil {
			return nil, err
		}
		if found {
			o.cache.Populate(lctx, tok, loaded)
		}
		return flight[T]{value: loaded, found: found}, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, false, kgerr.FromContext(ctx.Err(), "read of "+key+" abandoned")
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		f := res.Val.(flight[T])
		return f.value, f.found, nil
	}
}

// invalidate drops keys plus every cached search result.
func (o *Operations) invalidate(ctx context.Context, keys ...string) {
	o.cache.Invalidate(ctx, keys...)
	o.cache.InvalidatePrefix(ctx, cache.SearchPrefix)
}
