// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package cache is the derived, disposable view over the knowledge graph.
// Backend errors never reach callers of Cache: they are logged, counted and
// treated as misses.
package cache

import (
	"context"
	"time"
)

// Backend is the capability set a cache store must provide.
// Values are opaque bytes; keys are plain strings.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

// NoopBackend caches nothing. It stands in when caching is disabled.
type NoopBackend struct{}

var _ Backend = NoopBackend{}

func (NoopBackend) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NoopBackend) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NoopBackend) Delete(context.Context, ...string) error                  { return nil }
func (NoopBackend) DeletePrefix(context.Context, string) error               { return nil }
func (NoopBackend) Close() error                                             { return nil }
