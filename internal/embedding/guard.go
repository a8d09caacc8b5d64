// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embedding

import (
	"context"
	"sync"
	"time"

	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
	"github.com/sigil-dev/kgraph/pkg/health"
)

// DefaultCooldown is how long a failing provider is skipped before the
// next attempt.
const DefaultCooldown = 30 * time.Second

// Guard validates provider responses and stops calling a provider for a
// cooldown period after it fails.
type Guard struct {
	next     Embedder
	name     string
	cooldown time.Duration

	mu           sync.RWMutex
	healthy      bool
	failedAt     time.Time
	failureCount int64
	dims         int
	nowFunc      func() time.Time
}

var (
	_ Embedder        = (*Guard)(nil)
	_ health.Reporter = (*Guard)(nil)
)

func NewGuard(next Embedder, name string, cooldown time.Duration) *Guard {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Guard{
		next:     next,
		name:     name,
		cooldown: cooldown,
		healthy:  true,
		dims:     next.Dimensions(),
		nowFunc:  time.Now,
	}
}

// Dimensions reports the provider's configured size, or the size observed
// on the first successful call.
func (g *Guard) Dimensions() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dims
}

func (g *Guard) Embed(ctx context.Context, text string) ([]float32, error) {
	if !g.Available() {
		return nil, kgerr.New(kgerr.CodeEmbeddingUpstreamFailure,
			"embedding provider cooling down after failure", kgerr.FieldProvider(g.name))
	}

	v, err := g.next.Embed(ctx, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, kgerr.FromContext(ctxErr, "embedding request abandoned")
		}
		g.recordFailure()
		if kgerr.CodeOf(err) != "" {
			return nil, err
		}
		return nil, kgerr.Wrap(err, kgerr.CodeEmbeddingUpstreamFailure,
			"embedding request failed", kgerr.FieldProvider(g.name))
	}
	if err := CheckVector(v, g.Dimensions()); err != nil {
		g.recordFailure()
		return nil, kgerr.With(err, kgerr.FieldProvider(g.name))
	}
	g.recordSuccess(len(v))
	return v, nil
}

// Available reports whether the provider is healthy or its cooldown elapsed.
func (g *Guard) Available() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.healthy || g.nowFunc().Sub(g.failedAt) >= g.cooldown
}

// Failures is the cumulative failure count.
func (g *Guard) Failures() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.failureCount
}

// HealthMetrics snapshots the provider state.
func (g *Guard) HealthMetrics() health.Metrics {
	g.mu.RLock()
	defer g.mu.RUnlock()

	m := health.Metrics{
		Provider:     g.name,
		Available:    g.healthy || g.nowFunc().Sub(g.failedAt) >= g.cooldown,
		FailureCount: g.failureCount,
	}
	if g.failureCount > 0 {
		t := g.failedAt
		m.LastFailureAt = &t
	}
	if !m.Available {
		end := g.failedAt.Add(g.cooldown)
		m.CooldownUntil = &end
	}
	return m
}

func (g *Guard) recordFailure() {
	g.mu.Lock()
	g.healthy = false
	g.failedAt = g.nowFunc()
	g.failureCount++
	g.mu.Unlock()
}

func (g *Guard) recordSuccess(dims int) {
	g.mu.Lock()
	g.healthy = true
	if g.dims == 0 {
		g.dims = dims
	}
	g.mu.Unlock()
}
