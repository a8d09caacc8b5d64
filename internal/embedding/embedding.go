// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package embedding turns text into vectors for similarity search. Hosted
// providers live in subpackages and register themselves by name.
package embedding

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

// Embedder maps text to a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions is the length of every returned vector, or 0 if unknown
	// until the first call.
	Dimensions() int
}

// Func adapts a plain function to Embedder. Its dimension is unknown.
type Func func(ctx context.Context, text string) ([]float32, error)

func (f Func) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }
func (f Func) Dimensions() int                                           { return 0 }

// Config selects and configures a provider.
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	Timeout    time.Duration
}

// Factory builds a provider from its config.
type Factory func(cfg Config) (Embedder, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"hash": func(cfg Config) (Embedder, error) { return NewHash(cfg.Dimensions), nil },
	}
)

// Register makes a provider available to New. Subpackages call it from init.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Providers lists registered provider names.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New builds the configured provider. Provider "none" or "" yields a nil
// Embedder and no error: similarity search is then unavailable.
// Hosted providers are wrapped in a Guard.
func New(cfg Config) (Embedder, error) {
	if cfg.Provider == "" || cfg.Provider == "none" {
		return nil, nil
	}
	if cfg.Dimensions < 0 {
		return nil, kgerr.Errorf(kgerr.CodeEmbeddingConfigInvalid,
			"embedding dimensions must be non-negative, got %d", cfg.Dimensions)
	}

	registryMu.RLock()
	f, ok := registry[cfg.Provider]
	registryMu.RUnlock()
	if !ok {
		return nil, kgerr.New(kgerr.CodeEmbeddingConfigInvalid,
			"unknown embedding provider", kgerr.FieldProvider(cfg.Provider))
	}

	e, err := f(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Provider == "hash" {
		return e, nil
	}
	return NewGuard(e, cfg.Provider, DefaultCooldown), nil
}

// CheckVector validates a provider response.
func CheckVector(v []float32, dims int) error {
	if len(v) == 0 {
		return kgerr.New(kgerr.CodeEmbeddingResponseInvalid, "embedding is empty")
	}
	if dims > 0 && len(v) != dims {
		return kgerr.Errorf(kgerr.CodeEmbeddingResponseInvalid,
			"embedding has %d dimensions, want %d", len(v), dims)
	}
	var norm float64
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return kgerr.Errorf(kgerr.CodeEmbeddingResponseInvalid,
				"embedding component %d is not finite", i)
		}
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return kgerr.New(kgerr.CodeEmbeddingResponseInvalid, "embedding is the zero vector")
	}
	return nil
}

// ToFloat32 narrows a float64 vector.
func ToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
