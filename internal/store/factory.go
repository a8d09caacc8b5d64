// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"sort"
	"sync"

	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

// Factory opens a GraphStore for a backend.
type Factory func(cfg StorageConfig) (GraphStore, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers the factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends lists the registered backend names, sorted.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg StorageConfig) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// Open creates the GraphStore selected by cfg.
func Open(cfg StorageConfig) (GraphStore, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, kgerr.Errorf(kgerr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}
	if cfg.VectorDimensions < 0 {
		return nil, kgerr.Errorf(kgerr.CodeStoreInvalidInput, "vector dimensions must be >= 0, got %d", cfg.VectorDimensions)
	}

	return factory(cfg)
}
