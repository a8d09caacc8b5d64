// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

// MemoryPath selects an in-memory database.
const MemoryPath = ":memory:"

// StorageConfig controls which backend the store factory uses.
type StorageConfig struct {
	Backend          string // "sqlite" is the only supported backend for now.
	Path             string // Database file, or MemoryPath.
	VectorDimensions int    // Embedding dimensions; 0 fixes it on the first embedding written.
}

// InMemory reports whether the config selects a non-durable store.
func (c StorageConfig) InMemory() bool {
	return c.Path == "" || c.Path == MemoryPath
}
