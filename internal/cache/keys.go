// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
)

// Key prefixes. Every search-derived entry lives under SearchPrefix so a
// single prefix invalidation drops all of them.
const (
	EntityPrefix      = "entity:"
	RelationPrefix    = "relation:"
	ObservationPrefix = "observation:"
	SearchPrefix      = "search:"
)

func EntityKey(id int64) string      { return EntityPrefix + strconv.FormatInt(id, 10) }
func RelationKey(id int64) string    { return RelationPrefix + strconv.FormatInt(id, 10) }
func ObservationKey(id int64) string { return ObservationPrefix + strconv.FormatInt(id, 10) }

// RelationKeys maps relation IDs to cache keys.
func RelationKeys(ids []int64) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = RelationKey(id)
	}
	return keys
}

// ObservationKeys maps observation IDs to cache keys.
func ObservationKeys(ids []int64) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = ObservationKey(id)
	}
	return keys
}

// Signature is a stable hash of a query mode and its normalized parameters.
// params must be JSON-encodable; struct fields encode in declaration order
// and map keys sorted, so equal parameters always hash equally.
func Signature(mode string, params any) string {
	b, err := json.Marshal(params)
	if err != nil {
		b = []byte("!" + err.Error())
	}
	h := sha256.New()
	h.Write([]byte(mode))
	h.Write([]byte{0})
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// SearchKey is the cache key for a search result.
func SearchKey(mode string, params any) string {
	return SearchPrefix + mode + ":" + Signature(mode, params)
}
