// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

// LocalBackend is an in-process LRU with per-entry expiry.
type LocalBackend struct {
	mu      sync.Mutex
	maxSize int
	list    *list.List
	items   map[string]*list.Element
	now     func() time.Time
}

type localEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

var _ Backend = (*LocalBackend)(nil)

// NewLocalBackend creates an LRU holding at most maxSize entries (default 10000).
func NewLocalBackend(maxSize int) *LocalBackend {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &LocalBackend{
		maxSize: maxSize,
		list:    list.New(),
		items:   make(map[string]*list.Element),
		now:     time.Now,
	}
}

func (l *LocalBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	elem, ok := l.items[key]
	if !ok {
		return nil, false, nil
	}
	entry := elem.Value.(*localEntry)
	if !entry.expiresAt.IsZero() && l.now().After(entry.expiresAt) {
		l.removeElement(elem)
		return nil, false, nil
	}
	l.list.MoveToFront(elem)

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (l *LocalBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = l.now().Add(ttl)
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	if elem, ok := l.items[key]; ok {
		entry := elem.Value.(*localEntry)
		entry.value = stored
		entry.expiresAt = expiresAt
		l.list.MoveToFront(elem)
		return nil
	}

	for l.list.Len() >= l.maxSize {
		l.removeElement(l.list.Back())
	}
	l.items[key] = l.list.PushFront(&localEntry{key: key, value: stored, expiresAt: expiresAt})
	return nil
}

func (l *LocalBackend) Delete(_ context.Context, keys ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range keys {
		if elem, ok := l.items[key]; ok {
			l.removeElement(elem)
		}
	}
	return nil
}

func (l *LocalBackend) DeletePrefix(_ context.Context, prefix string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, elem := range l.items {
		if strings.HasPrefix(key, prefix) {
			l.removeElement(elem)
		}
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (l *LocalBackend) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.list.Len()
}

func (l *LocalBackend) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.list.Init()
	l.items = make(map[string]*list.Element)
	return nil
}

func (l *LocalBackend) removeElement(elem *list.Element) {
	l.list.Remove(elem)
	delete(l.items, elem.Value.(*localEntry).key)
}
