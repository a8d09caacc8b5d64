// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package cachetest provides cache backends for tests.
package cachetest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sigil-dev/kgraph/internal/cache"
)

// ErrUnavailable is returned by every FailingBackend call.
var ErrUnavailable = errors.New("cachetest: backend unavailable")

// FailingBackend fails every operation and counts the attempts.
type FailingBackend struct {
	Calls atomic.Int64
}

var _ cache.Backend = (*FailingBackend)(nil)

func (f *FailingBackend) Get(context.Context, string) ([]byte, bool, error) {
	f.Calls.Add(1)
	return nil, false, ErrUnavailable
}

func (f *FailingBackend) Set(context.Context, string, []byte, time.Duration) error {
	f.Calls.Add(1)
	return ErrUnavailable
}

func (f *FailingBackend) Delete(context.Context, ...string) error {
	f.Calls.Add(1)
	return ErrUnavailable
}

func (f *FailingBackend) DeletePrefix(context.Context, string) error {
	f.Calls.Add(1)
	return ErrUnavailable
}

func (f *FailingBackend) Close() error { return nil }

// Local returns a Cache over a fresh LocalBackend, plus the backend.
func Local() (*cache.Cache, *cache.LocalBackend) {
	b := cache.NewLocalBackend(10000)
	return cache.New(b, cache.Options{Logger: quiet()}), b
}

// Failing returns a Cache whose backend fails every call.
func Failing() (*cache.Cache, *FailingBackend) {
	b := &FailingBackend{}
	return cache.New(b, cache.Options{Logger: quiet()}), b
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
