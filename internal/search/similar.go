// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package search

import (
	"context"
	"strings"

	"github.com/sigil-dev/kgraph/internal/store"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

// SimilarOptions parameterizes a similarity search.
type SimilarOptions struct {
	// K is the number of results. Zero means DefaultK.
	K      int          `json:"k"`
	Metric store.Metric `json:"metric"`
	Type   string       `json:"type,omitempty"`
}

func normalizeSimilar(opts SimilarOptions) (SimilarOptions, error) {
	if opts.K < 0 {
		return opts, invalidQuery("k must be non-negative, got %d", opts.K)
	}
	if opts.K == 0 {
		opts.K = DefaultK
	}
	if opts.K > MaxK {
		return opts, invalidQuery("k %d exceeds maximum %d", opts.K, MaxK)
	}
	if opts.Metric == "" {
		opts.Metric = store.MetricCosine
	}
	if !opts.Metric.Valid() {
		return opts, invalidQuery("unknown metric %q", opts.Metric)
	}
	return opts, nil
}

type similarTextParams struct {
	Text string `json:"text"`
	SimilarOptions
}

// Similar embeds text and returns the K nearest embedded entities by
// ascending distance, ties broken by ID. The scan is exact.
func (e *Engine) Similar(ctx context.Context, text string, opts SimilarOptions) ([]store.ScoredEntity, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalidQuery("query text is required")
	}
	opts, err := normalizeSimilar(opts)
	if err != nil {
		return nil, err
	}
	embedder := e.ops.Embedder()
	if embedder == nil {
		return nil, kgerr.New(kgerr.CodeEmbeddingConfigInvalid,
			"similarity search needs an embedding provider")
	}

	return run(ctx, e, "similar_text", similarTextParams{Text: text, SimilarOptions: opts}, func(ctx context.Context) ([]store.ScoredEntity, error) {
		vec, err := embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		return e.ops.Store().NearestEntities(ctx, vec, store.NearestQuery{K: opts.K, Metric: opts.Metric, Type: opts.Type})
	})
}

type similarVectorParams struct {
	Vector []float32 `json:"vector"`
	SimilarOptions
}

// SimilarToVector is Similar with a precomputed query vector.
func (e *Engine) SimilarToVector(ctx context.Context, vec []float32, opts SimilarOptions) ([]store.ScoredEntity, error) {
	opts, err := normalizeSimilar(opts)
	if err != nil {
		return nil, err
	}
	if err := store.ValidateEmbedding(vec, 0); err != nil {
		return nil, err
	}
	return run(ctx, e, "similar_vector", similarVectorParams{Vector: vec, SimilarOptions: opts}, func(ctx context.Context) ([]store.ScoredEntity, error) {
		return e.ops.Store().NearestEntities(ctx, vec, store.NearestQuery{K: opts.K, Metric: opts.Metric, Type: opts.Type})
	})
}
