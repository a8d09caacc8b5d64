// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/sigil-dev/kgraph/internal/embedding"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

const DefaultModel = "gemini-embedding-001"

func init() {
	embedding.Register("google", func(cfg embedding.Config) (embedding.Embedder, error) {
		return New(cfg)
	})
}

// Embedder calls the Gemini embedContent API.
type Embedder struct {
	client *genai.Client
	model  string
	dims   int
}

var _ embedding.Embedder = (*Embedder)(nil)

// New creates a Google embedder. Returns an error if the API key is missing.
func New(cfg embedding.Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, kgerr.New(kgerr.CodeEmbeddingConfigInvalid,
			"google: missing api_key in config", kgerr.FieldProvider("google"))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	if cfg.Timeout > 0 {
		timeout := cfg.Timeout
		clientCfg.HTTPOptions.Timeout = &timeout
	}

	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, kgerr.Wrapf(err, kgerr.CodeEmbeddingConfigInvalid, "google: creating client")
	}
	return &Embedder{client: client, model: cfg.Model, dims: cfg.Dimensions}, nil
}

func (e *Embedder) Dimensions() int { return e.dims }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var config *genai.EmbedContentConfig
	if e.dims > 0 {
		config = &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(int32(e.dims))}
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), config)
	if err != nil {
		return nil, kgerr.Wrapf(err, kgerr.CodeEmbeddingUpstreamFailure, "google: embedding content")
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, kgerr.New(kgerr.CodeEmbeddingResponseInvalid,
			"google: response contained no embeddings", kgerr.FieldProvider("google"))
	}
	return resp.Embeddings[0].Values, nil
}
