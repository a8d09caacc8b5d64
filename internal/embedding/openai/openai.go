// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package openai

import (
	"context"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/sigil-dev/kgraph/internal/embedding"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

const DefaultModel = openaisdk.EmbeddingModelTextEmbedding3Small

func init() {
	embedding.Register("openai", func(cfg embedding.Config) (embedding.Embedder, error) {
		return New(cfg)
	})
}

// Embedder calls the OpenAI embeddings endpoint.
type Embedder struct {
	client openaisdk.Client
	model  string
	dims   int
}

var _ embedding.Embedder = (*Embedder)(nil)

// New creates an OpenAI embedder. Returns an error if the API key is missing.
func New(cfg embedding.Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, kgerr.New(kgerr.CodeEmbeddingConfigInvalid,
			"openai: missing api_key in config", kgerr.FieldProvider("openai"))
	}
	if cfg.Model == "" {
		cfg.Model = string(DefaultModel)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Embedder{
		client: openaisdk.NewClient(opts...),
		model:  cfg.Model,
		dims:   cfg.Dimensions,
	}, nil
}

func (e *Embedder) Dimensions() int { return e.dims }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfString: openaisdk.String(text)},
		Model: openaisdk.EmbeddingModel(e.model),
	}
	if e.dims > 0 {
		params.Dimensions = openaisdk.Int(int64(e.dims))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, kgerr.Wrapf(err, kgerr.CodeEmbeddingUpstreamFailure, "openai: creating embedding")
	}
	if len(resp.Data) == 0 {
		return nil, kgerr.New(kgerr.CodeEmbeddingResponseInvalid,
			"openai: response contained no embeddings", kgerr.FieldProvider("openai"))
	}
	return embedding.ToFloat32(resp.Data[0].Embedding), nil
}
