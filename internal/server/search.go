// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sigil-dev/kgraph/internal/search"
	"github.com/sigil-dev/kgraph/internal/store"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, op("search-exact", http.MethodGet, "/search/exact", "Entities with an exact name and type", "search"), s.handleSearchExact)
	huma.Register(s.api, op("search-by-type", http.MethodGet, "/search/by-type", "Entities of a type, paginated", "search"), s.handleSearchByType)
	huma.Register(s.api, op("search-by-name", http.MethodGet, "/search/by-name", "Entities ranked by name match", "search"), s.handleSearchByName)
	huma.Register(s.api, op("search-path", http.MethodGet, "/search/path", "Shortest path between two entities", "search"), s.handleSearchPath)
	huma.Register(s.api, op("search-similar", http.MethodPost, "/search/similar", "Entities nearest to a text or vector", "search"), s.handleSearchSimilar)
}

type entitiesOutput struct {
	Body struct {
		Entities []*store.Entity `json:"entities"`
	}
}

func entities(list []*store.Entity) *entitiesOutput {
	out := &entitiesOutput{}
	out.Body.Entities = orEmpty(list)
	return out
}

type exactInput struct {
	Name string `query:"name" required:"true" minLength:"1"`
	Type string `query:"type" required:"true" minLength:"1"`
}

func (s *Server) handleSearchExact(ctx context.Context, in *exactInput) (*entitiesOutput, error) {
	list, err := s.graph.FindByNameAndType(ctx, in.Name, in.Type)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	return entities(list), nil
}

type byTypeInput struct {
	Type   string `query:"type" required:"true" minLength:"1"`
	Offset int    `query:"offset" minimum:"0"`
	Limit  int    `query:"limit" minimum:"0"`
}

func (s *Server) handleSearchByType(ctx context.Context, in *byTypeInput) (*entitiesOutput, error) {
	list, err := s.graph.FindByType(ctx, in.Type, in.Offset, in.Limit)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	return entities(list), nil
}

type byNameInput struct {
	Query    string  `query:"q" required:"true" minLength:"1" doc:"Case-insensitive name fragment"`
	Type     string  `query:"type"`
	Limit    int     `query:"limit" minimum:"0"`
	MinScore float64 `query:"min_score" minimum:"0" maximum:"1"`
}

type matchesOutput struct {
	Body struct {
		Matches []search.NameMatch `json:"matches"`
	}
}

func (s *Server) handleSearchByName(ctx context.Context, in *byNameInput) (*matchesOutput, error) {
	matches, err := s.graph.FindByName(ctx, search.NameQuery{
		Text:     in.Query,
		Type:     in.Type,
		Limit:    in.Limit,
		MinScore: in.MinScore,
	})
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	out := &matchesOutput{}
	out.Body.Matches = orEmpty(matches)
	return out, nil
}

type pathInput struct {
	From int64 `query:"from" required:"true" minimum:"1"`
	To   int64 `query:"to" required:"true" minimum:"1"`
	traverseQuery
}

type pathOutput struct {
	Body struct {
		Found bool         `json:"found"`
		Path  *search.Path `json:"path,omitempty"`
	}
}

func (s *Server) handleSearchPath(ctx context.Context, in *pathInput) (*pathOutput, error) {
	p, found, err := s.graph.FindPath(ctx, in.From, in.To, in.options())
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	out := &pathOutput{}
	out.Body.Found = found
	if found {
		out.Body.Path = p
	}
	return out, nil
}

type similarInput struct {
	Body struct {
		Text   string    `json:"text,omitempty" doc:"Query text; embedded with the configured provider"`
		Vector []float32 `json:"vector,omitempty" doc:"Precomputed query vector"`
		K      int       `json:"k,omitempty" minimum:"0"`
		Metric string    `json:"metric,omitempty" enum:"cosine,l2"`
		Type   string    `json:"type,omitempty"`
	}
}

type scoredOutput struct {
	Body struct {
		Results []store.ScoredEntity `json:"results"`
	}
}

func (s *Server) handleSearchSimilar(ctx context.Context, in *similarInput) (*scoredOutput, error) {
	b := in.Body
	if (b.Text == "") == (len(b.Vector) == 0) {
		return nil, huma.Error400BadRequest("exactly one of text or vector is required")
	}
	opts := search.SimilarOptions{K: b.K, Metric: store.Metric(b.Metric), Type: b.Type}

	var (
		res []store.ScoredEntity
		err error
	)
	if b.Text != "" {
		res, err = s.graph.Similar(ctx, b.Text, opts)
	} else {
		res, err = s.graph.SimilarToVector(ctx, b.Vector, opts)
	}
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	out := &scoredOutput{}
	out.Body.Results = orEmpty(res)
	return out, nil
}
