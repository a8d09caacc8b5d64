// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sigil-dev/kgraph/internal/search"
	"github.com/sigil-dev/kgraph/internal/store"
)

func (s *Server) registerEntityRoutes() {
	huma.Register(s.api, op("create-entity", http.MethodPost, "/entities", "Create an entity", "entities"), s.handleCreateEntity)
	huma.Register(s.api, op("get-entity", http.MethodGet, "/entities/{id}", "Get an entity", "entities"), s.handleGetEntity)
	huma.Register(s.api, op("update-entity", http.MethodPatch, "/entities/{id}", "Update an entity", "entities"), s.handleUpdateEntity)
	huma.Register(s.api, op("delete-entity", http.MethodDelete, "/entities/{id}", "Delete an entity with its relations and observations", "entities"), s.handleDeleteEntity)
	huma.Register(s.api, op("list-entity-relations", http.MethodGet, "/entities/{id}/relations", "List relations of an entity", "entities"), s.handleListRelations)
	huma.Register(s.api, op("list-entity-observations", http.MethodGet, "/entities/{id}/observations", "List observations of an entity", "entities"), s.handleListObservations)
	huma.Register(s.api, op("entity-neighbors", http.MethodGet, "/entities/{id}/neighbors", "Traverse from an entity", "entities"), s.handleNeighbors)
}

type idPath struct {
	ID int64 `path:"id" minimum:"1"`
}

type entityOutput struct {
	Body *store.Entity
}

type createEntityInput struct {
	Body store.NewEntity
}

func (s *Server) handleCreateEntity(ctx context.Context, in *createEntityInput) (*entityOutput, error) {
	e, err := s.graph.CreateEntity(ctx, in.Body)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	return &entityOutput{Body: e}, nil
}

func (s *Server) handleGetEntity(ctx context.Context, in *idPath) (*entityOutput, error) {
	e, found, err := s.graph.GetEntity(ctx, in.ID)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	if !found {
		return nil, notFound("entity", in.ID)
	}
	return &entityOutput{Body: e}, nil
}

type updateEntityInput struct {
	ID   int64 `path:"id" minimum:"1"`
	Body store.EntityPatch
}

func (s *Server) handleUpdateEntity(ctx context.Context, in *updateEntityInput) (*entityOutput, error) {
	e, err := s.graph.UpdateEntity(ctx, in.ID, in.Body)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	return &entityOutput{Body: e}, nil
}

type deleteEntityOutput struct {
	Body store.DeleteResult
}

func (s *Server) handleDeleteEntity(ctx context.Context, in *idPath) (*deleteEntityOutput, error) {
	res, err := s.graph.DeleteEntity(ctx, in.ID)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	return &deleteEntityOutput{Body: res}, nil
}

type listRelationsInput struct {
	ID        int64  `path:"id" minimum:"1"`
	Direction string `query:"direction" enum:"outgoing,incoming,both" required:"false"`
	Type      string `query:"type"`
}

type relationsOutput struct {
	Body struct {
		Relations []*store.Relation `json:"relations"`
	}
}

func (s *Server) handleListRelations(ctx context.Context, in *listRelationsInput) (*relationsOutput, error) {
	rels, err := s.graph.ListRelations(ctx, in.ID, store.RelationFilter{
		Direction: store.Direction(in.Direction),
		Type:      in.Type,
	})
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	out := &relationsOutput{}
	out.Body.Relations = orEmpty(rels)
	return out, nil
}

type listObservationsInput struct {
	ID    int64 `path:"id" minimum:"1"`
	Limit int   `query:"limit" minimum:"0" doc:"Maximum results; 0 returns all"`
}

type observationsOutput struct {
	Body struct {
		Observations []*store.Observation `json:"observations"`
	}
}

func (s *Server) handleListObservations(ctx context.Context, in *listObservationsInput) (*observationsOutput, error) {
	obs, err := s.graph.ListObservations(ctx, in.ID, in.Limit)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	out := &observationsOutput{}
	out.Body.Observations = orEmpty(obs)
	return out, nil
}

type traverseQuery struct {
	Depth     int      `query:"depth" minimum:"0" doc:"Hops from the start; 0 means 1"`
	Direction string   `query:"direction" enum:"outgoing,incoming,both" required:"false"`
	Types     []string `query:"types" doc:"Relation types to follow"`
}

func (q traverseQuery) options() search.TraverseOptions {
	return search.TraverseOptions{
		Depth:         q.Depth,
		Direction:     store.Direction(q.Direction),
		RelationTypes: q.Types,
	}
}

type neighborsInput struct {
	ID int64 `path:"id" minimum:"1"`
	traverseQuery
}

type subgraphOutput struct {
	Body *search.Subgraph
}

func (s *Server) handleNeighbors(ctx context.Context, in *neighborsInput) (*subgraphOutput, error) {
	sub, err := s.graph.Neighbors(ctx, in.ID, in.options())
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	return &subgraphOutput{Body: sub}, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
