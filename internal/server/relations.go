// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sigil-dev/kgraph/internal/store"
)

func (s *Server) registerRelationRoutes() {
	huma.Register(s.api, op("create-relation", http.MethodPost, "/relations", "Create a relation", "relations"), s.handleCreateRelation)
	huma.Register(s.api, op("get-relation", http.MethodGet, "/relations/{id}", "Get a relation", "relations"), s.handleGetRelation)
	huma.Register(s.api, op("update-relation", http.MethodPatch, "/relations/{id}", "Update a relation", "relations"), s.handleUpdateRelation)
	huma.Register(s.api, op("delete-relation", http.MethodDelete, "/relations/{id}", "Delete a relation", "relations"), s.handleDeleteRelation)
}

type relationOutput struct {
	Body *store.Relation
}

type createRelationInput struct {
	Body store.NewRelation
}

func (s *Server) handleCreateRelation(ctx context.Context, in *createRelationInput) (*relationOutput, error) {
	r, err := s.graph.CreateRelation(ctx, in.Body)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	return &relationOutput{Body: r}, nil
}

func (s *Server) handleGetRelation(ctx context.Context, in *idPath) (*relationOutput, error) {
	r, found, err := s.graph.GetRelation(ctx, in.ID)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	if !found {
		return nil, notFound("relation", in.ID)
	}
	return &relationOutput{Body: r}, nil
}

type updateRelationInput struct {
	ID   int64 `path:"id" minimum:"1"`
	Body store.RelationPatch
}

func (s *Server) handleUpdateRelation(ctx context.Context, in *updateRelationInput) (*relationOutput, error) {
	r, err := s.graph.UpdateRelation(ctx, in.ID, in.Body)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	return &relationOutput{Body: r}, nil
}

type deletedOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

func (s *Server) handleDeleteRelation(ctx context.Context, in *idPath) (*deletedOutput, error) {
	ok, err := s.graph.DeleteRelation(ctx, in.ID)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	out := &deletedOutput{}
	out.Body.Deleted = ok
	return out, nil
}
