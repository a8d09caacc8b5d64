// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sigil-dev/kgraph/internal/store"
)

func (s *Server) registerObservationRoutes() {
	huma.Register(s.api, op("create-observation", http.MethodPost, "/observations", "Attach an observation to an entity", "observations"), s.handleCreateObservation)
	huma.Register(s.api, op("get-observation", http.MethodGet, "/observations/{id}", "Get an observation", "observations"), s.handleGetObservation)
	huma.Register(s.api, op("update-observation", http.MethodPatch, "/observations/{id}", "Update an observation", "observations"), s.handleUpdateObservation)
	huma.Register(s.api, op("delete-observation", http.MethodDelete, "/observations/{id}", "Delete an observation", "observations"), s.handleDeleteObservation)
}

type observationOutput struct {
	Body *store.Observation
}

type createObservationInput struct {
	Body store.NewObservation
}

func (s *Server) handleCreateObservation(ctx context.Context, in *createObservationInput) (*observationOutput, error) {
	o, err := s.graph.CreateObservation(ctx, in.Body)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	return &observationOutput{Body: o}, nil
}

func (s *Server) handleGetObservation(ctx context.Context, in *idPath) (*observationOutput, error) {
	o, found, err := s.graph.GetObservation(ctx, in.ID)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	if !found {
		return nil, notFound("observation", in.ID)
	}
	return &observationOutput{Body: o}, nil
}

type updateObservationInput struct {
	ID   int64 `path:"id" minimum:"1"`
	Body store.ObservationPatch
}

func (s *Server) handleUpdateObservation(ctx context.Context, in *updateObservationInput) (*observationOutput, error) {
	o, err := s.graph.UpdateObservation(ctx, in.ID, in.Body)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	return &observationOutput{Body: o}, nil
}

func (s *Server) handleDeleteObservation(ctx context.Context, in *idPath) (*deletedOutput, error) {
	ok, err := s.graph.DeleteObservation(ctx, in.ID)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	out := &deletedOutput{}
	out.Body.Deleted = ok
	return out, nil
}
