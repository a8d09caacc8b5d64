// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
	"github.com/sigil-dev/kgraph/pkg/health"
)

const apiPrefix = "/api/v1"

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, s.handleHealth)

	s.registerEntityRoutes()
	s.registerRelationRoutes()
	s.registerObservationRoutes()
	s.registerSearchRoutes()
	s.registerMaintenanceRoutes()
}

// op fills in the parts every route shares.
func op(id, method, path, summary, tag string) huma.Operation {
	o := huma.Operation{
		OperationID: id,
		Method:      method,
		Path:        apiPrefix + path,
		Summary:     summary,
		Tags:        []string{tag},
	}
	if method == http.MethodPost && tag != "search" && tag != "maintenance" {
		o.DefaultStatus = http.StatusCreated
	}
	return o
}

// apiError maps a coded error to an HTTP problem response. Server-side
// failures are logged and their detail withheld.
func (s *Server) apiError(ctx context.Context, err error) error {
	status := kgerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(ctx, "request failed",
			slog.String("code", string(kgerr.CodeOf(err))),
			slog.Any("error", err),
		)
		if status == http.StatusInternalServerError {
			return huma.NewError(status, "internal error")
		}
	}
	return huma.NewError(status, err.Error())
}

func notFound(kind string, id int64) error {
	return huma.Error404NotFound(kind + " not found: " + itoa(id))
}

// --- Health ---

type healthOutput struct {
	Status int
	Body   struct {
		Status string `json:"status" example:"ok" doc:"ok, degraded or unavailable"`
		Store  string `json:"store" doc:"Store status"`
		Cache  string `json:"cache" doc:"Cache status: ok, disabled or the failure"`

		Embedding *health.Metrics `json:"embedding,omitempty" doc:"Hosted embedding provider state"`
	}
}

func (s *Server) handleHealth(ctx context.Context, _ *struct{}) (*healthOutput, error) {
	storeErr, cacheErr := s.graph.Health(ctx)

	out := &healthOutput{Status: http.StatusOK}
	out.Body.Status = "ok"
	out.Body.Store = "ok"
	out.Body.Cache = "ok"
	if !s.graph.CacheEnabled() {
		out.Body.Cache = "disabled"
	} else if cacheErr != nil {
		out.Body.Cache = cacheErr.Error()
		out.Body.Status = "degraded"
	}
	if m, ok := s.graph.EmbedderHealth(); ok {
		out.Body.Embedding = &m
		if !m.Available {
			out.Body.Status = "degraded"
		}
	}
	if storeErr != nil {
		out.Status = http.StatusServiceUnavailable
		out.Body.Status = "unavailable"
		out.Body.Store = storeErr.Error()
	}
	return out, nil
}
