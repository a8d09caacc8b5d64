// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sigil-dev/kgraph/internal/maintenance"
	"github.com/sigil-dev/kgraph/internal/store"
)

func (s *Server) registerMaintenanceRoutes() {
	huma.Register(s.api, op("stats", http.MethodGet, "/maintenance/stats", "Store statistics", "maintenance"), s.handleStats)
	huma.Register(s.api, op("check-consistency", http.MethodPost, "/maintenance/check", "Find or repair dangling rows", "maintenance"), s.handleCheck)
	huma.Register(s.api, op("find-orphans", http.MethodGet, "/maintenance/orphans", "Entities with no relations or observations", "maintenance"), s.handleFindOrphans)
	huma.Register(s.api, op("prune-orphans", http.MethodPost, "/maintenance/prune", "Delete entities that are still orphans", "maintenance"), s.handlePrune)
	huma.Register(s.api, op("backup", http.MethodPost, "/maintenance/backup", "Write a backup into the backup directory", "maintenance"), s.handleBackup)
	huma.Register(s.api, op("restore", http.MethodPost, "/maintenance/restore", "Replace all contents from a backup", "maintenance"), s.handleRestore)
	huma.Register(s.api, op("clear", http.MethodPost, "/maintenance/clear", "Delete everything", "maintenance"), s.handleClear)
	huma.Register(s.api, op("vacuum", http.MethodPost, "/maintenance/vacuum", "Compact the database file", "maintenance"), s.handleVacuum)
}

type statsOutput struct {
	Body *store.Stats
}

func (s *Server) handleStats(ctx context.Context, _ *struct{}) (*statsOutput, error) {
	st, err := s.graph.Stats(ctx)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	return &statsOutput{Body: st}, nil
}

type checkInput struct {
	Repair bool `query:"repair" doc:"Delete dangling rows"`
}

type reportOutput struct {
	Body *maintenance.Report
}

func (s *Server) handleCheck(ctx context.Context, in *checkInput) (*reportOutput, error) {
	rep, err := s.graph.CheckConsistency(ctx, in.Repair)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	return &reportOutput{Body: rep}, nil
}

type orphansInput struct {
	OlderThan string `query:"older_than" doc:"Minimum age, e.g. 720h" default:"0s"`
}

func (s *Server) handleFindOrphans(ctx context.Context, in *orphansInput) (*entitiesOutput, error) {
	age, err := time.ParseDuration(in.OlderThan)
	if err != nil {
		return nil, huma.Error400BadRequest("older_than must be a duration such as 720h")
	}
	list, err := s.graph.FindOrphans(ctx, age)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	return entities(list), nil
}

type pruneInput struct {
	Body struct {
		IDs []int64 `json:"ids" doc:"Candidate entity IDs, typically from the orphans listing"`
	}
}

type pruneOutput struct {
	Body struct {
		Deleted []int64 `json:"deleted"`
	}
}

func (s *Server) handlePrune(ctx context.Context, in *pruneInput) (*pruneOutput, error) {
	deleted, err := s.graph.PruneOrphans(ctx, in.Body.IDs)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	out := &pruneOutput{}
	out.Body.Deleted = orEmpty(deleted)
	return out, nil
}

type backupInput struct {
	Body struct {
		Name string `json:"name,omitempty" doc:"File name inside the backup directory; empty picks a timestamped name"`
	}
}

type backupOutput struct {
	Body *maintenance.BackupInfo
}

func (s *Server) handleBackup(ctx context.Context, in *backupInput) (*backupOutput, error) {
	path, err := s.backupPath(in.Body.Name, true)
	if err != nil {
		return nil, err
	}
	info, err := s.graph.Backup(ctx, path)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	return &backupOutput{Body: info}, nil
}

type restoreInput struct {
	Body struct {
		Name string `json:"name" minLength:"1" doc:"File name inside the backup directory"`
	}
}

type restoreOutput struct {
	Body *maintenance.RestoreInfo
}

func (s *Server) handleRestore(ctx context.Context, in *restoreInput) (*restoreOutput, error) {
	path, err := s.backupPath(in.Body.Name, false)
	if err != nil {
		return nil, err
	}
	info, err := s.graph.Restore(ctx, path)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	return &restoreOutput{Body: info}, nil
}

// backupPath confines name to the backup directory.
func (s *Server) backupPath(name string, allowEmpty bool) (string, error) {
	if s.cfg.BackupDir == "" {
		return "", huma.Error403Forbidden("backups are disabled: no backup directory configured")
	}
	if name == "" && allowEmpty {
		return s.cfg.BackupDir, nil
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", huma.Error400BadRequest("name must be a plain file name")
	}
	return filepath.Join(s.cfg.BackupDir, name), nil
}

type countsOutput struct {
	Body store.Counts
}

func (s *Server) handleClear(ctx context.Context, _ *struct{}) (*countsOutput, error) {
	counts, err := s.graph.Clear(ctx)
	if err != nil {
		return nil, s.apiError(ctx, err)
	}
	return &countsOutput{Body: counts}, nil
}

func (s *Server) handleVacuum(ctx context.Context, _ *struct{}) (*struct{}, error) {
	if err := s.graph.Vacuum(ctx); err != nil {
		return nil, s.apiError(ctx, err)
	}
	return &struct{}{}, nil
}
