// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sigil-dev/kgraph/internal/store"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

// FormatVersion identifies the backup file layout.
const FormatVersion = 1

// BackupFile is the on-disk backup format.
type BackupFile struct {
	Version   int          `json:"version"`
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Counts    store.Counts `json:"counts"`
	store.Snapshot
}

// BackupInfo describes a written backup.
type BackupInfo struct {
	Path      string       `json:"path"`
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Counts    store.Counts `json:"counts"`
	SizeBytes int64        `json:"size_bytes"`
}

// RestoreInfo describes a completed restore.
type RestoreInfo struct {
	Path     string       `json:"path"`
	BackupID string       `json:"backup_id"`
	TakenAt  time.Time    `json:"taken_at"`
	Counts   store.Counts `json:"counts"`
}

// Backup writes a consistent snapshot to path. If path is an existing
// directory a timestamped file is created inside it. The file appears
// atomically: readers see either nothing or the complete backup.
func (e *Engine) Backup(ctx context.Context, path string) (*BackupInfo, error) {
	if path == "" {
		return nil, kgerr.New(kgerr.CodeStoreInvalidInput, "backup path is required")
	}
	snap, err := e.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	created := e.now().UTC()
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, "knowledge_graph_"+created.Format("20060102_150405")+".json")
	}

	file := BackupFile{
		Version:   FormatVersion,
		ID:        uuid.NewString(),
		CreatedAt: created,
		Counts: store.Counts{
			Entities:     int64(len(snap.Entities)),
			Relations:    int64(len(snap.Relations)),
			Observations: int64(len(snap.Observations)),
		},
		Snapshot: *snap,
	}
	size, err := writeAtomic(path, &file)
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "wrote backup",
		slog.String("path", path),
		slog.String("id", file.ID),
		slog.Int64("entities", file.Counts.Entities),
	)
	return &BackupInfo{
		Path:      path,
		ID:        file.ID,
		CreatedAt: created,
		Counts:    file.Counts,
		SizeBytes: size,
	}, nil
}

// Restore replaces the store contents with the backup at path in one
// transaction. On any failure the previous contents remain.
func (e *Engine) Restore(ctx context.Context, path string) (*RestoreInfo, error) {
	file, err := ReadBackup(path)
	if err != nil {
		return nil, err
	}
	if err := e.store.ReplaceAll(ctx, &file.Snapshot); err != nil {
		return nil, err
	}
	e.cache.InvalidateAll(ctx)

	e.logger.InfoContext(ctx, "restored backup",
		slog.String("path", path),
		slog.String("id", file.ID),
		slog.Int64("entities", file.Counts.Entities),
	)
	return &RestoreInfo{
		Path:     path,
		BackupID: file.ID,
		TakenAt:  file.CreatedAt,
		Counts:   file.Counts,
	}, nil
}

// ReadBackup loads and checks a backup file without touching the store.
func ReadBackup(path string) (*BackupFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, kgerr.Wrap(err, kgerr.CodeStoreInvalidInput, "backup file not found", kgerr.Field("path", path))
		}
		return nil, kgerr.Wrap(err, kgerr.CodeMaintenanceIOFailure, "reading backup", kgerr.Field("path", path))
	}

	var file BackupFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, kgerr.Wrap(err, kgerr.CodeMaintenanceSnapshotInvalid, "decoding backup", kgerr.Field("path", path))
	}
	if file.Version != FormatVersion {
		return nil, kgerr.Errorf(kgerr.CodeMaintenanceSnapshotInvalid,
			"unsupported backup version %d (want %d)", file.Version, FormatVersion)
	}
	if file.Counts.Entities != int64(len(file.Entities)) ||
		file.Counts.Relations != int64(len(file.Relations)) ||
		file.Counts.Observations != int64(len(file.Observations)) {
		return nil, kgerr.New(kgerr.CodeMaintenanceSnapshotInvalid,
			"backup counts do not match its contents", kgerr.Field("path", path))
	}
	if file.Entities == nil {
		file.Entities = []*store.Entity{}
	}
	if file.Relations == nil {
		file.Relations = []*store.Relation{}
	}
	if file.Observations == nil {
		file.Observations = []*store.Observation{}
	}
	if err := file.Validate(0); err != nil {
		// Report the file as malformed rather than surfacing the store code.
		return nil, kgerr.Errorf(kgerr.CodeMaintenanceSnapshotInvalid, "backup contents are inconsistent: %v", err)
	}
	return &file, nil
}

func writeAtomic(path string, v any) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".kgraph-backup-*.tmp")
	if err != nil {
		return 0, kgerr.Wrap(err, kgerr.CodeMaintenanceIOFailure, "creating backup file", kgerr.Field("path", path))
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		cleanup()
		return 0, kgerr.Wrap(err, kgerr.CodeMaintenanceIOFailure, "encoding backup", kgerr.Field("path", path))
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return 0, kgerr.Wrap(err, kgerr.CodeMaintenanceIOFailure, "syncing backup", kgerr.Field("path", path))
	}
	fi, err := tmp.Stat()
	if err != nil {
		cleanup()
		return 0, kgerr.Wrap(err, kgerr.CodeMaintenanceIOFailure, "inspecting backup", kgerr.Field("path", path))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, kgerr.Wrap(err, kgerr.CodeMaintenanceIOFailure, "closing backup", kgerr.Field("path", path))
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		_ = os.Remove(tmpPath)
		return 0, kgerr.Wrap(err, kgerr.CodeMaintenanceIOFailure, "setting backup permissions", kgerr.Field("path", path))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, kgerr.Wrap(err, kgerr.CodeMaintenanceIOFailure, "moving backup into place", kgerr.Field("path", path))
	}
	return fi.Size(), nil
}
