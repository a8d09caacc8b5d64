// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/kgraph/internal/store"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.GraphStore = (*Store)(nil)

const fileParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"

// Store implements store.GraphStore on a single SQLite database.
// Entities, relations and observations live in three tables joined by
// foreign keys with ON DELETE CASCADE.
type Store struct {
	db     *sql.DB
	path   string
	dims   int
	logger *slog.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger used for rollback failures and data warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New opens (or creates) the database selected by cfg and applies the schema.
// An in-memory database is private to the returned Store.
func New(cfg store.StorageConfig, opts ...Option) (*Store, error) {
	s := &Store{dims: cfg.VectorDimensions, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	var dsn string
	if cfg.InMemory() {
		s.path = store.MemoryPath
		dsn = "file:kg-" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on&_txlock=immediate"
	} else {
		s.path = cfg.Path
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, kgerr.Errorf(kgerr.CodeStoreBackendUnavailable, "creating database directory: %w", err)
			}
		}
		dsn = cfg.Path + fileParams
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, kgerr.Errorf(kgerr.CodeStoreBackendUnavailable, "opening sqlite db: %w", err)
	}
	if cfg.InMemory() {
		// A shared-cache memory database lives as long as one connection does.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, classify(err, "pinging sqlite db")
	}

	var fk int
	if err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		_ = db.Close()
		return nil, classify(err, "reading foreign_keys pragma")
	}
	if fk != 1 {
		_ = db.Close()
		return nil, kgerr.New(kgerr.CodeStoreDatabaseFailure, "sqlite foreign key enforcement is disabled")
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, classify(err, "migrating knowledge graph tables")
	}

	s.db = db
	return s, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS entities (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	name_key      TEXT NOT NULL DEFAULT '',
	entity_type   TEXT NOT NULL,
	embedding     BLOB,
	embedding_dim INTEGER,
	properties    TEXT,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS relations (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id     INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	target_id     INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	relation_type TEXT NOT NULL,
	metadata      TEXT,
	confidence    REAL NOT NULL DEFAULT 1.0,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS observations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id  INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	content    TEXT NOT NULL,
	source     TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type, created_at, id);
CREATE INDEX IF NOT EXISTS idx_entities_created ON entities(created_at, id);
CREATE INDEX IF NOT EXISTS idx_relations_source ON relations(source_id);
CREATE INDEX IF NOT EXISTS idx_relations_target ON relations(target_id);
CREATE INDEX IF NOT EXISTS idx_relations_type ON relations(relation_type);
CREATE INDEX IF NOT EXISTS idx_observations_entity ON observations(entity_id, created_at, id);
`
	if _, err := db.Exec(ddl); err != nil {
		return err
	}
	return backfillNameKeys(db)
}

// backfillNameKeys adds the name_key column to databases created before it
// existed and fills it for rows that have none.
func backfillNameKeys(db *sql.DB) error {
	var has int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info('entities') WHERE name = 'name_key'`,
	).Scan(&has); err != nil {
		return err
	}
	if has == 0 {
		if _, err := db.Exec(`ALTER TABLE entities ADD COLUMN name_key TEXT NOT NULL DEFAULT ''`); err != nil {
			return err
		}
	}

	rows, err := db.Query(`SELECT id, name FROM entities WHERE name_key = ''`)
	if err != nil {
		return err
	}
	keys := make(map[int64]string)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			_ = rows.Close()
			return err
		}
		keys[id] = store.NameKey(name)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for id, key := range keys {
		if _, err := tx.Exec(`UPDATE entities SET name_key = ? WHERE id = ?`, key, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Path returns the database file path, or store.MemoryPath.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a write transaction and commits if fn returns nil.
// Any error or panic rolls the transaction back. Once started, the
// transaction is not bound to ctx cancellation: fn receives a detached context.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return kgerr.FromContext(err, "transaction not started")
	}
	ctx = context.WithoutCancel(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, "beginning transaction")
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.ErrorContext(ctx, "transaction rollback failed", "error", rbErr)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(err, "committing transaction")
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dimension returns the fixed embedding dimension, or 0 while none is stored.
func (s *Store) dimension(ctx context.Context, q queryer) (int, error) {
	if s.dims > 0 {
		return s.dims, nil
	}
	var dim sql.NullInt64
	err := q.QueryRowContext(ctx, `SELECT embedding_dim FROM entities WHERE embedding_dim IS NOT NULL LIMIT 1`).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, classify(err, "reading embedding dimension")
	}
	return int(dim.Int64), nil
}

func queryIDs(ctx context.Context, q queryer, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// classify maps a driver error onto the error taxonomy.
func classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	if kgerr.CodeOf(err) != "" {
		return err
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		if se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return kgerr.Errorf(kgerr.CodeStoreIntegrityViolation, "%s: %w", msg, err)
		}
		switch se.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrCorrupt, sqlite3.ErrIoErr,
			sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrReadonly, sqlite3.ErrFull, sqlite3.ErrPerm:
			return kgerr.Errorf(kgerr.CodeStoreBackendUnavailable, "%s: %w", msg, err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return kgerr.FromContext(err, msg)
	}
	// database/sql does not export its closed-pool error.
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) || strings.Contains(err.Error(), "database is closed") {
		return kgerr.Errorf(kgerr.CodeStoreBackendUnavailable, "%s: %w", msg, err)
	}
	return kgerr.Errorf(kgerr.CodeStoreDatabaseFailure, "%s: %w", msg, err)
}

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// now returns the current time at the precision stored.
func now() time.Time {
	return time.Now().UTC().Round(0)
}

func encodeVector(v []float32) (any, error) {
	if v == nil {
		return nil, nil
	}
	return sqlite_vec.SerializeFloat32(v)
}

// decodeVector reverses sqlite_vec.SerializeFloat32 (little-endian float32).
func decodeVector(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func encodeJSON(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, kgerr.Errorf(kgerr.CodeStoreInvalidInput, "encoding json column: %w", err)
	}
	return string(b), nil
}

func (s *Store) decodeJSON(raw sql.NullString, column string, id int64) map[string]any {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		s.logger.Warn("ignoring corrupt json column",
			slog.String("column", column),
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return m
}

func vectorDim(v []float32) any {
	if v == nil {
		return nil
	}
	return len(v)
}
