// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/sigil-dev/kgraph/internal/store"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

const (
	entityColumns     = `id, name, entity_type, embedding, properties, created_at, updated_at`
	defaultQueryLimit = 100
)

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanEntity(row scanner, extra ...any) (*store.Entity, error) {
	var (
		e                store.Entity
		embedding        []byte
		props            sql.NullString
		created, updated string
	)
	dest := append([]any{&e.ID, &e.Name, &e.Type, &embedding, &props, &created, &updated}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if e.CreatedAt, err = parseTime(created); err != nil {
		return nil, kgerr.Errorf(kgerr.CodeStoreDatabaseFailure, "parsing created_at of entity %d: %w", e.ID, err)
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, kgerr.Errorf(kgerr.CodeStoreDatabaseFailure, "parsing updated_at of entity %d: %w", e.ID, err)
	}
	e.Embedding = decodeVector(embedding)
	e.Properties = s.decodeJSON(props, "entities.properties", e.ID)
	return &e, nil
}

func (s *Store) collectEntities(rows *sql.Rows) ([]*store.Entity, error) {
	defer func() { _ = rows.Close() }()

	out := []*store.Entity{}
	for rows.Next() {
		e, err := s.scanEntity(rows)
		if err != nil {
			return nil, classify(err, "scanning entity")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterating entities")
	}
	return out, nil
}

// CreateEntity inserts a new entity. The first embedding written fixes the
// store dimension unless one was configured.
func (s *Store) CreateEntity(ctx context.Context, in store.NewEntity) (*store.Entity, error) {
	var created *store.Entity
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		dims, err := s.dimension(ctx, tx)
		if err != nil {
			return err
		}
		if err := in.Validate(dims); err != nil {
			return err
		}
		blob, err := encodeVector(in.Embedding)
		if err != nil {
			return kgerr.Errorf(kgerr.CodeStoreEntityInvalidInput, "serializing embedding: %w", err)
		}
		props, err := encodeJSON(in.Properties)
		if err != nil {
			return err
		}

		ts := now()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO entities (name, name_key, entity_type, embedding, embedding_dim, properties, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			in.Name, store.NameKey(in.Name), in.Type, blob, vectorDim(in.Embedding), props, formatTime(ts), formatTime(ts),
		)
		if err != nil {
			return classify(err, "inserting entity")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return classify(err, "reading entity id")
		}

		created = &store.Entity{
			ID:         id,
			Name:       in.Name,
			Type:       in.Type,
			Embedding:  in.Embedding,
			Properties: in.Properties,
			CreatedAt:  ts,
			UpdatedAt:  ts,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetEntity returns the entity with id; found is false if there is none.
func (s *Store) GetEntity(ctx context.Context, id int64) (*store.Entity, bool, error) {
	e, err := s.getEntity(ctx, s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify(err, "getting entity")
	}
	return e, true, nil
}

func (s *Store) getEntity(ctx context.Context, q queryer, id int64) (*store.Entity, error) {
	row := q.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	return s.scanEntity(row)
}

// UpdateEntity applies a partial update and refreshes updated_at.
func (s *Store) UpdateEntity(ctx context.Context, id int64, patch store.EntityPatch) (*store.Entity, error) {
	var updated *store.Entity
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		e, err := s.getEntity(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return store.NotFoundEntity(id)
		}
		if err != nil {
			return classify(err, "loading entity for update")
		}

		dims, err := s.dimension(ctx, tx)
		if err != nil {
			return err
		}
		if err := patch.Validate(dims); err != nil {
			return kgerr.With(err, kgerr.FieldEntityID(id))
		}

		if patch.Name != nil {
			e.Name = *patch.Name
		}
		if patch.Type != nil {
			e.Type = *patch.Type
		}
		switch {
		case patch.Embedding != nil:
			e.Embedding = patch.Embedding
		case patch.ClearEmbedding:
			e.Embedding = nil
		}
		if patch.Properties != nil {
			e.Properties = patch.Properties
		}

		ts := now()
		if !ts.After(e.UpdatedAt) {
			ts = e.UpdatedAt.Add(1)
		}
		e.UpdatedAt = ts

		blob, err := encodeVector(e.Embedding)
		if err != nil {
			return kgerr.Errorf(kgerr.CodeStoreEntityInvalidInput, "serializing embedding: %w", err)
		}
		props, err := encodeJSON(e.Properties)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE entities SET name = ?, name_key = ?, entity_type = ?, embedding = ?, embedding_dim = ?, properties = ?, updated_at = ?
WHERE id = ?`,
			e.Name, store.NameKey(e.Name), e.Type, blob, vectorDim(e.Embedding), props, formatTime(e.UpdatedAt), id,
		); err != nil {
			return classify(err, "updating entity")
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteEntity removes the entity together with every relation touching it
// and every observation attached to it.
func (s *Store) DeleteEntity(ctx context.Context, id int64) (store.DeleteResult, error) {
	var res store.DeleteResult
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM entities WHERE id = ?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return classify(err, "checking entity")
		}

		rels, err := queryIDs(ctx, tx, `SELECT id FROM relations WHERE source_id = ? OR target_id = ? ORDER BY id`, id, id)
		if err != nil {
			return classify(err, "collecting cascaded relations")
		}
		obs, err := queryIDs(ctx, tx, `SELECT id FROM observations WHERE entity_id = ? ORDER BY id`, id)
		if err != nil {
			return classify(err, "collecting cascaded observations")
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM relations WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
			return classify(err, "deleting relations")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM observations WHERE entity_id = ?`, id); err != nil {
			return classify(err, "deleting observations")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id); err != nil {
			return classify(err, "deleting entity")
		}

		res = store.DeleteResult{Deleted: true, RelationIDs: rels, ObservationIDs: obs}
		return nil
	})
	if err != nil {
		return store.DeleteResult{}, err
	}
	return res, nil
}

// FindEntities filters entities by exact name, type and name substring. The
// substring is matched against the folded name_key column.
func (s *Store) FindEntities(ctx context.Context, q store.EntityQuery) ([]*store.Entity, error) {
	var (
		qb   strings.Builder
		args []any
	)

	qb.WriteString(`SELECT ` + entityColumns + ` FROM entities WHERE 1=1`)
	if q.Name != "" {
		qb.WriteString(` AND name = ?`)
		args = append(args, q.Name)
	}
	if q.Type != "" {
		qb.WriteString(` AND entity_type = ?`)
		args = append(args, q.Type)
	}
	if q.NameContains != "" {
		qb.WriteString(` AND name_key LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(store.NameKey(q.NameContains))+"%")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	offset := max(q.Offset, 0)
	qb.WriteString(` ORDER BY created_at, id LIMIT ? OFFSET ?`)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, classify(err, "finding entities")
	}
	return s.collectEntities(rows)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// NearestEntities ranks every embedded entity by distance to vector.
func (s *Store) NearestEntities(ctx context.Context, vector []float32, q store.NearestQuery) ([]store.ScoredEntity, error) {
	if q.K <= 0 {
		return nil, kgerr.Errorf(kgerr.CodeStoreInvalidInput, "nearest: k must be positive, got %d", q.K)
	}

	var fn string
	switch q.Metric {
	case "", store.MetricCosine:
		fn = "vec_distance_cosine"
	case store.MetricL2:
		fn = "vec_distance_l2"
	default:
		return nil, kgerr.Errorf(kgerr.CodeStoreInvalidInput, "nearest: unknown metric %q", q.Metric)
	}

	dims, err := s.dimension(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if err := store.ValidateEmbedding(vector, dims); err != nil {
		return nil, err
	}
	if dims == 0 {
		return []store.ScoredEntity{}, nil
	}
	blob, err := encodeVector(vector)
	if err != nil {
		return nil, kgerr.Errorf(kgerr.CodeStoreInvalidInput, "serializing query vector: %w", err)
	}

	var (
		qb   strings.Builder
		args = []any{blob}
	)
	// Rows written before zero vectors were rejected have no cosine distance.
	qb.WriteString(`SELECT * FROM (SELECT ` + entityColumns + `, ` + fn + `(embedding, ?) AS distance FROM entities WHERE embedding IS NOT NULL`)
	if q.Type != "" {
		qb.WriteString(` AND entity_type = ?`)
		args = append(args, q.Type)
	}
	qb.WriteString(`) WHERE distance IS NOT NULL ORDER BY distance, id LIMIT ?`)
	args = append(args, q.K)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, classify(err, "scanning nearest entities")
	}
	defer func() { _ = rows.Close() }()

	out := make([]store.ScoredEntity, 0, q.K)
	for rows.Next() {
		var dist float64
		e, err := s.scanEntity(rows, &dist)
		if err != nil {
			return nil, classify(err, "scanning nearest entity")
		}
		out = append(out, store.ScoredEntity{Entity: e, Distance: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterating nearest entities")
	}
	return out, nil
}
