// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sigil-dev/kgraph/internal/store"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

const observationColumns = `id, entity_id, content, source, created_at`

func scanObservation(row scanner) (*store.Observation, error) {
	var (
		o       store.Observation
		source  sql.NullString
		created string
	)
	if err := row.Scan(&o.ID, &o.EntityID, &o.Content, &source, &created); err != nil {
		return nil, err
	}
	var err error
	if o.CreatedAt, err = parseTime(created); err != nil {
		return nil, kgerr.Errorf(kgerr.CodeStoreDatabaseFailure, "parsing created_at of observation %d: %w", o.ID, err)
	}
	o.Source = source.String
	return &o, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateObservation attaches an observation to an existing entity.
func (s *Store) CreateObservation(ctx context.Context, in store.NewObservation) (*store.Observation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var created *store.Observation
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		ts := now()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO observations (entity_id, content, source, created_at) VALUES (?, ?, ?, ?)`,
			in.EntityID, in.Content, nullString(in.Source), formatTime(ts),
		)
		if err != nil {
			return kgerr.With(classify(err, "inserting observation"), kgerr.FieldEntityID(in.EntityID))
		}
		id, err := res.LastInsertId()
		if err != nil {
			return classify(err, "reading observation id")
		}
		created = &store.Observation{ID: id, EntityID: in.EntityID, Content: in.Content, Source: in.Source, CreatedAt: ts}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetObservation returns the observation with id; found is false if there is none.
func (s *Store) GetObservation(ctx context.Context, id int64) (*store.Observation, bool, error) {
	o, err := scanObservation(s.db.QueryRowContext(ctx, `SELECT `+observationColumns+` FROM observations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify(err, "getting observation")
	}
	return o, true, nil
}

func (s *Store) UpdateObservation(ctx context.Context, id int64, patch store.ObservationPatch) (*store.Observation, error) {
	if err := patch.Validate(); err != nil {
		return nil, kgerr.With(err, kgerr.FieldObservationID(id))
	}

	var updated *store.Observation
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		o, err := scanObservation(tx.QueryRowContext(ctx, `SELECT `+observationColumns+` FROM observations WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return store.NotFoundObservation(id)
		}
		if err != nil {
			return classify(err, "loading observation for update")
		}
		if patch.Content != nil {
			o.Content = *patch.Content
		}
		if patch.Source != nil {
			o.Source = *patch.Source
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE observations SET content = ?, source = ? WHERE id = ?`,
			o.Content, nullString(o.Source), id,
		); err != nil {
			return classify(err, "updating observation")
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteObservation(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM observations WHERE id = ?`, id)
		if err != nil {
			return classify(err, "deleting observation")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return classify(err, "deleting observation")
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// ListObservations returns up to limit observations of an entity, oldest first.
func (s *Store) ListObservations(ctx context.Context, entityID int64, limit int) ([]*store.Observation, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+observationColumns+` FROM observations WHERE entity_id = ? ORDER BY created_at, id LIMIT ?`,
		entityID, limit,
	)
	if err != nil {
		return nil, classify(err, "listing observations")
	}
	defer func() { _ = rows.Close() }()

	out := []*store.Observation{}
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, classify(err, "scanning observation")
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterating observations")
	}
	return out, nil
}
