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

const relationColumns = `id, source_id, target_id, relation_type, metadata, confidence, created_at`

func (s *Store) scanRelation(row scanner) (*store.Relation, error) {
	var (
		r       store.Relation
		meta    sql.NullString
		created string
	)
	if err := row.Scan(&r.ID, &r.SourceID, &r.TargetID, &r.Type, &meta, &r.Confidence, &created); err != nil {
		return nil, err
	}
	var err error
	if r.CreatedAt, err = parseTime(created); err != nil {
		return nil, kgerr.Errorf(kgerr.CodeStoreDatabaseFailure, "parsing created_at of relation %d: %w", r.ID, err)
	}
	r.Metadata = s.decodeJSON(meta, "relations.metadata", r.ID)
	return &r, nil
}

func (s *Store) collectRelations(rows *sql.Rows) ([]*store.Relation, error) {
	defer func() { _ = rows.Close() }()

	out := []*store.Relation{}
	for rows.Next() {
		r, err := s.scanRelation(rows)
		if err != nil {
			return nil, classify(err, "scanning relation")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterating relations")
	}
	return out, nil
}

// CreateRelation inserts a relation. Both endpoints must exist.
func (s *Store) CreateRelation(ctx context.Context, in store.NewRelation) (*store.Relation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	meta, err := encodeJSON(in.Metadata)
	if err != nil {
		return nil, err
	}
	confidence := store.DefaultConfidence
	if in.Confidence != nil {
		confidence = *in.Confidence
	}

	var created *store.Relation
	err = s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		ts := now()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO relations (source_id, target_id, relation_type, metadata, confidence, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
			in.SourceID, in.TargetID, in.Type, meta, confidence, formatTime(ts),
		)
		if err != nil {
			return kgerr.With(classify(err, "inserting relation"),
				kgerr.Field("source_id", in.SourceID), kgerr.Field("target_id", in.TargetID))
		}
		id, err := res.LastInsertId()
		if err != nil {
			return classify(err, "reading relation id")
		}
		created = &store.Relation{
			ID:         id,
			SourceID:   in.SourceID,
			TargetID:   in.TargetID,
			Type:       in.Type,
			Metadata:   in.Metadata,
			Confidence: confidence,
			CreatedAt:  ts,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetRelation returns the relation with id; found is false if there is none.
func (s *Store) GetRelation(ctx context.Context, id int64) (*store.Relation, bool, error) {
	r, err := s.scanRelation(s.db.QueryRowContext(ctx, `SELECT `+relationColumns+` FROM relations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify(err, "getting relation")
	}
	return r, true, nil
}

// UpdateRelation changes type, metadata or confidence of a relation.
func (s *Store) UpdateRelation(ctx context.Context, id int64, patch store.RelationPatch) (*store.Relation, error) {
	if err := patch.Validate(); err != nil {
		return nil, kgerr.With(err, kgerr.FieldRelationID(id))
	}

	var updated *store.Relation
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		r, err := s.scanRelation(tx.QueryRowContext(ctx, `SELECT `+relationColumns+` FROM relations WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return store.NotFoundRelation(id)
		}
		if err != nil {
			return classify(err, "loading relation for update")
		}

		if patch.Type != nil {
			r.Type = *patch.Type
		}
		if patch.Metadata != nil {
			r.Metadata = patch.Metadata
		}
		if patch.Confidence != nil {
			r.Confidence = *patch.Confidence
		}
		meta, err := encodeJSON(r.Metadata)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE relations SET relation_type = ?, metadata = ?, confidence = ? WHERE id = ?`,
			r.Type, meta, r.Confidence, id,
		); err != nil {
			return classify(err, "updating relation")
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteRelation removes a relation; deleting an absent ID reports false.
func (s *Store) DeleteRelation(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM relations WHERE id = ?`, id)
		if err != nil {
			return classify(err, "deleting relation")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return classify(err, "deleting relation")
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// ListRelations returns relations touching entityID, ordered by ID.
func (s *Store) ListRelations(ctx context.Context, entityID int64, filter store.RelationFilter) ([]*store.Relation, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT ` + relationColumns + ` FROM relations WHERE`)
	switch filter.Direction {
	case store.DirectionOutgoing:
		qb.WriteString(` source_id = ?`)
		args = append(args, entityID)
	case store.DirectionIncoming:
		qb.WriteString(` target_id = ?`)
		args = append(args, entityID)
	default:
		qb.WriteString(` (source_id = ? OR target_id = ?)`)
		args = append(args, entityID, entityID)
	}
	if filter.Type != "" {
		qb.WriteString(` AND relation_type = ?`)
		args = append(args, filter.Type)
	}
	qb.WriteString(` ORDER BY id`)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, classify(err, "listing relations")
	}
	return s.collectRelations(rows)
}
