// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/sigil-dev/kgraph/internal/store"
)

const (
	danglingRelationsQuery = `SELECT r.id FROM relations r
LEFT JOIN entities s ON s.id = r.source_id
LEFT JOIN entities t ON t.id = r.target_id
WHERE s.id IS NULL OR t.id IS NULL
ORDER BY r.id`

	danglingObservationsQuery = `SELECT o.id FROM observations o
LEFT JOIN entities e ON e.id = o.entity_id
WHERE e.id IS NULL
ORDER BY o.id`

	orphanPredicate = `NOT EXISTS (SELECT 1 FROM relations r WHERE r.source_id = entities.id OR r.target_id = entities.id)
AND NOT EXISTS (SELECT 1 FROM observations o WHERE o.entity_id = entities.id)`

	topObservedLimit = 10
)

func findDangling(ctx context.Context, q queryer) (store.Dangling, error) {
	rels, err := queryIDs(ctx, q, danglingRelationsQuery)
	if err != nil {
		return store.Dangling{}, classify(err, "finding dangling relations")
	}
	obs, err := queryIDs(ctx, q, danglingObservationsQuery)
	if err != nil {
		return store.Dangling{}, classify(err, "finding dangling observations")
	}
	return store.Dangling{RelationIDs: rels, ObservationIDs: obs}, nil
}

// FindDangling lists relations and observations whose entity is missing.
// These only exist if rows were written with foreign keys disabled.
func (s *Store) FindDangling(ctx context.Context) (store.Dangling, error) {
	return findDangling(ctx, s.db)
}

// RemoveDangling deletes every dangling row in one transaction.
func (s *Store) RemoveDangling(ctx context.Context) (store.Dangling, error) {
	var removed store.Dangling
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		d, err := findDangling(ctx, tx)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM relations WHERE id IN (`+danglingRelationsQuery+`)`); err != nil {
			return classify(err, "deleting dangling relations")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM observations WHERE id IN (`+danglingObservationsQuery+`)`); err != nil {
			return classify(err, "deleting dangling observations")
		}
		removed = d
		return nil
	})
	if err != nil {
		return store.Dangling{}, err
	}
	return removed, nil
}

// OrphanEntities lists entities without relations or observations created before the cutoff.
func (s *Store) OrphanEntities(ctx context.Context, createdBefore time.Time) ([]*store.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE created_at < ? AND `+orphanPredicate+` ORDER BY created_at, id`,
		formatTime(createdBefore),
	)
	if err != nil {
		return nil, classify(err, "finding orphan entities")
	}
	return s.collectEntities(rows)
}

// DeleteOrphans deletes the given entities that are still orphans.
func (s *Store) DeleteOrphans(ctx context.Context, ids []int64) ([]int64, error) {
	deleted := []int64{}
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, id := range ids {
			res, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ? AND `+orphanPredicate, id)
			if err != nil {
				return classify(err, "deleting orphan entity")
			}
			n, err := res.RowsAffected()
			if err != nil {
				return classify(err, "deleting orphan entity")
			}
			if n > 0 {
				deleted = append(deleted, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// Snapshot reads all rows inside a single transaction.
func (s *Store) Snapshot(ctx context.Context) (*store.Snapshot, error) {
	snap := &store.Snapshot{}
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT `+entityColumns+` FROM entities ORDER BY id`)
		if err != nil {
			return classify(err, "reading entities")
		}
		if snap.Entities, err = s.collectEntities(rows); err != nil {
			return err
		}

		rows, err = tx.QueryContext(ctx, `SELECT `+relationColumns+` FROM relations ORDER BY id`)
		if err != nil {
			return classify(err, "reading relations")
		}
		if snap.Relations, err = s.collectRelations(rows); err != nil {
			return err
		}

		rows, err = tx.QueryContext(ctx, `SELECT `+observationColumns+` FROM observations ORDER BY id`)
		if err != nil {
			return classify(err, "reading observations")
		}
		defer func() { _ = rows.Close() }()
		snap.Observations = []*store.Observation{}
		for rows.Next() {
			o, err := scanObservation(rows)
			if err != nil {
				return classify(err, "scanning observation")
			}
			snap.Observations = append(snap.Observations, o)
		}
		return classify(rows.Err(), "iterating observations")
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// ReplaceAll deletes all rows and inserts the snapshot with its original IDs.
func (s *Store) ReplaceAll(ctx context.Context, snap *store.Snapshot) error {
	if err := snap.Validate(s.dims); err != nil {
		return err
	}

	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, table := range []string{"observations", "relations", "entities"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return classify(err, "clearing "+table)
			}
		}

		ts := now()
		for _, e := range snap.Entities {
			blob, err := encodeVector(e.Embedding)
			if err != nil {
				return classify(err, "serializing embedding")
			}
			props, err := encodeJSON(e.Properties)
			if err != nil {
				return err
			}
			created, updated := orNow(e.CreatedAt, ts), orNow(e.UpdatedAt, ts)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO entities (id, name, name_key, entity_type, embedding, embedding_dim, properties, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, e.Name, store.NameKey(e.Name), e.Type, blob, vectorDim(e.Embedding), props, formatTime(created), formatTime(updated),
			); err != nil {
				return classify(err, "restoring entity")
			}
		}

		for _, r := range snap.Relations {
			meta, err := encodeJSON(r.Metadata)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO relations (id, source_id, target_id, relation_type, metadata, confidence, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
				r.ID, r.SourceID, r.TargetID, r.Type, meta, r.Confidence, formatTime(orNow(r.CreatedAt, ts)),
			); err != nil {
				return classify(err, "restoring relation")
			}
		}

		for _, o := range snap.Observations {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO observations (id, entity_id, content, source, created_at) VALUES (?, ?, ?, ?, ?)`,
				o.ID, o.EntityID, o.Content, nullString(o.Source), formatTime(orNow(o.CreatedAt, ts)),
			); err != nil {
				return classify(err, "restoring observation")
			}
		}
		return nil
	})
}

func orNow(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}

func countRows(ctx context.Context, q queryer) (store.Counts, error) {
	var c store.Counts
	err := q.QueryRowContext(ctx, `SELECT
	(SELECT COUNT(*) FROM entities),
	(SELECT COUNT(*) FROM relations),
	(SELECT COUNT(*) FROM observations)`).Scan(&c.Entities, &c.Relations, &c.Observations)
	if err != nil {
		return store.Counts{}, classify(err, "counting rows")
	}
	return c, nil
}

func groupCounts(ctx context.Context, q queryer, query string) (map[string]int64, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := map[string]int64{}
	for rows.Next() {
		var (
			key string
			n   int64
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}

// Stats reports counts, type breakdowns, the most observed entities and database size.
func (s *Store) Stats(ctx context.Context) (*store.Stats, error) {
	counts, err := countRows(ctx, s.db)
	if err != nil {
		return nil, err
	}
	st := &store.Stats{Counts: counts}

	if st.EntityTypes, err = groupCounts(ctx, s.db,
		`SELECT entity_type, COUNT(*) FROM entities GROUP BY entity_type ORDER BY entity_type`); err != nil {
		return nil, classify(err, "counting entity types")
	}
	if st.RelationTypes, err = groupCounts(ctx, s.db,
		`SELECT relation_type, COUNT(*) FROM relations GROUP BY relation_type ORDER BY relation_type`); err != nil {
		return nil, classify(err, "counting relation types")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT e.id, e.name, e.entity_type, COUNT(o.id) AS n
FROM entities e JOIN observations o ON o.entity_id = e.id
GROUP BY e.id ORDER BY n DESC, e.id LIMIT ?`, topObservedLimit)
	if err != nil {
		return nil, classify(err, "ranking observed entities")
	}
	defer func() { _ = rows.Close() }()
	st.TopObserved = []store.EntityCount{}
	for rows.Next() {
		var ec store.EntityCount
		if err := rows.Scan(&ec.ID, &ec.Name, &ec.Type, &ec.Count); err != nil {
			return nil, classify(err, "scanning observed entity")
		}
		st.TopObserved = append(st.TopObserved, ec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterating observed entities")
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities WHERE embedding IS NOT NULL`).Scan(&st.Embedded); err != nil {
		return nil, classify(err, "counting embeddings")
	}
	if st.Dimensions, err = s.dimension(ctx, s.db); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()`).Scan(&st.SizeBytes); err != nil {
		return nil, classify(err, "reading database size")
	}
	return st, nil
}

// Clear deletes every row in one transaction and returns what was removed.
func (s *Store) Clear(ctx context.Context) (store.Counts, error) {
	var removed store.Counts
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		c, err := countRows(ctx, tx)
		if err != nil {
			return err
		}
		for _, table := range []string{"observations", "relations", "entities"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return classify(err, "clearing "+table)
			}
		}
		removed = c
		return nil
	})
	return removed, err
}

// Vacuum reclaims free pages.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return classify(err, "vacuuming database")
	}
	return nil
}
