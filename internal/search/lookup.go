// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package search

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sigil-dev/kgraph/internal/store"
)

// ByID fetches one entity.
func (e *Engine) ByID(ctx context.Context, id int64) (*store.Entity, bool, error) {
	return e.ops.GetEntity(ctx, id)
}

type nameTypeParams struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ByNameAndType returns every entity with exactly this name and type, in
// creation order. Names are not unique.
func (e *Engine) ByNameAndType(ctx context.Context, name, typ string) ([]*store.Entity, error) {
	if name == "" || typ == "" {
		return nil, invalidQuery("name and type are required")
	}
	return run(ctx, e, "name_type", nameTypeParams{Name: name, Type: typ}, func(ctx context.Context) ([]*store.Entity, error) {
		return e.ops.Store().FindEntities(ctx, store.EntityQuery{Name: name, Type: typ, Limit: MaxLimit})
	})
}

type typeParams struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

// ByType pages through entities of one type ordered by creation time, then ID.
func (e *Engine) ByType(ctx context.Context, typ string, offset, limit int) ([]*store.Entity, error) {
	if typ == "" {
		return nil, invalidQuery("type is required")
	}
	offset, limit, err := normalizeLimit(offset, limit, DefaultLimit)
	if err != nil {
		return nil, err
	}
	p := typeParams{Type: typ, Offset: offset, Limit: limit}
	return run(ctx, e, "type", p, func(ctx context.Context) ([]*store.Entity, error) {
		return e.ops.Store().FindEntities(ctx, store.EntityQuery{Type: typ, Offset: offset, Limit: limit})
	})
}

// Name match scores.
const (
	ScoreExact    = 1.0
	ScorePrefix   = 0.8
	ScoreContains = 0.6
)

// NameQuery is a case-insensitive text search over entity names.
type NameQuery struct {
	Text     string  `json:"text"`
	Type     string  `json:"type,omitempty"`
	Limit    int     `json:"limit,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
}

// NameMatch is an entity ranked by how closely its name matches.
type NameMatch struct {
	Entity *store.Entity `json:"entity"`
	Score  float64       `json:"score"`
}

// ByName ranks entities whose name contains the query text: exact matches
// first, then prefix matches, then other substrings. Ties go to the lower ID.
// Names and query text are compared by store.NameKey, so case folding and
// decomposed accents do not affect the match.
func (e *Engine) ByName(ctx context.Context, q NameQuery) ([]NameMatch, error) {
	q.Text = norm.NFC.String(strings.TrimSpace(q.Text))
	if q.Text == "" {
		return nil, invalidQuery("search text is required")
	}
	if q.MinScore < 0 || q.MinScore > 1 {
		return nil, invalidQuery("min_score must be within [0,1], got %v", q.MinScore)
	}
	var err error
	if _, q.Limit, err = normalizeLimit(0, q.Limit, DefaultNameLimit); err != nil {
		return nil, err
	}

	return run(ctx, e, "name", q, func(ctx context.Context) ([]NameMatch, error) {
		found, err := e.ops.Store().FindEntities(ctx, store.EntityQuery{
			NameContains: q.Text,
			Type:         q.Type,
			Limit:        nameScanLimit,
		})
		if err != nil {
			return nil, err
		}

		needle := store.NameKey(q.Text)
		out := make([]NameMatch, 0, len(found))
		for _, ent := range found {
			score := nameScore(store.NameKey(ent.Name), needle)
			if score == 0 || score < q.MinScore {
				continue
			}
			out = append(out, NameMatch{Entity: ent, Score: score})
		}
		slices.SortFunc(out, func(a, b NameMatch) int {
			if c := cmp.Compare(b.Score, a.Score); c != 0 {
				return c
			}
			return cmp.Compare(a.Entity.ID, b.Entity.ID)
		})
		if len(out) > q.Limit {
			out = out[:q.Limit]
		}
		return out, nil
	})
}

func nameScore(name, needle string) float64 {
	switch {
	case name == needle:
		return ScoreExact
	case strings.HasPrefix(name, needle):
		return ScorePrefix
	case strings.Contains(name, needle):
		return ScoreContains
	default:
		return 0
	}
}
