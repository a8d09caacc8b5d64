// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package search

import (
	"cmp"
	"context"
	"slices"

	"github.com/sigil-dev/kgraph/internal/store"
)

// TraverseOptions bounds a breadth-first walk.
type TraverseOptions struct {
	// Depth is the number of hops from the start. Zero means DefaultDepth.
	Depth     int             `json:"depth"`
	Direction store.Direction `json:"direction"`
	// RelationTypes restricts which edges are followed. Empty follows all.
	RelationTypes []string `json:"relation_types,omitempty"`
}

// Subgraph is the result of a traversal. Entities appear once each in
// discovery order, starting with the origin.
type Subgraph struct {
	Entities  []*store.Entity   `json:"entities"`
	Relations []*store.Relation `json:"relations"`
}

// Path is a chain of entities joined by relations; Relations[i] links
// Entities[i] and Entities[i+1].
type Path struct {
	Entities  []*store.Entity   `json:"entities"`
	Relations []*store.Relation `json:"relations"`
}

func (e *Engine) normalizeTraverse(opts TraverseOptions) (TraverseOptions, error) {
	if opts.Depth < 0 {
		return opts, invalidQuery("depth must be non-negative, got %d", opts.Depth)
	}
	if opts.Depth == 0 {
		opts.Depth = DefaultDepth
	}
	if opts.Depth > e.maxDepth {
		return opts, invalidQuery("depth %d exceeds maximum %d", opts.Depth, e.maxDepth)
	}
	if opts.Direction == "" {
		opts.Direction = store.DirectionBoth
	}
	if !opts.Direction.Valid() {
		return opts, invalidQuery("invalid direction %q", opts.Direction)
	}
	for _, t := range opts.RelationTypes {
		if !store.ValidRelationType(t) {
			return opts, invalidQuery("invalid relation type %q", t)
		}
	}
	opts.RelationTypes = slices.Clone(opts.RelationTypes)
	slices.Sort(opts.RelationTypes)
	opts.RelationTypes = slices.Compact(opts.RelationTypes)
	return opts, nil
}

type neighborParams struct {
	Start int64 `json:"start"`
	TraverseOptions
}

// Neighbors walks outward from startID breadth first. Visited entities are
// tracked so cycles terminate and nothing is emitted twice.
func (e *Engine) Neighbors(ctx context.Context, startID int64, opts TraverseOptions) (*Subgraph, error) {
	opts, err := e.normalizeTraverse(opts)
	if err != nil {
		return nil, err
	}
	return run(ctx, e, "neighbors", neighborParams{Start: startID, TraverseOptions: opts}, func(ctx context.Context) (*Subgraph, error) {
		start, err := e.mustEntity(ctx, startID)
		if err != nil {
			return nil, err
		}

		sg := &Subgraph{Entities: []*store.Entity{start}, Relations: []*store.Relation{}}
		visited := map[int64]bool{startID: true}
		seenRel := map[int64]bool{}
		frontier := []int64{startID}

		for depth := 0; depth < opts.Depth && len(frontier) > 0; depth++ {
			var next []int64
			for _, id := range frontier {
				rels, err := e.edges(ctx, id, opts)
				if err != nil {
					return nil, err
				}
				for _, rel := range rels {
					other := otherEnd(rel, id)
					if !visited[other] {
						ent, found, err := e.ops.GetEntity(ctx, other)
						if err != nil {
							return nil, err
						}
						if !found {
							continue
						}
						visited[other] = true
						sg.Entities = append(sg.Entities, ent)
						next = append(next, other)
					}
					if !seenRel[rel.ID] {
						seenRel[rel.ID] = true
						sg.Relations = append(sg.Relations, rel)
					}
				}
			}
			frontier = next
		}
		return sg, nil
	})
}

type pathParams struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
	TraverseOptions
}

// FindPath returns a shortest path from one entity to another within
// opts.Depth hops. found is false when no such path exists.
func (e *Engine) FindPath(ctx context.Context, fromID, toID int64, opts TraverseOptions) (*Path, bool, error) {
	if opts.Depth == 0 {
		opts.Depth = e.maxDepth
	}
	opts, err := e.normalizeTraverse(opts)
	if err != nil {
		return nil, false, err
	}

	p, err := run(ctx, e, "path", pathParams{From: fromID, To: toID, TraverseOptions: opts}, func(ctx context.Context) (*Path, error) {
		from, err := e.mustEntity(ctx, fromID)
		if err != nil {
			return nil, err
		}
		if _, err := e.mustEntity(ctx, toID); err != nil {
			return nil, err
		}
		if fromID == toID {
			return &Path{Entities: []*store.Entity{from}, Relations: []*store.Relation{}}, nil
		}

		type step struct {
			prev int64
			rel  *store.Relation
		}
		parent := map[int64]step{fromID: {}}
		frontier := []int64{fromID}

		for depth := 0; depth < opts.Depth && len(frontier) > 0; depth++ {
			var next []int64
			for _, id := range frontier {
				rels, err := e.edges(ctx, id, opts)
				if err != nil {
					return nil, err
				}
				for _, rel := range rels {
					other := otherEnd(rel, id)
					if _, seen := parent[other]; seen {
						continue
					}
					parent[other] = step{prev: id, rel: rel}
					if other == toID {
						return e.buildPath(ctx, fromID, toID, func(id int64) (int64, *store.Relation) {
							s := parent[id]
							return s.prev, s.rel
						})
					}
					next = append(next, other)
				}
			}
			frontier = next
		}
		// An empty path encodes "not found" so the miss is cached too.
		return &Path{}, nil
	})
	if err != nil {
		return nil, false, err
	}
	if len(p.Entities) == 0 {
		return nil, false, nil
	}
	return p, true, nil
}

func (e *Engine) buildPath(ctx context.Context, fromID, toID int64, parent func(int64) (int64, *store.Relation)) (*Path, error) {
	var (
		ids  []int64
		rels []*store.Relation
	)
	for id := toID; id != fromID; {
		prev, rel := parent(id)
		ids = append(ids, id)
		rels = append(rels, rel)
		id = prev
	}
	ids = append(ids, fromID)
	slices.Reverse(ids)
	slices.Reverse(rels)

	p := &Path{Relations: rels}
	for _, id := range ids {
		ent, err := e.mustEntity(ctx, id)
		if err != nil {
			return nil, err
		}
		p.Entities = append(p.Entities, ent)
	}
	return p, nil
}

// edges lists the relations of id the walk may follow, ordered by ID.
func (e *Engine) edges(ctx context.Context, id int64, opts TraverseOptions) ([]*store.Relation, error) {
	filter := store.RelationFilter{Direction: opts.Direction}
	if len(opts.RelationTypes) == 1 {
		filter.Type = opts.RelationTypes[0]
	}
	rels, err := e.ops.ListRelations(ctx, id, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*store.Relation, 0, len(rels))
	for _, r := range rels {
		if len(opts.RelationTypes) > 1 && !slices.Contains(opts.RelationTypes, r.Type) {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *store.Relation) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (e *Engine) mustEntity(ctx context.Context, id int64) (*store.Entity, error) {
	ent, found, err := e.ops.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, store.NotFoundEntity(id)
	}
	return ent, nil
}

// otherEnd returns the endpoint of rel that is not from. Self-loops return from.
func otherEnd(rel *store.Relation, from int64) int64 {
	if rel.SourceID == from {
		return rel.TargetID
	}
	return rel.SourceID
}
