// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import "time"

// --- Entity types ---

// Entity is a node in the knowledge graph: a code symbol, file or concept.
// Identity is by ID; (Name, Type) is not unique.
type Entity struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Embedding  []float32      `json:"embedding,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NewEntity holds the caller-supplied fields of an entity to create.
type NewEntity struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Embedding  []float32      `json:"embedding,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// EntityPatch is a partial update. Nil fields are left unchanged.
type EntityPatch struct {
	Name       *string        `json:"name,omitempty"`
	Type       *string        `json:"type,omitempty"`
	Embedding  []float32      `json:"embedding,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`

	// ClearEmbedding removes the stored embedding. Ignored when Embedding is set.
	ClearEmbedding bool `json:"clear_embedding,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p EntityPatch) Empty() bool {
	return p.Name == nil && p.Type == nil && p.Embedding == nil && p.Properties == nil && !p.ClearEmbedding
}

// --- Relation types ---

// DefaultConfidence is assigned to relations created without one.
const DefaultConfidence = 1.0

// Relation is a directed, typed edge between two entities.
type Relation struct {
	ID         int64          `json:"id"`
	SourceID   int64          `json:"source_id"`
	TargetID   int64          `json:"target_id"`
	Type       string         `json:"type"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Confidence float64        `json:"confidence"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewRelation holds the caller-supplied fields of a relation to create.
type NewRelation struct {
	SourceID   int64          `json:"source_id"`
	TargetID   int64          `json:"target_id"`
	Type       string         `json:"type"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
}

// RelationPatch is a partial update of a relation. Endpoints are immutable.
type RelationPatch struct {
	Type       *string        `json:"type,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
}

// Direction selects which edges of an entity are considered.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// RelationFilter narrows ListRelations. Zero value means both directions, any type.
type RelationFilter struct {
	Direction Direction `json:"direction,omitempty"`
	Type      string    `json:"type,omitempty"`
}

// --- Observation types ---

// Observation is a free-form fact attached to an entity.
type Observation struct {
	ID        int64     `json:"id"`
	EntityID  int64     `json:"entity_id"`
	Content   string    `json:"content"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewObservation holds the caller-supplied fields of an observation to create.
type NewObservation struct {
	EntityID int64  `json:"entity_id"`
	Content  string `json:"content"`
	Source   string `json:"source,omitempty"`
}

// ObservationPatch is a partial update of an observation.
type ObservationPatch struct {
	Content *string `json:"content,omitempty"`
	Source  *string `json:"source,omitempty"`
}

// --- Query types ---

// EntityQuery filters entities. Results are ordered by creation time, then ID.
type EntityQuery struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
	// NameContains matches case-insensitively after Unicode folding and
	// normalization; see NameKey.
	NameContains string `json:"name_contains,omitempty"`
	Offset       int    `json:"offset,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// Metric is a vector distance function. Smaller is more similar for all metrics.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
)

// NearestQuery parameterizes an exact nearest-neighbour scan.
type NearestQuery struct {
	K      int    `json:"k"`
	Metric Metric `json:"metric,omitempty"`
	Type   string `json:"type,omitempty"`
}

// ScoredEntity pairs an entity with its distance to a query vector.
type ScoredEntity struct {
	Entity   *Entity `json:"entity"`
	Distance float64 `json:"distance"`
}

// --- Results ---

// DeleteResult reports what an entity delete removed, cascades included.
type DeleteResult struct {
	Deleted        bool    `json:"deleted"`
	RelationIDs    []int64 `json:"relation_ids,omitempty"`
	ObservationIDs []int64 `json:"observation_ids,omitempty"`
}

// RelationsRemoved is the number of relations removed by the cascade.
func (r DeleteResult) RelationsRemoved() int { return len(r.RelationIDs) }

// ObservationsRemoved is the number of observations removed by the cascade.
func (r DeleteResult) ObservationsRemoved() int { return len(r.ObservationIDs) }

// Dangling lists rows whose referenced entity no longer exists.
type Dangling struct {
	RelationIDs    []int64 `json:"relation_ids"`
	ObservationIDs []int64 `json:"observation_ids"`
}

// Empty reports whether nothing dangles.
func (d Dangling) Empty() bool {
	return len(d.RelationIDs) == 0 && len(d.ObservationIDs) == 0
}

// Snapshot is the full contents of a store, read in one transaction.
type Snapshot struct {
	Entities     []*Entity      `json:"entities"`
	Relations    []*Relation    `json:"relations"`
	Observations []*Observation `json:"observations"`
}

// Counts summarizes table sizes.
type Counts struct {
	Entities     int64 `json:"entities"`
	Relations    int64 `json:"relations"`
	Observations int64 `json:"observations"`
}

// EntityCount is an entity with an associated tally.
type EntityCount struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// Stats describes store contents.
type Stats struct {
	Counts
	EntityTypes   map[string]int64 `json:"entity_types"`
	RelationTypes map[string]int64 `json:"relation_types"`
	TopObserved   []EntityCount    `json:"top_observed"`
	Embedded      int64            `json:"embedded"`
	Dimensions    int              `json:"dimensions"`
	SizeBytes     int64            `json:"size_bytes"`
}
