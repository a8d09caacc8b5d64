// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"math"
	"regexp"
	"strings"

	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

var relationTypePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.:-]*$`)

// ValidRelationType reports whether t is an acceptable relation type tag.
func ValidRelationType(t string) bool {
	return relationTypePattern.MatchString(t)
}

// Valid reports whether the direction is known. The empty direction is valid and means both.
func (d Direction) Valid() bool {
	switch d {
	case "", DirectionOutgoing, DirectionIncoming, DirectionBoth:
		return true
	default:
		return false
	}
}

// Valid reports whether the metric is known. The empty metric is valid and means cosine.
func (m Metric) Valid() bool {
	switch m {
	case "", MetricCosine, MetricL2:
		return true
	default:
		return false
	}
}

// ValidateEmbedding checks a vector against the store dimension.
// dims of 0 means the dimension is not fixed yet. A zero vector has no
// direction, so cosine distance to it is undefined and it is rejected.
func ValidateEmbedding(v []float32, dims int) error {
	if len(v) == 0 {
		return kgerr.New(kgerr.CodeStoreEntityInvalidInput, "embedding: must not be empty")
	}
	if dims > 0 && len(v) != dims {
		return kgerr.Errorf(kgerr.CodeStoreEntityInvalidInput,
			"embedding: dimension %d does not match store dimension %d", len(v), dims)
	}
	var norm float64
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return kgerr.Errorf(kgerr.CodeStoreEntityInvalidInput, "embedding: component %d is not finite", i)
		}
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return kgerr.New(kgerr.CodeStoreEntityInvalidInput, "embedding: must not be the zero vector")
	}
	return nil
}

// Validate checks required fields of an entity to create.
func (e NewEntity) Validate(dims int) error {
	if strings.TrimSpace(e.Name) == "" {
		return kgerr.New(kgerr.CodeStoreEntityInvalidInput, "entity: name is required")
	}
	if strings.TrimSpace(e.Type) == "" {
		return kgerr.New(kgerr.CodeStoreEntityInvalidInput, "entity: type is required")
	}
	if e.Embedding != nil {
		return ValidateEmbedding(e.Embedding, dims)
	}
	return nil
}

// Validate checks the fields a patch sets.
func (p EntityPatch) Validate(dims int) error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return kgerr.New(kgerr.CodeStoreEntityInvalidInput, "entity: name must not be empty")
	}
	if p.Type != nil && strings.TrimSpace(*p.Type) == "" {
		return kgerr.New(kgerr.CodeStoreEntityInvalidInput, "entity: type must not be empty")
	}
	if p.Embedding != nil {
		return ValidateEmbedding(p.Embedding, dims)
	}
	return nil
}

func validateConfidence(c *float64) error {
	if c == nil {
		return nil
	}
	if math.IsNaN(*c) || *c < 0 || *c > 1 {
		return kgerr.Errorf(kgerr.CodeStoreRelationInvalidInput, "relation: confidence %v outside [0, 1]", *c)
	}
	return nil
}

// Validate checks required fields of a relation to create.
// Endpoint existence is enforced by the backing store.
func (r NewRelation) Validate() error {
	if r.SourceID <= 0 || r.TargetID <= 0 {
		return kgerr.New(kgerr.CodeStoreRelationInvalidInput, "relation: source and target IDs are required")
	}
	if !ValidRelationType(r.Type) {
		return kgerr.Errorf(kgerr.CodeStoreRelationInvalidInput, "relation: invalid type %q", r.Type)
	}
	return validateConfidence(r.Confidence)
}

func (p RelationPatch) Validate() error {
	if p.Type != nil && !ValidRelationType(*p.Type) {
		return kgerr.Errorf(kgerr.CodeStoreRelationInvalidInput, "relation: invalid type %q", *p.Type)
	}
	return validateConfidence(p.Confidence)
}

// Validate checks required fields of an observation to create.
func (o NewObservation) Validate() error {
	if o.EntityID <= 0 {
		return kgerr.New(kgerr.CodeStoreObservationInvalid, "observation: entity ID is required")
	}
	if strings.TrimSpace(o.Content) == "" {
		return kgerr.New(kgerr.CodeStoreObservationInvalid, "observation: content is required")
	}
	return nil
}

func (p ObservationPatch) Validate() error {
	if p.Content != nil && strings.TrimSpace(*p.Content) == "" {
		return kgerr.New(kgerr.CodeStoreObservationInvalid, "observation: content must not be empty")
	}
	return nil
}

// Validate checks a relation filter.
func (f RelationFilter) Validate() error {
	if !f.Direction.Valid() {
		return kgerr.Errorf(kgerr.CodeStoreInvalidInput, "relation filter: invalid direction %q", f.Direction)
	}
	if f.Type != "" && !ValidRelationType(f.Type) {
		return kgerr.Errorf(kgerr.CodeStoreInvalidInput, "relation filter: invalid type %q", f.Type)
	}
	return nil
}

// Validate checks internal consistency of a snapshot before it replaces store contents.
func (s *Snapshot) Validate(dims int) error {
	if s == nil {
		return kgerr.New(kgerr.CodeStoreInvalidInput, "snapshot: nil")
	}
	ids := make(map[int64]struct{}, len(s.Entities))
	for _, e := range s.Entities {
		if e == nil || e.ID <= 0 {
			return kgerr.New(kgerr.CodeStoreInvalidInput, "snapshot: entity without ID")
		}
		if _, dup := ids[e.ID]; dup {
			return kgerr.Errorf(kgerr.CodeStoreInvalidInput, "snapshot: duplicate entity ID %d", e.ID)
		}
		ids[e.ID] = struct{}{}
		if err := (NewEntity{Name: e.Name, Type: e.Type, Embedding: e.Embedding}).Validate(dims); err != nil {
			return kgerr.With(err, kgerr.FieldEntityID(e.ID))
		}
		if dims == 0 && e.Embedding != nil {
			dims = len(e.Embedding)
		}
	}
	for _, r := range s.Relations {
		if r == nil || r.ID <= 0 {
			return kgerr.New(kgerr.CodeStoreInvalidInput, "snapshot: relation without ID")
		}
		c := r.Confidence
		if err := (NewRelation{SourceID: r.SourceID, TargetID: r.TargetID, Type: r.Type, Confidence: &c}).Validate(); err != nil {
			return kgerr.With(err, kgerr.FieldRelationID(r.ID))
		}
		if _, ok := ids[r.SourceID]; !ok {
			return kgerr.Errorf(kgerr.CodeStoreIntegrityViolation, "snapshot: relation %d references missing entity %d", r.ID, r.SourceID)
		}
		if _, ok := ids[r.TargetID]; !ok {
			return kgerr.Errorf(kgerr.CodeStoreIntegrityViolation, "snapshot: relation %d references missing entity %d", r.ID, r.TargetID)
		}
	}
	for _, o := range s.Observations {
		if o == nil || o.ID <= 0 {
			return kgerr.New(kgerr.CodeStoreInvalidInput, "snapshot: observation without ID")
		}
		if err := (NewObservation{EntityID: o.EntityID, Content: o.Content}).Validate(); err != nil {
			return kgerr.With(err, kgerr.FieldObservationID(o.ID))
		}
		if _, ok := ids[o.EntityID]; !ok {
			return kgerr.Errorf(kgerr.CodeStoreIntegrityViolation, "snapshot: observation %d references missing entity %d", o.ID, o.EntityID)
		}
	}
	return nil
}
