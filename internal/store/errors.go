// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

// NotFoundEntity returns the error update operations report for an absent entity.
func NotFoundEntity(id int64) error {
	return kgerr.New(kgerr.CodeStoreEntityNotFound, "entity not found", kgerr.FieldEntityID(id))
}

// NotFoundRelation returns the error update operations report for an absent relation.
func NotFoundRelation(id int64) error {
	return kgerr.New(kgerr.CodeStoreRelationNotFound, "relation not found", kgerr.FieldRelationID(id))
}

// NotFoundObservation returns the error update operations report for an absent observation.
func NotFoundObservation(id int64) error {
	return kgerr.New(kgerr.CodeStoreObservationNotFound, "observation not found", kgerr.FieldObservationID(id))
}
