// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sigil-dev/kgraph/internal/store"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

func TestNotFoundErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		code  kgerr.Code
		field string
	}{
		{"entity", store.NotFoundEntity(7), kgerr.CodeStoreEntityNotFound, "entity_id"},
		{"relation", store.NotFoundRelation(7), kgerr.CodeStoreRelationNotFound, "relation_id"},
		{"observation", store.NotFoundObservation(7), kgerr.CodeStoreObservationNotFound, "observation_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, kgerr.IsNotFound(tt.err))
			assert.Equal(t, tt.code, kgerr.CodeOf(tt.err))
			assert.Equal(t, int64(7), kgerr.FieldsOf(tt.err)[tt.field])
			assert.Equal(t, http.StatusNotFound, kgerr.HTTPStatus(tt.err))
		})
	}
}

// Wrapping keeps the classification callers branch on.
func TestNotFoundErrors_Wrapped(t *testing.T) {
	err := fmt.Errorf("updating: %w", store.NotFoundEntity(3))
	assert.True(t, kgerr.IsNotFound(err))
	assert.False(t, kgerr.IsIntegrity(err))
	assert.Equal(t, kgerr.CodeStoreEntityNotFound, kgerr.CodeOf(err))
}
