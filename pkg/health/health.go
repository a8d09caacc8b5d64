// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package health describes the state of an upstream dependency, such as a
// hosted embedding provider, in a form safe to serialize.
package health

import "time"

// Metrics is a point-in-time snapshot of one provider.
type Metrics struct {
	Provider      string     `json:"provider"`
	Available     bool       `json:"available"`
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
}

// Reporter is implemented by components that track provider health.
type Reporter interface {
	HealthMetrics() Metrics
}
