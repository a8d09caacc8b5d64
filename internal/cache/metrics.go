// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts cache outcomes. A nil Registerer leaves the collectors
// unregistered, which keeps parallel tests from colliding.
type Metrics struct {
	Requests *prometheus.CounterVec
	Degraded *prometheus.CounterVec
	Skipped  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kgraph_cache_requests_total",
			Help: "Cache lookups by result (hit, miss).",
		}, []string{"result"}),
		Degraded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kgraph_cache_degraded_total",
			Help: "Cache backend failures by operation.",
		}, []string{"op"}),
		Skipped: f.NewCounter(prometheus.CounterOpts{
			Name: "kgraph_cache_populate_skipped_total",
			Help: "Populates dropped because an invalidation raced the read.",
		}),
	}
}
