// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("aleutian.instgraph.session")

var (
	chainApplies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "instgraph_session_chain_applies_total",
		Help: "Total filter chain applications by outcome",
	}, []string{"outcome"})

	chainApplyLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "instgraph_session_chain_apply_seconds",
		Help:    "Duration of filter chain application including materialization",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	chainLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "instgraph_session_chain_length",
		Help:    "Number of filters per applied chain",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
	})

	disablerChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "instgraph_session_disabler_changes_total",
		Help: "Total disabler set changes",
	})

	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "instgraph_sessions_created_total",
		Help: "Total sessions created",
	})
)
