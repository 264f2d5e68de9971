// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package visible

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("aleutian.instgraph.visible")
	meter  = otel.Meter("aleutian.instgraph.visible")
)

var (
	materializeLatency metric.Float64Histogram
	visibleNodes       metric.Int64Histogram
	indirectEdges      metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		if materializeLatency, err = meter.Float64Histogram(
			"instgraph_materialize_duration_seconds",
			metric.WithDescription("Duration of visible graph materialization"),
			metric.WithUnit("s"),
		); err != nil {
			metricsErr = err
			return
		}

		if visibleNodes, err = meter.Int64Histogram(
			"instgraph_visible_nodes",
			metric.WithDescription("Number of shown nodes per snapshot"),
		); err != nil {
			metricsErr = err
			return
		}

		indirectEdges, err = meter.Int64Histogram(
			"instgraph_indirect_edges",
			metric.WithDescription("Number of synthesized edges per snapshot"),
		)
		metricsErr = err
	})
	return metricsErr
}

func recordMaterializeMetrics(ctx context.Context, duration time.Duration, vg *Graph) {
	if err := initMetrics(); err != nil {
		return
	}
	materializeLatency.Record(ctx, duration.Seconds())
	visibleNodes.Record(ctx, int64(vg.NodeCount()))
	indirectEdges.Record(ctx, int64(vg.IndirectCount()))
}
