// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for raw graph operations.
var (
	tracer = otel.Tracer("aleutian.instgraph.graph")
	meter  = otel.Meter("aleutian.instgraph.graph")
)

var (
	buildLatency metric.Float64Histogram
	buildTotal   metric.Int64Counter
	nodesCreated metric.Int64Histogram
	edgesCreated metric.Int64Histogram
	queryLatency metric.Float64Histogram
	querySize    metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		if buildLatency, err = meter.Float64Histogram(
			"instgraph_build_duration_seconds",
			metric.WithDescription("Duration of raw graph builds"),
			metric.WithUnit("s"),
		); err != nil {
			metricsErr = err
			return
		}

		if buildTotal, err = meter.Int64Counter(
			"instgraph_build_total",
			metric.WithDescription("Total number of raw graph builds"),
		); err != nil {
			metricsErr = err
			return
		}

		if nodesCreated, err = meter.Int64Histogram(
			"instgraph_nodes_created",
			metric.WithDescription("Number of nodes created per build"),
		); err != nil {
			metricsErr = err
			return
		}

		if edgesCreated, err = meter.Int64Histogram(
			"instgraph_edges_created",
			metric.WithDescription("Number of edges created per build"),
		); err != nil {
			metricsErr = err
			return
		}

		if queryLatency, err = meter.Float64Histogram(
			"instgraph_query_duration_seconds",
			metric.WithDescription("Duration of reachability and path queries"),
			metric.WithUnit("s"),
		); err != nil {
			metricsErr = err
			return
		}

		querySize, err = meter.Int64Histogram(
			"instgraph_query_result_size",
			metric.WithDescription("Number of nodes returned by a query"),
		)
		metricsErr = err
	})
	return metricsErr
}

func recordBuildMetrics(ctx context.Context, duration time.Duration, nodeCount, edgeCount int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)

	if success {
		nodesCreated.Record(ctx, int64(nodeCount))
		edgesCreated.Record(ctx, int64(edgeCount))
	}
}

func recordQueryMetrics(ctx context.Context, queryType string, duration time.Duration, resultCount int) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("query_type", queryType))
	queryLatency.Record(ctx, duration.Seconds(), attrs)
	querySize.Record(ctx, int64(resultCount), attrs)
}

func startBuildSpan(ctx context.Context, depCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "graph.Build",
		trace.WithAttributes(
			attribute.Int("instgraph.dependency_count", depCount),
		),
	)
}

func setBuildSpanResult(span trace.Span, nodeCount, edgeCount int, incomplete bool) {
	span.SetAttributes(
		attribute.Int("instgraph.node_count", nodeCount),
		attribute.Int("instgraph.edge_count", edgeCount),
		attribute.Bool("instgraph.incomplete", incomplete),
	)
}
