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

var (
	tracer = otel.Tracer("archguard.graph")
	meter  = otel.Meter("archguard.graph")
)

var (
	buildLatency metric.Float64Histogram
	buildTotal   metric.Int64Counter
	modulesBuilt metric.Int64Histogram
	edgesBuilt   metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"archguard_graph_build_duration_seconds",
			metric.WithDescription("Duration of graph freeze operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"archguard_graph_build_total",
			metric.WithDescription("Total number of graphs built"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		modulesBuilt, err = meter.Int64Histogram(
			"archguard_graph_modules",
			metric.WithDescription("Number of modules per graph"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesBuilt, err = meter.Int64Histogram(
			"archguard_graph_edges",
			metric.WithDescription("Number of edges per graph"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordBuildMetrics(ctx context.Context, duration time.Duration, moduleCount, edgeCount int) {
	if err := initMetrics(); err != nil {
		return
	}
	buildLatency.Record(ctx, duration.Seconds())
	buildTotal.Add(ctx, 1)
	modulesBuilt.Record(ctx, int64(moduleCount))
	edgesBuilt.Record(ctx, int64(edgeCount))
}

func startBuildSpan(ctx context.Context, moduleCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Builder.Build",
		trace.WithAttributes(
			attribute.Int("graph.module_count", moduleCount),
		),
	)
}

func setBuildSpanResult(span trace.Span, moduleCount, edgeCount, dropped int) {
	span.SetAttributes(
		attribute.Int("graph.module_count", moduleCount),
		attribute.Int("graph.edge_count", edgeCount),
		attribute.Int("graph.dropped_edges", dropped),
	)
}
