// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RunStats is what one analysis run reports to the meter.
type RunStats struct {
	Project           string
	Modules           int
	Edges             int
	CycleModules      int
	Violations        int
	ArchitectureScore int
	Duration          time.Duration
	Failed            bool
}

// RunMetrics holds the instruments for analysis runs.
//
// Thread Safety: Safe for concurrent use after creation.
type RunMetrics struct {
	runsTotal    metric.Int64Counter
	runDuration  metric.Float64Histogram
	modules      metric.Int64Gauge
	edges        metric.Int64Gauge
	cycleModules metric.Int64Gauge
	violations   metric.Int64Gauge
	score        metric.Int64Gauge
}

// NewRunMetrics registers the run instruments with meter.
//
// Example:
//
//	m, err := telemetry.NewRunMetrics(otel.Meter("archguard"))
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
//	m.Record(ctx, stats)
func NewRunMetrics(meter metric.Meter) (*RunMetrics, error) {
	m := &RunMetrics{}
	var err error

	m.runsTotal, err = meter.Int64Counter(
		"archguard_runs_total",
		metric.WithDescription("Total analysis runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create runs_total: %w", err)
	}

	m.runDuration, err = meter.Float64Histogram(
		"archguard_run_duration_seconds",
		metric.WithDescription("Analysis run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, fmt.Errorf("create run_duration: %w", err)
	}

	m.modules, err = meter.Int64Gauge(
		"archguard_modules",
		metric.WithDescription("Modules in the dependency graph"),
		metric.WithUnit("{module}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create modules: %w", err)
	}

	m.edges, err = meter.Int64Gauge(
		"archguard_edges",
		metric.WithDescription("Edges in the dependency graph"),
		metric.WithUnit("{edge}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create edges: %w", err)
	}

	m.cycleModules, err = meter.Int64Gauge(
		"archguard_cycle_modules",
		metric.WithDescription("Modules that belong to a dependency cycle"),
		metric.WithUnit("{module}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cycle_modules: %w", err)
	}

	m.violations, err = meter.Int64Gauge(
		"archguard_violations",
		metric.WithDescription("Policy violations in the last report"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create violations: %w", err)
	}

	m.score, err = meter.Int64Gauge(
		"archguard_architecture_score",
		metric.WithDescription("Architecture score from 0 to 100"),
	)
	if err != nil {
		return nil, fmt.Errorf("create architecture_score: %w", err)
	}

	return m, nil
}

// Record records one run. Gauges are only updated for successful runs.
func (m *RunMetrics) Record(ctx context.Context, s RunStats) {
	project := metric.WithAttributes(attribute.String("project", s.Project))
	status := "ok"
	if s.Failed {
		status = "error"
	}
	m.runsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("project", s.Project),
		attribute.String("status", status),
	))
	m.runDuration.Record(ctx, s.Duration.Seconds(), project)
	if s.Failed {
		return
	}
	m.modules.Record(ctx, int64(s.Modules), project)
	m.edges.Record(ctx, int64(s.Edges), project)
	m.cycleModules.Record(ctx, int64(s.CycleModules), project)
	m.violations.Record(ctx, int64(s.Violations), project)
	m.score.Record(ctx, int64(s.ArchitectureScore), project)
}
