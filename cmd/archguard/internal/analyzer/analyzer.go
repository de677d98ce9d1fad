// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analyzer runs the full analysis pipeline once per call.
//
// # Pipeline
//
//	scan ──► extract (parallel) ──► build graph ──► detect cycles
//	                                                    │
//	report ◄── risk ◄── impact ◄── policy ◄── metrics ◄─┘
//
// Only extraction is concurrent. Every later stage is a pure function of
// the frozen graph, so two runs over an unchanged tree produce the same
// report apart from generatedAt.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/extract"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/graph"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/metrics"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/policy"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/report"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/risk"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/scanner"
)

var tracer = otel.Tracer("archguard.analyzer")

// ErrNilPolicy is returned when Config.Policy is missing.
var ErrNilPolicy = errors.New("policy must not be nil")

// Config configures an Analyzer.
//
// # Fields
//
//   - Scan: Project root and include/exclude patterns.
//   - Policy: Parsed policy document. Required.
//   - Extract: Extraction pool options.
//   - Graph: Size limits for the dependency graph.
//   - Now: Clock used for generatedAt. Defaults to time.Now.
type Config struct {
	Scan    scanner.Config
	Policy  *policy.Policy
	Extract extract.Options
	Graph   graph.BuilderOptions
	Now     func() time.Time
}

// DefaultConfig returns a Config for root with the given policy.
func DefaultConfig(root string, p *policy.Policy) Config {
	return Config{
		Scan:    scanner.DefaultConfig(root),
		Policy:  p,
		Extract: extract.DefaultOptions(),
		Graph:   graph.DefaultBuilderOptions(),
		Now:     time.Now,
	}
}

// Result is the outcome of one run.
type Result struct {
	// RunID identifies the run in logs and traces.
	RunID string

	Report     *report.Report
	Assessment *risk.Assessment
	Graph      *graph.Graph
	Cycles     graph.CycleResult

	// PackageUsage maps each imported package to the sorted ids of the
	// modules importing it.
	PackageUsage map[string][]string

	// Unresolved maps module ids to relative specifiers that matched no
	// scanned module.
	Unresolved map[string][]string

	Duration time.Duration
}

// Analyzer runs the pipeline.
//
// # Thread Safety
//
// An Analyzer is immutable after New and safe for concurrent Run calls.
type Analyzer struct {
	cfg    Config
	engine *policy.Engine
}

// New validates cfg and compiles its policy.
func New(cfg Config) (*Analyzer, error) {
	if cfg.Policy == nil {
		return nil, ErrNilPolicy
	}
	if err := cfg.Scan.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Extract.Validate(); err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	engine, err := policy.NewEngine(cfg.Policy)
	if err != nil {
		return nil, err
	}
	return &Analyzer{cfg: cfg, engine: engine}, nil
}

// Run analyzes the project once.
//
// # Outputs
//
//   - *Result: Report, assessment and supporting data.
//   - error: *scanner.ScanError, *extract.ParseError, graph limit errors or
//     context errors. No partial result is returned on error.
func (a *Analyzer) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := slog.With(slog.String("run_id", runID))

	ctx, span := tracer.Start(ctx, "archguard.analyzer.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("archguard.run_id", runID),
		attribute.String("archguard.root", a.cfg.Scan.Root),
	)

	res, err := a.run(ctx, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	res.RunID = runID
	res.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("archguard.modules", res.Report.GlobalMetrics.TotalModules),
		attribute.Int("archguard.violations", len(res.Report.Violations)),
		attribute.Int("archguard.score", res.Assessment.ArchitectureScore),
	)
	logger.Info("analysis complete",
		slog.Int("modules", res.Report.GlobalMetrics.TotalModules),
		slog.Int("edges", res.Report.GlobalMetrics.TotalEdges),
		slog.Int("violations", len(res.Report.Violations)),
		slog.Int("score", res.Assessment.ArchitectureScore),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

func (a *Analyzer) run(ctx context.Context, logger *slog.Logger) (*Result, error) {
	scanned, err := scanner.Scan(ctx, a.cfg.Scan)
	if err != nil {
		return nil, err
	}
	logger.Debug("files scanned", slog.Int("files", len(scanned.Files)))

	extracted, err := extract.Run(ctx, scanned.Files, a.cfg.Extract)
	if err != nil {
		return nil, err
	}

	g, err := buildGraph(ctx, extracted.Files, a.cfg.Graph)
	if err != nil {
		return nil, err
	}

	cycles := graph.DetectCycles(g)
	logger.Debug("cycles detected",
		slog.Int("components", cycles.ComponentCount()),
		slog.Int("modules", cycles.ModuleCount()),
	)
	m := metrics.Compute(g, cycles.InCycle)

	violations := a.engine.Evaluate(policy.Input{
		Graph:   g,
		Modules: m.Modules,
		InCycle: cycles.InCycle,
	})
	risk.ApplyImpact(violations, m.Modules)

	assessment := risk.Compute(risk.Input{
		Graph:      g,
		Modules:    m.Modules,
		Global:     m.Global,
		Violations: violations,
	})

	rep := report.New(a.cfg.Now(), m, violations,
		report.WithAssessment(assessment),
		report.WithFileErrors(extracted.Errors),
	)

	return &Result{
		Report:       rep,
		Assessment:   assessment,
		Graph:        g,
		Cycles:       cycles,
		PackageUsage: packageUsage(extracted.Files),
		Unresolved:   unresolved(extracted.Files),
	}, nil
}

func buildGraph(ctx context.Context, files []extract.FileResult, opts graph.BuilderOptions) (*graph.Graph, error) {
	b := graph.NewBuilder(graph.WithMaxModules(opts.MaxModules), graph.WithMaxEdges(opts.MaxEdges))
	for _, f := range files {
		if err := b.AddModule(graph.Module{ID: f.ID, FilePath: f.Path, LOC: f.LOC}); err != nil {
			return nil, fmt.Errorf("add module %s: %w", f.ID, err)
		}
	}
	for _, f := range files {
		for _, to := range f.Imports {
			if err := b.AddEdge(f.ID, to); err != nil {
				return nil, fmt.Errorf("add edge %s -> %s: %w", f.ID, to, err)
			}
		}
	}
	return b.Build(ctx)
}

func packageUsage(files []extract.FileResult) map[string][]string {
	sets := make(map[string]map[string]struct{})
	for _, f := range files {
		for _, pkg := range f.Packages {
			if sets[pkg] == nil {
				sets[pkg] = make(map[string]struct{})
			}
			sets[pkg][f.ID] = struct{}{}
		}
	}
	usage := make(map[string][]string, len(sets))
	for pkg, set := range sets {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		usage[pkg] = ids
	}
	return usage
}

func unresolved(files []extract.FileResult) map[string][]string {
	out := make(map[string][]string)
	for _, f := range files {
		if len(f.Unresolved) > 0 {
			out[f.ID] = append([]string(nil), f.Unresolved...)
		}
	}
	return out
}
