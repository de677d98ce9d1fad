// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/config"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/analyzer"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/baseline"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/extract"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/ownership"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/policy"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/report"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/risk"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/telemetry"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/trend"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

type analyzeFlags struct {
	policy          string
	project         string
	out             string
	failOn          string
	failOnRisk      string
	extractor       string
	workers         int
	continueOnError bool
	baseline        string
	owners          string
	historyDB       string
	metricsOut      string
	packagesOut     string
	summary         bool
	gcsCredentials  string
}

func addAnalyzeFlags(cmd *cobra.Command, f *analyzeFlags) {
	cmd.Flags().StringVar(&f.policy, "policy", "",
		"Policy document (YAML, JSON or TOML)")
	cmd.Flags().StringVar(&f.project, "project", ".",
		"Project root to analyze")
	cmd.Flags().StringVar(&f.out, "out", report.StdoutDest,
		"Report destination: '-' for stdout, a file path, or gs://bucket/object")
	cmd.Flags().StringVar(&f.extractor, "extractor", extract.KindRegex,
		"Import extractor: regex or treesitter")
	cmd.Flags().IntVar(&f.workers, "workers", 0,
		"Number of parallel extraction workers (0 = number of CPUs, capped)")
	cmd.Flags().BoolVar(&f.continueOnError, "continue-on-error", false,
		"Skip files that fail extraction and list them in the report")
	cmd.Flags().StringVar(&f.baseline, "baseline", "",
		"Baseline document of accepted violations to filter out")
	cmd.Flags().StringVar(&f.owners, "owners", "",
		"Ownership document used to tag modules and violations")
	cmd.Flags().StringVar(&f.historyDB, "history-db", "",
		"Directory of the trend history database; each run appends a snapshot")
	cmd.Flags().StringVar(&f.metricsOut, "metrics-out", "",
		"Write run metrics to this file in Prometheus text format")
	cmd.Flags().StringVar(&f.packagesOut, "packages-out", "",
		"Write the package usage map (input of 'sbom correlate') to this destination")
	cmd.Flags().BoolVar(&f.summary, "summary", false,
		"Print a human-readable summary to stderr")
	cmd.Flags().StringVar(&f.gcsCredentials, "gcs-credentials", "",
		"Service account key file for gs:// destinations")
}

// applyConfig fills flags the user did not set from the config file.
func (f *analyzeFlags) applyConfig(cmd *cobra.Command, cfg config.ArchguardConfig) {
	changed := cmd.Flags().Changed
	if !changed("policy") && f.policy == "" {
		f.policy = cfg.Analysis.Policy
	}
	if !changed("fail-on") && cfg.Analysis.FailOn != "" {
		f.failOn = cfg.Analysis.FailOn
	}
	if !changed("extractor") && cfg.Analysis.Extractor != "" {
		f.extractor = cfg.Analysis.Extractor
	}
	if !changed("workers") && cfg.Analysis.Workers > 0 {
		f.workers = cfg.Analysis.Workers
	}
	if !changed("continue-on-error") && cfg.Analysis.ContinueOnError {
		f.continueOnError = true
	}
	if !changed("history-db") && cfg.History.Enabled {
		f.historyDB = cfg.History.Path
	}
}

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

func newAnalyzeCmd() *cobra.Command {
	flags := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:     "analyze",
		Aliases: []string{"check"},
		Short:   "Analyze a project and enforce a policy",
		Long: `Build the module dependency graph of a project, compute risk metrics,
evaluate the policy and write a JSON report.

Examples:
  archguard analyze --policy policy.yaml --project . --out report.json
  archguard check --policy policy.yaml --fail-on high
  archguard analyze --policy policy.toml --out gs://reports/main.json --summary
  archguard analyze --policy policy.yaml --fail-on-risk medium

Exit Codes:
  0 = Success (or no --fail-on given)
  1 = Violations at or above --fail-on, or risk level above --fail-on-risk
  2 = Error (invalid flags, policy, scan or parse failure)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.applyConfig(cmd, config.Global)
			return runAnalyze(cmd.Context(), cmd, flags)
		},
	}
	addAnalyzeFlags(cmd, flags)
	cmd.Flags().StringVar(&flags.failOn, "fail-on", "",
		"Exit 1 when a violation at or above this severity remains: low, medium, high, critical")
	cmd.Flags().StringVar(&flags.failOnRisk, "fail-on-risk", "",
		"Exit 1 when the architecture risk level is above this level: low, medium, high")
	return cmd
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runAnalyze(ctx context.Context, cmd *cobra.Command, flags *analyzeFlags) error {
	s, err := newSession(ctx, flags)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	r, err := s.analyzeOnce(ctx, cmd)
	if err != nil {
		return err
	}
	if flags.metricsOut != "" {
		if err := s.tel.WriteMetricsFile(flags.metricsOut); err != nil {
			return err
		}
	}
	return s.gate(r)
}

// session holds everything a run needs that outlives a single analysis.
type session struct {
	flags         *analyzeFlags
	project       string
	threshold     policy.Severity
	riskThreshold risk.RiskLevel

	analyzer *analyzer.Analyzer
	baseline *baseline.Baseline
	tagger   *ownership.Tagger
	history  *trend.Store

	tel     *telemetry.Telemetry
	metrics *telemetry.RunMetrics
}

// newSession validates flags and loads every input document.
//
// # Outputs
//
//   - *session: Ready to run. Call Close when done.
//   - error: *ConfigError for bad flags, *policy.LoadError for a bad policy,
//     or the load error of the baseline or ownership document.
func newSession(ctx context.Context, flags *analyzeFlags) (*session, error) {
	if err := requireFlag("policy", flags.policy); err != nil {
		return nil, err
	}
	if err := requireFlag("project", flags.project); err != nil {
		return nil, err
	}
	if err := requireFlag("out", flags.out); err != nil {
		return nil, err
	}

	s := &session{flags: flags}
	threshold, err := parseFailOn(flags.failOn)
	if err != nil {
		return nil, err
	}
	s.threshold = threshold
	if s.riskThreshold, err = parseFailOnRisk(flags.failOnRisk); err != nil {
		return nil, err
	}
	extractor, err := extract.New(flags.extractor)
	if err != nil {
		return nil, &ConfigError{Flag: "extractor", Err: err}
	}
	if flags.workers < 0 {
		return nil, &ConfigError{Flag: "workers", Err: extract.ErrInvalidWorkerCount}
	}

	p, err := policy.LoadFile(flags.policy)
	if err != nil {
		return nil, err
	}

	cfg := analyzer.DefaultConfig(flags.project, p)
	cfg.Now = now
	cfg.Extract.Extractor = extractor
	cfg.Extract.ContinueOnError = flags.continueOnError
	if flags.workers > 0 {
		cfg.Extract.WorkerCount = flags.workers
	}
	s.analyzer, err = analyzer.New(cfg)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	if abs, err := filepath.Abs(flags.project); err == nil {
		s.project = filepath.Base(abs)
	}

	if flags.baseline != "" {
		if s.baseline, err = baseline.LoadFile(flags.baseline); err != nil {
			return nil, err
		}
	}
	if flags.owners != "" {
		if s.tagger, err = ownership.LoadFile(flags.owners); err != nil {
			return nil, err
		}
	}

	telCfg := telemetry.DefaultConfig()
	if flags.metricsOut != "" {
		telCfg.MetricExporter = telemetry.ExporterPrometheus
	}
	if s.tel, err = telemetry.Init(ctx, telCfg); err != nil {
		return nil, &ConfigError{Err: err}
	}
	if s.metrics, err = telemetry.NewRunMetrics(otel.Meter("archguard")); err != nil {
		s.Close(ctx)
		return nil, err
	}

	if flags.historyDB != "" {
		storeCfg := trend.DefaultStoreConfig(flags.historyDB)
		storeCfg.Logger = slog.Default().With(slog.String("component", "history"))
		if n := config.Global.History.MaxSnapshots; n > 0 {
			storeCfg.MaxSnapshots = n
		}
		if s.history, err = trend.Open(storeCfg); err != nil {
			s.Close(ctx)
			return nil, err
		}
	}
	return s, nil
}

// Close releases the history store and flushes telemetry.
func (s *session) Close(ctx context.Context) {
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			slog.Warn("close history store", slog.String("error", err.Error()))
		}
		s.history = nil
	}
	if s.tel != nil {
		if err := s.tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}
}

// analyzeOnce runs the pipeline and delivers the report.
//
// # Description
//
// The report from the analyzer is filtered through the baseline, tagged with
// owners, written to --out and optionally summarized. Its snapshot is added
// to the history store when one is configured.
func (s *session) analyzeOnce(ctx context.Context, cmd *cobra.Command) (*report.Report, error) {
	res, err := s.analyzer.Run(ctx)
	if err != nil {
		s.metrics.Record(ctx, telemetry.RunStats{Project: s.project, Failed: true})
		return nil, err
	}
	r := res.Report

	if s.baseline != nil {
		filtered := s.baseline.Apply(r, now())
		r = filtered.Report
		slog.Info("baseline applied",
			slog.Int("suppressed", filtered.Suppressed),
			slog.Int("expired_entries", len(filtered.Expired)),
			slog.Int("unused_entries", len(filtered.Unused)),
		)
	}
	if s.tagger != nil {
		var stats []ownership.Stats
		r, stats = s.tagger.Tag(r)
		for _, st := range stats {
			slog.Debug("owner stats",
				slog.String("owner", st.Owner),
				slog.Int("modules", st.Modules),
				slog.Int("violations", st.Violations),
			)
		}
	}

	if err := writeReport(ctx, cmd, s.flags.out, r, s.flags.gcsCredentials); err != nil {
		return nil, err
	}
	if s.flags.packagesOut != "" {
		if err := writeJSON(ctx, cmd, s.flags.packagesOut, res.PackageUsage, s.flags.gcsCredentials); err != nil {
			return nil, err
		}
	}

	if s.history != nil {
		pruned, err := s.history.Append(ctx, trend.FromReport(r))
		if err != nil {
			return nil, fmt.Errorf("record snapshot: %w", err)
		}
		slog.Debug("snapshot recorded", slog.Int("pruned", pruned))
	}

	s.metrics.Record(ctx, telemetry.RunStats{
		Project:           s.project,
		Modules:           r.GlobalMetrics.TotalModules,
		Edges:             r.GlobalMetrics.TotalEdges,
		CycleModules:      r.GlobalMetrics.CycleCount,
		Violations:        len(r.Violations),
		ArchitectureScore: res.Assessment.ArchitectureScore,
		Duration:          res.Duration,
	})

	if s.flags.summary {
		if err := report.Summary(cmd.ErrOrStderr(), r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// gate applies the --fail-on and --fail-on-risk thresholds to r.
func (s *session) gate(r *report.Report) error {
	if err := gateReport(r, s.threshold); err != nil {
		return err
	}
	return gateRisk(r, s.riskThreshold)
}
