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
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/config"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/scanner"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/watch"
)

func newWatchCmd() *cobra.Command {
	flags := &analyzeFlags{}
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-analyze the project whenever its sources change",
		Long: `Run the analysis once, then again after every batch of source changes.
Changes are debounced so that a burst of saves triggers a single run. Runs
never fail the process; violations are reported and watching continues
until interrupted.

Examples:
  archguard watch --policy policy.yaml --project . --out report.json --summary`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.applyConfig(cmd, config.Global)
			flags.failOn = ""
			flags.failOnRisk = ""
			return runWatch(cmd.Context(), cmd, flags, debounce)
		},
	}
	addAnalyzeFlags(cmd, flags)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultOptions().Debounce,
		"Quiet period before a batch of changes triggers a run")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, flags *analyzeFlags, debounce time.Duration) error {
	s, err := newSession(ctx, flags)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	if _, err := s.analyzeOnce(ctx, cmd); err != nil {
		return err
	}

	w, err := watch.New(scanner.DefaultConfig(flags.project), watch.Options{Debounce: debounce})
	if err != nil {
		return &ConfigError{Err: err}
	}
	defer w.Stop()

	return w.Run(ctx, func(ctx context.Context, changes []watch.Change) error {
		slog.Info("changes detected, re-analyzing", slog.Int("files", len(changes)))
		if _, err := s.analyzeOnce(ctx, cmd); err != nil {
			return err
		}
		if flags.metricsOut != "" {
			return s.tel.WriteMetricsFile(flags.metricsOut)
		}
		return nil
	})
}
