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
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/baseline"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/report"
)

type baselineApplyFlags struct {
	baseline string
	report   string
	out      string
	failOn   string
}

func newBaselineApplyCmd() *cobra.Command {
	flags := &baselineApplyFlags{}
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Remove baselined violations from a report",
		Long: `Filter a report through a baseline document. Entries past their
expiresAt no longer suppress anything and are logged as expired.

Examples:
  archguard baseline apply --baseline baseline.yaml --report report.json --out filtered.json
  archguard baseline apply --baseline baseline.yaml --report report.json --fail-on high`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("baseline", flags.baseline); err != nil {
				return err
			}
			if err := requireFlag("report", flags.report); err != nil {
				return err
			}
			threshold, err := parseFailOn(flags.failOn)
			if err != nil {
				return err
			}

			b, err := baseline.LoadFile(flags.baseline)
			if err != nil {
				return err
			}
			r, err := report.ReadFile(flags.report)
			if err != nil {
				return err
			}

			res := b.Apply(r, now())
			slog.Info("baseline applied",
				slog.Int("suppressed", res.Suppressed),
				slog.Int("remaining", len(res.Report.Violations)),
				slog.Int("expired_entries", len(res.Expired)),
				slog.Int("unused_entries", len(res.Unused)),
			)
			if err := writeReport(cmd.Context(), cmd, flags.out, res.Report, ""); err != nil {
				return err
			}
			return gateReport(res.Report, threshold)
		},
	}
	cmd.Flags().StringVar(&flags.baseline, "baseline", "", "Baseline document (YAML or JSON)")
	cmd.Flags().StringVar(&flags.report, "report", "", "Report to filter")
	cmd.Flags().StringVar(&flags.out, "out", report.StdoutDest, "Destination of the filtered report")
	cmd.Flags().StringVar(&flags.failOn, "fail-on", "",
		"Exit 1 when a remaining violation is at or above this severity")
	return cmd
}

type baselineCreateFlags struct {
	report  string
	out     string
	reason  string
	expires string
}

func newBaselineCreateCmd() *cobra.Command {
	flags := &baselineCreateFlags{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Write a baseline accepting every violation in a report",
		Long: `Create a baseline document with one exact entry per violation of a
report, so that existing debt stops failing the gate while new violations
still do.

Examples:
  archguard baseline create --report report.json --out baseline.yaml
  archguard baseline create --report report.json --reason "legacy" --expires 2026-12-31`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("report", flags.report); err != nil {
				return err
			}
			var expiresAt time.Time
			if flags.expires != "" {
				t, err := baseline.ParseExpiry(flags.expires)
				if err != nil {
					return &ConfigError{Flag: "expires", Err: err}
				}
				expiresAt = t
			}

			r, err := report.ReadFile(flags.report)
			if err != nil {
				return err
			}
			doc := baseline.FromViolations(r.Violations, flags.reason, expiresAt)
			data, err := baseline.Marshal(doc)
			if err != nil {
				return fmt.Errorf("encode baseline: %w", err)
			}
			slog.Info("baseline created", slog.Int("entries", len(doc.Entries)))
			return writeBytes(cmd.Context(), cmd, flags.out, data, "")
		},
	}
	cmd.Flags().StringVar(&flags.report, "report", "", "Report whose violations are accepted")
	cmd.Flags().StringVar(&flags.out, "out", report.StdoutDest, "Destination of the baseline document")
	cmd.Flags().StringVar(&flags.reason, "reason", "", "Reason recorded on every entry")
	cmd.Flags().StringVar(&flags.expires, "expires", "",
		"Expiry for every entry: a date (2026-12-31) or an RFC 3339 timestamp")
	return cmd
}
