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
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/config"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/report"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/trend"
)

// DefaultTrendLimit is how many snapshots show and export read by default.
const DefaultTrendLimit = 20

func addHistoryFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "history-db", "",
		"Directory of the trend history database (default from config)")
}

// openHistory opens the store at path, falling back to the configured path.
func openHistory(path string) (*trend.Store, error) {
	if path == "" {
		path = config.Global.History.Path
	}
	if err := requireFlag("history-db", path); err != nil {
		return nil, err
	}
	cfg := trend.DefaultStoreConfig(path)
	cfg.Logger = slog.Default().With(slog.String("component", "history"))
	if n := config.Global.History.MaxSnapshots; n > 0 {
		cfg.MaxSnapshots = n
	}
	return trend.Open(cfg)
}

func newTrendRecordCmd() *cobra.Command {
	var historyDB, reportPath string
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Append the snapshot of a report to the history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("report", reportPath); err != nil {
				return err
			}
			r, err := report.ReadFile(reportPath)
			if err != nil {
				return err
			}
			store, err := openHistory(historyDB)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			prev, hasPrev, err := store.Latest(ctx)
			if err != nil {
				return err
			}
			snap := trend.FromReport(r)
			pruned, err := store.Append(ctx, snap)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Recorded snapshot %s (score %d)\n", snap.ID, snap.ArchitectureScore)
			if hasPrev {
				d := trend.Compare(prev, snap)
				fmt.Fprintf(w, "Change since last: score %+d, violations %+d, modules %+d, cycles %+d\n",
					d.Score, d.Violations, d.Modules, d.Cycles)
			}
			slog.Debug("snapshot recorded", slog.Int("pruned", pruned))
			return nil
		},
	}
	addHistoryFlag(cmd, &historyDB)
	cmd.Flags().StringVar(&reportPath, "report", "", "Report to snapshot")
	return cmd
}

func newTrendShowCmd() *cobra.Command {
	var (
		historyDB string
		limit     int
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List recent snapshots, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(historyDB)
			if err != nil {
				return err
			}
			defer store.Close()

			snaps, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				if snaps == nil {
					snaps = []trend.Snapshot{}
				}
				return writeJSON(cmd.Context(), cmd, report.StdoutDest, snaps, "")
			}
			return printSnapshots(cmd, snaps)
		},
	}
	addHistoryFlag(cmd, &historyDB)
	cmd.Flags().IntVar(&limit, "limit", DefaultTrendLimit, "Number of snapshots to show (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printSnapshots(cmd *cobra.Command, snaps []trend.Snapshot) error {
	w := cmd.OutOrStdout()
	if len(snaps) == 0 {
		fmt.Fprintln(w, "No snapshots recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TAKEN AT\tSCORE\tLEVEL\tMODULES\tVIOLATIONS\tCYCLES\tCHANGE")
	for i, s := range snaps {
		change := "-"
		if i > 0 {
			change = fmt.Sprintf("%+d", trend.Compare(snaps[i-1], s).Score)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\t%d\t%s\n",
			s.TakenAt, s.ArchitectureScore, s.RiskLevel, s.TotalModules, s.ViolationCount, s.CycleCount, change)
	}
	return tw.Flush()
}

type trendExportFlags struct {
	historyDB string
	limit     int
	url       string
	org       string
	bucket    string
	project   string
}

func newTrendExportCmd() *cobra.Command {
	flags := &trendExportFlags{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Push recent snapshots to InfluxDB",
		Long: `Write snapshots to InfluxDB as points of the archguard_snapshot
measurement. The API token is read from the environment variable named
by influx.token_env in the config file (INFLUXDB_TOKEN by default).

Examples:
  archguard trend export --influx-url http://localhost:8086 --influx-org acme --influx-bucket arch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := flags.influxConfig(config.Global)
			if err := cfg.Validate(); err != nil {
				return &ConfigError{Err: err}
			}
			return exportTrend(cmd.Context(), cmd, flags, cfg)
		},
	}
	addHistoryFlag(cmd, &flags.historyDB)
	cmd.Flags().IntVar(&flags.limit, "limit", DefaultTrendLimit, "Number of snapshots to export (0 = all)")
	cmd.Flags().StringVar(&flags.url, "influx-url", "", "InfluxDB URL (default from config)")
	cmd.Flags().StringVar(&flags.org, "influx-org", "", "InfluxDB organization (default from config)")
	cmd.Flags().StringVar(&flags.bucket, "influx-bucket", "", "InfluxDB bucket (default from config)")
	cmd.Flags().StringVar(&flags.project, "project", "", "Project tag added to every point")
	return cmd
}

func (f *trendExportFlags) influxConfig(cfg config.ArchguardConfig) trend.InfluxConfig {
	out := trend.InfluxConfig{
		URL:     f.url,
		Org:     f.org,
		Bucket:  f.bucket,
		Project: f.project,
	}
	if out.URL == "" {
		out.URL = cfg.Influx.URL
	}
	if out.Org == "" {
		out.Org = cfg.Influx.Org
	}
	if out.Bucket == "" {
		out.Bucket = cfg.Influx.Bucket
	}
	if cfg.Influx.TokenEnv != "" {
		out.Token = os.Getenv(cfg.Influx.TokenEnv)
	}
	return out
}

func exportTrend(ctx context.Context, cmd *cobra.Command, flags *trendExportFlags, cfg trend.InfluxConfig) error {
	store, err := openHistory(flags.historyDB)
	if err != nil {
		return err
	}
	defer store.Close()

	snaps, err := store.List(ctx, flags.limit)
	if err != nil {
		return err
	}
	exporter, err := trend.NewExporter(cfg)
	if err != nil {
		return &ConfigError{Err: err}
	}
	defer exporter.Close()

	if err := exporter.Export(ctx, snaps); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d snapshot(s) to %s/%s\n", len(snaps), cfg.Org, cfg.Bucket)
	return nil
}
