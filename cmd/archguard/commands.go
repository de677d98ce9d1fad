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
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/config"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/telemetry"
)

// EnvLogLevel overrides the configured log level.
const EnvLogLevel = "ARCHGUARD_LOG_LEVEL"

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	logLevel string
	logJSON  bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "archguard",
		Short: "Architecture analysis and policy enforcement for JS/TS codebases",
		Long: `archguard builds the module dependency graph of a JavaScript or TypeScript
project, detects cycles, scores change risk per module and for the whole
system, and checks the graph against a declarative policy.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(); err != nil {
				return &ConfigError{Err: err}
			}
			return setupLogger(cmd, flags)
		},
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ConfigError{Err: err}
	})

	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "",
		"Log level: debug, info, warn, error (default from config or "+EnvLogLevel+")")
	rootCmd.PersistentFlags().BoolVar(&flags.logJSON, "log-json", false,
		"Write logs as JSON")

	// --- Analysis ---
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newWatchCmd())

	// --- Collaborators ---
	baselineCmd := &cobra.Command{
		Use:   "baseline",
		Short: "Accept known violations and filter them out of reports",
	}
	baselineCmd.AddCommand(newBaselineApplyCmd())
	baselineCmd.AddCommand(newBaselineCreateCmd())
	rootCmd.AddCommand(baselineCmd)

	ownersCmd := &cobra.Command{
		Use:   "owners",
		Short: "Attribute modules and violations to owning teams",
	}
	ownersCmd.AddCommand(newOwnersTagCmd())
	rootCmd.AddCommand(ownersCmd)

	sbomCmd := &cobra.Command{
		Use:   "sbom",
		Short: "Correlate package usage with known vulnerabilities",
	}
	sbomCmd.AddCommand(newSBOMCorrelateCmd())
	rootCmd.AddCommand(sbomCmd)

	trendCmd := &cobra.Command{
		Use:   "trend",
		Short: "Track architecture scores across runs",
	}
	trendCmd.AddCommand(newTrendRecordCmd())
	trendCmd.AddCommand(newTrendShowCmd())
	trendCmd.AddCommand(newTrendExportCmd())
	rootCmd.AddCommand(trendCmd)

	return rootCmd
}

// setupLogger installs the process logger on stderr. The level comes from
// --log-level, then ARCHGUARD_LOG_LEVEL, then the config file.
func setupLogger(cmd *cobra.Command, flags *rootFlags) error {
	levelName := flags.logLevel
	if levelName == "" {
		levelName = os.Getenv(EnvLogLevel)
	}
	if levelName == "" {
		levelName = config.Global.Logging.Level
	}
	level, err := telemetry.ParseLevel(levelName)
	if err != nil {
		return &ConfigError{Flag: "log-level", Err: err}
	}
	json := flags.logJSON || config.Global.Logging.JSON
	slog.SetDefault(telemetry.NewLogger(cmd.ErrOrStderr(), level, json))
	return nil
}
