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

	"github.com/spf13/cobra"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/report"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/sbom"
)

type sbomCorrelateFlags struct {
	usage string
	vulns string
	out   string
}

func newSBOMCorrelateCmd() *cobra.Command {
	flags := &sbomCorrelateFlags{}
	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Score third-party packages by vulnerability and usage",
		Long: `Join a package usage map with a vulnerability list. A package used by
many modules with a severe vulnerability ranks first.

The usage map is written by 'archguard analyze --packages-out'.

Examples:
  archguard analyze --policy policy.yaml --packages-out usage.json --out report.json
  archguard sbom correlate --usage usage.json --vulns vulns.json --out package-risk.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("usage", flags.usage); err != nil {
				return err
			}
			if err := requireFlag("vulns", flags.vulns); err != nil {
				return err
			}

			usage, err := sbom.LoadUsage(flags.usage)
			if err != nil {
				return err
			}
			vulns, err := sbom.LoadVulnerabilities(flags.vulns)
			if err != nil {
				return err
			}
			rows, err := sbom.Correlate(usage, vulns)
			if err != nil {
				return err
			}
			slog.Info("packages correlated",
				slog.Int("packages", len(rows)),
				slog.Int("vulnerabilities", len(vulns)),
			)
			return writeJSON(cmd.Context(), cmd, flags.out, rows, "")
		},
	}
	cmd.Flags().StringVar(&flags.usage, "usage", "", "Package usage map {package: [moduleIds]}")
	cmd.Flags().StringVar(&flags.vulns, "vulns", "", "Vulnerability list (JSON array or {vulnerabilities: [...]})")
	cmd.Flags().StringVar(&flags.out, "out", report.StdoutDest, "Destination of the package risk list")
	return cmd
}
