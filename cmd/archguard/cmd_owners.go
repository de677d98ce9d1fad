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

	"github.com/spf13/cobra"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/ownership"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/report"
)

type ownersTagFlags struct {
	owners   string
	report   string
	out      string
	statsOut string
}

func newOwnersTagCmd() *cobra.Command {
	flags := &ownersTagFlags{}
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Add owners to the modules and violations of a report",
		Long: `Tag a report with owners. Mappings are tried in document order and the
first pattern that matches a module id wins. Violations take the owner of
their module, or of their source module for edge violations.

Examples:
  archguard owners tag --owners owners.yaml --report report.json --out tagged.json
  archguard owners tag --owners owners.yaml --report report.json --stats-out owners.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("owners", flags.owners); err != nil {
				return err
			}
			if err := requireFlag("report", flags.report); err != nil {
				return err
			}

			tagger, err := ownership.LoadFile(flags.owners)
			if err != nil {
				return err
			}
			r, err := report.ReadFile(flags.report)
			if err != nil {
				return err
			}

			tagged, stats := tagger.Tag(r)
			if err := writeReport(cmd.Context(), cmd, flags.out, tagged, ""); err != nil {
				return err
			}
			if flags.statsOut != "" {
				return writeJSON(cmd.Context(), cmd, flags.statsOut, stats, "")
			}
			w := cmd.ErrOrStderr()
			for _, s := range stats {
				fmt.Fprintf(w, "%-24s modules=%d violations=%d highRisk=%d\n",
					s.Owner, s.Modules, s.Violations, s.HighRisk)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.owners, "owners", "", "Ownership document (YAML or JSON)")
	cmd.Flags().StringVar(&flags.report, "report", "", "Report to tag")
	cmd.Flags().StringVar(&flags.out, "out", report.StdoutDest, "Destination of the tagged report")
	cmd.Flags().StringVar(&flags.statsOut, "stats-out", "",
		"Write per-owner statistics as JSON here instead of printing them to stderr")
	return cmd
}
