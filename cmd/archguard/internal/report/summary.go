// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/policy"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/risk"
)

// maxSummaryViolations bounds the violations listed in a summary.
const maxSummaryViolations = 10

var (
	colorTeal    = lipgloss.Color("#2CD7C7")
	colorSlate   = lipgloss.Color("#2C4A54")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
)

type summaryStyles struct {
	title   lipgloss.Style
	muted   lipgloss.Style
	ok      lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
}

func plainStyles() summaryStyles {
	s := lipgloss.NewStyle()
	return summaryStyles{title: s, muted: s, ok: s, warning: s, err: s}
}

func colorStyles(w io.Writer) summaryStyles {
	r := lipgloss.NewRenderer(w)
	return summaryStyles{
		title:   r.NewStyle().Bold(true).Foreground(colorTeal),
		muted:   r.NewStyle().Foreground(colorSlate),
		ok:      r.NewStyle().Foreground(colorTeal),
		warning: r.NewStyle().Foreground(colorWarning),
		err:     r.NewStyle().Foreground(colorError),
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Summary prints a human-readable digest of r.
//
// Colors are used only when w is a terminal. Violations are listed by
// impact score when scores are present, otherwise in report order.
func Summary(w io.Writer, r *Report) error {
	st := plainStyles()
	if IsTerminal(w) {
		st = colorStyles(w)
	}

	var b strings.Builder
	g := r.GlobalMetrics
	fmt.Fprintln(&b, st.title.Render("ARCHGUARD report"))
	fmt.Fprintln(&b, st.muted.Render("generated "+r.GeneratedAt.String()))
	fmt.Fprintf(&b, "Modules: %d  Edges: %d  In cycles: %d  Core: %d  Avg instability: %.4f\n",
		g.TotalModules, g.TotalEdges, g.CycleCount, g.CoreModules, g.AvgInstability)
	fmt.Fprintf(&b, "Change risk: high %d / medium %d / low %d\n",
		r.RiskSummary.High, r.RiskSummary.Medium, r.RiskSummary.Low)

	if a := r.RiskAssessment; a != nil {
		style := st.ok
		switch a.RiskLevel {
		case risk.RiskMedium:
			style = st.warning
		case risk.RiskHigh, risk.RiskCritical:
			style = st.err
		}
		fmt.Fprintf(&b, "Architecture score: %s\n",
			style.Render(fmt.Sprintf("%d (%s)", a.ArchitectureScore, a.RiskLevel)))
	}

	counts := r.CountBySeverity()
	line := fmt.Sprintf("Violations: %d", len(r.Violations))
	if len(r.Violations) > 0 {
		parts := make([]string, 0, 4)
		sevs := policy.Severities()
		for i := len(sevs) - 1; i >= 0; i-- {
			parts = append(parts, fmt.Sprintf("%s %d", sevs[i], counts[sevs[i]]))
		}
		line += " (" + strings.Join(parts, ", ") + ")"
		fmt.Fprintln(&b, st.err.Render(line))
	} else {
		fmt.Fprintln(&b, st.ok.Render(line))
	}

	listed := risk.RankByImpact(r.Violations)
	if len(listed) > maxSummaryViolations {
		listed = listed[:maxSummaryViolations]
	}
	for _, v := range listed {
		fmt.Fprintf(&b, "  [%s] %s: %s\n", v.Severity, v.RuleID, v.Message)
	}
	if extra := len(r.Violations) - len(listed); extra > 0 {
		fmt.Fprintln(&b, st.muted.Render(fmt.Sprintf("  ... and %d more", extra)))
	}

	if len(r.FileErrors) > 0 {
		fmt.Fprintln(&b, st.warning.Render(fmt.Sprintf("Skipped files: %d", len(r.FileErrors))))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
