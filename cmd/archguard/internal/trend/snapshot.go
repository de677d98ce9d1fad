// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package trend keeps a rolling history of report summaries.
//
// Each analysis run can append one Snapshot to an embedded BadgerDB.
// Snapshots are keyed by time so iteration order is chronological, and the
// store prunes the oldest entries beyond its retention limit. Snapshots can
// be exported to InfluxDB for dashboards.
package trend

import (
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/report"
)

// Snapshot is the summary of one report.
type Snapshot struct {
	ID                string          `json:"id"`
	TakenAt           strfmt.DateTime `json:"takenAt"`
	ArchitectureScore int             `json:"architectureScore"`
	RiskLevel         string          `json:"riskLevel"`
	TotalModules      int             `json:"totalModules"`
	TotalEdges        int             `json:"totalEdges"`
	CycleCount        int             `json:"cycleCount"`
	CoreModules       int             `json:"coreModules"`
	ViolationCount    int             `json:"violationCount"`
	AvgInstability    float64         `json:"avgInstability"`
	HighRiskModules   int             `json:"highRiskModules"`
}

// FromReport summarizes r. The snapshot time is the report's generatedAt.
// Reports without a risk assessment get score -1 and an empty risk level.
func FromReport(r *report.Report) Snapshot {
	s := Snapshot{
		ID:                uuid.NewString(),
		TakenAt:           r.GeneratedAt,
		ArchitectureScore: -1,
		TotalModules:      r.GlobalMetrics.TotalModules,
		TotalEdges:        r.GlobalMetrics.TotalEdges,
		CycleCount:        r.GlobalMetrics.CycleCount,
		CoreModules:       r.GlobalMetrics.CoreModules,
		ViolationCount:    len(r.Violations),
		AvgInstability:    r.GlobalMetrics.AvgInstability,
		HighRiskModules:   r.RiskSummary.High,
	}
	if a := r.RiskAssessment; a != nil {
		s.ArchitectureScore = a.ArchitectureScore
		s.RiskLevel = string(a.RiskLevel)
	}
	return s
}

// Time returns TakenAt as a time.Time.
func (s Snapshot) Time() time.Time {
	return time.Time(s.TakenAt)
}

// Delta is the change between two consecutive snapshots.
type Delta struct {
	Score      int `json:"score"`
	Violations int `json:"violations"`
	Modules    int `json:"modules"`
	Cycles     int `json:"cycles"`
}

// Compare returns cur minus prev.
func Compare(prev, cur Snapshot) Delta {
	return Delta{
		Score:      cur.ArchitectureScore - prev.ArchitectureScore,
		Violations: cur.ViolationCount - prev.ViolationCount,
		Modules:    cur.TotalModules - prev.TotalModules,
		Cycles:     cur.CycleCount - prev.CycleCount,
	}
}
