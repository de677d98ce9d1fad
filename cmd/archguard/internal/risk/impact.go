// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package risk

import (
	"sort"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/metrics"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/policy"
)

// ImpactScore returns round(weight(severity) * max(risk(subject), risk(to))).
// Unknown modules contribute a change-risk score of 0.
func ImpactScore(v policy.Violation, byID map[string]metrics.ModuleMetrics) int {
	subject := byID[v.Subject()].ChangeRiskScore
	target := 0
	if v.To != "" {
		target = byID[v.To].ChangeRiskScore
	}
	return int(metrics.Round(v.Severity.Weight() * float64(max(subject, target))))
}

// ApplyImpact sets ImpactScore on every violation in place.
func ApplyImpact(violations []policy.Violation, modules []metrics.ModuleMetrics) {
	byID := make(map[string]metrics.ModuleMetrics, len(modules))
	for _, m := range modules {
		byID[m.ID] = m
	}
	for i := range violations {
		score := ImpactScore(violations[i], byID)
		violations[i].ImpactScore = &score
	}
}

// RankByImpact returns a copy of violations ordered by descending impact
// score. Unscored violations sort last; ties keep their input order.
func RankByImpact(violations []policy.Violation) []policy.Violation {
	ranked := append([]policy.Violation(nil), violations...)
	score := func(v policy.Violation) int {
		if v.ImpactScore == nil {
			return -1
		}
		return *v.ImpactScore
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return score(ranked[i]) > score(ranked[j])
	})
	return ranked
}
