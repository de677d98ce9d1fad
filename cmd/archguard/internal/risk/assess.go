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

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/graph"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/metrics"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/policy"
)

// Input is everything an assessment is computed from.
type Input struct {
	Graph      *graph.Graph
	Modules    []metrics.ModuleMetrics
	Global     metrics.GlobalMetrics
	Violations []policy.Violation
}

// Compute produces the architecture assessment.
//
// # Description
//
// The score starts at 100 and loses capped penalties:
//
//	cycles               min(30, cycleCount*3)
//	bottlenecks          min(20, count(core && instability > 0.6)*4)
//	instability variance min(15, round(variance*200))
//	violations           min(25, 2*count(critical|high) + count(other))
//
// The result is clamped to [0, 100] and mapped to a risk level. Critical
// nodes are modules with changeRiskScore >= 70, or core modules in a cycle.
// Blast radius is computed for every module by BFS; the ten with the
// widest downstream reach are kept.
//
// # Thread Safety
//
// Pure function over immutable input; safe for concurrent use.
func Compute(in Input) *Assessment {
	a := NewAssessment()

	a.Penalties = penalties(in)
	a.ArchitectureScore = metrics.Clamp(100-a.Penalties.Total(), 0, 100)
	a.RiskLevel = LevelForScore(a.ArchitectureScore)
	a.Recommendation = Recommendations[a.RiskLevel]
	a.CriticalNodes = criticalNodes(in.Modules)
	if in.Graph != nil {
		a.BlastRadii = blastRadii(in.Graph)
	}
	return a
}

func penalties(in Input) Penalties {
	var p Penalties

	p.Cycles = min(MaxCyclePenalty, in.Global.CycleCount*CyclePenaltyEach)

	bottlenecks := 0
	for _, m := range in.Modules {
		if m.IsCoreModule && m.Instability > BottleneckInstability {
			bottlenecks++
		}
	}
	p.Bottlenecks = min(MaxBottleneckPenalty, bottlenecks*BottleneckEach)

	variance := metrics.Variance(in.Modules)
	p.InstabilityVariance = min(MaxVariancePenalty, int(metrics.Round(variance*VarianceScale)))

	cost := 0
	for _, v := range in.Violations {
		if v.Severity == policy.SeverityCritical || v.Severity == policy.SeverityHigh {
			cost += SevereViolationCost
		} else {
			cost += OtherViolationCost
		}
	}
	p.Violations = min(MaxViolationPenalty, cost)
	return p
}

func criticalNodes(modules []metrics.ModuleMetrics) []CriticalNode {
	out := make([]CriticalNode, 0)
	for _, m := range modules {
		if m.ChangeRiskScore < CriticalChangeRisk && !(m.IsCoreModule && m.InCycle) {
			continue
		}
		out = append(out, CriticalNode{
			ID:              m.ID,
			ChangeRiskScore: m.ChangeRiskScore,
			FanIn:           m.FanIn,
			FanOut:          m.FanOut,
			IsCoreModule:    m.IsCoreModule,
			InCycle:         m.InCycle,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ChangeRiskScore != out[j].ChangeRiskScore {
			return out[i].ChangeRiskScore > out[j].ChangeRiskScore
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// BlastRadiusOf computes the blast radius of one module.
func BlastRadiusOf(g *graph.Graph, id string) BlastRadius {
	down := g.Downstream(id)
	up := g.Upstream(id)
	sort.Strings(down)

	br := BlastRadius{
		ID:              id,
		DownstreamCount: len(down),
		UpstreamCount:   len(up),
		Downstream:      down,
	}
	if br.Downstream == nil {
		br.Downstream = make([]string, 0)
	}
	if total := g.Len(); total > 0 {
		br.BlastPct = metrics.RoundTo(float64(len(down))/float64(total)*100, 1)
	}
	return br
}

func blastRadii(g *graph.Graph) []BlastRadius {
	all := make([]BlastRadius, 0, g.Len())
	for _, id := range g.IDs() {
		all = append(all, BlastRadiusOf(g, id))
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].DownstreamCount != all[j].DownstreamCount {
			return all[i].DownstreamCount > all[j].DownstreamCount
		}
		return all[i].ID < all[j].ID
	})
	if len(all) > MaxBlastRadii {
		all = all[:MaxBlastRadii]
	}
	return all
}
