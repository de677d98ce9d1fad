// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metrics computes per-module coupling and change-risk metrics and
// their global aggregates.
package metrics

import (
	"math"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/graph"
)

// Fixed classification thresholds.
const (
	CoreFanInThreshold       = 5
	CoreInstabilityThreshold = 0.3

	HighRiskThreshold   = 70
	MediumRiskThreshold = 40
)

// Change-risk weights.
const (
	fanInWeight = 0.5
	locWeight   = 0.3
	cycleWeight = 0.2
)

// ModuleMetrics holds the derived metrics of one module.
type ModuleMetrics struct {
	ID              string  `json:"id"`
	LOC             int     `json:"loc"`
	FanIn           int     `json:"fanIn"`
	FanOut          int     `json:"fanOut"`
	Instability     float64 `json:"instability"`
	InCycle         bool    `json:"inCycle"`
	ChangeRiskScore int     `json:"changeRiskScore"`
	IsCoreModule    bool    `json:"isCoreModule"`

	// Owner is filled in by the ownership tagger.
	Owner string `json:"owner,omitempty"`
}

// GlobalMetrics aggregates ModuleMetrics over the whole graph.
type GlobalMetrics struct {
	TotalModules   int     `json:"totalModules"`
	TotalEdges     int     `json:"totalEdges"`
	AvgInstability float64 `json:"avgInstability"`
	CycleCount     int     `json:"cycleCount"`
	CoreModules    int     `json:"coreModules"`
}

// RiskSummary buckets modules by change-risk score.
type RiskSummary struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Result is the output of Compute.
type Result struct {
	// Modules is sorted by ID.
	Modules     []ModuleMetrics
	Global      GlobalMetrics
	RiskSummary RiskSummary
}

// ByID indexes the module metrics by id.
func (r *Result) ByID() map[string]ModuleMetrics {
	out := make(map[string]ModuleMetrics, len(r.Modules))
	for _, m := range r.Modules {
		out[m.ID] = m
	}
	return out
}

// Compute derives metrics for every module of g.
//
// # Description
//
// Fan-in and fan-out count parallel edges. Instability is
// fanOut/(fanIn+fanOut), or 0 for an isolated module. The change-risk score
// weights fan-in and size against the maxima of this run and adds a fixed
// share for cycle membership:
//
//	round(100 * (0.5*fanIn/maxFanIn + 0.3*loc/maxLoc + 0.2*inCycle))
//
// clamped to [0, 100]. A module is core when fanIn >= 5 and
// instability <= 0.3.
//
// # Inputs
//
//   - g: Frozen graph.
//   - inCycle: Modules flagged by graph.DetectCycles.
//
// # Outputs
//
//   - Result: Module metrics sorted by id plus global aggregates.
//
// # Thread Safety
//
// Pure function; safe for concurrent use.
func Compute(g *graph.Graph, inCycle map[string]bool) Result {
	ids := g.IDs()
	res := Result{Modules: make([]ModuleMetrics, 0, len(ids))}

	maxFanIn, maxLOC := 0, 0
	for _, id := range ids {
		m, _ := g.Module(id)
		maxFanIn = max(maxFanIn, g.FanIn(id))
		maxLOC = max(maxLOC, m.LOC)
	}

	var instabilitySum float64
	for _, id := range ids {
		mod, _ := g.Module(id)
		fanIn, fanOut := g.FanIn(id), g.FanOut(id)

		mm := ModuleMetrics{
			ID:          id,
			LOC:         mod.LOC,
			FanIn:       fanIn,
			FanOut:      fanOut,
			Instability: Instability(fanIn, fanOut),
			InCycle:     inCycle[id],
		}
		mm.ChangeRiskScore = ChangeRiskScore(fanIn, maxFanIn, mod.LOC, maxLOC, mm.InCycle)
		mm.IsCoreModule = IsCore(fanIn, mm.Instability)

		instabilitySum += mm.Instability
		if mm.InCycle {
			res.Global.CycleCount++
		}
		if mm.IsCoreModule {
			res.Global.CoreModules++
		}
		switch {
		case mm.ChangeRiskScore >= HighRiskThreshold:
			res.RiskSummary.High++
		case mm.ChangeRiskScore >= MediumRiskThreshold:
			res.RiskSummary.Medium++
		default:
			res.RiskSummary.Low++
		}
		res.Modules = append(res.Modules, mm)
	}

	res.Global.TotalModules = len(ids)
	res.Global.TotalEdges = len(g.Edges())
	if len(ids) > 0 {
		res.Global.AvgInstability = RoundTo(instabilitySum/float64(len(ids)), 4)
	}
	return res
}

// Instability returns fanOut/(fanIn+fanOut), or 0 when both are zero.
func Instability(fanIn, fanOut int) float64 {
	total := fanIn + fanOut
	if total == 0 {
		return 0
	}
	return float64(fanOut) / float64(total)
}

// ChangeRiskScore returns the 0-100 change-risk score of a module. A zero
// maximum contributes nothing for its term.
func ChangeRiskScore(fanIn, maxFanIn, loc, maxLOC int, inCycle bool) int {
	var fanInShare, locShare, cycleShare float64
	if maxFanIn > 0 {
		fanInShare = float64(fanIn) / float64(maxFanIn)
	}
	if maxLOC > 0 {
		locShare = float64(loc) / float64(maxLOC)
	}
	if inCycle {
		cycleShare = 1
	}
	score := int(Round(100 * (fanInWeight*fanInShare + locWeight*locShare + cycleWeight*cycleShare)))
	return Clamp(score, 0, 100)
}

// IsCore reports whether a module is a stable hub.
func IsCore(fanIn int, instability float64) bool {
	return fanIn >= CoreFanInThreshold && instability <= CoreInstabilityThreshold
}

// Variance returns the population variance of the modules' instability.
func Variance(modules []ModuleMetrics) float64 {
	if len(modules) == 0 {
		return 0
	}
	var sum float64
	for _, m := range modules {
		sum += m.Instability
	}
	mean := sum / float64(len(modules))
	var sq float64
	for _, m := range modules {
		d := m.Instability - mean
		sq += d * d
	}
	return sq / float64(len(modules))
}

// Round rounds half up, so 2.5 becomes 3 and -2.5 becomes -2.
func Round(x float64) float64 {
	return math.Floor(x + 0.5)
}

// RoundTo rounds x half up to the given number of decimals.
func RoundTo(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return Round(x*p) / p
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
