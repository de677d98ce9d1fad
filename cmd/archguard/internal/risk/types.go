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
	"fmt"
	"strings"
)

// AlgorithmVersion is the version of the scoring algorithm.
const AlgorithmVersion = "1.0"

// Penalty caps and unit costs.
const (
	MaxCyclePenalty      = 30
	CyclePenaltyEach     = 3
	MaxBottleneckPenalty = 20
	BottleneckEach       = 4
	MaxVariancePenalty   = 15
	VarianceScale        = 200
	MaxViolationPenalty  = 25
	SevereViolationCost  = 2
	OtherViolationCost   = 1

	// BottleneckInstability is the instability above which a core module
	// counts as a bottleneck.
	BottleneckInstability = 0.6
)

// Risk level bands on the architecture score.
const (
	LowRiskMinScore    = 80
	MediumRiskMinScore = 60
	HighRiskMinScore   = 40
)

// CriticalChangeRisk is the change-risk score at which a module is critical.
const CriticalChangeRisk = 70

// MaxBlastRadii is how many blast-radius entries an assessment keeps.
const MaxBlastRadii = 10

// RiskLevel represents whole-system architectural risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var levelOrder = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// ParseRiskLevel parses a string to RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	level := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := levelOrder[level]; !ok {
		return "", fmt.Errorf("invalid risk level %q (valid: low, medium, high, critical)", s)
	}
	return level, nil
}

// Order returns the numeric order of this risk level.
func (r RiskLevel) Order() int {
	return levelOrder[r]
}

// Exceeds returns true if this risk level is worse than threshold.
func (r RiskLevel) Exceeds(threshold RiskLevel) bool {
	return r.Order() > threshold.Order()
}

// LevelForScore maps an architecture score to its risk level.
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= LowRiskMinScore:
		return RiskLow
	case score >= MediumRiskMinScore:
		return RiskMedium
	case score >= HighRiskMinScore:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// Recommendations maps risk levels to suggested actions.
var Recommendations = map[RiskLevel]string{
	RiskLow:      "Architecture is healthy. Keep the policy gate in CI.",
	RiskMedium:   "Some structural debt. Review cycles and high-risk modules before they grow.",
	RiskHigh:     "Significant structural risk. Break cycles and split hub modules before adding features.",
	RiskCritical: "Architecture is at critical risk. Plan remediation of cycles and violations now.",
}

// Penalties is the breakdown of points subtracted from 100.
type Penalties struct {
	Cycles              int `json:"cycles"`
	Bottlenecks         int `json:"bottlenecks"`
	InstabilityVariance int `json:"instabilityVariance"`
	Violations          int `json:"violations"`
}

// Total returns the sum of all penalties.
func (p Penalties) Total() int {
	return p.Cycles + p.Bottlenecks + p.InstabilityVariance + p.Violations
}

// CriticalNode is a module flagged as critical.
type CriticalNode struct {
	ID              string `json:"id"`
	ChangeRiskScore int    `json:"changeRiskScore"`
	FanIn           int    `json:"fanIn"`
	FanOut          int    `json:"fanOut"`
	IsCoreModule    bool   `json:"isCoreModule"`
	InCycle         bool   `json:"inCycle"`
}

// BlastRadius is the reach of a change to one module.
type BlastRadius struct {
	ID              string   `json:"id"`
	DownstreamCount int      `json:"downstreamCount"`
	UpstreamCount   int      `json:"upstreamCount"`
	BlastPct        float64  `json:"blastPct"`
	Downstream      []string `json:"downstream"`
}

// Assessment is the whole-system risk assessment.
type Assessment struct {
	AlgorithmVersion  string         `json:"algorithmVersion"`
	ArchitectureScore int            `json:"architectureScore"`
	RiskLevel         RiskLevel      `json:"riskLevel"`
	Penalties         Penalties      `json:"penalties"`
	CriticalNodes     []CriticalNode `json:"criticalNodes"`
	BlastRadii        []BlastRadius  `json:"blastRadii"`
	Recommendation    string         `json:"recommendation"`
}

// NewAssessment returns an Assessment with empty, non-nil lists.
func NewAssessment() *Assessment {
	return &Assessment{
		AlgorithmVersion:  AlgorithmVersion,
		ArchitectureScore: 100,
		RiskLevel:         RiskLow,
		CriticalNodes:     make([]CriticalNode, 0),
		BlastRadii:        make([]BlastRadius, 0),
		Recommendation:    Recommendations[RiskLow],
	}
}
