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
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/graph"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/metrics"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/policy"
)

func buildGraph(t *testing.T, ids []string, edges ...[2]string) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder()
	for _, id := range ids {
		require.NoError(t, b.AddModule(graph.Module{ID: id, FilePath: id, LOC: 10}))
	}
	for _, e := range edges {
		require.NoError(t, b.AddEdge(e[0], e[1]))
	}
	g, err := b.Build(context.Background())
	require.NoError(t, err)
	return g
}

func violations(sev policy.Severity, n int) []policy.Violation {
	out := make([]policy.Violation, n)
	for i := range out {
		out[i] = policy.Violation{RuleID: "r", Severity: sev, ModuleID: fmt.Sprintf("m%d", i)}
	}
	return out
}

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score int
		want  RiskLevel
	}{
		{100, RiskLow},
		{80, RiskLow},
		{79, RiskMedium},
		{60, RiskMedium},
		{59, RiskHigh},
		{40, RiskHigh},
		{39, RiskCritical},
		{0, RiskCritical},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.score), func(t *testing.T) {
			assert.Equal(t, tt.want, LevelForScore(tt.score))
		})
	}
}

func TestParseRiskLevel(t *testing.T) {
	level, err := ParseRiskLevel(" HIGH ")
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, level)
	assert.True(t, RiskCritical.Exceeds(RiskHigh))
	assert.False(t, RiskLow.Exceeds(RiskLow))

	_, err = ParseRiskLevel("severe")
	assert.Error(t, err)
}

func TestCompute_Penalties(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want Penalties
	}{
		{
			name: "empty",
			in:   Input{},
			want: Penalties{},
		},
		{
			name: "cycles capped",
			in:   Input{Global: metrics.GlobalMetrics{CycleCount: 20}},
			want: Penalties{Cycles: 30},
		},
		{
			name: "cycles below cap",
			in:   Input{Global: metrics.GlobalMetrics{CycleCount: 4}},
			want: Penalties{Cycles: 12},
		},
		{
			name: "variance",
			in: Input{Modules: []metrics.ModuleMetrics{
				{ID: "a", Instability: 0.4},
				{ID: "b", Instability: 0.6},
			}},
			want: Penalties{InstabilityVariance: 2},
		},
		{
			name: "variance capped",
			in: Input{Modules: []metrics.ModuleMetrics{
				{ID: "a", Instability: 0},
				{ID: "b", Instability: 1},
			}},
			want: Penalties{InstabilityVariance: 15},
		},
		{
			name: "violations weighted by severity",
			in: Input{Violations: append(append(append(
				violations(policy.SeverityCritical, 1),
				violations(policy.SeverityHigh, 1)...),
				violations(policy.SeverityLow, 2)...),
				violations(policy.SeverityMedium, 1)...)},
			want: Penalties{Violations: 7},
		},
		{
			name: "violations capped",
			in:   Input{Violations: violations(policy.SeverityHigh, 20)},
			want: Penalties{Violations: 25},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Compute(tt.in)
			assert.Equal(t, tt.want, a.Penalties)
			assert.Equal(t, 100-tt.want.Total(), a.ArchitectureScore)
		})
	}
}

func TestCompute_Bottlenecks(t *testing.T) {
	var modules []metrics.ModuleMetrics
	for i := 0; i < 10; i++ {
		modules = append(modules, metrics.ModuleMetrics{
			ID:           fmt.Sprintf("m%d", i),
			IsCoreModule: true,
			Instability:  0.7,
		})
	}
	modules = append(modules, metrics.ModuleMetrics{ID: "stable", IsCoreModule: true, Instability: 0.6})

	p := penalties(Input{Modules: modules[:2]})
	assert.Equal(t, 8, p.Bottlenecks)

	p = penalties(Input{Modules: modules})
	assert.Equal(t, MaxBottleneckPenalty, p.Bottlenecks)
}

func TestCompute_ScoreStaysInRange(t *testing.T) {
	var modules []metrics.ModuleMetrics
	for i := 0; i < 10; i++ {
		modules = append(modules, metrics.ModuleMetrics{
			ID:           fmt.Sprintf("m%d", i),
			IsCoreModule: true,
			Instability:  float64(i%2) * 0.9,
		})
	}
	a := Compute(Input{
		Modules:    modules,
		Global:     metrics.GlobalMetrics{CycleCount: 100},
		Violations: violations(policy.SeverityCritical, 100),
	})

	assert.LessOrEqual(t, a.Penalties.Cycles, MaxCyclePenalty)
	assert.LessOrEqual(t, a.Penalties.Bottlenecks, MaxBottleneckPenalty)
	assert.LessOrEqual(t, a.Penalties.InstabilityVariance, MaxVariancePenalty)
	assert.LessOrEqual(t, a.Penalties.Violations, MaxViolationPenalty)
	assert.GreaterOrEqual(t, a.ArchitectureScore, 0)
	assert.LessOrEqual(t, a.ArchitectureScore, 100)
	assert.Equal(t, LevelForScore(a.ArchitectureScore), a.RiskLevel)
	assert.Equal(t, Recommendations[a.RiskLevel], a.Recommendation)
}

func TestCompute_Triangle(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c"},
		[2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"c", "a"})
	cycles := graph.DetectCycles(g)
	m := metrics.Compute(g, cycles.InCycle)

	a := Compute(Input{Graph: g, Modules: m.Modules, Global: m.Global})

	assert.Equal(t, 3, m.Global.CycleCount)
	assert.Equal(t, Penalties{Cycles: 9}, a.Penalties)
	assert.Equal(t, 91, a.ArchitectureScore)
	assert.Equal(t, RiskLow, a.RiskLevel)
	assert.Equal(t, AlgorithmVersion, a.AlgorithmVersion)
	require.Len(t, a.BlastRadii, 3)
	for _, br := range a.BlastRadii {
		assert.Equal(t, 2, br.DownstreamCount)
		assert.Equal(t, 2, br.UpstreamCount)
		assert.Equal(t, 66.7, br.BlastPct)
	}
}

func TestCriticalNodes(t *testing.T) {
	modules := []metrics.ModuleMetrics{
		{ID: "below", ChangeRiskScore: 69},
		{ID: "exact", ChangeRiskScore: 70},
		{ID: "core-cycle", ChangeRiskScore: 10, IsCoreModule: true, InCycle: true},
		{ID: "core-only", ChangeRiskScore: 10, IsCoreModule: true},
		{ID: "b-top", ChangeRiskScore: 95},
		{ID: "a-top", ChangeRiskScore: 95},
	}

	nodes := Compute(Input{Modules: modules}).CriticalNodes

	var ids []string
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"a-top", "b-top", "exact", "core-cycle"}, ids)
}

func TestBlastRadius(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c", "d"},
		[2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"c", "d"}, [2]string{"a", "c"})

	tests := []struct {
		id        string
		down, up  int
		pct       float64
		reachable []string
	}{
		{"a", 3, 0, 75, []string{"b", "c", "d"}},
		{"b", 2, 1, 50, []string{"c", "d"}},
		{"c", 1, 2, 25, []string{"d"}},
		{"d", 0, 3, 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			br := BlastRadiusOf(g, tt.id)
			assert.Equal(t, tt.down, br.DownstreamCount)
			assert.Equal(t, tt.up, br.UpstreamCount)
			assert.Equal(t, tt.pct, br.BlastPct)
			assert.Equal(t, tt.reachable, br.Downstream)
		})
	}

	radii := Compute(Input{Graph: g}).BlastRadii
	require.Len(t, radii, 4)
	assert.Equal(t, "a", radii[0].ID)
	assert.Equal(t, "d", radii[3].ID)
}

func TestBlastRadius_TopTen(t *testing.T) {
	var ids []string
	for i := 0; i < 12; i++ {
		ids = append(ids, fmt.Sprintf("m%02d", i))
	}
	g := buildGraph(t, ids, [2]string{"m11", "m00"})

	radii := Compute(Input{Graph: g}).BlastRadii
	require.Len(t, radii, MaxBlastRadii)
	assert.Equal(t, "m11", radii[0].ID)
	assert.Equal(t, "m00", radii[1].ID)
	assert.Equal(t, "m08", radii[9].ID)
}

func TestApplyImpact(t *testing.T) {
	modules := []metrics.ModuleMetrics{
		{ID: "a", ChangeRiskScore: 50},
		{ID: "b", ChangeRiskScore: 90},
		{ID: "c", ChangeRiskScore: 73},
	}
	vs := []policy.Violation{
		{RuleID: "edge", Severity: policy.SeverityHigh, From: "a", To: "b"},
		{RuleID: "module", Severity: policy.SeverityMedium, ModuleID: "c"},
		{RuleID: "unknown", Severity: policy.SeverityCritical, ModuleID: "zzz"},
		{RuleID: "low", Severity: policy.SeverityLow, From: "b", To: "a"},
	}

	ApplyImpact(vs, modules)

	want := []int{72, 37, 0, 18}
	for i, v := range vs {
		require.NotNil(t, v.ImpactScore, v.RuleID)
		assert.Equal(t, want[i], *v.ImpactScore, v.RuleID)
	}

	ranked := RankByImpact(append(vs, policy.Violation{RuleID: "unscored"}))
	var order []string
	for _, v := range ranked {
		order = append(order, v.RuleID)
	}
	assert.Equal(t, []string{"edge", "module", "low", "unknown", "unscored"}, order)
}
