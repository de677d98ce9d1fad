// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/graph"
)

func buildGraph(t *testing.T, locs map[string]int, edges ...[2]string) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder()
	for id, loc := range locs {
		require.NoError(t, b.AddModule(graph.Module{ID: id, FilePath: id, LOC: loc}))
	}
	for _, e := range edges {
		require.NoError(t, b.AddEdge(e[0], e[1]))
	}
	g, err := b.Build(context.Background())
	require.NoError(t, err)
	return g
}

func TestCompute_Triangle(t *testing.T) {
	g := buildGraph(t, map[string]int{"a": 100, "b": 50, "c": 10, "d": 0},
		[2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"c", "a"},
	)
	cycles := graph.DetectCycles(g)
	res := Compute(g, cycles.InCycle)

	require.Len(t, res.Modules, 4)
	assert.Equal(t, []string{"a", "b", "c", "d"}, []string{
		res.Modules[0].ID, res.Modules[1].ID, res.Modules[2].ID, res.Modules[3].ID,
	})

	a := res.Modules[0]
	assert.Equal(t, 1, a.FanIn)
	assert.Equal(t, 1, a.FanOut)
	assert.Equal(t, 0.5, a.Instability)
	assert.True(t, a.InCycle)
	// 100 * (0.5*1 + 0.3*1 + 0.2) = 100
	assert.Equal(t, 100, a.ChangeRiskScore)

	b := res.Modules[1]
	// 100 * (0.5 + 0.3*0.5 + 0.2) = 85
	assert.Equal(t, 85, b.ChangeRiskScore)

	c := res.Modules[2]
	// 100 * (0.5 + 0.3*0.1 + 0.2) = 73
	assert.Equal(t, 73, c.ChangeRiskScore)

	d := res.Modules[3]
	assert.Equal(t, 0.0, d.Instability)
	assert.False(t, d.InCycle)
	assert.Equal(t, 0, d.ChangeRiskScore)

	assert.Equal(t, GlobalMetrics{
		TotalModules:   4,
		TotalEdges:     3,
		AvgInstability: 0.375,
		CycleCount:     3,
		CoreModules:    0,
	}, res.Global)
	assert.Equal(t, RiskSummary{High: 3, Medium: 0, Low: 1}, res.RiskSummary)
}

func TestCompute_Empty(t *testing.T) {
	g := buildGraph(t, nil)
	res := Compute(g, nil)
	assert.Empty(t, res.Modules)
	assert.Equal(t, GlobalMetrics{}, res.Global)
}

func TestCompute_CoreHub(t *testing.T) {
	locs := map[string]int{"hub": 10, "dep": 10}
	var edges [][2]string
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("client%d", i)
		locs[id] = 10
		edges = append(edges, [2]string{id, "hub"})
	}
	edges = append(edges, [2]string{"hub", "dep"}, [2]string{"hub", "dep"})
	g := buildGraph(t, locs, edges...)

	res := Compute(g, nil)
	hub := res.ByID()["hub"]
	assert.Equal(t, 8, hub.FanIn)
	assert.Equal(t, 2, hub.FanOut)
	assert.InDelta(t, 0.2, hub.Instability, 1e-12)
	assert.True(t, hub.IsCoreModule)
	assert.Equal(t, 1, res.Global.CoreModules)
}

func TestIsCore(t *testing.T) {
	tests := []struct {
		fanIn       int
		instability float64
		want        bool
	}{
		{6, 0.2, true},
		{6, 0.35, false},
		{5, 0.3, true},
		{4, 0.0, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%v", tt.fanIn, tt.instability), func(t *testing.T) {
			assert.Equal(t, tt.want, IsCore(tt.fanIn, tt.instability))
		})
	}
}

func TestChangeRiskScore_Bounds(t *testing.T) {
	for fanIn := 0; fanIn <= 10; fanIn++ {
		for loc := 0; loc <= 100; loc += 7 {
			for _, cyc := range []bool{false, true} {
				s := ChangeRiskScore(fanIn, 10, loc, 100, cyc)
				assert.GreaterOrEqual(t, s, 0)
				assert.LessOrEqual(t, s, 100)
			}
		}
	}
	assert.Equal(t, 0, ChangeRiskScore(0, 0, 0, 0, false))
	assert.Equal(t, 20, ChangeRiskScore(0, 0, 0, 0, true))
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 3.0, Round(2.5))
	assert.Equal(t, 2.0, Round(2.4999))
	assert.Equal(t, 0.3333, RoundTo(1.0/3.0, 4))
	assert.Equal(t, 12.3, RoundTo(12.25, 1))
	assert.Equal(t, 100, Clamp(140, 0, 100))
	assert.Equal(t, 0, Clamp(-3, 0, 100))
}

func TestVariance(t *testing.T) {
	assert.Equal(t, 0.0, Variance(nil))
	mods := []ModuleMetrics{{Instability: 0}, {Instability: 1}}
	assert.InDelta(t, 0.25, Variance(mods), 1e-12)
}
