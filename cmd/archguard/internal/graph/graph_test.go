// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// build creates a graph from "from->to" pairs. Every endpoint becomes a
// module with LOC 1.
func build(t *testing.T, ids []string, edges ...[2]string) *Graph {
	t.Helper()
	b := NewBuilder()
	for _, id := range ids {
		require.NoError(t, b.AddModule(Module{ID: id, FilePath: id, LOC: 1}))
	}
	for _, e := range edges {
		require.NoError(t, b.AddEdge(e[0], e[1]))
	}
	g, err := b.Build(context.Background())
	require.NoError(t, err)
	return g
}

func TestBuilder(t *testing.T) {
	t.Run("parallel edges count individually", func(t *testing.T) {
		g := build(t, []string{"a", "b"}, [2]string{"a", "b"}, [2]string{"a", "b"})
		assert.Equal(t, 2, g.FanOut("a"))
		assert.Equal(t, 2, g.FanIn("b"))
		assert.Len(t, g.Edges(), 2)
		assert.Equal(t, []string{"b"}, g.Successors("a"))
		assert.Equal(t, []string{"a"}, g.Predecessors("b"))
	})

	t.Run("forward references resolve at build", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.AddEdge("a", "b"))
		require.NoError(t, b.AddModule(Module{ID: "b"}))
		require.NoError(t, b.AddModule(Module{ID: "a"}))
		g, err := b.Build(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, g.IDs())
		assert.Equal(t, 1, g.FanIn("b"))
	})

	t.Run("dangling edges dropped", func(t *testing.T) {
		g := build(t, []string{"a"}, [2]string{"a", "ghost"})
		assert.Empty(t, g.Edges())
		assert.Equal(t, 0, g.FanOut("a"))
	})

	t.Run("duplicate module", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.AddModule(Module{ID: "a"}))
		assert.ErrorIs(t, b.AddModule(Module{ID: "a"}), ErrDuplicateModule)
		assert.ErrorIs(t, b.AddModule(Module{}), ErrEmptyModuleID)
	})

	t.Run("limits", func(t *testing.T) {
		b := NewBuilder(WithMaxModules(1), WithMaxEdges(1))
		require.NoError(t, b.AddModule(Module{ID: "a"}))
		assert.ErrorIs(t, b.AddModule(Module{ID: "b"}), ErrMaxModulesExceeded)
		require.NoError(t, b.AddEdge("a", "a"))
		assert.ErrorIs(t, b.AddEdge("a", "a"), ErrMaxEdgesExceeded)
	})

	t.Run("frozen after build", func(t *testing.T) {
		b := NewBuilder()
		_, err := b.Build(context.Background())
		require.NoError(t, err)
		assert.ErrorIs(t, b.AddModule(Module{ID: "a"}), ErrGraphFrozen)
		assert.ErrorIs(t, b.AddEdge("a", "b"), ErrGraphFrozen)
		_, err = b.Build(context.Background())
		assert.ErrorIs(t, err, ErrGraphFrozen)
	})

	t.Run("modules sorted", func(t *testing.T) {
		g := build(t, []string{"c", "a", "b"})
		mods := g.Modules()
		require.Len(t, mods, 3)
		assert.Equal(t, "a", mods[0].ID)
		assert.Equal(t, "c", mods[2].ID)
		m, ok := g.Module("b")
		assert.True(t, ok)
		assert.Equal(t, 1, m.LOC)
	})
}

func TestDetectCycles(t *testing.T) {
	tests := []struct {
		name       string
		ids        []string
		edges      [][2]string
		wantIn     []string
		wantGroups int
	}{
		{
			name:  "acyclic chain",
			ids:   []string{"a", "b", "c"},
			edges: [][2]string{{"a", "b"}, {"b", "c"}},
		},
		{
			name:       "two node cycle",
			ids:        []string{"a", "b", "c"},
			edges:      [][2]string{{"a", "b"}, {"b", "a"}, {"b", "c"}},
			wantIn:     []string{"a", "b"},
			wantGroups: 1,
		},
		{
			name:       "triangle",
			ids:        []string{"a", "b", "c"},
			edges:      [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}},
			wantIn:     []string{"a", "b", "c"},
			wantGroups: 1,
		},
		{
			name:       "self loop only",
			ids:        []string{"a", "b"},
			edges:      [][2]string{{"a", "a"}},
			wantIn:     []string{"a"},
			wantGroups: 1,
		},
		{
			name:       "two separate cycles",
			ids:        []string{"a", "b", "c", "d", "e"},
			edges:      [][2]string{{"a", "b"}, {"b", "a"}, {"c", "d"}, {"d", "c"}, {"b", "c"}, {"d", "e"}},
			wantIn:     []string{"a", "b", "c", "d"},
			wantGroups: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build(t, tt.ids, tt.edges...)
			res := DetectCycles(g)
			assert.Equal(t, tt.wantGroups, res.ComponentCount())
			assert.Equal(t, len(tt.wantIn), res.ModuleCount())
			for _, id := range tt.wantIn {
				assert.True(t, res.InCycle[id], "%s should be in a cycle", id)
			}
		})
	}
}

func TestDetectCycles_DeepChain(t *testing.T) {
	const n = 100_000
	b := NewBuilder()
	for i := 0; i < n; i++ {
		require.NoError(t, b.AddModule(Module{ID: fmt.Sprintf("m%06d", i)}))
		if i > 0 {
			require.NoError(t, b.AddEdge(fmt.Sprintf("m%06d", i-1), fmt.Sprintf("m%06d", i)))
		}
	}
	require.NoError(t, b.AddEdge(fmt.Sprintf("m%06d", n-1), "m000000"))
	g, err := b.Build(context.Background())
	require.NoError(t, err)

	res := DetectCycles(g)
	assert.Equal(t, n, res.ModuleCount())
	require.Len(t, res.Components, 1)
	assert.Len(t, res.Components[0], n)
}

func TestReach(t *testing.T) {
	g := build(t, []string{"a", "b", "c", "d", "leaf"},
		[2]string{"a", "b"},
		[2]string{"b", "c"},
		[2]string{"c", "a"},
		[2]string{"c", "d"},
		[2]string{"d", "leaf"},
	)

	t.Run("downstream excludes self under cycle", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"b", "c", "d", "leaf"}, g.Downstream("a"))
	})

	t.Run("leaf has nothing downstream", func(t *testing.T) {
		assert.Empty(t, g.Downstream("leaf"))
	})

	t.Run("upstream", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, g.Upstream("leaf"))
		assert.ElementsMatch(t, []string{"b", "c"}, g.Upstream("a"))
	})
}
