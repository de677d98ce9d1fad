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
	"sort"
	"sync"
)

// Module is a source file represented as a graph node.
type Module struct {
	// ID is the root-relative, forward-slash path. Unique per graph.
	ID string `json:"id"`

	// FilePath is the path the module was read from.
	FilePath string `json:"filePath"`

	// LOC is the newline-delimited line count.
	LOC int `json:"loc"`
}

// Edge is one import statement from one module to another. Edges are not
// deduplicated; two imports of the same target are two edges.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is an immutable module dependency graph.
//
// A Graph is only produced by Builder.Build. Adjacency and fan counts are
// computed at build time; the reverse adjacency view is derived on first use
// and cached.
//
// Thread Safety: Safe for concurrent use after Build returns.
type Graph struct {
	modules map[string]Module
	ids     []string
	edges   []Edge

	adjacency map[string][]string
	fanIn     map[string]int
	fanOut    map[string]int
	selfLoop  map[string]bool

	reverseOnce sync.Once
	reverse     map[string][]string
}

// Len returns the number of modules.
func (g *Graph) Len() int {
	return len(g.ids)
}

// IDs returns the module ids in lexicographic order. The slice must not be
// modified.
func (g *Graph) IDs() []string {
	return g.ids
}

// Module returns the module with the given id.
func (g *Graph) Module(id string) (Module, bool) {
	m, ok := g.modules[id]
	return m, ok
}

// Modules returns all modules sorted by id.
func (g *Graph) Modules() []Module {
	out := make([]Module, 0, len(g.ids))
	for _, id := range g.ids {
		out = append(out, g.modules[id])
	}
	return out
}

// Edges returns the edge list in insertion order. The slice must not be
// modified.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// Successors returns the distinct targets of id's outgoing edges, sorted.
// The slice must not be modified.
func (g *Graph) Successors(id string) []string {
	return g.adjacency[id]
}

// Predecessors returns the distinct sources of id's incoming edges, sorted.
// The slice must not be modified.
func (g *Graph) Predecessors(id string) []string {
	g.reverseOnce.Do(g.buildReverse)
	return g.reverse[id]
}

// FanIn counts edges into id, parallel edges included.
func (g *Graph) FanIn(id string) int {
	return g.fanIn[id]
}

// FanOut counts edges out of id, parallel edges included.
func (g *Graph) FanOut(id string) int {
	return g.fanOut[id]
}

// HasSelfLoop reports whether id imports itself.
func (g *Graph) HasSelfLoop(id string) bool {
	return g.selfLoop[id]
}

func (g *Graph) buildReverse() {
	sets := make(map[string]map[string]struct{}, len(g.ids))
	for _, e := range g.edges {
		if sets[e.To] == nil {
			sets[e.To] = make(map[string]struct{})
		}
		sets[e.To][e.From] = struct{}{}
	}
	g.reverse = sortedLists(sets)
}

func sortedLists(sets map[string]map[string]struct{}) map[string][]string {
	out := make(map[string][]string, len(sets))
	for id, set := range sets {
		list := make([]string, 0, len(set))
		for n := range set {
			list = append(list, n)
		}
		sort.Strings(list)
		out[id] = list
	}
	return out
}
