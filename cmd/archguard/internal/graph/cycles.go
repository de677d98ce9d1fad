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
)

// CycleResult holds the cyclic strongly connected components of a graph.
type CycleResult struct {
	// Components lists every SCC that forms a cycle: more than one member,
	// or a single member with a self-loop. Members are sorted; components
	// are sorted by their first member.
	Components [][]string

	// InCycle contains every module that belongs to one of Components.
	InCycle map[string]bool
}

// ModuleCount returns the number of modules in a cycle.
func (r CycleResult) ModuleCount() int {
	return len(r.InCycle)
}

// ComponentCount returns the number of cyclic components.
func (r CycleResult) ComponentCount() int {
	return len(r.Components)
}

// DetectCycles finds cyclic modules using Tarjan's SCC algorithm.
//
// Description:
//
//	A module is in a cycle if its strongly connected component has more
//	than one member, or if it imports itself. Every node and edge is
//	visited once, so the pass is O(V + E).
//
//	The recursion is replaced by an explicit call stack so that long
//	import chains cannot overflow the goroutine stack.
//
// Outputs:
//
//	CycleResult - Cyclic components and the in-cycle set.
//
// Thread Safety: Safe for concurrent use.
func DetectCycles(g *Graph) CycleResult {
	index := 0
	nodeIndex := make(map[string]int, g.Len())
	nodeLowLink := make(map[string]int, g.Len())
	onStack := make(map[string]bool)
	sccStack := make([]string, 0)
	result := CycleResult{
		Components: make([][]string, 0),
		InCycle:    make(map[string]bool),
	}

	type callFrame struct {
		nodeID    string
		edgeIndex int
		phase     int // 0=enter, 1=edges, 2=after child, 3=exit
		childID   string
	}

	strongConnect := func(startID string) {
		callStack := []callFrame{{nodeID: startID}}

		for len(callStack) > 0 {
			frame := &callStack[len(callStack)-1]

			switch frame.phase {
			case 0:
				nodeIndex[frame.nodeID] = index
				nodeLowLink[frame.nodeID] = index
				index++
				sccStack = append(sccStack, frame.nodeID)
				onStack[frame.nodeID] = true
				frame.phase = 1

			case 1:
				successors := g.Successors(frame.nodeID)
				for frame.edgeIndex < len(successors) {
					next := successors[frame.edgeIndex]
					frame.edgeIndex++

					if _, visited := nodeIndex[next]; !visited {
						frame.phase = 2
						frame.childID = next
						callStack = append(callStack, callFrame{nodeID: next})
						goto continueLoop
					} else if onStack[next] {
						if nodeIndex[next] < nodeLowLink[frame.nodeID] {
							nodeLowLink[frame.nodeID] = nodeIndex[next]
						}
					}
				}
				frame.phase = 3

			case 2:
				if nodeLowLink[frame.childID] < nodeLowLink[frame.nodeID] {
					nodeLowLink[frame.nodeID] = nodeLowLink[frame.childID]
				}
				frame.phase = 1

			case 3:
				if nodeLowLink[frame.nodeID] == nodeIndex[frame.nodeID] {
					scc := make([]string, 0, 1)
					for {
						w := sccStack[len(sccStack)-1]
						sccStack = sccStack[:len(sccStack)-1]
						onStack[w] = false
						scc = append(scc, w)
						if w == frame.nodeID {
							break
						}
					}
					if len(scc) > 1 || g.HasSelfLoop(scc[0]) {
						sort.Strings(scc)
						result.Components = append(result.Components, scc)
						for _, id := range scc {
							result.InCycle[id] = true
						}
					}
				}
				callStack = callStack[:len(callStack)-1]
			}
		continueLoop:
		}
	}

	for _, id := range g.IDs() {
		if _, visited := nodeIndex[id]; !visited {
			strongConnect(id)
		}
	}

	sort.Slice(result.Components, func(i, j int) bool {
		return result.Components[i][0] < result.Components[j][0]
	})
	return result
}
