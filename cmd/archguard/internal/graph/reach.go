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

// Downstream returns every module transitively imported by id, excluding id
// itself even when it sits on a cycle. Order is breadth-first.
func (g *Graph) Downstream(id string) []string {
	return bfs(id, g.Successors)
}

// Upstream returns every module that transitively imports id, excluding id
// itself. Order is breadth-first.
func (g *Graph) Upstream(id string) []string {
	return bfs(id, g.Predecessors)
}

func bfs(start string, next func(string) []string) []string {
	visited := map[string]bool{start: true}
	queue := []string{start}
	var reached []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, n := range next(current) {
			if visited[n] {
				continue
			}
			visited[n] = true
			reached = append(reached, n)
			queue = append(queue, n)
		}
	}
	return reached
}
