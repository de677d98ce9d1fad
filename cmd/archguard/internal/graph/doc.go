// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the module dependency graph and the structural
// queries run over it.
//
// # Lifecycle
//
//	Builder.AddModule / AddEdge   (collect, any order)
//	          │
//	          ▼
//	Builder.Build ──────────────► *Graph (frozen)
//	                                 │
//	            ┌────────────────────┼────────────────────┐
//	            ▼                    ▼                    ▼
//	      DetectCycles          Downstream            Upstream
//	      (Tarjan SCC)        (forward BFS)     (reverse BFS, lazy
//	                                              reverse adjacency)
//
// A Graph never changes after Build, so every query is safe to run from
// multiple goroutines.
package graph
