// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package risk turns module metrics and policy violations into a
// whole-system architecture assessment.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                    Architecture Assessment                      │
//	├─────────────────────────────────────────────────────────────────┤
//	│                                                                 │
//	│  Module metrics + violations + in-cycle set                     │
//	│         │                                                       │
//	│         ▼                                                       │
//	│  ┌──────────┬─────────────┬─────────────┬────────────┐          │
//	│  │  Cycles  │ Bottlenecks │ Instability │ Violations │          │
//	│  │  (≤30)   │   (≤20)     │ variance    │   (≤25)    │          │
//	│  │          │             │   (≤15)     │            │          │
//	│  └──────────┴─────────────┴─────────────┴────────────┘          │
//	│         │                                                       │
//	│         ▼                                                       │
//	│  100 - penalties, clamped to [0, 100]                           │
//	│         │                                                       │
//	│         ▼                                                       │
//	│  Risk level (low/medium/high/critical)                          │
//	│                                                                 │
//	└─────────────────────────────────────────────────────────────────┘
//
// Alongside the score the assessment lists critical nodes and the blast
// radius of the modules with the widest downstream reach.
//
// # Impact scores
//
// ApplyImpact ranks individual violations by severity weight times the
// change-risk score of the modules involved. Impact scores and the
// architecture score are separate outputs and are never combined.
//
// # Algorithm Versioning
//
// When making changes that affect scores, increment AlgorithmVersion.
package risk
