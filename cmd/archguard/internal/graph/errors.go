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

import "errors"

// Sentinel errors for graph construction.
var (
	ErrGraphFrozen        = errors.New("graph is frozen")
	ErrEmptyModuleID      = errors.New("module id must not be empty")
	ErrDuplicateModule    = errors.New("duplicate module id")
	ErrMaxModulesExceeded = errors.New("maximum module count exceeded")
	ErrMaxEdgesExceeded   = errors.New("maximum edge count exceeded")
)
