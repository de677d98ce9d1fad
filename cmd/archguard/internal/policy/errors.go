// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package policy

import (
	"errors"
	"fmt"
)

// Sentinel errors for policy loading.
var (
	ErrMissingRules     = errors.New("policy document has no rules array")
	ErrInvalidRule      = errors.New("invalid rule")
	ErrDuplicateRuleID  = errors.New("duplicate rule id")
	ErrInvalidPattern   = errors.New("invalid pattern")
	ErrInvalidSeverity  = errors.New("invalid severity")
	ErrUnsupportedInput = errors.New("unsupported policy document")
)

// LoadError is returned when a policy document cannot be used. A policy that
// fails to load is never partially evaluated.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("loading policy: %v", e.Err)
	}
	return fmt.Sprintf("loading policy %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
