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
	"fmt"
	"strings"
)

// Severity of a violation. Ordered low < medium < high < critical.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityOrder maps severity to numeric order (higher = more severe).
var severityOrder = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// severityWeight scales a change-risk score into an impact score.
var severityWeight = map[Severity]float64{
	SeverityCritical: 1.0,
	SeverityHigh:     0.8,
	SeverityMedium:   0.5,
	SeverityLow:      0.2,
}

// Severities lists every severity from least to most severe.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// ParseSeverity converts a string to Severity. Unlike rule documents, which
// fall back to a per-type default, an unknown value here is an error.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("%w: %q (valid: low, medium, high, critical)", ErrInvalidSeverity, s)
	}
	return sev, nil
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	_, ok := severityOrder[s]
	return ok
}

// Order returns the numeric rank of s, 0 when unknown.
func (s Severity) Order() int {
	return severityOrder[s]
}

// AtLeast reports whether s is as severe as threshold or more.
func (s Severity) AtLeast(threshold Severity) bool {
	return severityOrder[s] >= severityOrder[threshold]
}

// Weight returns the impact weight of s.
func (s Severity) Weight() float64 {
	return severityWeight[s]
}
