// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report assembles the analysis report and writes it to its
// destination.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/go-openapi/strfmt"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/extract"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/metrics"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/policy"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/risk"
)

// Report is the serialized result of one analysis run.
//
// The first five fields are always present. RiskAssessment and FileErrors
// are omitted when empty.
type Report struct {
	GeneratedAt    strfmt.DateTime         `json:"generatedAt"`
	GlobalMetrics  metrics.GlobalMetrics   `json:"globalMetrics"`
	RiskSummary    metrics.RiskSummary     `json:"riskSummary"`
	ModuleMetrics  []metrics.ModuleMetrics `json:"moduleMetrics"`
	Violations     []policy.Violation      `json:"violations"`
	RiskAssessment *risk.Assessment        `json:"riskAssessment,omitempty"`
	FileErrors     []FileError             `json:"fileErrors,omitempty"`
}

// FileError is a file skipped during a continue-on-error run.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Option configures New.
type Option func(*Report)

// WithAssessment attaches the architecture assessment.
func WithAssessment(a *risk.Assessment) Option {
	return func(r *Report) {
		r.RiskAssessment = a
	}
}

// WithFileErrors records per-file extraction failures.
func WithFileErrors(errs []*extract.ParseError) Option {
	return func(r *Report) {
		for _, e := range errs {
			r.FileErrors = append(r.FileErrors, FileError{File: e.FilePath, Error: e.Err.Error()})
		}
	}
}

// New builds a Report.
//
// # Description
//
// Module metrics are sorted by id and violations by (ruleId, subject). The
// timestamp is stored in UTC with millisecond precision. Slices are never
// nil so they encode as [] rather than null.
func New(now time.Time, m metrics.Result, violations []policy.Violation, opts ...Option) *Report {
	modules := append([]metrics.ModuleMetrics{}, m.Modules...)
	sort.SliceStable(modules, func(i, j int) bool {
		return modules[i].ID < modules[j].ID
	})
	vs := append([]policy.Violation{}, violations...)
	policy.SortViolations(vs)

	r := &Report{
		GeneratedAt:   strfmt.DateTime(now.UTC().Truncate(time.Millisecond)),
		GlobalMetrics: m.Global,
		RiskSummary:   m.RiskSummary,
		ModuleMetrics: modules,
		Violations:    vs,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Encode writes r as JSON indented by two spaces.
func Encode(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// Marshal returns the encoded form of r.
func Marshal(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a report previously written by Encode.
func Decode(rd io.Reader) (*Report, error) {
	var r Report
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	if r.ModuleMetrics == nil {
		r.ModuleMetrics = []metrics.ModuleMetrics{}
	}
	if r.Violations == nil {
		r.Violations = []policy.Violation{}
	}
	return &r, nil
}

// ReadFile decodes the report at path.
func ReadFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Time returns GeneratedAt as a time.Time.
func (r *Report) Time() time.Time {
	return time.Time(r.GeneratedAt)
}

// CountBySeverity tallies violations per severity.
func (r *Report) CountBySeverity() map[policy.Severity]int {
	counts := make(map[policy.Severity]int, 4)
	for _, v := range r.Violations {
		counts[v.Severity]++
	}
	return counts
}

// HasViolationAtLeast reports whether any violation meets threshold.
func (r *Report) HasViolationAtLeast(threshold policy.Severity) bool {
	for _, v := range r.Violations {
		if v.Severity.AtLeast(threshold) {
			return true
		}
	}
	return false
}
