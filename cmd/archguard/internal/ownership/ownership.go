// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ownership tags modules and violations with their owning team.
package ownership

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/metrics"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/policy"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/report"
)

// ErrInvalidMapping indicates an owner entry missing its pattern or owner.
var ErrInvalidMapping = errors.New("invalid ownership mapping")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Mapping assigns an owner to every module matching Pattern.
type Mapping struct {
	Pattern string `yaml:"pattern" json:"pattern" validate:"required"`
	Owner   string `yaml:"owner" json:"owner" validate:"required"`
}

// Document is the on-disk ownership map.
type Document struct {
	Owners []Mapping `yaml:"owners" json:"owners" validate:"dive"`
}

// Tagger resolves module ids to owners. The first matching mapping wins.
type Tagger struct {
	mappings []compiledMapping
}

type compiledMapping struct {
	matcher policy.Matcher
	owner   string
}

// LoadFile reads the ownership map at path.
func LoadFile(path string) (*Tagger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read owners: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse owners %s: %w", path, err)
	}
	return New(doc)
}

// New compiles doc.
func New(doc Document) (*Tagger, error) {
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMapping, err)
	}
	t := &Tagger{mappings: make([]compiledMapping, 0, len(doc.Owners))}
	for i, m := range doc.Owners {
		gm, err := policy.NewGlobMatcher(m.Pattern)
		if err != nil {
			return nil, fmt.Errorf("owners[%d]: %w", i, err)
		}
		t.mappings = append(t.mappings, compiledMapping{matcher: gm, owner: m.Owner})
	}
	return t, nil
}

// OwnerOf returns the owner of id, or "" when no mapping matches.
func (t *Tagger) OwnerOf(id string) string {
	for _, m := range t.mappings {
		if m.matcher.Matches(id) {
			return m.owner
		}
	}
	return ""
}

// Stats counts what each owner holds.
type Stats struct {
	Owner      string `json:"owner"`
	Modules    int    `json:"modules"`
	Violations int    `json:"violations"`
	HighRisk   int    `json:"highRisk"`
}

// Tag returns a copy of r with owners filled in, plus per-owner stats
// sorted by violation count and then owner. Violations take the owner of
// their module, or of their source module for edge violations.
func (t *Tagger) Tag(r *report.Report) (*report.Report, []Stats) {
	byOwner := make(map[string]*Stats)
	stat := func(owner string) *Stats {
		s, ok := byOwner[owner]
		if !ok {
			s = &Stats{Owner: owner}
			byOwner[owner] = s
		}
		return s
	}

	tagged := *r
	tagged.ModuleMetrics = make([]metrics.ModuleMetrics, len(r.ModuleMetrics))
	for i, m := range r.ModuleMetrics {
		m.Owner = t.OwnerOf(m.ID)
		tagged.ModuleMetrics[i] = m
		if m.Owner == "" {
			continue
		}
		s := stat(m.Owner)
		s.Modules++
		if m.ChangeRiskScore >= metrics.HighRiskThreshold {
			s.HighRisk++
		}
	}

	tagged.Violations = make([]policy.Violation, len(r.Violations))
	for i, v := range r.Violations {
		v.Owner = t.OwnerOf(v.Subject())
		tagged.Violations[i] = v
		if v.Owner != "" {
			stat(v.Owner).Violations++
		}
	}

	stats := make([]Stats, 0, len(byOwner))
	for _, s := range byOwner {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Violations != stats[j].Violations {
			return stats[i].Violations > stats[j].Violations
		}
		return stats[i].Owner < stats[j].Owner
	})
	return &tagged, stats
}
