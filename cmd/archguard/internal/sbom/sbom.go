// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sbom correlates package usage with known vulnerabilities.
//
// The output is a list of packages ranked by a risk score that grows with
// vulnerability severity and with how many modules import the package:
//
//	riskScore = round(min(100, base * 10 * (1 + log10(max(1, usageCount)))))
//
// base is the highest CVSS score among the package's vulnerabilities,
// falling back to a per-severity value when CVSS is absent.
package sbom

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/metrics"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/policy"
)

// ErrInvalidVulnerability indicates a vulnerability record missing its
// package or carrying an unknown severity.
var ErrInvalidVulnerability = errors.New("invalid vulnerability record")

// severityBase is the CVSS-equivalent used when a record has no score.
var severityBase = map[policy.Severity]float64{
	policy.SeverityCritical: 9.5,
	policy.SeverityHigh:     7.5,
	policy.SeverityMedium:   5.0,
	policy.SeverityLow:      2.5,
}

// Usage maps a package name to the ids of the modules importing it.
type Usage map[string][]string

// Vulnerability is one advisory against a package.
type Vulnerability struct {
	ID       string          `json:"id"`
	Package  string          `json:"package"`
	Severity policy.Severity `json:"severity"`
	CVSS     *float64        `json:"cvss,omitempty"`
	Summary  string          `json:"summary,omitempty"`
	Fixed    string          `json:"fixed,omitempty"`
}

// Base returns the CVSS score, or the severity fallback.
func (v Vulnerability) Base() float64 {
	if v.CVSS != nil {
		return *v.CVSS
	}
	return severityBase[v.Severity]
}

// PackageRisk is one row of the correlation output.
type PackageRisk struct {
	Package         string          `json:"package"`
	UsageCount      int             `json:"usageCount"`
	Modules         []string        `json:"modules"`
	Vulnerabilities []string        `json:"vulnerabilities"`
	MaxSeverity     policy.Severity `json:"maxSeverity,omitempty"`
	RiskScore       int             `json:"riskScore"`
}

// RiskScore applies the scoring formula.
func RiskScore(base float64, usageCount int) int {
	score := base * 10 * (1 + math.Log10(float64(max(1, usageCount))))
	return int(metrics.Round(math.Min(100, score)))
}

// Correlate joins usage and vulnerabilities.
//
// # Description
//
// Every package named in either input appears once. Packages without
// vulnerabilities score 0. Rows are sorted by risk score descending, then
// by package name.
func Correlate(usage Usage, vulns []Vulnerability) ([]PackageRisk, error) {
	byPkg := make(map[string][]Vulnerability)
	for i, v := range vulns {
		if strings.TrimSpace(v.Package) == "" {
			return nil, fmt.Errorf("%w: record %d has no package", ErrInvalidVulnerability, i)
		}
		if v.CVSS == nil && !v.Severity.Valid() {
			return nil, fmt.Errorf("%w: record %d (%s) has severity %q and no cvss", ErrInvalidVulnerability, i, v.ID, v.Severity)
		}
		byPkg[v.Package] = append(byPkg[v.Package], v)
	}

	names := make(map[string]struct{}, len(usage)+len(byPkg))
	for pkg := range usage {
		names[pkg] = struct{}{}
	}
	for pkg := range byPkg {
		names[pkg] = struct{}{}
	}

	out := make([]PackageRisk, 0, len(names))
	for pkg := range names {
		modules := dedupe(usage[pkg])
		row := PackageRisk{
			Package:         pkg,
			UsageCount:      len(modules),
			Modules:         modules,
			Vulnerabilities: []string{},
		}
		base := 0.0
		for _, v := range byPkg[pkg] {
			if v.ID != "" {
				row.Vulnerabilities = append(row.Vulnerabilities, v.ID)
			}
			base = math.Max(base, v.Base())
			if v.Severity.Valid() && (row.MaxSeverity == "" || v.Severity.AtLeast(row.MaxSeverity)) {
				row.MaxSeverity = v.Severity
			}
		}
		sort.Strings(row.Vulnerabilities)
		if len(byPkg[pkg]) > 0 {
			row.RiskScore = RiskScore(base, row.UsageCount)
		}
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].RiskScore != out[j].RiskScore {
			return out[i].RiskScore > out[j].RiskScore
		}
		return out[i].Package < out[j].Package
	})
	return out, nil
}

func dedupe(ids []string) []string {
	set := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LoadUsage reads a usage map from a JSON file.
func LoadUsage(path string) (Usage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read usage: %w", err)
	}
	var u Usage
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("parse usage %s: %w", path, err)
	}
	return u, nil
}

// LoadVulnerabilities reads vulnerability records from a JSON file. Both a
// bare array and an object with a "vulnerabilities" array are accepted.
func LoadVulnerabilities(path string) ([]Vulnerability, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vulnerabilities: %w", err)
	}
	vulns, err := ParseVulnerabilities(data)
	if err != nil {
		return nil, fmt.Errorf("parse vulnerabilities %s: %w", path, err)
	}
	return vulns, nil
}

// ParseVulnerabilities decodes vulnerability records. Severities are
// lower-cased before validation.
func ParseVulnerabilities(data []byte) ([]Vulnerability, error) {
	var vulns []Vulnerability
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		if err := json.Unmarshal(trimmed, &vulns); err != nil {
			return nil, err
		}
	} else {
		var wrapped struct {
			Vulnerabilities []Vulnerability `json:"vulnerabilities"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, err
		}
		vulns = wrapped.Vulnerabilities
	}
	for i := range vulns {
		vulns[i].Severity = policy.Severity(strings.ToLower(string(vulns[i].Severity)))
	}
	return vulns, nil
}
