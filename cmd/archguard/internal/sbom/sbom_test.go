// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sbom

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/policy"
)

func cvss(v float64) *float64 { return &v }

func TestRiskScore(t *testing.T) {
	tests := []struct {
		name  string
		base  float64
		usage int
		want  int
	}{
		{"critical single use", 9.5, 1, 95},
		{"high single use", 7.5, 1, 75},
		{"unused counts as one", 2.5, 0, 25},
		{"three uses", 5, 3, 74},
		{"ten uses capped", 5, 10, 100},
		{"capped", 9.8, 2, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RiskScore(tt.base, tt.usage))
		})
	}
}

func TestCorrelate(t *testing.T) {
	usage := Usage{
		"lodash":   {"src/b.ts", "src/a.ts", "src/b.ts"},
		"react":    {"src/c.tsx"},
		"left-pad": {},
	}
	vulns := []Vulnerability{
		{ID: "GHSA-2", Package: "lodash", Severity: policy.SeverityMedium},
		{ID: "GHSA-1", Package: "lodash", Severity: policy.SeverityHigh, CVSS: cvss(7.4)},
		{ID: "CVE-9", Package: "minimist", Severity: policy.SeverityCritical},
	}

	rows, err := Correlate(usage, vulns)
	require.NoError(t, err)

	var names []string
	for _, r := range rows {
		names = append(names, r.Package)
	}
	assert.Equal(t, []string{"lodash", "minimist", "left-pad", "react"}, names)

	assert.Equal(t, PackageRisk{
		Package:         "lodash",
		UsageCount:      2,
		Modules:         []string{"src/a.ts", "src/b.ts"},
		Vulnerabilities: []string{"GHSA-1", "GHSA-2"},
		MaxSeverity:     policy.SeverityHigh,
		RiskScore:       96,
	}, rows[0])
	assert.Equal(t, 95, rows[1].RiskScore)
	assert.Equal(t, 0, rows[1].UsageCount)
	assert.Equal(t, 0, rows[3].RiskScore)
	assert.Empty(t, rows[3].MaxSeverity)
}

func TestCorrelate_Invalid(t *testing.T) {
	_, err := Correlate(nil, []Vulnerability{{ID: "x", Severity: policy.SeverityLow}})
	assert.ErrorIs(t, err, ErrInvalidVulnerability)

	_, err = Correlate(nil, []Vulnerability{{ID: "x", Package: "p", Severity: "moderate"}})
	assert.ErrorIs(t, err, ErrInvalidVulnerability)

	rows, err := Correlate(nil, []Vulnerability{{ID: "x", Package: "p", Severity: "moderate", CVSS: cvss(4)}})
	require.NoError(t, err)
	assert.Equal(t, 40, rows[0].RiskScore)
}

func TestParseVulnerabilities(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"array", `[{"id":"CVE-1","package":"p","severity":"HIGH"}]`},
		{"wrapped", `{"vulnerabilities":[{"id":"CVE-1","package":"p","severity":"High"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vulns, err := ParseVulnerabilities([]byte(tt.doc))
			require.NoError(t, err)
			require.Len(t, vulns, 1)
			assert.Equal(t, policy.SeverityHigh, vulns[0].Severity)
		})
	}

	_, err := ParseVulnerabilities([]byte("nope"))
	assert.Error(t, err)
}

func TestLoadUsage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"react":["a.tsx"]}`), 0o644))

	u, err := LoadUsage(path)
	require.NoError(t, err)
	assert.Equal(t, Usage{"react": {"a.tsx"}}, u)

	_, err = LoadUsage(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
