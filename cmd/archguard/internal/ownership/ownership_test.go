// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ownership

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/metrics"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/policy"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/report"
)

func sampleTagger(t *testing.T) *Tagger {
	t.Helper()
	tg, err := New(Document{Owners: []Mapping{
		{Pattern: "src/payments/**", Owner: "team-payments"},
		{Pattern: "src", Owner: "team-platform"},
	}})
	require.NoError(t, err)
	return tg
}

func TestOwnerOf(t *testing.T) {
	tg := sampleTagger(t)
	tests := []struct {
		id   string
		want string
	}{
		{"src/payments/charge.ts", "team-payments"},
		{"src/ui/view.ts", "team-platform"},
		{"scripts/build.ts", ""},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, tg.OwnerOf(tt.id))
		})
	}
}

func TestTag(t *testing.T) {
	r := report.New(time.Now(), metrics.Result{Modules: []metrics.ModuleMetrics{
		{ID: "src/payments/charge.ts", ChangeRiskScore: 80},
		{ID: "src/ui/view.ts", ChangeRiskScore: 10},
		{ID: "scripts/build.ts"},
	}}, []policy.Violation{
		{RuleID: "a", ModuleID: "src/ui/view.ts"},
		{RuleID: "b", From: "src/payments/charge.ts", To: "src/ui/view.ts"},
		{RuleID: "c", From: "src/payments/charge.ts", To: "scripts/build.ts"},
		{RuleID: "d", ModuleID: "scripts/build.ts"},
	})

	tagged, stats := sampleTagger(t).Tag(r)

	owners := map[string]string{}
	for _, m := range tagged.ModuleMetrics {
		owners[m.ID] = m.Owner
	}
	assert.Equal(t, map[string]string{
		"src/payments/charge.ts": "team-payments",
		"src/ui/view.ts":         "team-platform",
		"scripts/build.ts":       "",
	}, owners)

	var vOwners []string
	for _, v := range tagged.Violations {
		vOwners = append(vOwners, v.Owner)
	}
	assert.Equal(t, []string{"team-platform", "team-payments", "team-payments", ""}, vOwners)

	assert.Equal(t, []Stats{
		{Owner: "team-payments", Modules: 1, Violations: 2, HighRisk: 1},
		{Owner: "team-platform", Modules: 1, Violations: 1},
	}, stats)

	for _, m := range r.ModuleMetrics {
		assert.Empty(t, m.Owner, "input report must not change")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owners.yaml")
	require.NoError(t, os.WriteFile(path, []byte("owners:\n  - pattern: lib\n    owner: core\n"), 0o644))

	tg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "core", tg.OwnerOf("lib/x.ts"))
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Document{Owners: []Mapping{{Pattern: "src"}}})
	assert.ErrorIs(t, err, ErrInvalidMapping)

	_, err = New(Document{Owners: []Mapping{{Pattern: "src/[", Owner: "x"}}})
	assert.ErrorIs(t, err, policy.ErrInvalidPattern)
}
