// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/extract"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/metrics"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/policy"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/risk"
)

var fixedTime = time.Date(2025, 3, 4, 5, 6, 7, 891_234_567, time.FixedZone("X", 2*3600))

func sampleReport(opts ...Option) *Report {
	m := metrics.Result{
		Modules: []metrics.ModuleMetrics{
			{ID: "src/b.ts", LOC: 3, FanIn: 1},
			{ID: "src/a.ts", LOC: 5, FanOut: 1, Instability: 1},
		},
		Global:      metrics.GlobalMetrics{TotalModules: 2, TotalEdges: 1, AvgInstability: 0.5},
		RiskSummary: metrics.RiskSummary{Low: 2},
	}
	vs := []policy.Violation{
		{RuleID: "z", Type: policy.RuleMaxFanIn, Severity: policy.SeverityLow, ModuleID: "src/b.ts", Message: "fan-in"},
		{RuleID: "a", Type: policy.RuleForbiddenDependency, Severity: policy.SeverityHigh, From: "src/a.ts", To: "src/b.ts", Message: "a => b"},
	}
	return New(fixedTime, m, vs, opts...)
}

func TestNew(t *testing.T) {
	r := sampleReport()

	assert.Equal(t, "src/a.ts", r.ModuleMetrics[0].ID)
	assert.Equal(t, "src/b.ts", r.ModuleMetrics[1].ID)
	assert.Equal(t, "a", r.Violations[0].RuleID)
	assert.Equal(t, "z", r.Violations[1].RuleID)
	assert.Equal(t, time.UTC, r.Time().Location())
	assert.Nil(t, r.RiskAssessment)
	assert.Nil(t, r.FileErrors)
}

func TestNew_EmptyInputs(t *testing.T) {
	r := New(fixedTime, metrics.Result{}, nil)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, r))
	out := buf.String()
	assert.Contains(t, out, `"moduleMetrics": []`)
	assert.Contains(t, out, `"violations": []`)
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleReport()))
	out := buf.String()

	t.Run("timestamp is UTC with millis", func(t *testing.T) {
		assert.Contains(t, out, `"generatedAt": "2025-03-04T03:06:07.891Z"`)
	})

	t.Run("two space indent", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(out, "{\n  \"generatedAt\""))
	})

	t.Run("required keys in order", func(t *testing.T) {
		last := -1
		for _, key := range []string{"generatedAt", "globalMetrics", "riskSummary", "moduleMetrics", "violations"} {
			idx := strings.Index(out, `"`+key+`"`)
			require.GreaterOrEqual(t, idx, 0, key)
			assert.Greater(t, idx, last, key)
			last = idx
		}
	})

	t.Run("optional keys omitted", func(t *testing.T) {
		assert.NotContains(t, out, "riskAssessment")
		assert.NotContains(t, out, "fileErrors")
		assert.NotContains(t, out, "impactScore")
		assert.NotContains(t, out, "owner")
	})

	t.Run("no html escaping", func(t *testing.T) {
		assert.Contains(t, out, `"a => b"`)
	})
}

func TestEncode_WithOptions(t *testing.T) {
	a := risk.NewAssessment()
	errs := []*extract.ParseError{{FilePath: "src/bad.ts", Err: errors.New("boom")}}
	r := sampleReport(WithAssessment(a), WithFileErrors(errs))

	data, err := Marshal(r)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "riskAssessment")
	assert.JSONEq(t, `[{"file":"src/bad.ts","error":"boom"}]`, string(raw["fileErrors"]))
}

func TestDecode(t *testing.T) {
	original := sampleReport()
	data, err := Marshal(original)
	require.NoError(t, err)

	decoded, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, original.Time().Equal(decoded.Time()))
	assert.Equal(t, original.Violations, decoded.Violations)
	assert.Equal(t, original.ModuleMetrics, decoded.ModuleMetrics)

	_, err = Decode(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestHasViolationAtLeast(t *testing.T) {
	r := sampleReport()
	assert.True(t, r.HasViolationAtLeast(policy.SeverityLow))
	assert.True(t, r.HasViolationAtLeast(policy.SeverityHigh))
	assert.False(t, r.HasViolationAtLeast(policy.SeverityCritical))

	counts := r.CountBySeverity()
	assert.Equal(t, 1, counts[policy.SeverityHigh])
	assert.Equal(t, 1, counts[policy.SeverityLow])
}

func TestWrite_File(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "report.json")
	r := sampleReport()

	require.NoError(t, Write(context.Background(), dest, r, SinkOptions{}))

	got, err := ReadFile(dest)
	require.NoError(t, err)
	assert.Len(t, got.Violations, 2)

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not remain")
}

func TestWrite_Stdout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(context.Background(), StdoutDest, sampleReport(), SinkOptions{Stdout: &buf}))
	assert.Contains(t, buf.String(), `"globalMetrics"`)
}

func TestOpenSink_Invalid(t *testing.T) {
	_, err := OpenSink(context.Background(), "", SinkOptions{})
	assert.ErrorIs(t, err, ErrInvalidDestination)

	_, err = OpenSink(context.Background(), "gs://bucket-only", SinkOptions{})
	assert.ErrorIs(t, err, ErrInvalidDestination)
}

func TestParseGCSURL(t *testing.T) {
	tests := []struct {
		in      string
		bucket  string
		object  string
		wantErr bool
	}{
		{in: "gs://b/report.json", bucket: "b", object: "report.json"},
		{in: "gs://b/ci/run-1/report.json", bucket: "b", object: "ci/run-1/report.json"},
		{in: "gs://b", wantErr: true},
		{in: "gs:///x", wantErr: true},
		{in: "gs://b/dir/", wantErr: true},
		{in: "s3://b/x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			bucket, object, err := ParseGCSURL(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDestination)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.object, object)
		})
	}
}

func TestSummary(t *testing.T) {
	a := risk.NewAssessment()
	a.ArchitectureScore = 55
	a.RiskLevel = risk.RiskHigh
	errs := []*extract.ParseError{{FilePath: "x.ts", Err: errors.New("bad")}}
	r := sampleReport(WithAssessment(a), WithFileErrors(errs))

	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "ARCHGUARD report")
	assert.Contains(t, out, "Modules: 2  Edges: 1")
	assert.Contains(t, out, "Architecture score: 55 (high)")
	assert.Contains(t, out, "Violations: 2 (critical 0, high 1, medium 0, low 1)")
	assert.Contains(t, out, "[high] a: a => b")
	assert.Contains(t, out, "Skipped files: 1")
	assert.NotContains(t, out, "\x1b[", "no ANSI codes for non-terminal writers")
}

func TestSummary_Clean(t *testing.T) {
	r := New(fixedTime, metrics.Result{}, nil)
	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, r))
	assert.Contains(t, buf.String(), "Violations: 0\n")
	assert.False(t, IsTerminal(&buf))
}
