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
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlPolicy = `
exemptions:
  - legacy
  - pattern: "src/generated/**"
    reason: codegen output
rules:
  - id: no-ui-to-db
    type: forbidden_dependency
    from: "src/ui/**"
    to: "src/db/**"
    exempt: ["src/ui/admin/**"]
  - id: fan-out
    type: max_fan_out
    threshold: 2
  - id: cycles
    type: no_cycles
    severity: critical
    message: "{module} is cyclic"
  - id: layers
    type: layer_matrix
    layers:
      ui: "src/ui/**"
      domain: "src/domain/**"
      infra: "src/**"
    allow:
      - { from: ui, to: domain }
    allowSameLayer: false
`

func TestParse_YAML(t *testing.T) {
	p, err := Parse([]byte(yamlPolicy), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, ExemptionList{
		{Pattern: "legacy"},
		{Pattern: "src/generated/**", Reason: "codegen output"},
	}, p.Exemptions)

	require.Len(t, p.Rules, 4)
	assert.Equal(t, RuleForbiddenDependency, p.Rules[0].Type)
	assert.Equal(t, SeverityHigh, p.Rules[0].EffectiveSeverity())
	assert.Equal(t, ExemptionList{{Pattern: "src/ui/admin/**"}}, p.Rules[0].Exempt)

	require.NotNil(t, p.Rules[1].Threshold)
	assert.Equal(t, 2, *p.Rules[1].Threshold)
	assert.Equal(t, SeverityMedium, p.Rules[1].EffectiveSeverity())

	assert.Equal(t, SeverityCritical, p.Rules[2].EffectiveSeverity())

	layers := p.Rules[3]
	assert.Equal(t, LayerList{
		{Name: "ui", Pattern: "src/ui/**"},
		{Name: "domain", Pattern: "src/domain/**"},
		{Name: "infra", Pattern: "src/**"},
	}, layers.Layers)
	assert.Equal(t, []LayerPair{{From: "ui", To: "domain"}}, layers.Allow)
	assert.False(t, layers.SameLayerAllowed())
}

func TestParse_JSON(t *testing.T) {
	doc := `{"rules": [{"id": "r1", "type": "max_fan_in", "threshold": 3}], "exemptions": ["a=>b"]}`
	p, err := Parse([]byte(doc), FormatYAML)
	require.NoError(t, err)
	require.Len(t, p.Rules, 1)
	assert.Equal(t, 3, *p.Rules[0].Threshold)
	assert.Equal(t, "a=>b", p.Exemptions[0].Pattern)
}

func TestParse_TOML(t *testing.T) {
	doc := `
exemptions = ["legacy", { pattern = "vendor/**", reason = "third party" }]

[[rules]]
id = "layers"
type = "layer_matrix"
allow = [{ from = "ui", to = "domain" }]

  [[rules.layers]]
  name = "ui"
  pattern = "src/ui/**"

  [[rules.layers]]
  name = "domain"
  pattern = "src/domain/**"

[[rules]]
id = "fan-in"
type = "max_fan_in"
threshold = 10
severity = "low"
`
	p, err := Parse([]byte(doc), FormatTOML)
	require.NoError(t, err)
	require.Len(t, p.Rules, 2)
	assert.Equal(t, LayerList{
		{Name: "ui", Pattern: "src/ui/**"},
		{Name: "domain", Pattern: "src/domain/**"},
	}, p.Rules[0].Layers)
	assert.True(t, p.Rules[0].SameLayerAllowed())
	assert.Equal(t, SeverityLow, p.Rules[1].EffectiveSeverity())
	assert.Equal(t, ExemptionList{
		{Pattern: "legacy"},
		{Pattern: "vendor/**", Reason: "third party"},
	}, p.Exemptions)
}

func TestUnknownKeys(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "exemption and layer tables are consumed",
			doc: `
[[exemptions]]
pattern = "vendor/**"
reason = "third party"

[[rules]]
id = "layers"
type = "layer_matrix"
allow = [{ from = "ui", to = "domain" }]

  [[rules.layers]]
  name = "ui"
  pattern = "src/ui/**"

  [[rules.layers]]
  name = "domain"
  pattern = "src/domain/**"

  [[rules.exempt]]
  pattern = "src/ui/legacy/**"
  reason = "migration"
`,
		},
		{
			name: "inline exemption tables are consumed",
			doc: `
exemptions = ["legacy", { pattern = "gen/**", reason = "codegen" }]
rules = [{ id = "c", type = "no_cycles", exempt = [{ pattern = "x/**" }] }]
`,
		},
		{
			name: "misspelled keys are reported",
			doc: `
colour = "blue"

[[rules]]
id = "c"
type = "no_cycles"
sevrity = "low"
`,
			want: []string{"colour", "rules.sevrity"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Policy
			md, err := toml.Decode(tt.doc, &p)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, unknownKeys(md))
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		format Format
		want   error
	}{
		{"empty document", "", FormatYAML, ErrMissingRules},
		{"no rules key", "exemptions: [a]\n", FormatYAML, ErrMissingRules},
		{"rules not a list", "rules: nope\n", FormatYAML, ErrMissingRules},
		{"null rules", "rules:\n", FormatYAML, ErrMissingRules},
		{"missing id", "rules:\n  - type: no_cycles\n", FormatYAML, ErrInvalidRule},
		{"unknown type", "rules:\n  - id: a\n    type: max_depth\n", FormatYAML, ErrInvalidRule},
		{"unknown severity", "rules:\n  - id: a\n    type: no_cycles\n    severity: urgent\n", FormatYAML, ErrInvalidRule},
		{"negative threshold", "rules:\n  - id: a\n    type: max_fan_in\n    threshold: -1\n", FormatYAML, ErrInvalidRule},
		{"duplicate id", "rules:\n  - {id: a, type: no_cycles}\n  - {id: a, type: no_cycles}\n", FormatYAML, ErrDuplicateRuleID},
		{"bad glob", "rules:\n  - {id: a, type: forbidden_dependency, from: 'src/[', to: b}\n", FormatYAML, ErrInvalidPattern},
		{"bad exemption pair", "rules: []\nexemptions: ['a=>']\n", FormatYAML, ErrInvalidPattern},
		{"toml without rules", "title = 'x'\n", FormatTOML, ErrMissingRules},
		{"unknown format", "rules: []", Format("xml"), ErrUnsupportedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), tt.format)
			require.Error(t, err)
			var le *LoadError
			assert.True(t, errors.As(err, &le), "want *LoadError, got %T", err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParse_EmptyRulesAllowed(t *testing.T) {
	p, err := Parse([]byte("rules: []\n"), FormatYAML)
	require.NoError(t, err)
	assert.NotNil(t, p.Rules)
	assert.Empty(t, p.Rules)
}

func TestParse_PartialRulesTolerated(t *testing.T) {
	doc := "rules:\n  - {id: half, type: forbidden_dependency, from: src/ui}\n  - {id: nothr, type: max_fan_out}\n"
	p, err := Parse([]byte(doc), FormatYAML)
	require.NoError(t, err)
	assert.Len(t, p.Rules, 2)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlPolicy), 0o644))
	p, err := LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Len(t, p.Rules, 4)

	tomlPath := filepath.Join(dir, "policy.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("rules = []\n"), 0o644))
	p, err = LoadFile(tomlPath)
	require.NoError(t, err)
	assert.Empty(t, p.Rules)

	badPath := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(badPath, []byte("rules: {"), 0o644))
	_, err = LoadFile(badPath)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, badPath, le.Path)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatTOML, FormatFromPath("a/policy.TOML"))
	assert.Equal(t, FormatYAML, FormatFromPath("policy.yml"))
	assert.Equal(t, FormatYAML, FormatFromPath("policy.json"))
}
