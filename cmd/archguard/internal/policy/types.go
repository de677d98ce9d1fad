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
	"sort"

	"gopkg.in/yaml.v3"
)

// RuleType identifies the kind of a rule.
type RuleType string

const (
	RuleForbiddenDependency RuleType = "forbidden_dependency"
	RuleMaxFanIn            RuleType = "max_fan_in"
	RuleMaxFanOut           RuleType = "max_fan_out"
	RuleNoCycles            RuleType = "no_cycles"
	RuleLayerMatrix         RuleType = "layer_matrix"
)

// defaultSeverity is used when a rule omits severity.
var defaultSeverity = map[RuleType]Severity{
	RuleForbiddenDependency: SeverityHigh,
	RuleNoCycles:            SeverityHigh,
	RuleLayerMatrix:         SeverityHigh,
	RuleMaxFanIn:            SeverityMedium,
	RuleMaxFanOut:           SeverityMedium,
}

// Policy is a declarative rule set.
type Policy struct {
	Rules      []Rule        `yaml:"rules" toml:"rules" validate:"dive"`
	Exemptions ExemptionList `yaml:"exemptions,omitempty" toml:"exemptions" validate:"dive"`
}

// Rule is one constraint on the dependency graph.
//
// Only ID and Type are required. Type-specific fields that are missing make
// the rule inert rather than invalid, so a half-written rule can sit in a
// policy while it is being authored.
type Rule struct {
	ID       string   `yaml:"id" toml:"id" validate:"required"`
	Type     RuleType `yaml:"type" toml:"type" validate:"required,oneof=forbidden_dependency max_fan_in max_fan_out no_cycles layer_matrix"`
	Severity Severity `yaml:"severity,omitempty" toml:"severity" validate:"omitempty,oneof=low medium high critical"`
	Message  string   `yaml:"message,omitempty" toml:"message"`

	// forbidden_dependency
	From string `yaml:"from,omitempty" toml:"from"`
	To   string `yaml:"to,omitempty" toml:"to"`

	// max_fan_in, max_fan_out
	Threshold *int `yaml:"threshold,omitempty" toml:"threshold" validate:"omitempty,gte=0"`

	// layer_matrix
	Layers         LayerList   `yaml:"layers,omitempty" toml:"layers"`
	Allow          []LayerPair `yaml:"allow,omitempty" toml:"allow"`
	AllowSameLayer *bool       `yaml:"allowSameLayer,omitempty" toml:"allowSameLayer"`

	Exempt ExemptionList `yaml:"exempt,omitempty" toml:"exempt" validate:"dive"`
}

// EffectiveSeverity returns the declared severity or the per-type default.
func (r Rule) EffectiveSeverity() Severity {
	if r.Severity.Valid() {
		return r.Severity
	}
	if sev, ok := defaultSeverity[r.Type]; ok {
		return sev
	}
	return SeverityMedium
}

// SameLayerAllowed reports whether edges inside one layer pass. Defaults to
// true.
func (r Rule) SameLayerAllowed() bool {
	return r.AllowSameLayer == nil || *r.AllowSameLayer
}

// Layer names a set of modules by pattern.
type Layer struct {
	Name    string `yaml:"name" toml:"name"`
	Pattern string `yaml:"pattern" toml:"pattern"`
}

// LayerPair is an allowed (from, to) layer dependency.
type LayerPair struct {
	From string `yaml:"from" toml:"from"`
	To   string `yaml:"to" toml:"to"`
}

// LayerList keeps layers in document order, since a module belongs to the
// first layer whose pattern matches.
//
// It decodes from a mapping (name: pattern) or a sequence of
// {name, pattern} objects.
type LayerList []Layer

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *LayerList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.MappingNode:
		out := make(LayerList, 0, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			var pattern string
			if err := value.Content[i+1].Decode(&pattern); err != nil {
				return fmt.Errorf("layer %q: %w", value.Content[i].Value, err)
			}
			out = append(out, Layer{Name: value.Content[i].Value, Pattern: pattern})
		}
		*l = out
		return nil
	case yaml.SequenceNode:
		var layers []Layer
		if err := value.Decode(&layers); err != nil {
			return err
		}
		*l = layers
		return nil
	default:
		return fmt.Errorf("line %d: layers must be a mapping or a list", value.Line)
	}
}

// UnmarshalTOML implements toml.Unmarshaler. TOML tables are unordered once
// decoded, so a table of layers is ordered by name; use an array of tables
// to control precedence.
func (l *LayerList) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case map[string]any:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make(LayerList, 0, len(names))
		for _, name := range names {
			pattern, ok := v[name].(string)
			if !ok {
				return fmt.Errorf("layer %q: pattern must be a string", name)
			}
			out = append(out, Layer{Name: name, Pattern: pattern})
		}
		*l = out
		return nil
	case []map[string]any:
		out := make(LayerList, 0, len(v))
		for _, item := range v {
			layer, err := layerFromTable(item)
			if err != nil {
				return err
			}
			out = append(out, layer)
		}
		*l = out
		return nil
	case []any:
		out := make(LayerList, 0, len(v))
		for _, raw := range v {
			item, ok := raw.(map[string]any)
			if !ok {
				return fmt.Errorf("layers: expected table, got %T", raw)
			}
			layer, err := layerFromTable(item)
			if err != nil {
				return err
			}
			out = append(out, layer)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("layers: unsupported value %T", data)
	}
}

func layerFromTable(item map[string]any) (Layer, error) {
	name, _ := item["name"].(string)
	pattern, _ := item["pattern"].(string)
	if name == "" || pattern == "" {
		return Layer{}, fmt.Errorf("layers: each entry needs name and pattern")
	}
	return Layer{Name: name, Pattern: pattern}, nil
}

// Exemption suppresses violations whose subject matches Pattern.
type Exemption struct {
	Pattern string `yaml:"pattern" toml:"pattern" json:"pattern" validate:"required"`
	Reason  string `yaml:"reason,omitempty" toml:"reason" json:"reason,omitempty"`
}

// ExemptionList decodes from a list whose entries are bare pattern strings
// or {pattern, reason} objects.
type ExemptionList []Exemption

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *ExemptionList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: exemptions must be a list", value.Line)
	}
	out := make(ExemptionList, 0, len(value.Content))
	for _, item := range value.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			out = append(out, Exemption{Pattern: item.Value})
		case yaml.MappingNode:
			var ex Exemption
			if err := item.Decode(&ex); err != nil {
				return err
			}
			out = append(out, ex)
		default:
			return fmt.Errorf("line %d: exemption must be a string or an object", item.Line)
		}
	}
	*l = out
	return nil
}

// UnmarshalTOML implements toml.Unmarshaler.
func (l *ExemptionList) UnmarshalTOML(data any) error {
	var items []any
	switch v := data.(type) {
	case []any:
		items = v
	case []map[string]any:
		for _, m := range v {
			items = append(items, m)
		}
	default:
		return fmt.Errorf("exemptions must be a list, got %T", data)
	}

	out := make(ExemptionList, 0, len(items))
	for _, raw := range items {
		switch item := raw.(type) {
		case string:
			out = append(out, Exemption{Pattern: item})
		case map[string]any:
			pattern, _ := item["pattern"].(string)
			reason, _ := item["reason"].(string)
			out = append(out, Exemption{Pattern: pattern, Reason: reason})
		default:
			return fmt.Errorf("exemption must be a string or a table, got %T", raw)
		}
	}
	*l = out
	return nil
}

// Violation is one concrete breach of a rule.
type Violation struct {
	RuleID   string   `json:"ruleId"`
	Type     RuleType `json:"type"`
	Severity Severity `json:"severity"`
	ModuleID string   `json:"moduleId,omitempty"`
	From     string   `json:"from,omitempty"`
	To       string   `json:"to,omitempty"`
	Message  string   `json:"message"`

	// ImpactScore ranks the finding; nil until scored.
	ImpactScore *int `json:"impactScore,omitempty"`

	// Owner is filled in by the ownership tagger.
	Owner string `json:"owner,omitempty"`
}

// Subject returns the module id for module-scoped violations and the source
// module for edge-scoped ones.
func (v Violation) Subject() string {
	if v.ModuleID != "" {
		return v.ModuleID
	}
	return v.From
}
