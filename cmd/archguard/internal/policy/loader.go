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
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Format is a policy document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from a file extension. JSON documents are
// read by the YAML decoder.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFile reads and validates the policy at path.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	p, err := Parse(data, FormatFromPath(path))
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
			return nil, le
		}
		return nil, &LoadError{Path: path, Err: err}
	}
	slog.Debug("policy loaded",
		slog.String("path", path),
		slog.Int("rules", len(p.Rules)),
		slog.Int("exemptions", len(p.Exemptions)),
	)
	return p, nil
}

// Parse decodes and validates a policy document.
//
// # Description
//
// The document must have a top-level rules list; an empty list is allowed,
// a missing or non-list value is not. Every rule needs an id that is unique
// in the document and one of the five known types. Patterns in rules,
// layers and exemptions must be valid globs. Any failure rejects the whole
// document.
//
// # Outputs
//
//   - *Policy: The validated policy.
//   - error: *LoadError.
func Parse(data []byte, format Format) (*Policy, error) {
	var (
		doc map[string]any
		p   Policy
	)
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &LoadError{Err: err}
		}
		if err := checkRulesPresent(doc); err != nil {
			return nil, &LoadError{Err: err}
		}
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, &LoadError{Err: err}
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, &LoadError{Err: err}
		}
		if err := checkRulesPresent(doc); err != nil {
			return nil, &LoadError{Err: err}
		}
		md, err := toml.Decode(string(data), &p)
		if err != nil {
			return nil, &LoadError{Err: err}
		}
		for _, key := range unknownKeys(md) {
			slog.Warn("ignoring unknown policy key", slog.String("key", key))
		}
	default:
		return nil, &LoadError{Err: fmt.Errorf("%w: format %q", ErrUnsupportedInput, format)}
	}
	// Presence was checked on the generic decode; an empty list may decode as nil.
	if p.Rules == nil {
		p.Rules = []Rule{}
	}

	if err := Validate(&p); err != nil {
		return nil, &LoadError{Err: err}
	}
	return &p, nil
}

// unknownKeys lists the TOML keys that no field consumed. Keys under
// exemptions, rules.layers and rules.exempt are read by UnmarshalTOML and
// are never reported.
func unknownKeys(md toml.MetaData) []string {
	var out []string
	for _, key := range md.Undecoded() {
		if len(key) > 0 && key[0] == "exemptions" {
			continue
		}
		if len(key) > 1 && key[0] == "rules" && (key[1] == "layers" || key[1] == "exempt") {
			continue
		}
		out = append(out, key.String())
	}
	return out
}

func checkRulesPresent(doc map[string]any) error {
	raw, ok := doc["rules"]
	if !ok || raw == nil {
		return ErrMissingRules
	}
	if reflect.ValueOf(raw).Kind() != reflect.Slice {
		return fmt.Errorf("%w: rules is %T", ErrMissingRules, raw)
	}
	return nil
}

// Validate checks the structure of an already decoded policy.
func Validate(p *Policy) error {
	if p.Rules == nil {
		return ErrMissingRules
	}
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRule, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	seen := make(map[string]bool, len(p.Rules))
	for _, r := range p.Rules {
		if seen[r.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateRuleID, r.ID)
		}
		seen[r.ID] = true

		if _, err := CompileExemptions(r.Exempt); err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
		for _, pat := range []string{r.From, r.To} {
			if pat == "" {
				continue
			}
			if _, err := NewGlobMatcher(pat); err != nil {
				return fmt.Errorf("rule %s: %w", r.ID, err)
			}
		}
		for _, l := range r.Layers {
			if _, err := NewGlobMatcher(l.Pattern); err != nil {
				return fmt.Errorf("rule %s layer %s: %w", r.ID, l.Name, err)
			}
		}
	}
	if _, err := CompileExemptions(p.Exemptions); err != nil {
		return fmt.Errorf("exemptions: %w", err)
	}
	return nil
}
