// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package baseline suppresses previously accepted violations.
//
// A baseline is a list of entries. An entry matches a violation when every
// key it sets matches; an entry with an expiresAt in the past no longer
// suppresses anything and is reported as expired instead.
//
//	entries:
//	  - ruleId: no-ui-to-db
//	    pattern: src/legacy/**
//	    reason: migration tracked in PLAT-112
//	    expiresAt: 2026-01-31
package baseline

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/policy"
)

var (
	// ErrEmptyEntry indicates an entry that sets no matching key.
	ErrEmptyEntry = errors.New("baseline entry must set at least one of ruleId, moduleId, from, to, pattern")

	// ErrInvalidExpiry indicates an unparseable expiresAt.
	ErrInvalidExpiry = errors.New("invalid expiresAt")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Entry is one accepted violation or group of violations.
type Entry struct {
	RuleID    string `yaml:"ruleId,omitempty" json:"ruleId,omitempty" validate:"required_without_all=ModuleID From To Pattern"`
	ModuleID  string `yaml:"moduleId,omitempty" json:"moduleId,omitempty"`
	From      string `yaml:"from,omitempty" json:"from,omitempty"`
	To        string `yaml:"to,omitempty" json:"to,omitempty"`
	Pattern   string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Reason    string `yaml:"reason,omitempty" json:"reason,omitempty"`
	ExpiresAt string `yaml:"expiresAt,omitempty" json:"expiresAt,omitempty"`
}

// Document is the on-disk baseline.
type Document struct {
	Entries []Entry `yaml:"entries" json:"entries" validate:"dive"`
}

// Baseline is a compiled Document.
type Baseline struct {
	entries []compiledEntry
}

type compiledEntry struct {
	Entry
	index     int
	pattern   policy.ExemptionSet
	expiresAt time.Time
}

// LoadFile reads and compiles the baseline at path. JSON documents are
// accepted as YAML.
func LoadFile(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read baseline: %w", err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("baseline %s: %w", path, err)
	}
	return b, nil
}

// Parse decodes and compiles a baseline document.
func Parse(data []byte) (*Baseline, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse baseline: %w", err)
	}
	return Compile(doc)
}

// Compile validates doc and compiles its patterns and expiry dates.
func Compile(doc Document) (*Baseline, error) {
	if err := validate.Struct(doc); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fmt.Errorf("%w (%s)", ErrEmptyEntry, verrs[0].Namespace())
		}
		return nil, err
	}

	b := &Baseline{entries: make([]compiledEntry, 0, len(doc.Entries))}
	for i, e := range doc.Entries {
		ce := compiledEntry{Entry: e, index: i}
		if e.Pattern != "" {
			set, err := policy.CompileExemptions([]policy.Exemption{{Pattern: e.Pattern}})
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			ce.pattern = set
		}
		if e.ExpiresAt != "" {
			t, err := ParseExpiry(e.ExpiresAt)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			ce.expiresAt = t
		}
		b.entries = append(b.entries, ce)
	}
	return b, nil
}

// ParseExpiry parses an ISO-8601 timestamp or a bare date (UTC midnight).
func ParseExpiry(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if dt, err := strfmt.ParseDateTime(s); err == nil {
		return time.Time(dt).UTC(), nil
	}
	if d, err := time.Parse(strfmt.RFC3339FullDate, s); err == nil {
		return d.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidExpiry, s)
}

// Len returns the number of entries.
func (b *Baseline) Len() int {
	return len(b.entries)
}

// FromViolations builds a document accepting every violation exactly.
func FromViolations(vs []policy.Violation, reason string, expiresAt time.Time) Document {
	doc := Document{Entries: make([]Entry, 0, len(vs))}
	seen := make(map[Entry]bool, len(vs))
	for _, v := range vs {
		e := Entry{RuleID: v.RuleID, ModuleID: v.ModuleID, From: v.From, To: v.To, Reason: reason}
		if !expiresAt.IsZero() {
			e.ExpiresAt = strfmt.DateTime(expiresAt.UTC()).String()
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		doc.Entries = append(doc.Entries, e)
	}
	return doc
}

// Marshal encodes doc as YAML.
func Marshal(doc Document) ([]byte, error) {
	return yaml.Marshal(doc)
}
