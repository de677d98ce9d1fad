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
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PairSeparator joins the two sides of an edge pattern, as in "a=>b".
const PairSeparator = "=>"

// Matcher decides whether a candidate module id belongs to a pattern.
//
// Rule endpoints, layer membership and exemptions all go through Matcher
// so they share one set of matching semantics.
type Matcher interface {
	Matches(candidate string) bool
	String() string
}

// GlobMatcher matches module ids against a doublestar glob.
//
// A bare name with no "/" and no "*" is treated as a directory: "core"
// becomes "core/**" and also matches the id "core" itself. A pattern ending
// in "/**" likewise matches its prefix.
type GlobMatcher struct {
	pattern string
	prefix  string
}

// NewGlobMatcher normalizes pattern and returns its matcher.
func NewGlobMatcher(pattern string) (GlobMatcher, error) {
	normalized := NormalizePattern(pattern)
	if normalized == "" || !doublestar.ValidatePattern(normalized) {
		return GlobMatcher{}, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}
	prefix, _ := strings.CutSuffix(normalized, "/**")
	if prefix == normalized {
		prefix = ""
	}
	return GlobMatcher{pattern: normalized, prefix: prefix}, nil
}

// NormalizePattern applies the bare-name rule and trims surrounding space
// and a leading "./".
func NormalizePattern(pattern string) string {
	p := strings.TrimPrefix(strings.TrimSpace(pattern), "./")
	if p == "" {
		return ""
	}
	if !strings.ContainsAny(p, "/*") {
		return p + "/**"
	}
	return p
}

// Matches implements Matcher.
func (m GlobMatcher) Matches(candidate string) bool {
	if m.prefix != "" && candidate == m.prefix {
		return true
	}
	ok, err := doublestar.Match(m.pattern, candidate)
	return err == nil && ok
}

// IsLiteralPath reports whether the pattern has no glob syntax but does
// contain a "/", so it can only match the one module id it spells out.
func (m GlobMatcher) IsLiteralPath() bool {
	return strings.Contains(m.pattern, "/") && !strings.ContainsAny(m.pattern, "*?[{")
}

func (m GlobMatcher) String() string {
	return m.pattern
}

// PairMatcher matches an edge by both endpoints.
type PairMatcher struct {
	From Matcher
	To   Matcher
}

// NewPairMatcher parses "from=>to".
func NewPairMatcher(pattern string) (PairMatcher, error) {
	from, to, ok := strings.Cut(pattern, PairSeparator)
	if !ok {
		return PairMatcher{}, fmt.Errorf("%w: %q is not a from=>to pair", ErrInvalidPattern, pattern)
	}
	fm, err := NewGlobMatcher(from)
	if err != nil {
		return PairMatcher{}, err
	}
	tm, err := NewGlobMatcher(to)
	if err != nil {
		return PairMatcher{}, err
	}
	return PairMatcher{From: fm, To: tm}, nil
}

// MatchesEdge reports whether from->to matches both sides.
func (p PairMatcher) MatchesEdge(from, to string) bool {
	return p.From.Matches(from) && p.To.Matches(to)
}

func (p PairMatcher) String() string {
	return p.From.String() + PairSeparator + p.To.String()
}

// ExemptionSet is a compiled list of exemptions.
//
// A plain pattern exempts an edge when it matches either endpoint, and a
// module when it matches the module id. A from=>to pattern only exempts
// edges, and only when both endpoints match.
type ExemptionSet struct {
	modules []Matcher
	pairs   []PairMatcher
}

// CompileExemptions compiles exemptions into an ExemptionSet.
func CompileExemptions(list []Exemption) (ExemptionSet, error) {
	var set ExemptionSet
	for _, ex := range list {
		if strings.Contains(ex.Pattern, PairSeparator) {
			pm, err := NewPairMatcher(ex.Pattern)
			if err != nil {
				return ExemptionSet{}, err
			}
			set.pairs = append(set.pairs, pm)
			continue
		}
		gm, err := NewGlobMatcher(ex.Pattern)
		if err != nil {
			return ExemptionSet{}, err
		}
		set.modules = append(set.modules, gm)
	}
	return set, nil
}

// Len returns the number of compiled exemptions.
func (s ExemptionSet) Len() int {
	return len(s.modules) + len(s.pairs)
}

// ExemptsModule reports whether a module-scoped violation on id is exempt.
func (s ExemptionSet) ExemptsModule(id string) bool {
	for _, m := range s.modules {
		if m.Matches(id) {
			return true
		}
	}
	return false
}

// ExemptsEdge reports whether an edge-scoped violation on from->to is
// exempt.
func (s ExemptionSet) ExemptsEdge(from, to string) bool {
	for _, m := range s.modules {
		if m.Matches(from) || m.Matches(to) {
			return true
		}
	}
	for _, p := range s.pairs {
		if p.MatchesEdge(from, to) {
			return true
		}
	}
	return false
}
