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
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/graph"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/metrics"
)

// Default message templates per rule type.
var defaultMessages = map[RuleType]string{
	RuleForbiddenDependency: "Forbidden dependency: {from} -> {to}",
	RuleMaxFanIn:            "Module {module} has fan-in {value} (threshold {threshold})",
	RuleMaxFanOut:           "Module {module} has fan-out {value} (threshold {threshold})",
	RuleNoCycles:            "Module {module} is part of a dependency cycle",
	RuleLayerMatrix:         "Layer violation: {fromLayer} -> {toLayer} ({from} -> {to})",
}

// Input is what a policy is evaluated against.
type Input struct {
	Graph   *graph.Graph
	Modules []metrics.ModuleMetrics
	InCycle map[string]bool
}

// Engine evaluates one loaded policy.
//
// Thread Safety: Safe for concurrent use; Evaluate does not mutate the
// Engine.
type Engine struct {
	global ExemptionSet
	rules  []compiledRule
}

type compiledRule struct {
	Rule
	severity Severity
	exempt   ExemptionSet
	from     Matcher
	to       Matcher
	layers   []layerMatcher
	allow    map[LayerPair]bool

	// literals are glob-free path patterns; they match one module id only.
	literals []GlobMatcher
}

type layerMatcher struct {
	name    string
	matcher Matcher
}

// NewEngine compiles a validated policy. Patterns are checked again here,
// so a Policy built in code gets the same guarantees as a loaded one.
func NewEngine(p *Policy) (*Engine, error) {
	if err := Validate(p); err != nil {
		return nil, &LoadError{Err: err}
	}
	global, err := CompileExemptions(p.Exemptions)
	if err != nil {
		return nil, &LoadError{Err: err}
	}

	e := &Engine{global: global, rules: make([]compiledRule, 0, len(p.Rules))}
	for _, r := range p.Rules {
		cr := compiledRule{Rule: r, severity: r.EffectiveSeverity()}
		if cr.exempt, err = CompileExemptions(r.Exempt); err != nil {
			return nil, &LoadError{Err: err}
		}
		if r.From != "" && r.To != "" {
			from, _ := NewGlobMatcher(r.From)
			to, _ := NewGlobMatcher(r.To)
			cr.from, cr.to = from, to
			cr.addLiteral(from)
			cr.addLiteral(to)
		}
		for _, l := range r.Layers {
			m, _ := NewGlobMatcher(l.Pattern)
			cr.layers = append(cr.layers, layerMatcher{name: l.Name, matcher: m})
			cr.addLiteral(m)
		}
		if len(r.Allow) > 0 {
			cr.allow = make(map[LayerPair]bool, len(r.Allow))
			for _, pair := range r.Allow {
				cr.allow[pair] = true
			}
		}
		e.rules = append(e.rules, cr)
	}
	return e, nil
}

func (r *compiledRule) addLiteral(m GlobMatcher) {
	if m.IsLiteralPath() {
		r.literals = append(r.literals, m)
	}
}

// UnmatchedPattern is a literal rule pattern that names no module.
type UnmatchedPattern struct {
	RuleID  string
	Pattern string
}

// UnmatchedLiterals returns the glob-free patterns containing "/" that
// match no module of g, in rule order. Such a pattern is usually a
// directory written without "/**", and the rule it belongs to can never
// fire.
func (e *Engine) UnmatchedLiterals(g *graph.Graph) []UnmatchedPattern {
	var out []UnmatchedPattern
	for i := range e.rules {
		r := &e.rules[i]
		for _, m := range r.literals {
			if _, ok := g.Module(m.String()); ok {
				continue
			}
			out = append(out, UnmatchedPattern{RuleID: r.ID, Pattern: m.String()})
		}
	}
	return out
}

// Evaluate runs every rule against in and returns the violations.
//
// # Description
//
// Rules are evaluated in document order. An element that matches a rule is
// skipped when it is covered by a global exemption or by the rule's own
// exempt list; other elements of the same rule are unaffected. Rules
// missing their type-specific fields produce nothing.
//
// # Outputs
//
//   - []Violation: Sorted by (ruleId, moduleId or from). Elements that tie
//     keep their discovery order.
//
// # Thread Safety
//
// Safe for concurrent use.
func (e *Engine) Evaluate(in Input) []Violation {
	if in.Graph != nil {
		for _, u := range e.UnmatchedLiterals(in.Graph) {
			slog.Warn("rule pattern matches no module; use a glob such as dir/** for directories",
				slog.String("rule", u.RuleID),
				slog.String("pattern", u.Pattern),
			)
		}
	}

	violations := make([]Violation, 0)
	for i := range e.rules {
		r := &e.rules[i]
		var found []Violation
		switch r.Type {
		case RuleForbiddenDependency:
			found = e.forbiddenDependency(r, in)
		case RuleMaxFanIn:
			found = e.fanThreshold(r, in, func(m metrics.ModuleMetrics) int { return m.FanIn })
		case RuleMaxFanOut:
			found = e.fanThreshold(r, in, func(m metrics.ModuleMetrics) int { return m.FanOut })
		case RuleNoCycles:
			found = e.noCycles(r, in)
		case RuleLayerMatrix:
			found = e.layerMatrix(r, in)
		}
		if len(found) > 0 {
			slog.Debug("rule matched",
				slog.String("rule", r.ID),
				slog.Int("violations", len(found)),
			)
		}
		violations = append(violations, found...)
	}

	SortViolations(violations)
	return violations
}

// SortViolations orders violations by rule id, then subject. The sort is
// stable.
func SortViolations(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].RuleID != vs[j].RuleID {
			return vs[i].RuleID < vs[j].RuleID
		}
		return vs[i].Subject() < vs[j].Subject()
	})
}

func (e *Engine) edgeExempt(r *compiledRule, from, to string) bool {
	return e.global.ExemptsEdge(from, to) || r.exempt.ExemptsEdge(from, to)
}

func (e *Engine) moduleExempt(r *compiledRule, id string) bool {
	return e.global.ExemptsModule(id) || r.exempt.ExemptsModule(id)
}

func (e *Engine) forbiddenDependency(r *compiledRule, in Input) []Violation {
	if r.from == nil || r.to == nil {
		return nil
	}
	var out []Violation
	for _, edge := range in.Graph.Edges() {
		if !r.from.Matches(edge.From) || !r.to.Matches(edge.To) {
			continue
		}
		if e.edgeExempt(r, edge.From, edge.To) {
			continue
		}
		out = append(out, r.violation(placeholders{from: edge.From, to: edge.To}))
	}
	return out
}

func (e *Engine) fanThreshold(r *compiledRule, in Input, value func(metrics.ModuleMetrics) int) []Violation {
	if r.Threshold == nil {
		return nil
	}
	threshold := *r.Threshold
	var out []Violation
	for _, m := range in.Modules {
		v := value(m)
		if v <= threshold || e.moduleExempt(r, m.ID) {
			continue
		}
		out = append(out, r.violation(placeholders{
			module:    m.ID,
			value:     strconv.Itoa(v),
			threshold: strconv.Itoa(threshold),
		}))
	}
	return out
}

func (e *Engine) noCycles(r *compiledRule, in Input) []Violation {
	ids := make([]string, 0, len(in.InCycle))
	for id, cyclic := range in.InCycle {
		if cyclic {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var out []Violation
	for _, id := range ids {
		if e.moduleExempt(r, id) {
			continue
		}
		out = append(out, r.violation(placeholders{module: id}))
	}
	return out
}

func (e *Engine) layerMatrix(r *compiledRule, in Input) []Violation {
	if len(r.layers) == 0 {
		return nil
	}
	var out []Violation
	for _, edge := range in.Graph.Edges() {
		fromLayer := r.layerOf(edge.From)
		toLayer := r.layerOf(edge.To)
		if fromLayer == "" || toLayer == "" {
			continue
		}
		if fromLayer == toLayer && r.SameLayerAllowed() {
			continue
		}
		if r.allow[LayerPair{From: fromLayer, To: toLayer}] {
			continue
		}
		if e.edgeExempt(r, edge.From, edge.To) {
			continue
		}
		out = append(out, r.violation(placeholders{
			from:      edge.From,
			to:        edge.To,
			fromLayer: fromLayer,
			toLayer:   toLayer,
		}))
	}
	return out
}

// layerOf returns the first layer whose pattern matches id.
func (r *compiledRule) layerOf(id string) string {
	for _, l := range r.layers {
		if l.matcher.Matches(id) {
			return l.name
		}
	}
	return ""
}

type placeholders struct {
	module, from, to   string
	value, threshold   string
	fromLayer, toLayer string
}

func (r *compiledRule) violation(p placeholders) Violation {
	tmpl := r.Message
	if tmpl == "" {
		tmpl = defaultMessages[r.Type]
	}
	module := p.module
	if module == "" {
		module = p.from
	}
	msg := strings.NewReplacer(
		"{rule}", r.ID,
		"{module}", module,
		"{from}", p.from,
		"{to}", p.to,
		"{value}", p.value,
		"{threshold}", p.threshold,
		"{fromLayer}", p.fromLayer,
		"{toLayer}", p.toLayer,
	).Replace(tmpl)

	return Violation{
		RuleID:   r.ID,
		Type:     r.Type,
		Severity: r.severity,
		ModuleID: p.module,
		From:     p.from,
		To:       p.to,
		Message:  msg,
	}
}

// Evaluate compiles p and evaluates it against in.
func Evaluate(p *Policy, in Input) ([]Violation, error) {
	e, err := NewEngine(p)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(in), nil
}
