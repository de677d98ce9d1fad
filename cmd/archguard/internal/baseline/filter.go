// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package baseline

import (
	"log/slog"
	"time"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/policy"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/report"
)

// Result is the outcome of Apply.
type Result struct {
	// Report is a copy of the input with matched violations removed.
	Report *report.Report

	// Suppressed counts removed violations.
	Suppressed int

	// Expired lists entries past their expiresAt, in document order.
	Expired []Entry

	// Unused lists active entries that matched nothing, in document order.
	Unused []Entry
}

// Matches reports whether e covers v. Every key the entry sets must match.
func (e *compiledEntry) Matches(v policy.Violation) bool {
	if e.RuleID != "" && e.RuleID != v.RuleID {
		return false
	}
	if e.ModuleID != "" && e.ModuleID != v.ModuleID {
		return false
	}
	if e.From != "" && e.From != v.From {
		return false
	}
	if e.To != "" && e.To != v.To {
		return false
	}
	if e.Pattern != "" {
		if v.ModuleID != "" {
			return e.pattern.ExemptsModule(v.ModuleID)
		}
		return e.pattern.ExemptsEdge(v.From, v.To)
	}
	return true
}

func (e *compiledEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && e.expiresAt.Before(now)
}

// Apply filters r through the baseline as of now.
//
// # Description
//
// Expired entries are set aside first and never suppress. Each remaining
// violation is dropped when any active entry matches it. The input report
// is not modified.
func (b *Baseline) Apply(r *report.Report, now time.Time) Result {
	res := Result{Expired: []Entry{}, Unused: []Entry{}}

	active := make([]*compiledEntry, 0, len(b.entries))
	for i := range b.entries {
		e := &b.entries[i]
		if e.expired(now) {
			res.Expired = append(res.Expired, e.Entry)
			slog.Warn("baseline entry expired",
				slog.Int("entry", e.index),
				slog.String("rule_id", e.RuleID),
				slog.String("expires_at", e.ExpiresAt),
			)
			continue
		}
		active = append(active, e)
	}

	used := make([]bool, len(active))
	kept := make([]policy.Violation, 0, len(r.Violations))
	for _, v := range r.Violations {
		matched := false
		for i, e := range active {
			if e.Matches(v) {
				used[i] = true
				matched = true
			}
		}
		if matched {
			res.Suppressed++
			continue
		}
		kept = append(kept, v)
	}
	for i, e := range active {
		if !used[i] {
			res.Unused = append(res.Unused, e.Entry)
		}
	}

	filtered := *r
	filtered.Violations = kept
	res.Report = &filtered
	return res
}
