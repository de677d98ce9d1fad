// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

const (
	// DefaultMaxModules is the default module limit.
	DefaultMaxModules = 200_000

	// DefaultMaxEdges is the default edge limit.
	DefaultMaxEdges = 2_000_000
)

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// MaxModules is the maximum number of modules. Zero means unlimited.
	MaxModules int

	// MaxEdges is the maximum number of edges. Zero means unlimited.
	MaxEdges int
}

// DefaultBuilderOptions returns the default limits.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		MaxModules: DefaultMaxModules,
		MaxEdges:   DefaultMaxEdges,
	}
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithMaxModules sets the module limit.
func WithMaxModules(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxModules = n
	}
}

// WithMaxEdges sets the edge limit.
func WithMaxEdges(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxEdges = n
	}
}

// Builder collects modules and edges and freezes them into a Graph.
//
// Edges may be added before their target module; endpoints are only checked
// in Build, once the full module set is known.
//
// Thread Safety: NOT safe for concurrent use.
type Builder struct {
	options BuilderOptions
	modules map[string]Module
	edges   []Edge
	built   bool
}

// NewBuilder creates a new Builder with the given options.
func NewBuilder(opts ...BuilderOption) *Builder {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Builder{
		options: options,
		modules: make(map[string]Module),
	}
}

// AddModule registers a module.
func (b *Builder) AddModule(m Module) error {
	if b.built {
		return ErrGraphFrozen
	}
	if m.ID == "" {
		return ErrEmptyModuleID
	}
	if _, exists := b.modules[m.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, m.ID)
	}
	if b.options.MaxModules > 0 && len(b.modules) >= b.options.MaxModules {
		return fmt.Errorf("%w: limit %d", ErrMaxModulesExceeded, b.options.MaxModules)
	}
	b.modules[m.ID] = m
	return nil
}

// AddEdge registers one import from -> to.
func (b *Builder) AddEdge(from, to string) error {
	if b.built {
		return ErrGraphFrozen
	}
	if b.options.MaxEdges > 0 && len(b.edges) >= b.options.MaxEdges {
		return fmt.Errorf("%w: limit %d", ErrMaxEdgesExceeded, b.options.MaxEdges)
	}
	b.edges = append(b.edges, Edge{From: from, To: to})
	return nil
}

// Build freezes the collected modules and edges into a Graph.
//
// # Description
//
// Edges whose endpoints are not registered modules are dropped. Adjacency
// lists are deduplicated and sorted; fan-in and fan-out count every edge.
// The Builder cannot be used after Build.
//
// # Outputs
//
//   - *Graph: The frozen graph.
//   - error: ErrGraphFrozen if Build was already called.
func (b *Builder) Build(ctx context.Context) (*Graph, error) {
	if b.built {
		return nil, ErrGraphFrozen
	}
	b.built = true

	ctx, span := startBuildSpan(ctx, len(b.modules))
	defer span.End()
	start := time.Now()

	g := &Graph{
		modules:  b.modules,
		ids:      make([]string, 0, len(b.modules)),
		edges:    make([]Edge, 0, len(b.edges)),
		fanIn:    make(map[string]int, len(b.modules)),
		fanOut:   make(map[string]int, len(b.modules)),
		selfLoop: make(map[string]bool),
	}
	for id := range b.modules {
		g.ids = append(g.ids, id)
	}
	sort.Strings(g.ids)

	adj := make(map[string]map[string]struct{}, len(b.modules))
	dropped := 0
	for _, e := range b.edges {
		_, fromOK := b.modules[e.From]
		_, toOK := b.modules[e.To]
		if !fromOK || !toOK {
			dropped++
			slog.Debug("dropping edge with unknown endpoint",
				slog.String("from", e.From),
				slog.String("to", e.To),
			)
			continue
		}
		g.edges = append(g.edges, e)
		g.fanOut[e.From]++
		g.fanIn[e.To]++
		if e.From == e.To {
			g.selfLoop[e.From] = true
		}
		if adj[e.From] == nil {
			adj[e.From] = make(map[string]struct{})
		}
		adj[e.From][e.To] = struct{}{}
	}
	g.adjacency = sortedLists(adj)
	b.edges = nil

	setBuildSpanResult(span, len(g.ids), len(g.edges), dropped)
	recordBuildMetrics(ctx, time.Since(start), len(g.ids), len(g.edges))
	return g, nil
}
