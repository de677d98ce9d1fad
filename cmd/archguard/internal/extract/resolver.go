// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultResolverCacheSize bounds the number of memoized resolutions.
const DefaultResolverCacheSize = 4096

// candidateSuffixes are tried in order after the exact specifier.
var candidateSuffixes = []string{
	".ts", ".tsx", ".js", ".jsx",
	"/index.ts", "/index.tsx", "/index.js", "/index.jsx",
}

type resolution struct {
	id string
	ok bool
}

// Resolver maps relative specifiers to module ids.
//
// Only files that belong to the scanned module set can be targets; a
// specifier that points anywhere else is unresolved. Results are memoized
// per (importing directory, specifier) pair since sibling files tend to
// import the same targets.
//
// Thread Safety: Safe for concurrent use.
type Resolver struct {
	modules map[string]struct{}
	cache   *lru.Cache[string, resolution]
}

// NewResolver creates a resolver over the given module ids.
func NewResolver(moduleIDs []string, cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		return nil, ErrResolverCacheConfig
	}
	cache, err := lru.New[string, resolution](cacheSize)
	if err != nil {
		return nil, err
	}
	modules := make(map[string]struct{}, len(moduleIDs))
	for _, id := range moduleIDs {
		modules[id] = struct{}{}
	}
	return &Resolver{modules: modules, cache: cache}, nil
}

// Resolve returns the module id that spec refers to when imported from the
// module fromID. Non-relative specifiers never resolve.
func (r *Resolver) Resolve(fromID, spec string) (string, bool) {
	if !IsRelative(spec) {
		return "", false
	}
	dir := path.Dir(fromID)
	key := dir + "\x00" + spec
	if res, ok := r.cache.Get(key); ok {
		return res.id, res.ok
	}

	res := r.resolve(dir, spec)
	r.cache.Add(key, res)
	return res.id, res.ok
}

func (r *Resolver) resolve(dir, spec string) resolution {
	base := path.Join(dir, spec)
	// Escapes the project root.
	if base == ".." || strings.HasPrefix(base, "../") {
		return resolution{}
	}
	if _, ok := r.modules[base]; ok {
		return resolution{id: base, ok: true}
	}
	for _, suffix := range candidateSuffixes {
		candidate := base + suffix
		if base == "." {
			// "./" from a top-level file can only name a root index file.
			if !strings.HasPrefix(suffix, "/") {
				continue
			}
			candidate = suffix[1:]
		}
		if _, ok := r.modules[candidate]; ok {
			return resolution{id: candidate, ok: true}
		}
	}
	return resolution{}
}
