// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scanner discovers candidate source files under a project root.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultInclude selects JavaScript and TypeScript sources at any depth.
var DefaultInclude = []string{"**/*.{ts,tsx,js,jsx}"}

// DefaultExclude skips dependency, VCS and build output directories.
var DefaultExclude = []string{
	"node_modules/**",
	"**/node_modules/**",
	".git/**",
	"dist/**",
	"build/**",
	"coverage/**",
	"vendor/**",
}

// Config controls a scan.
//
// # Fields
//
//   - Root: Project root. Must not be empty.
//   - Include: Glob patterns a file's root-relative path must match. Empty means DefaultInclude.
//   - Exclude: Glob patterns that remove files and prune directories.
type Config struct {
	Root    string
	Include []string
	Exclude []string
}

// DefaultConfig returns a Config for root with the default pattern sets.
func DefaultConfig(root string) Config {
	return Config{
		Root:    root,
		Include: append([]string(nil), DefaultInclude...),
		Exclude: append([]string(nil), DefaultExclude...),
	}
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.Root == "" {
		return ErrEmptyRoot
	}
	for _, p := range append(append([]string(nil), c.Include...), c.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
	}
	return nil
}

// File is one discovered source file.
type File struct {
	// ID is the root-relative, forward-slash path. It is the module id.
	ID string

	// Path is the absolute path on disk.
	Path string
}

// Result is the outcome of a scan.
type Result struct {
	// Root is the absolute project root.
	Root string

	// Files is sorted by ID.
	Files []File
}

// Scan walks cfg.Root and returns every file that matches the include set
// and no exclude pattern.
//
// # Description
//
// Directories matching an exclude pattern are pruned without being entered.
// Any file system error aborts the scan with a *ScanError. The context is
// checked once per directory entry.
//
// # Outputs
//
//   - *Result: Files sorted lexicographically by ID.
//   - error: Validation error, *ScanError, or the context error.
func Scan(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	include := cfg.Include
	if len(include) == 0 {
		include = DefaultInclude
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, &ScanError{Root: cfg.Root, Err: err}
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, &ScanError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{Root: root, Err: ErrRootNotDirectory}
	}

	var files []File
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return &ScanError{Root: root, Path: path, Err: err}
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return &ScanError{Root: root, Path: path, Err: err}
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if dirExcluded(rel, cfg.Exclude) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !matchAny(include, rel) || matchAny(cfg.Exclude, rel) {
			return nil
		}
		files = append(files, File{ID: rel, Path: path})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ID < files[j].ID
	})

	slog.Debug("scan complete",
		slog.String("root", root),
		slog.Int("files", len(files)),
	)
	return &Result{Root: root, Files: files}, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// dirExcluded reports whether a directory should be pruned. A pattern of the
// form "dir/**" prunes "dir" itself.
func dirExcluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if prefix, found := strings.CutSuffix(p, "/**"); found {
			if ok, _ := doublestar.Match(prefix, rel); ok {
				return true
			}
		}
	}
	return false
}

// Selects reports whether a root-relative file path would be part of a scan.
func (c Config) Selects(rel string) bool {
	include := c.Include
	if len(include) == 0 {
		include = DefaultInclude
	}
	return matchAny(include, rel) && !matchAny(c.Exclude, rel)
}

// Prunes reports whether a root-relative directory is skipped by a scan.
func (c Config) Prunes(rel string) bool {
	return dirExcluded(rel, c.Exclude)
}
