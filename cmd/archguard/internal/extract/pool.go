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
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/scanner"
)

const (
	// DefaultMaxWorkers caps the default worker count.
	DefaultMaxWorkers = 16

	// DefaultMaxFileSize is the largest file Run will read.
	DefaultMaxFileSize = 5 * 1024 * 1024
)

// Options configures Run.
//
// # Fields
//
//   - Extractor: Specifier extractor. Required.
//   - WorkerCount: Maximum files processed at once. Must be > 0.
//   - MaxFileSize: Files larger than this fail with ErrFileTooLarge. Must be > 0.
//   - ContinueOnError: Record per-file failures instead of aborting the run.
//   - ResolverCacheSize: Entries in the resolution cache. Must be > 0.
type Options struct {
	Extractor         Extractor
	WorkerCount       int
	MaxFileSize       int64
	ContinueOnError   bool
	ResolverCacheSize int
}

// DefaultOptions returns Options using the regex extractor.
func DefaultOptions() Options {
	return Options{
		Extractor:         NewRegexExtractor(),
		WorkerCount:       OptimalWorkerCount(),
		MaxFileSize:       DefaultMaxFileSize,
		ContinueOnError:   false,
		ResolverCacheSize: DefaultResolverCacheSize,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Extractor == nil {
		return ErrNilExtractor
	}
	if o.WorkerCount <= 0 {
		return ErrInvalidWorkerCount
	}
	if o.MaxFileSize <= 0 {
		return ErrInvalidMaxFileSize
	}
	if o.ResolverCacheSize <= 0 {
		return ErrResolverCacheConfig
	}
	return nil
}

// FileResult is the extraction outcome of one file.
type FileResult struct {
	// ID is the module id of the file.
	ID string

	// Path is the file's path on disk, as reported by the scanner.
	Path string

	// LOC is the newline-delimited line count.
	LOC int

	// Imports holds one resolved module id per relative import statement,
	// in source order. Parallel imports of the same target are kept.
	Imports []string

	// Packages holds the package names of non-relative specifiers, in
	// source order.
	Packages []string

	// Unresolved holds relative specifiers that matched no module.
	Unresolved []string
}

// Result is the outcome of Run.
type Result struct {
	// Files holds one entry per successfully processed file, sorted by ID.
	Files []FileResult

	// Errors holds per-file failures. Only populated with ContinueOnError.
	Errors []*ParseError
}

// Run reads and extracts imports from every file.
//
// # Description
//
// Files are processed by a bounded pool of opts.WorkerCount goroutines. Run
// returns only after every file has been handled, so callers always see a
// complete module set. By default the first failure cancels the remaining
// work and is returned as a *ParseError. With opts.ContinueOnError the
// failing file is left out of Result.Files and recorded in Result.Errors.
//
// # Inputs
//
//   - ctx: Cancellation is checked before each file.
//   - files: Scanned files; their IDs form the resolvable module set.
//   - opts: See Options.
//
// # Outputs
//
//   - *Result: Per-file results sorted by ID.
//   - error: *ParseError, validation error, or context error.
//
// # Thread Safety
//
// Safe for concurrent use. Each call owns its resolver.
func Run(ctx context.Context, files []scanner.File, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	resolver, err := NewResolver(ids, opts.ResolverCacheSize)
	if err != nil {
		return nil, err
	}

	results := make([]*FileResult, len(files))
	var (
		mu       sync.Mutex
		failures []*ParseError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.WorkerCount)

	for i, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := processFile(gctx, f, resolver, opts)
			if err != nil {
				perr := &ParseError{FilePath: f.ID, Err: err}
				if !opts.ContinueOnError {
					return perr
				}
				slog.Warn("skipping file",
					slog.String("file", f.ID),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				failures = append(failures, perr)
				mu.Unlock()
				return nil
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Result{Files: make([]FileResult, 0, len(files))}
	for _, r := range results {
		if r != nil {
			out.Files = append(out.Files, *r)
		}
	}
	sort.Slice(out.Files, func(i, j int) bool {
		return out.Files[i].ID < out.Files[j].ID
	})
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].FilePath < failures[j].FilePath
	})
	out.Errors = failures
	return out, nil
}

func processFile(ctx context.Context, f scanner.File, resolver *Resolver, opts Options) (*FileResult, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return nil, err
	}
	if info.Size() > opts.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
	}
	content, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}

	specs, err := opts.Extractor.Extract(ctx, f.Path, content)
	if err != nil {
		return nil, err
	}

	res := &FileResult{ID: f.ID, Path: f.Path, LOC: CountLines(content)}
	for _, spec := range specs {
		if IsRelative(spec) {
			if id, ok := resolver.Resolve(f.ID, spec); ok {
				res.Imports = append(res.Imports, id)
			} else {
				res.Unresolved = append(res.Unresolved, spec)
			}
			continue
		}
		if pkg := PackageName(spec); pkg != "" {
			res.Packages = append(res.Packages, pkg)
		}
	}
	return res, nil
}

// OptimalWorkerCount returns the default worker count for this machine.
func OptimalWorkerCount() int {
	cpus := runtime.NumCPU()
	if cpus > DefaultMaxWorkers {
		return DefaultMaxWorkers
	}
	return cpus
}
