// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-runs analysis when project sources change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/scanner"
)

// ErrAlreadyRunning is returned when Run is called on a running watcher.
var ErrAlreadyRunning = errors.New("watcher already running")

// Op is the kind of change observed for a file.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

// String returns the string representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one file change, keyed by its root-relative module id.
type Change struct {
	ID   string
	Op   Op
	Time time.Time
}

// Handler receives a debounced batch of changes, sorted by ID. An error
// from the handler is logged and watching continues.
type Handler func(ctx context.Context, changes []Change) error

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the watcher waits for quiet before flushing.
	// Default: 300ms
	Debounce time.Duration

	// BufferSize is the size of the change channel.
	// Default: 1000
	BufferSize int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Debounce:   300 * time.Millisecond,
		BufferSize: 1000,
	}
}

// Watcher watches a project for changes to the files a scan would select.
//
// # Description
//
// Every directory under the root that the scan config does not prune is
// watched; directories created later are added as they appear. Events
// for paths the scan would not select are dropped. The remaining events
// are batched until the debounce window passes without new events and
// then handed to the handler, one change per file.
//
// # Thread Safety
//
// The handler is called from a single goroutine. Stop may be called from
// any goroutine.
type Watcher struct {
	root     string
	scan     scanner.Config
	debounce time.Duration
	watcher  *fsnotify.Watcher

	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	running bool
}

// New creates a watcher for the project described by cfg.
//
// # Inputs
//
//   - cfg: Scan config. Its include and exclude sets decide which files matter.
//   - opts: Debounce and buffering options.
//
// # Outputs
//
//   - *Watcher: Call Run to start watching.
//   - error: Non-nil if the config is invalid or fsnotify cannot start.
func New(cfg scanner.Config, opts Options) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultOptions().Debounce
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultOptions().BufferSize
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		root:     root,
		scan:     cfg,
		debounce: opts.Debounce,
		watcher:  fw,
		changes:  make(chan Change, opts.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Run watches until ctx is cancelled or Stop is called.
//
// # Description
//
// Registers the directory tree, then processes events on a background
// goroutine while the debounce loop runs on the calling goroutine. After
// Stop, pending changes are flushed before Run returns. After ctx is
// cancelled they are dropped.
//
// # Outputs
//
//   - error: Nil on a clean stop, or the error that prevented watching.
func (w *Watcher) Run(ctx context.Context, handler Handler) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	slog.Info("watching for changes", slog.String("root", w.root))

	go w.processEvents(ctx)
	w.debounceLoop(ctx, handler)
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

// WatchedDirs returns the watched directories, sorted.
func (w *Watcher) WatchedDirs() []string {
	dirs := w.watcher.WatchList()
	sort.Strings(dirs)
	return dirs
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root {
			if rel, ok := w.relative(path); !ok || w.scan.Prunes(rel) {
				return filepath.SkipDir
			}
		}
		return w.watcher.Add(path)
	})
}

// relative returns the root-relative, forward-slash form of path.
func (w *Watcher) relative(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			rel, ok := w.relative(event.Name)
			if !ok {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !w.scan.Prunes(rel) {
						if err := w.addRecursive(event.Name); err != nil {
							slog.Warn("watch new directory failed",
								slog.String("dir", rel),
								slog.String("error", err.Error()))
						}
					}
					continue
				}
			}
			if !w.scan.Selects(rel) {
				continue
			}

			change := Change{ID: rel, Op: convertOp(event.Op), Time: time.Now()}
			select {
			case w.changes <- change:
			default:
				slog.Warn("change buffer full, dropping event", slog.String("file", rel))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

func (w *Watcher) debounceLoop(ctx context.Context, handler Handler) {
	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func(ctx context.Context) {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(batch) == 0 {
			return
		}
		deduped := Deduplicate(batch)
		batch = batch[:0]
		if handler == nil {
			return
		}
		if err := handler(ctx, deduped); err != nil {
			slog.Error("change handler failed",
				slog.Int("changes", len(deduped)),
				slog.String("error", err.Error()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			if len(batch) > 0 {
				slog.Debug("dropping pending changes on shutdown", slog.Int("changes", len(batch)))
			}
			return
		case <-w.done:
			flush(ctx)
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			flush(ctx)
		}
	}
}

// Deduplicate keeps the latest change per file and sorts the result by ID.
func Deduplicate(changes []Change) []Change {
	latest := make(map[string]Change, len(changes))
	for _, c := range changes {
		latest[c.ID] = c
	}
	out := make([]Change, 0, len(latest))
	for _, c := range latest {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}
