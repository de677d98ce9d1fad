// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package trend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// DefaultMaxSnapshots is the default retention limit.
const DefaultMaxSnapshots = 100

// keyPrefix namespaces snapshot keys.
const keyPrefix = "snapshot/"

// ErrInvalidRetention is returned for a non-positive MaxSnapshots.
var ErrInvalidRetention = errors.New("max snapshots must be positive")

// StoreConfig holds configuration for a Store.
type StoreConfig struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// MaxSnapshots is how many snapshots are kept. Older ones are pruned
	// on Append.
	MaxSnapshots int

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultStoreConfig returns a persistent configuration for path.
func DefaultStoreConfig(path string) StoreConfig {
	return StoreConfig{
		Path:         path,
		SyncWrites:   true,
		MaxSnapshots: DefaultMaxSnapshots,
	}
}

// InMemoryStoreConfig returns configuration optimized for testing.
func InMemoryStoreConfig() StoreConfig {
	return StoreConfig{
		InMemory:     true,
		MaxSnapshots: DefaultMaxSnapshots,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is the snapshot history.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db  *badger.DB
	max int
}

// Open opens the history database.
//
// Description:
//
//	Opens a BadgerDB at cfg.Path, creating the directory if needed, or an
//	in-memory database when cfg.InMemory is set.
//
// Outputs:
//
//	*Store - The opened store. Caller must call Close() when done.
//	error - Non-nil if the configuration is invalid or the open fails.
func Open(cfg StoreConfig) (*Store, error) {
	if cfg.MaxSnapshots <= 0 {
		return nil, ErrInvalidRetention
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db, max: cfg.MaxSnapshots}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func snapshotKey(snap Snapshot) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", keyPrefix, snap.Time().UnixNano(), snap.ID))
}

// Append stores snap and prunes the oldest snapshots beyond the retention
// limit in the same transaction. It returns the number pruned.
func (s *Store) Append(ctx context.Context, snap Snapshot) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context cancelled: %w", err)
	}
	value, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}

	pruned := 0
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(snapshotKey(snap), value); err != nil {
			return err
		}
		keys := collectKeys(txn)
		for len(keys)-pruned > s.max {
			if err := txn.Delete(keys[pruned]); err != nil {
				return err
			}
			pruned++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("append snapshot: %w", err)
	}
	if pruned > 0 {
		slog.Debug("pruned trend snapshots", slog.Int("count", pruned))
	}
	return pruned, nil
}

// collectKeys returns all snapshot keys, oldest first.
func collectKeys(txn *badger.Txn) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(keyPrefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

// List returns up to limit of the most recent snapshots, oldest first.
// A limit of zero or less returns every snapshot.
func (s *Store) List(ctx context.Context, limit int) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	var out []Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration needs a seek key past every prefixed key.
		for it.Seek(append([]byte(keyPrefix), 0xFF)); it.Valid(); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var snap Snapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			}); err != nil {
				return fmt.Errorf("decode snapshot %s: %w", it.Item().Key(), err)
			}
			out = append(out, snap)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Latest returns the most recent snapshot, if any.
func (s *Store) Latest(ctx context.Context) (Snapshot, bool, error) {
	snaps, err := s.List(ctx, 1)
	if err != nil || len(snaps) == 0 {
		return Snapshot{}, false, err
	}
	return snaps[0], true, nil
}
