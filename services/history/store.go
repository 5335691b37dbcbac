// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history keeps a local record of scan runs in an embedded BadgerDB.
//
// Each run is stored twice: once under a chronological key so listing is a
// prefix scan, and once under an ID index so lookups do not scan.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	le "github.com/AleutianAI/licenseguard/services/license_engine"
	"github.com/AleutianAI/licenseguard/services/scanner"
)

var (
	runPrefix = []byte("run/")
	idPrefix  = []byte("id/")
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// RunRecord is the persisted summary of one scan.
type RunRecord struct {
	ID                string              `json:"id"`
	Root              string              `json:"root"`
	StartedAt         time.Time           `json:"started_at"`
	Duration          time.Duration       `json:"duration_ns"`
	Verdict           string              `json:"verdict"`
	ExitCode          int                 `json:"exit_code"`
	TotalFilesScanned int                 `json:"total_files_scanned"`
	FilesWithFindings int                 `json:"files_with_findings"`
	UnreadableFiles   int                 `json:"unreadable_files"`
	TotalFindings     int                 `json:"total_findings"`
	SeverityCounts    map[le.Severity]int `json:"severity_counts"`
	CatalogDigest     string              `json:"catalog_digest,omitempty"`
}

// NewRunRecord summarizes a finalized aggregate under a fresh run ID.
func NewRunRecord(agg scanner.RunAggregate, catalogDigest string) RunRecord {
	v := agg.Verdict()
	counts := make(map[le.Severity]int, len(agg.SeverityCounts))
	for s, n := range agg.SeverityCounts {
		counts[s] = n
	}
	return RunRecord{
		ID:                uuid.NewString(),
		Root:              agg.Root,
		StartedAt:         agg.StartedAt.UTC(),
		Duration:          agg.Duration,
		Verdict:           string(v),
		ExitCode:          v.ExitCode(),
		TotalFilesScanned: agg.TotalFilesScanned,
		FilesWithFindings: agg.FilesWithFindings,
		UnreadableFiles:   agg.UnreadableFiles,
		TotalFindings:     agg.TotalFindings(),
		SeverityCounts:    counts,
		CatalogDigest:     catalogDigest,
	}
}

// Config holds configuration for a history store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM; used by tests.
	InMemory bool

	// Logger receives BadgerDB's internal messages. Nil silences them.
	Logger *slog.Logger
}

// Store persists RunRecords. Safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) the store described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("history path is required")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create history directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes rec. A record without an ID gets one.
func (s *Store) Save(ctx context.Context, rec RunRecord) (RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return rec, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return rec, fmt.Errorf("encode run %s: %w", rec.ID, err)
	}
	key := runKey(rec)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(append(append([]byte{}, idPrefix...), rec.ID...), key)
	})
	if err != nil {
		return rec, fmt.Errorf("save run %s: %w", rec.ID, err)
	}
	return rec, nil
}

// Get returns the run with the given ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (RunRecord, error) {
	var rec RunRecord
	if err := ctx.Err(); err != nil {
		return rec, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		idx, err := txn.Get(append(append([]byte{}, idPrefix...), id...))
		if err != nil {
			return err
		}
		key, err := idx.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("get run %s: %w", id, err)
	}
	return rec, nil
}

// List returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]RunRecord, error) {
	var out []RunRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = runPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, runPrefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(runPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec RunRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// Prune deletes all but the newest keep runs and returns how many were
// removed. keep <= 0 is a no-op.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	all, err := s.List(ctx, 0)
	if err != nil {
		return 0, err
	}
	if len(all) <= keep {
		return 0, nil
	}
	stale := all[keep:]
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, rec := range stale {
			if err := txn.Delete(runKey(rec)); err != nil {
				return err
			}
			if err := txn.Delete(append(append([]byte{}, idPrefix...), rec.ID...)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return len(stale), nil
}

// runKey is run/<zero-padded unix nanos>/<id>, so byte order is time order.
func runKey(rec RunRecord) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", runPrefix, rec.StartedAt.UnixNano(), rec.ID))
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
