// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-runs scans when files under a root change.
//
// # Description
//
// A Watcher registers every non-excluded directory with fsnotify, collects
// change events, and after a quiet period hands the batch of changed paths
// to a callback. New directories are watched as they appear.
//
// # Thread Safety
//
// Run must be called once. Stop may be called from any goroutine.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/licenseguard/pkg/logging"
)

// DefaultDebounce is the quiet period before a batch is delivered.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc receives the sorted, de-duplicated paths changed in a batch.
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher watches a directory tree.
type Watcher struct {
	root     string
	excludes map[string]bool
	debounce time.Duration
	fsw      *fsnotify.Watcher
	logger   *logging.Logger
}

// NewWatcher creates a watcher over root. Nothing is watched until Run.
func NewWatcher(root string, excludes []string, debounce time.Duration, logger *logging.Logger) (*Watcher, error) {
	if root == "" {
		return nil, errors.New("watch root is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logging.Nop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(excludes))
	for _, e := range excludes {
		set[e] = true
	}
	return &Watcher{root: root, excludes: set, debounce: debounce, fsw: fsw, logger: logger}, nil
}

// addTree watches dir and every non-excluded directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("cannot watch", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			// A single-file root is watched directly.
			if path == dir {
				return w.fsw.Add(path)
			}
			return nil
		}
		if path != dir && w.excludes[d.Name()] {
			return fs.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("cannot watch", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) excludedPath(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if w.excludes[part] {
			return true
		}
	}
	return false
}

// Run watches until ctx ends, delivering batches to onChange. onChange runs
// on the watcher goroutine, so events arriving meanwhile join the next
// batch.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.logger.Debug("watching", "root", w.root)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.excludedPath(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addTree(event.Name)
				}
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			clear(pending)
			w.logger.Debug("change batch", "paths", len(batch))
			onChange(ctx, batch)
		}
	}
}

// Stop releases the underlying watcher. Safe to call more than once.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}
