// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/licenseguard/pkg/ux"
	"github.com/AleutianAI/licenseguard/services/report"
	"github.com/AleutianAI/licenseguard/services/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [path]",
		Short: "Rescan whenever files change",
		Long: `Scans the path once, then rescans after every burst of file changes.
Unchanged files are served from an in-memory cache keyed by size and
modification time. Stops on Ctrl-C and always exits 0.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: a.runWatch,
	}
}

func (a *app) runWatch(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	s, err := a.loadSession(cmd, root)
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	classifier, err := s.buildClassifier(ctx, true)
	if err != nil {
		return err
	}
	cache, err := watch.NewResultCache(watch.DefaultCacheSize)
	if err != nil {
		return err
	}
	sc, err := s.newScanner(classifier, root, cache)
	if err != nil {
		return err
	}

	rescan := func(ctx context.Context) error {
		agg, err := sc.Scan(ctx)
		if err != nil {
			return err
		}
		hits, misses := cache.Stats()
		s.logger.Debug("scan cache", "hits", hits, "misses", misses)
		fmt.Fprintf(a.stdout, "\n--- %s ---\n", time.Now().Format(time.TimeOnly))
		return report.WriteTerminal(a.stdout, agg, report.TerminalOptions{
			SummaryOnly: s.cfg.SummaryOnly,
			Painter:     ux.PainterFor(a.stdout),
		})
	}
	// The first scan validates the root; later failures are only logged.
	if err := rescan(ctx); err != nil {
		return err
	}

	w, err := watch.NewWatcher(root, s.excludes(), s.cfg.Debounce, s.logger)
	if err != nil {
		return err
	}
	defer w.Stop()

	s.logger.Info("watching for changes", "root", root)
	return w.Run(ctx, func(ctx context.Context, changed []string) {
		s.logger.Info("changes detected", "paths", len(changed))
		for _, p := range changed {
			if rel, err := filepath.Rel(root, p); err == nil {
				cache.Forget(filepath.ToSlash(rel))
			}
		}
		if err := rescan(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("rescan failed", "error", err)
		}
	})
}
