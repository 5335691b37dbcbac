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
	"io"
	"os"
	"path/filepath"

	"github.com/AleutianAI/licenseguard/pkg/ux"
	"github.com/AleutianAI/licenseguard/services/history"
	"github.com/AleutianAI/licenseguard/services/license_engine/enforcement"
	"github.com/AleutianAI/licenseguard/services/report"
	"github.com/AleutianAI/licenseguard/services/scanner"
	"github.com/AleutianAI/licenseguard/services/upload"
)

// emit renders a finished run and hands it to the configured collaborators.
//
// # Description
//
// The stdout report and any requested CSV or SARIF file are part of the
// result: failing to write them is an error. Metrics, history and upload
// are best effort and only log a warning when they fail. The returned
// error carries the verdict exit code.
func (a *app) emit(ctx context.Context, s *session, agg scanner.RunAggregate) error {
	rec := history.NewRunRecord(agg, enforcement.CatalogDigest())

	if err := a.render(s, agg, rec.ID); err != nil {
		return err
	}

	var artifacts []string
	if s.cfg.Output != "" {
		if err := writeFile(s.cfg.Output, func(w io.Writer) error { return report.WriteCSV(w, agg) }); err != nil {
			return &scanner.ConfigurationError{Field: "output", Value: s.cfg.Output, Err: err}
		}
		artifacts = append(artifacts, s.cfg.Output)
	}
	if s.cfg.SARIF != "" {
		if err := writeFile(s.cfg.SARIF, func(w io.Writer) error { return report.WriteSARIF(w, agg, version) }); err != nil {
			return &scanner.ConfigurationError{Field: "sarif", Value: s.cfg.SARIF, Err: err}
		}
		artifacts = append(artifacts, s.cfg.SARIF)
	}
	if s.cfg.MetricsFile != "" {
		if err := writeMetricsFile(s.cfg.MetricsFile, agg); err != nil {
			s.logger.Warn("metrics file not written", "path", s.cfg.MetricsFile, "error", err)
		} else {
			artifacts = append(artifacts, s.cfg.MetricsFile)
		}
	}

	if s.cfg.HistoryDir != "" {
		a.recordHistory(ctx, s, rec)
	}
	if s.cfg.Upload != "" {
		a.uploadArtifacts(ctx, s, agg, rec.ID, artifacts)
	}
	return verdictExit(agg.Verdict())
}

func (a *app) render(s *session, agg scanner.RunAggregate, runID string) error {
	if s.cfg.JSON {
		return report.WriteJSON(a.stdout, agg, runID)
	}
	return report.WriteTerminal(a.stdout, agg, report.TerminalOptions{
		SummaryOnly: s.cfg.SummaryOnly,
		Painter:     ux.PainterFor(a.stdout),
	})
}

func (a *app) recordHistory(ctx context.Context, s *session, rec history.RunRecord) {
	log := s.logger.With("run_id", rec.ID)
	store, err := history.Open(history.Config{Path: s.cfg.HistoryDir, Logger: log.Slog()})
	if err != nil {
		log.Warn("history not recorded", "dir", s.cfg.HistoryDir, "error", err)
		return
	}
	defer store.Close()

	if _, err := store.Save(ctx, rec); err != nil {
		log.Warn("history not recorded", "dir", s.cfg.HistoryDir, "error", err)
		return
	}
	if s.cfg.HistoryKeep > 0 {
		removed, err := store.Prune(ctx, s.cfg.HistoryKeep)
		if err != nil {
			log.Warn("history prune failed", "error", err)
		} else if removed > 0 {
			log.Debug("history pruned", "removed", removed)
		}
	}
	log.Info("run recorded")
}

// uploadArtifacts sends the JSON report plus any written files.
func (a *app) uploadArtifacts(ctx context.Context, s *session, agg scanner.RunAggregate, runID string, artifacts []string) {
	log := s.logger.With("run_id", runID)
	dest, err := upload.ParseDestination(s.cfg.Upload)
	if err != nil {
		log.Warn("upload skipped", "error", err)
		return
	}

	tmp, err := os.MkdirTemp("", "licenseguard-")
	if err != nil {
		log.Warn("upload skipped", "error", err)
		return
	}
	defer os.RemoveAll(tmp)
	reportPath := filepath.Join(tmp, "report.json")
	if err := writeFile(reportPath, func(w io.Writer) error { return report.WriteJSON(w, agg, runID) }); err != nil {
		log.Warn("upload skipped", "error", err)
		return
	}

	up, err := upload.New(ctx, dest, upload.Config{
		GCSCredentialsFile: s.cfg.GCSCredentials,
		S3:                 upload.S3ConfigFromEnv(),
	})
	if err != nil {
		log.Warn("upload skipped", "destination", dest.String(), "error", err)
		return
	}
	defer up.Close()

	urls, err := upload.UploadRun(ctx, up, dest, runID, append([]string{reportPath}, artifacts...))
	if err != nil {
		log.Warn("upload incomplete", "destination", dest.String(), "error", err)
	}
	for _, u := range urls {
		log.Info("uploaded", "url", u)
	}
}

// writeFile creates path and streams into it, reporting close errors.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return write(f)
}
