// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scanner walks a source tree, classifies every candidate file and
// aggregates the results of one run.
//
// The pipeline is Walker -> Classifier -> Aggregator. Files are classified
// on a bounded pool of goroutines; the Aggregator's Record is the only
// point where they meet. Each call to Scan builds a fresh Aggregator, so a
// Scanner can be reused many times in one process.
//
//	classifier := license_engine.NewClassifier(catalog)
//	s, err := scanner.New(classifier, scanner.Options{Root: "."})
//	agg, err := s.Scan(ctx)
//	os.Exit(agg.Verdict().ExitCode())
package scanner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/AleutianAI/licenseguard/pkg/logging"
	le "github.com/AleutianAI/licenseguard/services/license_engine"
	"golang.org/x/sync/errgroup"
)

// ResultCache lets a caller reuse results for files that have not changed
// since an earlier run. Implementations must be safe for concurrent use.
type ResultCache interface {
	Get(c Candidate) (FileResult, bool)
	Put(c Candidate, r FileResult)
}

// Options configures a Scanner.
type Options struct {
	// Root is the directory (or single file) to scan.
	Root string

	// Excludes are directory names pruned from the walk.
	Excludes []string

	// Workers bounds concurrent classification. 0 means runtime.NumCPU();
	// 1 classifies files one at a time in walk order.
	Workers int

	// MaxFileSize is the largest file classified. 0 means DefaultMaxFileSize.
	MaxFileSize int64

	// Cache is optional.
	Cache ResultCache

	Logger *logging.Logger
}

// Scanner runs scans with a fixed classifier and options.
type Scanner struct {
	classifier *le.Classifier
	opts       Options
	logger     *logging.Logger
}

// New validates opts and returns a Scanner. Root is checked when a scan
// starts, so a Scanner used only for diffs may leave it empty.
func New(classifier *le.Classifier, opts Options) (*Scanner, error) {
	if classifier == nil {
		return nil, errors.New("scanner: nil classifier")
	}
	if opts.Workers < 0 {
		return nil, &ConfigurationError{Field: "workers", Value: fmt.Sprint(opts.Workers), Err: errors.New("must not be negative")}
	}
	if opts.MaxFileSize < 0 {
		return nil, &ConfigurationError{Field: "max file size", Value: fmt.Sprint(opts.MaxFileSize), Err: errors.New("must not be negative")}
	}
	for _, name := range opts.Excludes {
		if err := validateExcludeName(name); err != nil {
			return nil, &ConfigurationError{Field: "exclusion list", Value: name, Err: err}
		}
	}
	if opts.Workers == 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.MaxFileSize == 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Scanner{classifier: classifier, opts: opts, logger: logger}, nil
}

// Scan walks the root and classifies every candidate file.
//
// # Outputs
//
//   - RunAggregate: The finalized aggregate. When ctx is cancelled mid-run
//     it holds every file recorded so far.
//   - error: *ConfigurationError for a bad root, or ctx.Err() on
//     cancellation. Per-file problems are never returned here.
func (s *Scanner) Scan(ctx context.Context) (RunAggregate, error) {
	walker, err := NewWalker(s.opts.Root, s.opts.Excludes)
	if err != nil {
		return RunAggregate{}, err
	}

	ctx, span := startScanSpan(ctx, "Scanner.Scan", walker.Root())
	defer span.End()

	start := time.Now()
	agg := NewAggregator(walker.Root())
	s.logger.Info("scan started",
		"root", walker.Root(),
		"workers", s.opts.Workers,
		"rules", s.classifier.Catalog().Len(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	warnings, walkErr := walker.Walk(gctx, func(c Candidate) error {
		g.Go(func() error {
			r := s.scanCandidate(gctx, c)
			if err := agg.Record(r); err != nil {
				return err
			}
			recordFileMetrics(gctx, r)
			return nil
		})
		return nil
	})
	groupErr := g.Wait()
	agg.Warn(warnings...)
	for _, w := range warnings {
		s.logger.Warn("walk warning", "detail", w)
	}

	result := agg.Finalize()
	setScanSpanResult(span, result)
	recordScanMetrics(ctx, time.Since(start), result.Verdict())

	s.logger.Info("scan finished",
		"files", result.TotalFilesScanned,
		"files_with_findings", result.FilesWithFindings,
		"unreadable", result.UnreadableFiles,
		"verdict", result.Verdict(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if walkErr != nil {
		return result, fmt.Errorf("walk %s: %w", walker.Root(), walkErr)
	}
	if groupErr != nil {
		return result, groupErr
	}
	return result, nil
}

// ScanFile classifies a single file outside of a walk. rel is the path
// reported in findings.
func (s *Scanner) ScanFile(path, rel string) FileResult {
	return s.classify(Candidate{Path: path, RelPath: rel})
}

func (s *Scanner) scanCandidate(ctx context.Context, c Candidate) FileResult {
	if s.opts.Cache != nil {
		if r, ok := s.opts.Cache.Get(c); ok {
			s.logger.Debug("cache hit", "path", c.RelPath)
			return r
		}
	}

	r := s.classify(c)
	for _, f := range r.Findings {
		if f.Severity == le.SeverityCritical {
			addCriticalEvent(ctx, f)
		}
	}

	if s.opts.Cache != nil {
		s.opts.Cache.Put(c, r)
	}
	return r
}

func (s *Scanner) classify(c Candidate) FileResult {
	content, err := ReadText(c.Path, s.opts.MaxFileSize)
	if err != nil {
		var fae *FileAccessError
		if errors.As(err, &fae) {
			fae.Path = c.RelPath
		}
		s.logger.Debug("file not classified", "path", c.RelPath, "error", err)
		return FileResult{Path: c.RelPath, Scanned: false, Err: err, Error: err.Error()}
	}

	return FileResult{
		Path:     c.RelPath,
		Findings: s.classifier.Classify(c.RelPath, content),
		Scanned:  true,
	}
}
