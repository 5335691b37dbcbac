// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scanner

import (
	"sort"
	"sync"
	"time"

	le "github.com/AleutianAI/licenseguard/services/license_engine"
)

// FileResult is the outcome for one visited file. Scanned is false when the
// file could not be classified; Err then says why and Findings is empty.
type FileResult struct {
	Path     string       `json:"file_path"`
	Findings []le.Finding `json:"findings"`
	Scanned  bool         `json:"scanned"`
	Err      error        `json:"-"`
	Error    string       `json:"error,omitempty"`
}

// HasFindings reports whether the file produced at least one finding.
func (r FileResult) HasFindings() bool {
	return len(r.Findings) > 0
}

// RunAggregate is the finalized, read-only result of one run.
type RunAggregate struct {
	Root              string              `json:"root"`
	StartedAt         time.Time           `json:"started_at"`
	Duration          time.Duration       `json:"duration_ns"`
	TotalFilesScanned int                 `json:"total_files_scanned"`
	FilesWithFindings int                 `json:"files_with_findings"`
	UnreadableFiles   int                 `json:"unreadable_files"`
	SeverityCounts    map[le.Severity]int `json:"severity_counts"`
	FileResults       []FileResult        `json:"file_results"`
	Warnings          []string            `json:"warnings,omitempty"`
}

// TotalFindings returns the sum of all severity counts.
func (a RunAggregate) TotalFindings() int {
	n := 0
	for _, c := range a.SeverityCounts {
		n += c
	}
	return n
}

// Findings returns every finding, ordered by file path then position.
func (a RunAggregate) Findings() []le.Finding {
	var out []le.Finding
	for _, fr := range a.FileResults {
		out = append(out, fr.Findings...)
	}
	return out
}

// Unreadable returns the results of files that could not be classified.
func (a RunAggregate) Unreadable() []FileResult {
	var out []FileResult
	for _, fr := range a.FileResults {
		if !fr.Scanned {
			out = append(out, fr)
		}
	}
	return out
}

// Verdict resolves the run's verdict from its severity counts.
func (a RunAggregate) Verdict() Verdict {
	return ResolveVerdict(a.SeverityCounts)
}

// Aggregator accumulates FileResults for a single run. Record is the only
// mutator and is serialized, so classification can run on many goroutines.
type Aggregator struct {
	mu        sync.Mutex
	root      string
	startedAt time.Time

	results           []FileResult
	filesWithFindings int
	unreadable        int
	counts            map[le.Severity]int
	warnings          []string

	final *RunAggregate
}

// NewAggregator starts a run rooted at root.
func NewAggregator(root string) *Aggregator {
	return &Aggregator{
		root:      root,
		startedAt: time.Now(),
		counts:    make(map[le.Severity]int),
	}
}

// Record adds one file's result. A result is applied whole: its file counts
// and all of its severities at once. Recording the same path twice is a
// caller error and is not detected.
func (a *Aggregator) Record(r FileResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.final != nil {
		return ErrFinalized
	}
	if r.Err != nil && r.Error == "" {
		r.Error = r.Err.Error()
	}
	if !r.Scanned {
		r.Findings = nil
		a.unreadable++
	}
	if len(r.Findings) > 0 {
		a.filesWithFindings++
	}
	for _, f := range r.Findings {
		a.counts[f.Severity]++
	}
	a.results = append(a.results, r)
	return nil
}

// Warn records a run-level warning, such as an unreadable directory.
func (a *Aggregator) Warn(msgs ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.final == nil {
		a.warnings = append(a.warnings, msgs...)
	}
}

// Finalize closes the run and returns its snapshot. It is idempotent: later
// calls return the same snapshot and Record fails with ErrFinalized.
func (a *Aggregator) Finalize() RunAggregate {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.final != nil {
		return *a.final
	}

	results := append([]FileResult(nil), a.results...)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	counts := make(map[le.Severity]int, len(le.Severities()))
	for _, s := range le.Severities() {
		counts[s] = a.counts[s]
	}

	a.final = &RunAggregate{
		Root:              a.root,
		StartedAt:         a.startedAt,
		Duration:          time.Since(a.startedAt),
		TotalFilesScanned: len(results),
		FilesWithFindings: a.filesWithFindings,
		UnreadableFiles:   a.unreadable,
		SeverityCounts:    counts,
		FileResults:       results,
		Warnings:          append([]string(nil), a.warnings...),
	}
	return *a.final
}
