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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	le "github.com/AleutianAI/licenseguard/services/license_engine"
	"github.com/AleutianAI/licenseguard/services/license_engine/enforcement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScanner(t *testing.T, opts Options) *Scanner {
	t.Helper()
	catalog, err := le.LoadDefaultCatalog()
	require.NoError(t, err)
	classifier := le.NewClassifier(catalog, le.WithFileChecks(le.NewLargeFileCheck(le.DefaultMaxLines)))
	s, err := New(classifier, opts)
	require.NoError(t, err)
	return s
}

func scanTree(t *testing.T, files map[string]string, opts Options) RunAggregate {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, files)
	opts.Root = root
	agg, err := newTestScanner(t, opts).Scan(context.Background())
	require.NoError(t, err)
	return agg
}

// =============================================================================
// Scenarios
// =============================================================================

func TestScan_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantVerdict Verdict
		wantExit    int
		wantCounts  map[le.Severity]int
		wantLabel   string
	}{
		{
			name:        "SPDX identifier blocks",
			content:     "SPDX-License-Identifier: MIT\n",
			wantVerdict: VerdictBlock,
			wantExit:    2,
			wantCounts:  map[le.Severity]int{le.SeverityCritical: 1},
			wantLabel:   "SPDX license identifier",
		},
		{
			name:        "plain function is clean",
			content:     "def add(a, b): return a + b\n",
			wantVerdict: VerdictClean,
			wantExit:    0,
			wantCounts:  map[le.Severity]int{},
		},
		{
			name:        "code fence warns",
			content:     "```python\n",
			wantVerdict: VerdictWarn,
			wantExit:    1,
			wantCounts:  map[le.Severity]int{le.SeverityLow: 1},
			wantLabel:   "Code block marker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := scanTree(t, map[string]string{"sample.txt": tt.content}, Options{})

			assert.Equal(t, 1, agg.TotalFilesScanned)
			assert.Equal(t, tt.wantVerdict, agg.Verdict())
			assert.Equal(t, tt.wantExit, agg.Verdict().ExitCode())
			for _, s := range le.Severities() {
				assert.Equal(t, tt.wantCounts[s], agg.SeverityCounts[s], "severity %s", s)
			}
			if tt.wantLabel != "" {
				findings := agg.Findings()
				require.Len(t, findings, 1)
				assert.Equal(t, tt.wantLabel, findings[0].Label)
				assert.Equal(t, "sample.txt", findings[0].Path)
			}
		})
	}
}

func TestScan_OneCriticalAmongHundred(t *testing.T) {
	files := map[string]string{"pkg/licensed.go": "// Copyright (c) 2021 Vendor Inc\n"}
	for i := 0; i < 99; i++ {
		files[fmt.Sprintf("pkg/clean_%02d.go", i)] = "package pkg\n\nfunc f() {}\n"
	}

	agg := scanTree(t, files, Options{Workers: 8})

	assert.Equal(t, 100, agg.TotalFilesScanned)
	assert.Equal(t, 1, agg.FilesWithFindings)
	assert.Equal(t, VerdictBlock, agg.Verdict())
	assert.Equal(t, 2, agg.Verdict().ExitCode())
}

// =============================================================================
// Properties
// =============================================================================

func mixedTree() map[string]string {
	return map[string]string{
		"a/LICENSE":        "Permission is hereby granted, free of charge, to any person\n",
		"a/util.py":        "# Author: someone\nimport os\n",
		"b/readme.md":      "Here is the code you need\n```go\nfmt.Println()\n```\n",
		"b/clean.go":       "package b\n",
		"c/notes.txt":      "copyright owners\nall rights reserved\n",
		"c/deep/x/y/z.txt": "nothing here\n",
		"bin/blob.bin":     "\x00\x01\x02copyright",
	}
}

func assertInvariants(t *testing.T, agg RunAggregate) {
	t.Helper()
	withFindings := 0
	counts := map[le.Severity]int{}
	for _, fr := range agg.FileResults {
		if fr.HasFindings() {
			withFindings++
		}
		if !fr.Scanned {
			assert.Empty(t, fr.Findings)
			assert.NotEmpty(t, fr.Error)
		}
		for _, f := range fr.Findings {
			counts[f.Severity]++
		}
	}
	assert.Equal(t, withFindings, agg.FilesWithFindings)
	for _, s := range le.Severities() {
		assert.Equal(t, counts[s], agg.SeverityCounts[s])
	}
	assert.Equal(t, len(agg.FileResults), agg.TotalFilesScanned)
	assert.Equal(t, agg.SeverityCounts[le.SeverityCritical] > 0, agg.Verdict() == VerdictBlock)
	assert.Equal(t, agg.TotalFindings() == 0, agg.Verdict() == VerdictClean)
}

func TestScan_Invariants(t *testing.T) {
	agg := scanTree(t, mixedTree(), Options{})

	assertInvariants(t, agg)
	assert.Equal(t, 7, agg.TotalFilesScanned)
	assert.Equal(t, 1, agg.UnreadableFiles)
	require.Len(t, agg.Unreadable(), 1)
	assert.Equal(t, "bin/blob.bin", agg.Unreadable()[0].Path)
	assert.Contains(t, agg.Unreadable()[0].Error, ReasonBinary)
	assert.Equal(t, VerdictBlock, agg.Verdict())
}

func TestScan_Idempotent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, mixedTree())
	s := newTestScanner(t, Options{Root: root})

	first, err := s.Scan(context.Background())
	require.NoError(t, err)
	second, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.FileResults, second.FileResults)
	assert.Equal(t, first.SeverityCounts, second.SeverityCounts)
	assert.Equal(t, first.Verdict(), second.Verdict())
}

func TestScan_WorkerCountDoesNotChangeResult(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, mixedTree())

	serial, err := newTestScanner(t, Options{Root: root, Workers: 1}).Scan(context.Background())
	require.NoError(t, err)
	parallel, err := newTestScanner(t, Options{Root: root, Workers: 16}).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, serial.FileResults, parallel.FileResults)
}

func TestScan_Exclusion(t *testing.T) {
	files := mixedTree()
	files["generated/gpl.c"] = "GNU General Public License\n"

	with := scanTree(t, files, Options{Excludes: []string{"generated"}})
	for _, fr := range with.FileResults {
		assert.NotContains(t, fr.Path, "generated/")
	}

	without := scanTree(t, files, Options{})
	found := false
	for _, fr := range without.FileResults {
		if fr.Path == "generated/gpl.c" {
			found = true
		}
	}
	assert.True(t, found)
	assert.Equal(t, without.TotalFilesScanned-1, with.TotalFilesScanned)
}

func TestScan_CatalogDoesNotFlagItself(t *testing.T) {
	agg := scanTree(t, map[string]string{
		"rules/license_patterns.yaml": string(enforcement.LicensePatterns),
	}, Options{})

	assert.Equal(t, 1, agg.TotalFilesScanned)
	assert.Zero(t, agg.TotalFindings())
	assert.Equal(t, VerdictClean, agg.Verdict())
}

func TestScan_InvalidRoot(t *testing.T) {
	s := newTestScanner(t, Options{Root: filepath.Join(t.TempDir(), "nope")})
	_, err := s.Scan(context.Background())
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestScan_CancelledLeavesConsistentAggregate(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, mixedTree())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg, err := newTestScanner(t, Options{Root: root}).Scan(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assertInvariants(t, agg)
}

func TestNew_InvalidOptions(t *testing.T) {
	catalog, err := le.LoadDefaultCatalog()
	require.NoError(t, err)
	c := le.NewClassifier(catalog)

	var cfgErr *ConfigurationError
	_, err = New(c, Options{Workers: -1})
	assert.ErrorAs(t, err, &cfgErr)
	_, err = New(c, Options{MaxFileSize: -5})
	assert.ErrorAs(t, err, &cfgErr)
	_, err = New(c, Options{Excludes: []string{""}})
	assert.ErrorAs(t, err, &cfgErr)
	_, err = New(nil, Options{})
	assert.Error(t, err)
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]FileResult
	hits int
}

func (m *mapCache) key(c Candidate) string {
	return fmt.Sprintf("%s|%d|%d", c.RelPath, c.Size, c.ModTime.UnixNano())
}

func (m *mapCache) Get(c Candidate) (FileResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.data[m.key(c)]
	if ok {
		m.hits++
	}
	return r, ok
}

func (m *mapCache) Put(c Candidate, r FileResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[m.key(c)] = r
}

func TestScan_UsesCache(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, mixedTree())
	cache := &mapCache{data: map[string]FileResult{}}
	s := newTestScanner(t, Options{Root: root, Cache: cache})

	first, err := s.Scan(context.Background())
	require.NoError(t, err)
	second, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.TotalFilesScanned, cache.hits)
	assert.Equal(t, first.FileResults, second.FileResults)
}

func TestScanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.go")
	require.NoError(t, os.WriteFile(path, []byte("// SPDX-License-Identifier: Apache-2.0\n"), 0644))

	r := newTestScanner(t, Options{}).ScanFile(path, "x.go")

	assert.True(t, r.Scanned)
	require.Len(t, r.Findings, 1)
	assert.Equal(t, "LIC_SPDX_ID", r.Findings[0].RuleID)
}
