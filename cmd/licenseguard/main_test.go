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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cliResult holds one in-process CLI execution.
type cliResult struct {
	Code   int
	Stdout string
	Stderr string
}

func runCLI(t *testing.T, env map[string]string, stdin string, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr,
		func(k string) string { return env[k] })
	return cliResult{Code: code, Stdout: stdout.String(), Stderr: stderr.String()}
}

// writeTree creates files under a fresh temp dir and returns its path.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func TestRun_Verdicts(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantCode int
		wantOut  []string
	}{
		{
			name:     "spdx identifier blocks",
			content:  "// SPDX-License-Identifier: MIT\npackage x\n",
			wantCode: 2,
			wantOut:  []string{"Verdict: BLOCK (exit 2)", "SPDX license identifier", "CRITICAL  1"},
		},
		{
			name:     "plain code is clean",
			content:  "def add(a, b): return a + b\n",
			wantCode: 0,
			wantOut:  []string{"Verdict: CLEAN (exit 0)", "Total findings:      0", "No license risk detected."},
		},
		{
			name:     "code fence warns",
			content:  "```python\n",
			wantCode: 1,
			wantOut:  []string{"Verdict: WARN (exit 1)", "Code block marker", "LOW       1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeTree(t, map[string]string{"sample.py": tt.content})
			res := runCLI(t, nil, "", root)
			assert.Equal(t, tt.wantCode, res.Code, res.Stderr)
			for _, want := range tt.wantOut {
				assert.Contains(t, res.Stdout, want)
			}
			assert.NotContains(t, res.Stderr, "Error:", "a verdict is not an error")
		})
	}
}

func TestRun_HighOnlyWarns(t *testing.T) {
	root := writeTree(t, map[string]string{"NOTICE": "All rights reserved.\n"})
	res := runCLI(t, nil, "", root)
	assert.Equal(t, 1, res.Code, res.Stderr)
}

func TestRun_OneCriticalAmongClean(t *testing.T) {
	files := map[string]string{"bad.go": "// Copyright (c) 2019 Someone Else\n"}
	for i := 0; i < 99; i++ {
		files[fmt.Sprintf("pkg/f%02d.go", i)] = "package pkg\n"
	}
	root := writeTree(t, files)

	res := runCLI(t, nil, "", "--json", root)
	require.Equal(t, 2, res.Code, res.Stderr)

	var report struct {
		Verdict           string `json:"verdict"`
		TotalFilesScanned int    `json:"total_files_scanned"`
		FilesWithFindings int    `json:"files_with_findings"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Stdout), &report))
	assert.Equal(t, "BLOCK", report.Verdict)
	assert.Equal(t, 100, report.TotalFilesScanned)
	assert.Equal(t, 1, report.FilesWithFindings)
}

func TestRun_SummaryOnly(t *testing.T) {
	root := writeTree(t, map[string]string{"a.md": "SPDX-License-Identifier: Apache-2.0\n"})

	full := runCLI(t, nil, "", root)
	summary := runCLI(t, nil, "", "--summary-only", root)

	assert.Equal(t, full.Code, summary.Code)
	assert.Contains(t, full.Stdout, "Findings:")
	assert.NotContains(t, summary.Stdout, "Findings:")
	assert.Contains(t, summary.Stdout, "Total findings:      1")
	assert.True(t, strings.HasPrefix(full.Stdout, summary.Stdout))
}

func TestRun_Idempotent(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py":     "# Author: Jane\n",
		"b/c.js":   "// here is the code you asked for\n",
		"d/e/f.go": "package f\n",
	})
	first := runCLI(t, nil, "", "--json", root)
	second := runCLI(t, nil, "", "--json", root)
	require.Equal(t, first.Code, second.Code)

	strip := func(s string) map[string]any {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(s), &m))
		for _, k := range []string{"run_id", "started_at", "duration_ns"} {
			delete(m, k)
		}
		return m
	}
	assert.Equal(t, strip(first.Stdout), strip(second.Stdout))
}

func TestRun_Ignore(t *testing.T) {
	root := writeTree(t, map[string]string{
		"third_party/lib.go": "// SPDX-License-Identifier: GPL-3.0\n",
		"node_modules/x.js":  "// SPDX-License-Identifier: GPL-3.0\n",
		"main.go":            "package main\n",
	})

	res := runCLI(t, nil, "", root)
	assert.Equal(t, 2, res.Code, "third_party is not excluded by default")

	res = runCLI(t, nil, "", "--ignore", "third_party", root)
	assert.Equal(t, 0, res.Code, res.Stdout)
	assert.Contains(t, res.Stdout, "Files scanned:       1")
}

func TestRun_ConfigFileAndEnv(t *testing.T) {
	root := writeTree(t, map[string]string{
		".licenseguard.yaml": "ignore: [third_party]\nmax_lines: 2\n",
		"third_party/lib.go": "// SPDX-License-Identifier: GPL-3.0\n",
		"main.go":            "package main\n\nfunc main() {}\n",
	})

	res := runCLI(t, nil, "", root)
	assert.Equal(t, 1, res.Code, res.Stdout)
	assert.Contains(t, res.Stdout, "Large file - potential code reuse")

	res = runCLI(t, map[string]string{"LICENSEGUARD_MAX_LINES": "0"}, "", root)
	assert.Equal(t, 0, res.Code, "env disables the large-file check")

	res = runCLI(t, map[string]string{"LICENSEGUARD_MAX_LINES": "0"}, "", "--max-lines", "1", root)
	assert.Equal(t, 1, res.Code, "flags win over env")
}

func TestRun_ConfigurationErrors(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "package a\n"})

	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"unknown flag", nil, []string{"--no-such-flag", root}},
		{"too many args", nil, []string{root, root}},
		{"missing root", nil, []string{filepath.Join(root, "missing")}},
		{"bad ignore", nil, []string{"--ignore", "a,,b", root}},
		{"ignore with separator", nil, []string{"--ignore", "a/b", root}},
		{"threshold out of range", nil, []string{"--similarity-threshold", "2", root}},
		{"negative workers", nil, []string{"--workers", "-2", root}},
		{"bad env", map[string]string{"LICENSEGUARD_WORKERS": "lots"}, []string{root}},
		{"missing rules file", nil, []string{"--rules", filepath.Join(root, "none.yaml"), root}},
		{"missing config file", nil, []string{"--config", filepath.Join(root, "none.yaml"), root}},
		{"unwritable csv", nil, []string{"--output", filepath.Join(root, "no", "dir", "out.csv"), root}},
		{"bad upload scheme", nil, []string{"--upload", "ftp://bucket", root}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, tt.env, "", tt.args...)
			assert.Equal(t, ExitConfig, res.Code, "stdout=%s stderr=%s", res.Stdout, res.Stderr)
			assert.Contains(t, res.Stderr, "Error:")
		})
	}
}

func TestRun_Help(t *testing.T) {
	res := runCLI(t, nil, "", "--help")
	assert.Equal(t, 0, res.Code)
	assert.Contains(t, res.Stdout, "licenseguard [path]")
	assert.Contains(t, res.Stdout, "--summary-only")
	assert.Regexp(t, `(?m)^\s+1\s+WARN\s+findings, none critical$`, res.Stdout)
	assert.Regexp(t, `(?m)^\s+2\s+BLOCK\s+at least one critical finding$`, res.Stdout)
	assert.NotContains(t, res.Stdout, "critical or high")
	assert.Empty(t, res.Stderr)
}

func TestRun_RuleOverrides(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "// SPDX-License-Identifier: MIT\n// INTERNAL-ONLY\n"})
	dir := t.TempDir()

	disable := filepath.Join(dir, "disable.yaml")
	require.NoError(t, os.WriteFile(disable, []byte(`
categories:
  - category: "license-text"
    rules:
      - id: LIC_SPDX_ID
        disabled: true
`), 0o644))
	res := runCLI(t, nil, "", "--rules", disable, root)
	assert.Equal(t, 0, res.Code, res.Stdout)

	add := filepath.Join(dir, "add.yaml")
	require.NoError(t, os.WriteFile(add, []byte(`
categories:
  - category: "attribution"
    rules:
      - id: ATTR_INTERNAL
        label: "Internal-only marker"
        severity: MEDIUM
        regex: 'internal-only'
`), 0o644))
	res = runCLI(t, nil, "", "--rules", add, "--json", root)
	assert.Equal(t, 2, res.Code)
	assert.Contains(t, res.Stdout, "Internal-only marker")

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte(`
categories:
  - category: "license-text"
    rules:
      - id: LIC_BROKEN
        label: "Broken"
        severity: HIGH
        regex: '(unclosed'
`), 0o644))
	res = runCLI(t, nil, "", "--rules", broken, root)
	assert.Equal(t, ExitInternal, res.Code)
	assert.Contains(t, res.Stderr, "LIC_BROKEN")
	assert.Empty(t, res.Stdout, "no report when the catalog cannot compile")
}

func TestRun_OutputFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.go": "// Copyright 2021 Acme Corp\n",
		"b.md": "```go\n",
	})
	out := t.TempDir()
	csvPath := filepath.Join(out, "findings.csv")
	sarifPath := filepath.Join(out, "findings.sarif")
	promPath := filepath.Join(out, "licenseguard.prom")

	res := runCLI(t, nil, "", "--output", csvPath, "--sarif", sarifPath, "--metrics-file", promPath, root)
	require.Equal(t, 2, res.Code, res.Stderr)

	csvData, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(csvData), "a.go")
	assert.Contains(t, string(csvData), "Code block marker")

	sarifData, err := os.ReadFile(sarifPath)
	require.NoError(t, err)
	var sarif struct {
		Version string `json:"version"`
		Runs    []struct {
			Results []json.RawMessage `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(sarifData, &sarif))
	assert.Equal(t, "2.1.0", sarif.Version)
	require.Len(t, sarif.Runs, 1)
	assert.Len(t, sarif.Runs[0].Results, 2)

	promData, err := os.ReadFile(promPath)
	require.NoError(t, err)
	assert.Contains(t, string(promData), `licenseguard_findings{severity="CRITICAL"} 1`)
	assert.Contains(t, string(promData), `licenseguard_verdict_exit_code 2`)
}

func TestRun_MetricsFailureIsOnlyAWarning(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "package a\n"})
	res := runCLI(t, nil, "", "--metrics-file", filepath.Join(root, "missing", "dir", "m.prom"), root)
	assert.Equal(t, 0, res.Code)
	assert.Contains(t, res.Stderr, "metrics file not written")
}

func TestRun_Upload(t *testing.T) {
	var (
		mu   sync.Mutex
		puts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			mu.Lock()
			puts = append(puts, r.URL.Path)
			mu.Unlock()
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	t.Setenv("LICENSEGUARD_S3_ENDPOINT", strings.TrimPrefix(srv.URL, "http://"))
	t.Setenv("LICENSEGUARD_S3_ACCESS_KEY", "ak")
	t.Setenv("LICENSEGUARD_S3_SECRET_KEY", "sk")
	t.Setenv("LICENSEGUARD_S3_USE_SSL", "false")

	root := writeTree(t, map[string]string{"a.go": "package a\n"})
	csvPath := filepath.Join(t.TempDir(), "report.csv")
	res := runCLI(t, nil, "", "--upload", "s3://audit/ci", "--output", csvPath, root)
	assert.Equal(t, 0, res.Code, res.Stderr)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, puts, 2)
	for _, p := range puts {
		assert.True(t, strings.HasPrefix(p, "/audit/ci/"), p)
	}
	assert.ElementsMatch(t, []string{"report.json", "report.csv"},
		[]string{filepath.Base(puts[0]), filepath.Base(puts[1])})
}

func TestRun_UploadFailureIsOnlyAWarning(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "// SPDX-License-Identifier: MIT\n"})
	res := runCLI(t, nil, "", "--upload", "ftp://nowhere", root)
	assert.Equal(t, 2, res.Code)
	assert.Contains(t, res.Stderr, "upload skipped")
}

func TestRun_History(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "// SPDX-License-Identifier: MIT\n"})
	histDir := filepath.Join(t.TempDir(), "history")

	res := runCLI(t, nil, "", "--history-dir", histDir, "--json", root)
	require.Equal(t, 2, res.Code, res.Stderr)
	var scan struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Stdout), &scan))
	require.NotEmpty(t, scan.RunID)

	list := runCLI(t, nil, "", "history", "list", "--history-dir", histDir)
	require.Equal(t, 0, list.Code, list.Stderr)
	assert.Contains(t, list.Stdout, "RUN ID")
	assert.Contains(t, list.Stdout, scan.RunID)
	assert.Contains(t, list.Stdout, "BLOCK")
	assert.Contains(t, list.Stdout, "─", "header rule")

	show := runCLI(t, nil, "", "history", "show", scan.RunID, "--history-dir", histDir)
	require.Equal(t, 0, show.Code, show.Stderr)
	var rec struct {
		ID       string `json:"id"`
		Verdict  string `json:"verdict"`
		ExitCode int    `json:"exit_code"`
	}
	require.NoError(t, json.Unmarshal([]byte(show.Stdout), &rec))
	assert.Equal(t, scan.RunID, rec.ID)
	assert.Equal(t, "BLOCK", rec.Verdict)
	assert.Equal(t, 2, rec.ExitCode)

	missing := runCLI(t, nil, "", "history", "show", "no-such-run", "--history-dir", histDir)
	assert.Equal(t, ExitConfig, missing.Code)

	noDir := runCLI(t, nil, "", "history", "list")
	assert.Equal(t, ExitConfig, noDir.Code)
	assert.Contains(t, noDir.Stderr, "history_dir")
}

func TestRun_HistoryEmpty(t *testing.T) {
	histDir := t.TempDir()
	res := runCLI(t, nil, "", "history", "list", "--history-dir", histDir)
	assert.Equal(t, 0, res.Code, res.Stderr)
	assert.Contains(t, res.Stdout, "No runs recorded.")
}

const addedSPDXPatch = `diff --git a/src/util.go b/src/util.go
index 1111111..2222222 100644
--- a/src/util.go
+++ b/src/util.go
@@ -1,3 +1,4 @@
 package src
+// SPDX-License-Identifier: GPL-2.0
 import "fmt"
 func util() {}
`

func TestRun_Diff(t *testing.T) {
	res := runCLI(t, nil, addedSPDXPatch, "diff")
	assert.Equal(t, 2, res.Code, res.Stderr)
	assert.Contains(t, res.Stdout, "src/util.go")
	assert.Contains(t, res.Stdout, "line 2")

	patchFile := filepath.Join(t.TempDir(), "change.patch")
	require.NoError(t, os.WriteFile(patchFile, []byte(addedSPDXPatch), 0o644))
	res = runCLI(t, nil, "", "diff", "--summary-only", patchFile)
	assert.Equal(t, 2, res.Code)
	assert.NotContains(t, res.Stdout, "Findings:")

	res = runCLI(t, nil, "", "diff", filepath.Join(t.TempDir(), "missing.patch"))
	assert.Equal(t, ExitConfig, res.Code)
}

func TestRun_DiffRemovedLinesAreClean(t *testing.T) {
	patch := `diff --git a/LICENSE b/LICENSE
--- a/LICENSE
+++ b/LICENSE
@@ -1,2 +1,1 @@
-Permission is hereby granted, free of charge
 keep
`
	res := runCLI(t, nil, patch, "diff", "-")
	assert.Equal(t, 0, res.Code, res.Stdout)
}

func TestRun_Deps(t *testing.T) {
	root := writeTree(t, map[string]string{"app.py": "import pyqt5\nimport os\n"})

	res := runCLI(t, nil, "", root)
	assert.Equal(t, 0, res.Code, "dependency check is opt-in")

	res = runCLI(t, nil, "", "--deps", root)
	assert.Equal(t, 2, res.Code, res.Stderr)
	assert.Contains(t, res.Stdout, "Dependency with problematic license")
	assert.Contains(t, res.Stdout, "pyqt5 (GPL-3.0) at line 1")
}

func TestRun_ReferenceCorpus(t *testing.T) {
	body := "func quicksort(xs []int) []int {\n\tif len(xs) < 2 {\n\t\treturn xs\n\t}\n\tpivot := xs[0]\n\treturn xs\n}\n"
	corpus := writeTree(t, map[string]string{"upstream/sort.go": body})
	root := writeTree(t, map[string]string{"mine.go": body, "other.go": "package other\n"})

	res := runCLI(t, nil, "", "--reference-corpus", corpus, root)
	assert.Equal(t, 2, res.Code, res.Stderr)
	assert.Contains(t, res.Stdout, "Similar to reference source")
	assert.Contains(t, res.Stdout, "upstream/sort.go")

	res = runCLI(t, nil, "", "--reference-corpus", filepath.Join(corpus, "missing"), root)
	assert.Equal(t, ExitConfig, res.Code)
}
