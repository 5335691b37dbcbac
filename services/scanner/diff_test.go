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
	"testing"

	le "github.com/AleutianAI/licenseguard/services/license_engine"
	"github.com/sourcegraph/go-diff/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePatch = `diff --git a/pkg/util.go b/pkg/util.go
index 1111111..2222222 100644
--- a/pkg/util.go
+++ b/pkg/util.go
@@ -1,4 +1,5 @@
 package pkg
-// Copyright 2019 Old Owner
+// SPDX-License-Identifier: MIT
 func b() {}
 func a() {}
+// I hope this helps
diff --git a/vendor/lib/x.go b/vendor/lib/x.go
index 1111111..2222222 100644
--- a/vendor/lib/x.go
+++ b/vendor/lib/x.go
@@ -1,1 +1,2 @@
 package lib
+// GNU General Public License
diff --git a/old.go b/old.go
deleted file mode 100644
index 1111111..0000000
--- a/old.go
+++ /dev/null
@@ -1,1 +0,0 @@
-// Copyright 2000 Removed
diff --git a/docs/clean.md b/docs/clean.md
index 1111111..2222222 100644
--- a/docs/clean.md
+++ b/docs/clean.md
@@ -10,2 +10,3 @@ Intro
 line ten
+an added line with nothing in it
 line eleven
`

func TestScanDiff(t *testing.T) {
	s := newTestScanner(t, Options{Excludes: []string{"vendor"}})

	agg, err := s.ScanDiff(context.Background(), []byte(samplePatch))
	require.NoError(t, err)

	assert.Equal(t, 2, agg.TotalFilesScanned)
	assert.Equal(t, 1, agg.FilesWithFindings)
	assert.Equal(t, VerdictBlock, agg.Verdict())

	require.Equal(t, "docs/clean.md", agg.FileResults[0].Path)
	assert.Empty(t, agg.FileResults[0].Findings)

	util := agg.FileResults[1]
	assert.Equal(t, "pkg/util.go", util.Path)
	require.Len(t, util.Findings, 2)
	assert.Equal(t, "LIC_SPDX_ID", util.Findings[0].RuleID)
	assert.Equal(t, 2, util.Findings[0].Line)
	assert.Equal(t, "GEN_CLOSING_REMARK", util.Findings[1].RuleID)
	assert.Equal(t, 5, util.Findings[1].Line)
}

func TestScanDiff_Malformed(t *testing.T) {
	s := newTestScanner(t, Options{})
	_, err := s.ScanDiff(context.Background(), []byte("--- a\n+++ b\n@@ garbage @@\n"))
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestAddedLines(t *testing.T) {
	fds, err := diff.ParseMultiFileDiff([]byte(samplePatch))
	require.NoError(t, err)

	got := AddedLines(fds[3])

	assert.Equal(t, []le.NumberedLine{{Number: 11, Text: "an added line with nothing in it"}}, got)
}
