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
	"bytes"
	"context"
	"strings"
	"time"

	le "github.com/AleutianAI/licenseguard/services/license_engine"
	"github.com/sourcegraph/go-diff/diff"
)

// ScanDiff classifies only the lines a unified diff adds, using new-file
// line numbers. Each changed file yields one FileResult; deleted files and
// files under excluded directories are skipped. File-level checks do not
// run because only fragments of each file are known.
func (s *Scanner) ScanDiff(ctx context.Context, patch []byte) (RunAggregate, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(patch)
	if err != nil {
		return RunAggregate{}, &ConfigurationError{Field: "diff", Err: err}
	}

	ctx, span := startScanSpan(ctx, "Scanner.ScanDiff", "diff")
	defer span.End()

	start := time.Now()
	excluded := make(map[string]bool, len(s.opts.Excludes))
	for _, name := range s.opts.Excludes {
		excluded[name] = true
	}

	agg := NewAggregator("diff")
	for _, fd := range fileDiffs {
		if err := ctx.Err(); err != nil {
			return agg.Finalize(), err
		}

		path, ok := diffTargetPath(fd)
		if !ok || pathExcluded(path, excluded) {
			continue
		}

		lines := AddedLines(fd)
		r := FileResult{
			Path:     path,
			Findings: s.classifier.ClassifyLines(path, lines),
			Scanned:  true,
		}
		if err := agg.Record(r); err != nil {
			return agg.Finalize(), err
		}
		recordFileMetrics(ctx, r)
	}

	result := agg.Finalize()
	setScanSpanResult(span, result)
	recordScanMetrics(ctx, time.Since(start), result.Verdict())
	s.logger.Info("diff scan finished",
		"files", result.TotalFilesScanned,
		"files_with_findings", result.FilesWithFindings,
		"verdict", result.Verdict(),
	)
	return result, nil
}

// AddedLines returns the added lines of a file diff with their line numbers
// in the new file.
func AddedLines(fd *diff.FileDiff) []le.NumberedLine {
	var out []le.NumberedLine
	for _, h := range fd.Hunks {
		newLine := int(h.NewStartLine)
		body := bytes.TrimSuffix(h.Body, []byte("\n"))
		for _, raw := range bytes.Split(body, []byte("\n")) {
			if len(raw) == 0 {
				// An empty body line is an unprefixed context line.
				newLine++
				continue
			}
			switch raw[0] {
			case '+':
				out = append(out, le.NumberedLine{Number: newLine, Text: string(raw[1:])})
				newLine++
			case ' ':
				newLine++
			case '-', '\\':
				// Removed lines and "\ No newline at end of file" markers.
			default:
				newLine++
			}
		}
	}
	return out
}

// diffTargetPath returns the post-change path of a file diff, without the
// conventional "b/" prefix. Deletions have no target.
func diffTargetPath(fd *diff.FileDiff) (string, bool) {
	name := fd.NewName
	if name == "" || name == "/dev/null" {
		return "", false
	}
	if i := strings.IndexAny(name, "\t"); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimPrefix(name, "b/")
	if name == "" {
		return "", false
	}
	return name, true
}

func pathExcluded(rel string, excluded map[string]bool) bool {
	parts := strings.Split(rel, "/")
	for _, dir := range parts[:len(parts)-1] {
		if excluded[dir] {
			return true
		}
	}
	return false
}
