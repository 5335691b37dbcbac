// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report renders a finalized RunAggregate. Renderers only read the
// aggregate; none of them changes counts or ordering.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/licenseguard/pkg/ux"
	le "github.com/AleutianAI/licenseguard/services/license_engine"
	"github.com/AleutianAI/licenseguard/services/scanner"
	"github.com/charmbracelet/lipgloss"
)

// TerminalOptions configures the human-readable report.
type TerminalOptions struct {
	// SummaryOnly omits per-finding detail. Counts are identical either way.
	SummaryOnly bool

	Painter ux.Painter
}

var recommendations = map[le.Severity]string{
	le.SeverityCritical: "Remove or replace code that carries third-party license text or dated copyright notices before merging.",
	le.SeverityHigh:     "Review copyright mentions and confirm the code may be redistributed under this project's license.",
	le.SeverityMedium:   "Check attribution tags and upstream references to establish where the code came from.",
	le.SeverityLow:      "Strip generation artifacts such as code fences and conversational preambles.",
}

// Recommendation returns the advice for the dominant severity of a run.
func Recommendation(counts map[le.Severity]int) string {
	if s, ok := scanner.DominantSeverity(counts); ok {
		return recommendations[s]
	}
	return "No license risk detected."
}

// WriteTerminal writes the summary and, unless SummaryOnly, the detail of
// every finding, unreadable file and walk warning.
func WriteTerminal(w io.Writer, agg scanner.RunAggregate, opts TerminalOptions) error {
	ew := &errWriter{w: w}
	p := opts.Painter

	writeSummary(ew, agg, p)
	if !opts.SummaryOnly {
		writeDetail(ew, agg, p)
	}
	return ew.err
}

func writeSummary(ew *errWriter, agg scanner.RunAggregate, p ux.Painter) {
	ew.println(p.Paint(ux.Styles.Title, "License Risk Report"))
	ew.println(strings.Repeat("=", 60))
	if agg.Root != "" {
		ew.printf("Root: %s\n", agg.Root)
	}
	ew.println()

	ew.printf("Files scanned:       %d\n", agg.TotalFilesScanned)
	ew.printf("Files with findings: %d\n", agg.FilesWithFindings)
	ew.printf("Unreadable files:    %d\n", agg.UnreadableFiles)
	ew.printf("Total findings:      %d\n", agg.TotalFindings())
	ew.println()

	ew.println("Findings by severity:")
	for _, s := range le.Severities() {
		ew.printf("  %s %d\n", p.Paint(severityStyle(s), fmt.Sprintf("%-9s", s)), agg.SeverityCounts[s])
	}
	ew.println()

	verdict := agg.Verdict()
	ew.printf("Verdict: %s (exit %d)\n", p.Paint(verdictStyle(verdict), string(verdict)), verdict.ExitCode())
	ew.printf("Recommendation: %s\n", Recommendation(agg.SeverityCounts))
}

func writeDetail(ew *errWriter, agg scanner.RunAggregate, p ux.Painter) {
	if agg.FilesWithFindings > 0 {
		ew.println()
		ew.println(p.Paint(ux.Styles.Bold, "Findings:"))
		for _, fr := range agg.FileResults {
			if !fr.HasFindings() {
				continue
			}
			ew.println()
			ew.println(p.Paint(ux.Styles.Highlight, fr.Path))
			for _, f := range fr.Findings {
				ew.printf("  %s line %-5s %s\n",
					p.Paint(severityStyle(f.Severity), fmt.Sprintf("%-9s", f.Severity)),
					f.LineString(),
					f.Label,
				)
				if f.MatchedText != "" {
					ew.printf("            %s %s\n", p.Paint(ux.Styles.Muted, ">"), f.MatchedText)
				}
			}
		}
	}

	if unreadable := agg.Unreadable(); len(unreadable) > 0 {
		ew.println()
		ew.println(p.Paint(ux.Styles.Bold, "Unreadable files:"))
		for _, fr := range unreadable {
			ew.printf("  %s %s: %s\n", p.Icon(ux.IconWarning), fr.Path, fr.Error)
		}
	}

	if len(agg.Warnings) > 0 {
		ew.println()
		ew.println(p.Paint(ux.Styles.Bold, "Warnings:"))
		for _, msg := range agg.Warnings {
			ew.printf("  %s %s\n", p.Icon(ux.IconWarning), msg)
		}
	}
}

func severityStyle(s le.Severity) lipgloss.Style {
	switch s {
	case le.SeverityCritical:
		return ux.Styles.Error
	case le.SeverityHigh:
		return ux.Styles.Alert
	case le.SeverityMedium:
		return ux.Styles.Warning
	default:
		return ux.Styles.Notice
	}
}

func verdictStyle(v scanner.Verdict) lipgloss.Style {
	switch v {
	case scanner.VerdictBlock:
		return ux.Styles.Error
	case scanner.VerdictWarn:
		return ux.Styles.Warning
	default:
		return ux.Styles.Success
	}
}

// errWriter remembers the first write error so rendering code can stay
// linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *errWriter) println(args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintln(e.w, args...)
}
