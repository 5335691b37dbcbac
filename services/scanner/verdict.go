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
	le "github.com/AleutianAI/licenseguard/services/license_engine"
)

// Exit codes for scan verdicts.
const (
	ExitClean = 0
	ExitWarn  = 1
	ExitBlock = 2
)

// Verdict is the gating decision for a run.
type Verdict string

const (
	// VerdictClean means no findings at all.
	VerdictClean Verdict = "CLEAN"

	// VerdictWarn means findings exist but none is CRITICAL.
	VerdictWarn Verdict = "WARN"

	// VerdictBlock means at least one CRITICAL finding.
	VerdictBlock Verdict = "BLOCK"
)

// ResolveVerdict maps severity counts to a verdict. Only the counts matter;
// unreadable files and warnings never change the outcome.
func ResolveVerdict(counts map[le.Severity]int) Verdict {
	if counts[le.SeverityCritical] > 0 {
		return VerdictBlock
	}
	for _, n := range counts {
		if n > 0 {
			return VerdictWarn
		}
	}
	return VerdictClean
}

// ExitCode returns the process exit code for the verdict.
func (v Verdict) ExitCode() int {
	switch v {
	case VerdictBlock:
		return ExitBlock
	case VerdictWarn:
		return ExitWarn
	default:
		return ExitClean
	}
}

// DominantSeverity returns the most severe level with a non-zero count.
func DominantSeverity(counts map[le.Severity]int) (le.Severity, bool) {
	for _, s := range le.Severities() {
		if counts[s] > 0 {
			return s, true
		}
	}
	return "", false
}
