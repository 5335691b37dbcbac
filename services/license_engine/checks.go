// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package license_engine

import "fmt"

// DefaultMaxLines is the line count above which a file is flagged as a
// possible wholesale copy.
const DefaultMaxLines = 100

// LargeFileCheck flags files with more than MaxLines lines. MaxLines <= 0
// disables it.
type LargeFileCheck struct {
	MaxLines int
}

// NewLargeFileCheck returns nil when maxLines disables the check, so the
// result can be passed straight to WithFileChecks.
func NewLargeFileCheck(maxLines int) FileCheck {
	if maxLines <= 0 {
		return nil
	}
	return &LargeFileCheck{MaxLines: maxLines}
}

func (c *LargeFileCheck) Name() string { return "large-file" }

func (c *LargeFileCheck) Check(path string, content string, lines []string) []Finding {
	if c.MaxLines <= 0 || len(lines) <= c.MaxLines {
		return nil
	}
	return []Finding{{
		MatchedText: fmt.Sprintf("File has %d lines", len(lines)),
		Label:       "Large file - potential code reuse",
		Severity:    SeverityLow,
		Category:    CategoryFileLevel,
		RuleID:      "FILE_LARGE",
		RulePattern: fmt.Sprintf("lines > %d", c.MaxLines),
	}}
}
