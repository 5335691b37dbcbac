// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/AleutianAI/licenseguard/services/scanner"
)

// CSVHeader is the column order of the tabular export.
var CSVHeader = []string{"file", "line", "severity", "label", "matched_text"}

// WriteCSV writes one row per finding, in aggregate order. File-level
// findings have "N/A" in the line column.
func WriteCSV(w io.Writer, agg scanner.RunAggregate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, f := range agg.Findings() {
		row := []string{f.Path, f.LineString(), string(f.Severity), f.Label, f.MatchedText}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row for %s: %w", f.Path, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
