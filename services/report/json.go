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
	"encoding/json"
	"fmt"
	"io"

	"github.com/AleutianAI/licenseguard/services/scanner"
)

// JSONReport is the machine-readable form of a run.
type JSONReport struct {
	RunID          string `json:"run_id,omitempty"`
	Verdict        string `json:"verdict"`
	ExitCode       int    `json:"exit_code"`
	Recommendation string `json:"recommendation"`
	TotalFindings  int    `json:"total_findings"`
	scanner.RunAggregate
}

// WriteJSON writes the aggregate plus verdict as indented JSON.
func WriteJSON(w io.Writer, agg scanner.RunAggregate, runID string) error {
	v := agg.Verdict()
	out := JSONReport{
		RunID:          runID,
		Verdict:        string(v),
		ExitCode:       v.ExitCode(),
		Recommendation: Recommendation(agg.SeverityCounts),
		TotalFindings:  agg.TotalFindings(),
		RunAggregate:   agg,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}
