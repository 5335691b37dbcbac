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
	"sort"
	"strings"

	le "github.com/AleutianAI/licenseguard/services/license_engine"
	"github.com/AleutianAI/licenseguard/services/scanner"
)

const (
	sarifVersion = "2.1.0"
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

// SARIF 2.1.0 subset understood by GitHub code scanning.
type (
	SarifLog struct {
		Version string     `json:"version"`
		Schema  string     `json:"$schema"`
		Runs    []SarifRun `json:"runs"`
	}

	SarifRun struct {
		Tool    SarifTool     `json:"tool"`
		Results []SarifResult `json:"results"`
	}

	SarifTool struct {
		Driver SarifDriver `json:"driver"`
	}

	SarifDriver struct {
		Name           string      `json:"name"`
		Version        string      `json:"version"`
		InformationURI string      `json:"informationUri,omitempty"`
		Rules          []SarifRule `json:"rules"`
	}

	SarifRule struct {
		ID               string          `json:"id"`
		Name             string          `json:"name"`
		ShortDescription SarifMessage    `json:"shortDescription"`
		Properties       SarifProperties `json:"properties"`
	}

	SarifProperties struct {
		Severity string `json:"severity"`
		Category string `json:"category"`
	}

	SarifResult struct {
		RuleID    string          `json:"ruleId"`
		Level     string          `json:"level"`
		Message   SarifMessage    `json:"message"`
		Locations []SarifLocation `json:"locations"`
	}

	SarifMessage struct {
		Text string `json:"text"`
	}

	SarifLocation struct {
		PhysicalLocation SarifPhysicalLocation `json:"physicalLocation"`
	}

	SarifPhysicalLocation struct {
		ArtifactLocation SarifArtifactLocation `json:"artifactLocation"`
		Region           *SarifRegion          `json:"region,omitempty"`
	}

	SarifArtifactLocation struct {
		URI string `json:"uri"`
	}

	SarifRegion struct {
		StartLine int `json:"startLine"`
	}
)

// BuildSARIF converts an aggregate into a SARIF log. Results are sorted by
// path, line and rule; file-level findings carry no region.
func BuildSARIF(agg scanner.RunAggregate, toolVersion string) SarifLog {
	findings := agg.Findings()
	sortFindings(findings)

	rules := make(map[string]SarifRule)
	results := make([]SarifResult, 0, len(findings))
	for _, f := range findings {
		if _, ok := rules[f.RuleID]; !ok {
			rules[f.RuleID] = SarifRule{
				ID:               f.RuleID,
				Name:             f.Label,
				ShortDescription: SarifMessage{Text: f.Label},
				Properties: SarifProperties{
					Severity: string(f.Severity),
					Category: string(f.Category),
				},
			}
		}

		loc := SarifLocation{PhysicalLocation: SarifPhysicalLocation{
			ArtifactLocation: SarifArtifactLocation{URI: toURI(f.Path)},
		}}
		if !f.IsFileLevel() {
			loc.PhysicalLocation.Region = &SarifRegion{StartLine: f.Line}
		}

		text := f.Label
		if f.MatchedText != "" {
			text = fmt.Sprintf("%s: %s", f.Label, f.MatchedText)
		}
		results = append(results, SarifResult{
			RuleID:    f.RuleID,
			Level:     sevToLevel(f.Severity),
			Message:   SarifMessage{Text: text},
			Locations: []SarifLocation{loc},
		})
	}

	ruleList := make([]SarifRule, 0, len(rules))
	for _, r := range rules {
		ruleList = append(ruleList, r)
	}
	sort.Slice(ruleList, func(i, j int) bool { return ruleList[i].ID < ruleList[j].ID })

	return SarifLog{
		Version: sarifVersion,
		Schema:  sarifSchema,
		Runs: []SarifRun{{
			Tool: SarifTool{Driver: SarifDriver{
				Name:    "licenseguard",
				Version: toolVersion,
				Rules:   ruleList,
			}},
			Results: results,
		}},
	}
}

// WriteSARIF writes the SARIF log as indented JSON.
func WriteSARIF(w io.Writer, agg scanner.RunAggregate, toolVersion string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(BuildSARIF(agg, toolVersion)); err != nil {
		return fmt.Errorf("encode sarif: %w", err)
	}
	return nil
}

func sortFindings(fs []le.Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].Path != fs[j].Path {
			return fs[i].Path < fs[j].Path
		}
		// File-level findings (line 0) sort after line findings.
		li, lj := fs[i].Line, fs[j].Line
		if li == 0 {
			li = int(^uint(0) >> 1)
		}
		if lj == 0 {
			lj = int(^uint(0) >> 1)
		}
		if li != lj {
			return li < lj
		}
		return fs[i].RuleID < fs[j].RuleID
	})
}

func sevToLevel(s le.Severity) string {
	switch s {
	case le.SeverityCritical, le.SeverityHigh:
		return "error"
	case le.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

func toURI(p string) string {
	p = strings.TrimSpace(p)
	for strings.HasPrefix(p, "../") {
		p = strings.TrimPrefix(p, "../")
	}
	p = strings.TrimPrefix(p, "./")
	if p == "" {
		return "UNKNOWN"
	}
	return p
}
