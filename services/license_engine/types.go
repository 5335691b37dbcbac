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

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Severity
// =============================================================================

// Severity is the license-risk level of a rule or finding.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

var severityOrder = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// Severities lists every severity from most to least severe.
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

// ParseSeverity converts a case-insensitive name into a Severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := severityOrder[sev]; !ok {
		return "", fmt.Errorf("invalid severity %q (want CRITICAL, HIGH, MEDIUM or LOW)", s)
	}
	return sev, nil
}

// Rank returns 4 for CRITICAL down to 1 for LOW, and 0 for unknown values.
func (s Severity) Rank() int {
	return severityOrder[s]
}

// AtLeast reports whether s is as severe as or more severe than other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

func (s *Severity) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// =============================================================================
// Category
// =============================================================================

// Category partitions the catalog. Line rules use the first four; the
// remaining categories are produced by file-level checks.
type Category string

const (
	CategoryLicenseText        Category = "license-text"
	CategoryCopyright          Category = "copyright"
	CategoryAttribution        Category = "attribution"
	CategoryGenerationArtifact Category = "generation-artifact"
	CategoryFileLevel          Category = "file-level"
	CategoryDependency         Category = "dependency"
	CategorySimilarity         Category = "similarity"
)

var knownCategories = map[Category]bool{
	CategoryLicenseText:        true,
	CategoryCopyright:          true,
	CategoryAttribution:        true,
	CategoryGenerationArtifact: true,
	CategoryFileLevel:          true,
	CategoryDependency:         true,
	CategorySimilarity:         true,
}

func (c *Category) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	cat := Category(strings.ToLower(strings.TrimSpace(raw)))
	if !knownCategories[cat] {
		return fmt.Errorf("invalid category %q", raw)
	}
	*c = cat
	return nil
}

// =============================================================================
// Rule
// =============================================================================

// Rule is one pattern in the catalog. Rules are immutable once the catalog
// is built.
type Rule struct {
	ID       string   `yaml:"id" validate:"required"`
	Label    string   `yaml:"label" validate:"required_unless=Disabled true"`
	Severity Severity `yaml:"severity" validate:"required_unless=Disabled true"`
	Regex    string   `yaml:"regex" validate:"required_unless=Disabled true"`
	Disabled bool     `yaml:"disabled"`
	// Unless names rules that suppress this one on lines where they match.
	Unless []string `yaml:"unless,omitempty" validate:"dive,required"`

	Category Category       `yaml:"-"`
	compiled *regexp.Regexp `yaml:"-"`
}

// Match returns the first match of the rule in the lowercased line. Rules
// compile case-insensitively, so patterns may use either case.
func (r Rule) Match(lowered string) (string, bool) {
	if r.compiled == nil {
		return "", false
	}
	loc := r.compiled.FindStringIndex(lowered)
	if loc == nil {
		return "", false
	}
	return lowered[loc[0]:loc[1]], true
}

// catalogFile is the on-disk layout of a catalog document.
type catalogFile struct {
	Version    int             `yaml:"version"`
	Categories []categoryBlock `yaml:"categories"`
}

type categoryBlock struct {
	Category Category `yaml:"category"`
	Rules    []Rule   `yaml:"rules"`
}

// =============================================================================
// Finding
// =============================================================================

// PreviewLimit is the maximum number of characters kept from a matched line
// unless verbose output is requested.
const PreviewLimit = 100

// Finding is a single rule match, or a file-level observation when Line is 0.
type Finding struct {
	Path        string   `json:"file_path"`
	Line        int      `json:"line_number"`
	MatchedText string   `json:"matched_text"`
	Label       string   `json:"label"`
	Severity    Severity `json:"severity"`
	Category    Category `json:"category"`
	RuleID      string   `json:"rule_id"`
	RulePattern string   `json:"rule_pattern"`
}

// IsFileLevel reports whether the finding applies to the file as a whole.
func (f Finding) IsFileLevel() bool {
	return f.Line == 0
}

// LineString renders the line number, using "N/A" for file-level findings.
func (f Finding) LineString() string {
	if f.IsFileLevel() {
		return "N/A"
	}
	return strconv.Itoa(f.Line)
}

// preview trims the line and caps it at PreviewLimit runes.
func preview(line string, verbose bool) string {
	trimmed := strings.TrimSpace(line)
	if verbose {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) <= PreviewLimit {
		return trimmed
	}
	return string(runes[:PreviewLimit])
}
