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
	"regexp"
	"strings"
)

// DefaultGuardPattern matches lines that look like rule definitions, so that
// a catalog document does not flag itself when it is scanned.
//
// This is a narrow heuristic. It skips any YAML-style line whose key is
// category, label, regex or pattern followed by a quoted value, including
// lines in unrelated files; and it does not recognise rule definitions
// written in other shapes.
const DefaultGuardPattern = `^\s*(-\s*)?(category|label|regex|pattern)\s*:\s*["']`

var defaultGuard = regexp.MustCompile(DefaultGuardPattern)

// NumberedLine is a line of text with its 1-based position in the file.
type NumberedLine struct {
	Number int
	Text   string
}

// FileCheck is a whole-file observation that runs once after line
// classification. Findings it returns must have Line == 0.
type FileCheck interface {
	Name() string
	Check(path string, content string, lines []string) []Finding
}

// Classifier applies a catalog to text. It is immutable after construction
// and safe for concurrent use.
type Classifier struct {
	catalog *Catalog
	rules   []Rule
	guard   *regexp.Regexp
	checks  []FileCheck
	verbose bool
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithFileChecks appends file-level checks, run in the given order.
func WithFileChecks(checks ...FileCheck) ClassifierOption {
	return func(c *Classifier) {
		for _, check := range checks {
			if check != nil {
				c.checks = append(c.checks, check)
			}
		}
	}
}

// WithVerbose keeps the full trimmed line instead of a bounded preview.
func WithVerbose(verbose bool) ClassifierOption {
	return func(c *Classifier) {
		c.verbose = verbose
	}
}

// WithGuard replaces the self-exclusion guard. A nil guard disables it.
func WithGuard(guard *regexp.Regexp) ClassifierOption {
	return func(c *Classifier) {
		c.guard = guard
	}
}

// NewClassifier creates a Classifier over catalog.
func NewClassifier(catalog *Catalog, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		catalog: catalog,
		rules:   catalog.All(),
		guard:   defaultGuard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Catalog returns the catalog the classifier was built with.
func (c *Classifier) Catalog() *Catalog {
	return c.catalog
}

// FileChecks returns the names of the configured file-level checks.
func (c *Classifier) FileChecks() []string {
	names := make([]string, len(c.checks))
	for i, check := range c.checks {
		names[i] = check.Name()
	}
	return names
}

// ClassifyLine evaluates every rule against one line. There is no
// first-match-wins: a line that matches three rules yields three findings,
// in catalog order. A rule is dropped when a rule in its Unless list also
// matched the line.
func (c *Classifier) ClassifyLine(path string, number int, line string) []Finding {
	lowered := strings.ToLower(line)
	if c.guard != nil && c.guard.MatchString(lowered) {
		return nil
	}

	var matched map[string]bool
	for _, rule := range c.rules {
		if _, ok := rule.Match(lowered); ok {
			if matched == nil {
				matched = make(map[string]bool)
			}
			matched[rule.ID] = true
		}
	}
	if matched == nil {
		return nil
	}

	var findings []Finding
	for _, rule := range c.rules {
		if !matched[rule.ID] || suppressed(rule, matched) {
			continue
		}
		findings = append(findings, Finding{
			Path:        path,
			Line:        number,
			MatchedText: preview(line, c.verbose),
			Label:       rule.Label,
			Severity:    rule.Severity,
			Category:    rule.Category,
			RuleID:      rule.ID,
			RulePattern: rule.Regex,
		})
	}
	return findings
}

func suppressed(rule Rule, matched map[string]bool) bool {
	for _, id := range rule.Unless {
		if matched[id] {
			return true
		}
	}
	return false
}

// Classify runs line classification over content and then every file-level
// check. Line findings come first, in line order.
func (c *Classifier) Classify(path string, content string) []Finding {
	lines := SplitLines(content)

	var findings []Finding
	for i, line := range lines {
		findings = append(findings, c.ClassifyLine(path, i+1, line)...)
	}
	for _, check := range c.checks {
		for _, f := range check.Check(path, content, lines) {
			f.Path = path
			f.Line = 0
			findings = append(findings, f)
		}
	}
	return findings
}

// ClassifyLines classifies a sparse set of lines, such as the added lines
// of a diff. File-level checks do not run because the full file is not
// known.
func (c *Classifier) ClassifyLines(path string, lines []NumberedLine) []Finding {
	var findings []Finding
	for _, l := range lines {
		findings = append(findings, c.ClassifyLine(path, l.Number, l.Text)...)
	}
	return findings
}

// SplitLines splits content on "\n" and drops a trailing "\r" from each
// line. A final newline does not start an extra empty line.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
