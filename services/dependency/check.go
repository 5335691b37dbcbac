// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dependency flags imports and manifest entries that refer to
// packages with a known problematic license.
//
// Detection is table driven: a package is only reported when its name is in
// the Table. Nothing is resolved over the network.
package dependency

import (
	"fmt"
	"path"
	"strings"

	le "github.com/AleutianAI/licenseguard/services/license_engine"
)

// RuleID identifies dependency findings.
const RuleID = "DEP_PROBLEMATIC_LICENSE"

// Check is a license_engine.FileCheck over source imports and dependency
// manifests.
type Check struct {
	table Table
}

// NewCheck returns a Check over table, or DefaultTable when table is nil.
func NewCheck(table Table) *Check {
	if table == nil {
		table = DefaultTable()
	}
	return &Check{table: table}
}

func (c *Check) Name() string { return "dependency" }

// Check reports one finding per problematic package referenced by the file.
// A manifest that does not parse yields no findings.
func (c *Check) Check(filePath string, content string, lines []string) []le.Finding {
	eco, imports := extract(filePath, content, lines)
	if eco == "" {
		return nil
	}

	var findings []le.Finding
	seen := make(map[string]bool)
	for _, imp := range imports {
		lic, ok := c.table.Lookup(eco, imp.Package)
		if !ok || seen[imp.Package] {
			continue
		}
		seen[imp.Package] = true

		text := fmt.Sprintf("%s (%s)", imp.Package, lic)
		if imp.Line > 0 {
			text = fmt.Sprintf("%s at line %d", text, imp.Line)
		}
		findings = append(findings, le.Finding{
			MatchedText: text,
			Label:       "Dependency with problematic license",
			Severity:    SeverityFor(lic),
			Category:    le.CategoryDependency,
			RuleID:      RuleID,
			RulePattern: fmt.Sprintf("%s:%s", eco, strings.ToLower(imp.Package)),
		})
	}
	return findings
}

func extract(filePath, content string, lines []string) (Ecosystem, []Import) {
	base := strings.ToLower(path.Base(filePath))
	switch base {
	case "go.mod":
		imps, err := GoModRequires([]byte(content))
		if err != nil {
			return "", nil
		}
		return EcosystemGo, imps
	case "package.json":
		imps, err := PackageJSONDependencies([]byte(content))
		if err != nil {
			return "", nil
		}
		return EcosystemJavaScript, imps
	case "requirements.txt":
		return EcosystemPython, RequirementsTxt(lines)
	}

	switch path.Ext(base) {
	case ".py":
		return EcosystemPython, PythonImports(lines)
	case ".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs":
		return EcosystemJavaScript, JavaScriptImports(lines)
	case ".go":
		return EcosystemGo, GoImports(content, lines)
	}
	return "", nil
}
