// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dependency

import (
	"strings"

	le "github.com/AleutianAI/licenseguard/services/license_engine"
)

// Ecosystem names a package namespace.
type Ecosystem string

const (
	EcosystemPython     Ecosystem = "python"
	EcosystemJavaScript Ecosystem = "javascript"
	EcosystemGo         Ecosystem = "go"
)

// licenseFamilies groups license identifiers whose presence blocks a merge.
// Anything in the known-package table outside these families is reported
// one level lower.
var licenseFamilies = map[string][]string{
	"GPL":        {"GPL-2.0", "GPL-3.0", "LGPL-2.1", "LGPL-3.0", "AGPL-3.0"},
	"Copyleft":   {"EPL-1.0", "EPL-2.0", "MPL-2.0"},
	"Commercial": {"Commercial", "Proprietary"},
	"Restricted": {"CC-BY-NC", "CC-BY-SA"},
}

// Table maps lowercased package names to the license they are known to
// carry, per ecosystem.
type Table map[Ecosystem]map[string]string

// DefaultTable is the built-in list of packages with problematic licenses.
func DefaultTable() Table {
	return Table{
		EcosystemPython: {
			"mysql-python": "GPL-2.0",
			"readline":     "GPL-3.0",
			"pyqt5":        "GPL-3.0",
			"pyqt6":        "GPL-3.0",
			"pyside2":      "LGPL-3.0",
			"pyside6":      "LGPL-3.0",
			"wxpython":     "wxWindows",
			"gpl":          "GPL-3.0",
			"copyleft":     "GPL-2.0",
		},
		EcosystemJavaScript: {
			"gpl":                  "GPL-3.0",
			"copyleft":             "GPL-2.0",
			"jquery-ui":            "GPL-2.0",
			"angular-ui-bootstrap": "GPL-3.0",
		},
		EcosystemGo: {
			"gpl":      "GPL-3.0",
			"copyleft": "GPL-2.0",
			"mysql":    "GPL-2.0",
		},
	}
}

// Lookup returns the license recorded for pkg. Go import paths also match
// on their last element.
func (t Table) Lookup(eco Ecosystem, pkg string) (string, bool) {
	known := t[eco]
	if known == nil {
		return "", false
	}
	name := strings.ToLower(pkg)
	if lic, ok := known[name]; ok {
		return lic, true
	}
	if eco == EcosystemGo {
		if i := strings.LastIndex(name, "/"); i >= 0 {
			lic, ok := known[name[i+1:]]
			return lic, ok
		}
	}
	return "", false
}

// SeverityFor is CRITICAL for licenses in a known problematic family and
// HIGH otherwise.
func SeverityFor(license string) le.Severity {
	for _, members := range licenseFamilies {
		for _, m := range members {
			if m == license {
				return le.SeverityCritical
			}
		}
	}
	return le.SeverityHigh
}
