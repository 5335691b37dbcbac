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

// RuleCompilationError reports a catalog that cannot be turned into working
// rules: malformed YAML, a missing field, or a regex that does not compile.
// A scan must never start with a partially loaded catalog.
//
// # Example
//
//	var rce *RuleCompilationError
//	if errors.As(err, &rce) {
//	    fmt.Println(rce.RuleID, rce.Pattern)
//	}
type RuleCompilationError struct {
	// Source names the document ("embedded" or a file path).
	Source string

	// RuleID is empty when the document as a whole is invalid.
	RuleID string

	// Pattern is the offending regex, when there is one.
	Pattern string

	Err error
}

func (e *RuleCompilationError) Error() string {
	switch {
	case e.RuleID != "" && e.Pattern != "":
		return fmt.Sprintf("rule %s in %s: cannot compile %q: %v", e.RuleID, e.Source, e.Pattern, e.Err)
	case e.RuleID != "":
		return fmt.Sprintf("rule %s in %s: %v", e.RuleID, e.Source, e.Err)
	default:
		return fmt.Sprintf("catalog %s: %v", e.Source, e.Err)
	}
}

func (e *RuleCompilationError) Unwrap() error {
	return e.Err
}
