// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/licenseguard/services/scanner"
)

// Process exit codes beyond the verdict codes 0, 1 and 2.
const (
	ExitConfig   = 3
	ExitInternal = 4
)

// ExitError carries a process exit code through cobra's error return. A
// verdict exit has no Err and prints nothing extra.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// verdictExit converts a verdict into the error RunE returns. CLEAN is nil.
func verdictExit(v scanner.Verdict) error {
	if code := v.ExitCode(); code != scanner.ExitClean {
		return &ExitError{Code: code}
	}
	return nil
}

// exitCode maps an error from command execution to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return scanner.ExitClean
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	var ce *scanner.ConfigurationError
	if errors.As(err, &ce) {
		return ExitConfig
	}
	// Rule compilation failures and everything else are internal errors.
	return ExitInternal
}

// reportable says whether err should be printed to stderr. Verdict exits
// already produced their report.
func reportable(err error) bool {
	if err == nil {
		return false
	}
	var ee *ExitError
	if errors.As(err, &ee) && ee.Err == nil {
		return false
	}
	return true
}
