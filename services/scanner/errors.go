// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scanner

import (
	"errors"
	"fmt"
)

// ErrFinalized is returned by Record once the aggregate has been finalized.
var ErrFinalized = errors.New("aggregator already finalized")

// ConfigurationError reports invalid scan input: a missing root, a
// malformed exclusion list, or an out-of-range option. It is fatal for the
// run.
type ConfigurationError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Reasons a file could not be classified.
const (
	ReasonBinary           = "binary file"
	ReasonTooLarge         = "file too large"
	ReasonPermissionDenied = "permission denied"
	ReasonReadError        = "read error"
	ReasonDecodeError      = "decode error"
)

// FileAccessError reports a file that was visited but not classified. It is
// recorded on the FileResult and never aborts the run.
type FileAccessError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FileAccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *FileAccessError) Unwrap() error {
	return e.Err
}
