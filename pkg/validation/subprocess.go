// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-provided values before they reach a
// subprocess argument list.
//
// Arguments are passed to exec without a shell, so these checks do not
// guard against shell injection. They reject values a container runtime
// would parse as an option or as an extra path component.
package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// imagePattern matches a container image reference:
// [registry[:port]/]path[:tag][@digest].
var imagePattern = regexp.MustCompile(
	`^[a-z0-9]+([._-][a-z0-9]+)*(:[0-9]+)?(/[a-z0-9]+([._-][a-z0-9]+)*)*(:[A-Za-z0-9_][A-Za-z0-9_.-]{0,127})?(@sha256:[a-f0-9]{64})?$`,
)

// fileNamePattern matches a plain file name without extension tricks.
var fileNamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]{0,127}$`)

// ValidateImageRef validates a container image reference.
//
// Example:
//
//	if err := validation.ValidateImageRef(image); err != nil {
//	    return fmt.Errorf("invalid image: %w", err)
//	}
func ValidateImageRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("image reference cannot be empty")
	}
	if len(ref) > 255 || !imagePattern.MatchString(ref) {
		return fmt.Errorf("invalid image reference %q", ref)
	}
	return nil
}

// ValidateFileName validates a single path component, such as a report
// name. Separators, "..", and a leading dash or dot are rejected.
func ValidateFileName(name string) error {
	if name == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if strings.Contains(name, "..") || !fileNamePattern.MatchString(name) {
		return fmt.Errorf("invalid file name %q (letters, digits, dot, dash and underscore only)", name)
	}
	return nil
}

// ValidateExecutable validates a program name or path for exec. A bare
// name is looked up on PATH by the caller; a path must be absolute or
// explicitly relative.
func ValidateExecutable(name string) error {
	if name == "" {
		return fmt.Errorf("executable cannot be empty")
	}
	if strings.HasPrefix(name, "-") || strings.ContainsAny(name, "\x00\n\r") {
		return fmt.Errorf("invalid executable %q", name)
	}
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		if !filepath.IsAbs(name) && !strings.HasPrefix(name, "."+string(filepath.Separator)) && !strings.HasPrefix(name, "./") {
			return fmt.Errorf("executable path %q must be absolute or start with ./", name)
		}
	}
	return nil
}
