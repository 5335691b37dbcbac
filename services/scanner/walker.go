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
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultExcludes are directory names pruned from every walk.
var DefaultExcludes = []string{
	".git",
	".hg",
	".svn",
	"node_modules",
	"__pycache__",
	".pytest_cache",
	".venv",
	"venv",
	"dist",
	"build",
	"vendor",
	".idea",
	".vscode",
}

// ParseExcludeList parses a comma-separated list of directory names, as
// given to --ignore. Surrounding whitespace is trimmed. Empty entries and
// entries containing a path separator are rejected.
func ParseExcludeList(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var names []string
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if err := validateExcludeName(name); err != nil {
			return nil, &ConfigurationError{Field: "exclusion list", Value: s, Err: err}
		}
		names = append(names, name)
	}
	return names, nil
}

// MergeExcludes returns the sorted union of the given name lists.
func MergeExcludes(lists ...[]string) []string {
	set := make(map[string]bool)
	for _, list := range lists {
		for _, name := range list {
			set[name] = true
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func validateExcludeName(name string) error {
	switch {
	case name == "":
		return errors.New("empty entry")
	case name == "." || name == "..":
		return fmt.Errorf("%q is not a directory name", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%q must be a directory name, not a path", name)
	}
	return nil
}

// Candidate is a regular file the walker hands to the classifier.
type Candidate struct {
	// Path is the filesystem path used to open the file.
	Path string

	// RelPath is the slash-separated path relative to the walk root. It is
	// the path reported in findings.
	RelPath string

	Size    int64
	ModTime time.Time
}

// Walker enumerates candidate files under a root in lexical, depth-first
// order. Symlinks are not followed and excluded directory names are pruned
// before anything inside them is read. Hidden files are included.
type Walker struct {
	root     string
	rootFile bool
	excludes map[string]bool
}

// NewWalker validates root and builds a walker. An invalid root or exclusion
// name is a *ConfigurationError.
func NewWalker(root string, excludes []string) (*Walker, error) {
	if root == "" {
		return nil, &ConfigurationError{Field: "root", Err: errors.New("empty path")}
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, &ConfigurationError{Field: "root", Value: root, Err: err}
	}
	// An explicitly named root may be a symlink; links below it are not
	// followed.
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return nil, &ConfigurationError{Field: "root", Value: root, Err: errors.New("not a directory or regular file")}
	}

	set := make(map[string]bool, len(excludes))
	for _, name := range excludes {
		if err := validateExcludeName(name); err != nil {
			return nil, &ConfigurationError{Field: "exclusion list", Value: name, Err: err}
		}
		set[name] = true
	}
	return &Walker{root: root, rootFile: !info.IsDir(), excludes: set}, nil
}

// Root returns the walk root.
func (w *Walker) Root() string {
	return w.root
}

// Excluded reports whether a directory name is pruned.
func (w *Walker) Excluded(name string) bool {
	return w.excludes[name]
}

// ExcludedPath reports whether any directory component of a slash-separated
// relative path is pruned.
func (w *Walker) ExcludedPath(rel string) bool {
	return pathExcluded(rel, w.excludes)
}

// Walk calls visit for each candidate file. Directories that cannot be read
// are skipped and reported in the returned warnings. Walk stops early when
// ctx is cancelled or visit returns an error.
func (w *Walker) Walk(ctx context.Context, visit func(Candidate) error) ([]string, error) {
	var warnings []string

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("cannot read %s: %v", w.rel(path), err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != w.root && w.excludes[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}

		// Symlinks and special files are never followed or read.
		if !d.Type().IsRegular() {
			return nil
		}

		c := Candidate{Path: path, RelPath: w.rel(path)}
		if info, infoErr := d.Info(); infoErr == nil {
			c.Size = info.Size()
			c.ModTime = info.ModTime()
		}
		return visit(c)
	})
	return warnings, err
}

func (w *Walker) rel(path string) string {
	if w.rootFile {
		return filepath.ToSlash(filepath.Base(path))
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
