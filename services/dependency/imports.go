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
	"encoding/json"
	"fmt"
	"go/parser"
	"go/token"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/mod/modfile"
)

// Import is one referenced package and the line it was found on.
type Import struct {
	Package string
	Line    int
}

var (
	pyImport   = regexp.MustCompile(`^\s*import\s+([A-Za-z_][A-Za-z0-9_]*)`)
	pyFrom     = regexp.MustCompile(`^\s*from\s+([A-Za-z_][A-Za-z0-9_]*)(?:\.[A-Za-z0-9_.]*)?\s+import\b`)
	pyReqName  = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)`)
	jsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*import\s+.*?from\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`^\s*(?:const|let|var)\s+.*?=\s*require\s*\(\s*['"]([^'"]+)['"]`),
	}
	goQuoted = regexp.MustCompile(`^\s*(?:import\s+)?(?:[A-Za-z_.]+\s+)?"([^"]+)"`)
)

// PythonImports returns the top-level module of every import statement.
func PythonImports(lines []string) []Import {
	var out []Import
	for i, line := range lines {
		for _, re := range []*regexp.Regexp{pyImport, pyFrom} {
			if m := re.FindStringSubmatch(line); m != nil {
				out = append(out, Import{Package: m[1], Line: i + 1})
				break
			}
		}
	}
	return out
}

// JavaScriptImports returns the package of every ES import or require call.
// Relative specifiers are skipped and scoped packages keep their scope.
func JavaScriptImports(lines []string) []Import {
	var out []Import
	for i, line := range lines {
		for _, re := range jsPatterns {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if pkg, ok := jsPackageName(m[1]); ok {
				out = append(out, Import{Package: pkg, Line: i + 1})
			}
			break
		}
	}
	return out
}

func jsPackageName(spec string) (string, bool) {
	if spec == "" || strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") {
		return "", false
	}
	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") && len(parts) >= 2 {
		return parts[0] + "/" + parts[1], true
	}
	return parts[0], true
}

// GoImports returns the import paths of a Go source file. Sources that do
// not parse, such as fragments, fall back to a line scan of import blocks.
func GoImports(content string, lines []string) []Import {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", content, parser.ImportsOnly)
	if err == nil {
		out := make([]Import, 0, len(f.Imports))
		for _, spec := range f.Imports {
			path, err := strconv.Unquote(spec.Path.Value)
			if err != nil {
				continue
			}
			out = append(out, Import{Package: path, Line: fset.Position(spec.Pos()).Line})
		}
		return out
	}

	var out []Import
	inBlock := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
			continue
		case inBlock && trimmed == ")":
			inBlock = false
			continue
		}
		if !inBlock && !strings.HasPrefix(trimmed, "import ") {
			continue
		}
		if m := goQuoted.FindStringSubmatch(trimmed); m != nil {
			out = append(out, Import{Package: m[1], Line: i + 1})
		}
	}
	return out
}

// GoModRequires returns the required module paths of a go.mod file.
func GoModRequires(content []byte) ([]Import, error) {
	f, err := modfile.Parse("go.mod", content, nil)
	if err != nil {
		return nil, fmt.Errorf("parse go.mod: %w", err)
	}
	out := make([]Import, 0, len(f.Require))
	for _, req := range f.Require {
		line := 0
		if req.Syntax != nil {
			line = req.Syntax.Start.Line
		}
		out = append(out, Import{Package: req.Mod.Path, Line: line})
	}
	return out, nil
}

// PackageJSONDependencies returns every dependency name in package.json,
// sorted. Line numbers are not tracked.
func PackageJSONDependencies(content []byte) ([]Import, error) {
	var manifest struct {
		Dependencies         map[string]string `json:"dependencies"`
		DevDependencies      map[string]string `json:"devDependencies"`
		PeerDependencies     map[string]string `json:"peerDependencies"`
		OptionalDependencies map[string]string `json:"optionalDependencies"`
	}
	if err := json.Unmarshal(content, &manifest); err != nil {
		return nil, fmt.Errorf("parse package.json: %w", err)
	}
	seen := make(map[string]bool)
	for _, group := range []map[string]string{
		manifest.Dependencies, manifest.DevDependencies,
		manifest.PeerDependencies, manifest.OptionalDependencies,
	} {
		for name := range group {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Import, len(names))
	for i, name := range names {
		out[i] = Import{Package: name}
	}
	return out, nil
}

// RequirementsTxt returns the package names of a pip requirements file.
func RequirementsTxt(lines []string) []Import {
	var out []Import
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "-") {
			continue
		}
		if m := pyReqName.FindStringSubmatch(trimmed); m != nil {
			out = append(out, Import{Package: m[1], Line: i + 1})
		}
	}
	return out
}
