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
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/licenseguard/services/scanner"
)

func newDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff [patch|-]",
		Short: "Scan only the lines a unified diff adds",
		Long: `Reads a unified diff (git diff output) from a file, or from stdin when the
argument is "-" or omitted, and classifies the added lines only. Line
numbers refer to the new file. File-level checks do not run.`,
		Example: "  git diff origin/main... | licenseguard diff",
		Args:    usageArgs(cobra.MaximumNArgs(1)),
		RunE:    a.runDiff,
	}
}

func (a *app) runDiff(cmd *cobra.Command, args []string) error {
	source := "-"
	if len(args) == 1 {
		source = args[0]
	}
	patch, err := readPatch(cmd.InOrStdin(), source)
	if err != nil {
		return &scanner.ConfigurationError{Field: "patch", Value: source, Err: err}
	}

	s, err := a.loadSession(cmd, ".")
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	classifier, err := s.buildClassifier(ctx, false)
	if err != nil {
		return err
	}
	sc, err := s.newScanner(classifier, "", nil)
	if err != nil {
		return err
	}
	agg, err := sc.ScanDiff(ctx, patch)
	if err != nil {
		return err
	}
	return a.emit(ctx, s, agg)
}

func readPatch(stdin io.Reader, source string) ([]byte, error) {
	if source == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(source)
}
