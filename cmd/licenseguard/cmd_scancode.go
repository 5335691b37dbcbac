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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/licenseguard/pkg/validation"
	"github.com/AleutianAI/licenseguard/services/scanner"
)

// DefaultScancodeImage is the ScanCode toolkit container.
const DefaultScancodeImage = "ghcr.io/aboutcode-org/scancode-toolkit:latest"

// execCommand is replaced in tests.
var execCommand = exec.CommandContext

type scancodeFlags struct {
	image  string
	docker string
	name   string
}

func newScancodeCmd(a *app) *cobra.Command {
	var f scancodeFlags
	cmd := &cobra.Command{
		Use:   "scancode <input> <output>",
		Short: "Run the ScanCode toolkit container over a directory",
		Long: `Runs ScanCode in a container with the input directory mounted read-only
and writes <output>/<name>.json. licenseguard itself never reads the
report; it exists for a second opinion on license detection.`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScancode(cmd.Context(), f, args[0], args[1])
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.image, "image", DefaultScancodeImage, "ScanCode container image")
	fl.StringVar(&f.docker, "docker", "docker", "container runtime binary (docker or podman)")
	fl.StringVar(&f.name, "name", "scancode", "report file name without extension")
	return cmd
}

func (a *app) runScancode(ctx context.Context, f scancodeFlags, input, output string) error {
	in, err := filepath.Abs(input)
	if err != nil {
		return &scanner.ConfigurationError{Field: "input", Value: input, Err: err}
	}
	if info, err := os.Stat(in); err != nil || !info.IsDir() {
		if err == nil {
			err = errors.New("not a directory")
		}
		return &scanner.ConfigurationError{Field: "input", Value: input, Err: err}
	}
	out, err := filepath.Abs(output)
	if err != nil {
		return &scanner.ConfigurationError{Field: "output", Value: output, Err: err}
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return &scanner.ConfigurationError{Field: "output", Value: output, Err: err}
	}
	checks := []struct {
		field string
		value string
		check func(string) error
	}{
		{"--name", f.name, validation.ValidateFileName},
		{"--image", f.image, validation.ValidateImageRef},
		{"--docker", f.docker, validation.ValidateExecutable},
	}
	for _, c := range checks {
		if err := c.check(c.value); err != nil {
			return &scanner.ConfigurationError{Field: c.field, Value: c.value, Err: err}
		}
	}

	args := scancodeArgs(in, out, f.image, f.name)
	if err := runExternal(ctx, a.stdout, f.docker, args...); err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.stdout, "ScanCode report written to %s\n", filepath.Join(out, f.name+".json"))
	return err
}

// scancodeArgs builds the container invocation: copyright, license,
// package, info, email and url detection with a pretty-printed JSON report.
func scancodeArgs(in, out, image, name string) []string {
	return []string{
		"run", "--rm",
		"-v", in + ":/input:ro",
		"-v", out + ":/output",
		image,
		"-clpieu",
		"--json-pp", "/output/" + name + ".json",
		"/input",
	}
}

// runExternal runs a command, streaming stdout and capturing stderr into a
// CommandError on failure.
func runExternal(ctx context.Context, stdout io.Writer, name string, args ...string) error {
	var stderr bytes.Buffer
	c := execCommand(ctx, name, args...)
	c.Stdout = stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return WrapCommandError(err, name+" "+args[0], code, stderr.String())
	}
	return nil
}
