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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/licenseguard/services/generator"
	"github.com/AleutianAI/licenseguard/services/scanner"
)

// newCompleter is replaced in tests.
var newCompleter = func(cfg generator.ClientConfig) (generator.Completer, error) {
	return generator.NewOpenAIClient(cfg)
}

type generateFlags struct {
	spec        string
	out         string
	baseURL     string
	model       string
	interval    time.Duration
	temperature float32
}

func newGenerateCmd(a *app) *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate sample code with an LLM for scanner evaluation",
		Long: `Reads a prompt spec and asks an OpenAI-compatible chat endpoint for code in
each listed language. Responses are written verbatim to
<out>/<language>/<uuid>.<ext> so they can be scanned afterwards.

The API key comes from OPENAI_API_KEY or /run/secrets/openai_api_key. With
--base-url pointing at a local server (for example Ollama) no key is needed.`,
		Example: "  licenseguard generate --spec prompts/prompt_spec.yaml --base-url http://localhost:11434/v1 --model llama3",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.spec, "spec", "prompts/prompt_spec.yaml", "prompt spec YAML")
	fl.StringVar(&f.out, "out", "generated", "output directory")
	fl.StringVar(&f.baseURL, "base-url", "", "OpenAI-compatible base URL (env OPENAI_BASE_URL)")
	fl.StringVar(&f.model, "model", "", "model for prompts that do not name one (default "+generator.DefaultModel+")")
	fl.DurationVar(&f.interval, "interval", generator.DefaultInterval, "minimum spacing between requests (negative disables)")
	fl.Float32Var(&f.temperature, "temperature", 0.2, "sampling temperature")
	return cmd
}

func (a *app) runGenerate(cmd *cobra.Command, f generateFlags) error {
	spec, err := generator.LoadPromptSpec(f.spec)
	if err != nil {
		return &scanner.ConfigurationError{Field: "spec", Value: f.spec, Err: err}
	}

	s, err := a.loadSession(cmd, ".")
	if err != nil {
		return err
	}
	defer s.close()

	baseURL := f.baseURL
	if baseURL == "" {
		baseURL = a.getenv("OPENAI_BASE_URL")
	}
	completer, err := newCompleter(generator.ClientConfig{
		BaseURL:     baseURL,
		Model:       f.model,
		Temperature: f.temperature,
	})
	if err != nil {
		return &scanner.ConfigurationError{Field: "llm client", Err: err}
	}

	gen, err := generator.New(completer, generator.Options{
		OutDir:   f.out,
		Interval: f.interval,
		Logger:   s.logger,
	})
	if err != nil {
		return err
	}
	res, err := gen.Run(cmd.Context(), spec)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	_, err = fmt.Fprintf(a.stdout, "Generated %d files in %s (%d failed)\n", len(res.Written), f.out, res.Failed)
	return err
}
