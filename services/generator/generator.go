// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package generator produces sample sources from a language model so the
// scanner has generated code to evaluate. Responses are written verbatim,
// fences and all.
package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/licenseguard/pkg/logging"
)

// DefaultInterval is the minimum spacing between model calls.
const DefaultInterval = time.Second

// Options configures a Generator.
type Options struct {
	// OutDir receives <language>/<uuid>.<ext> files.
	OutDir string

	// Interval spaces out model calls. Zero means DefaultInterval; a
	// negative value disables limiting.
	Interval time.Duration

	Logger *logging.Logger
}

// Result summarizes a batch.
type Result struct {
	Written []string
	Failed  int
}

// Generator runs prompt specs against a Completer.
type Generator struct {
	completer Completer
	limiter   *rate.Limiter
	outDir    string
	logger    *logging.Logger
}

// New builds a Generator.
func New(completer Completer, opts Options) (*Generator, error) {
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	if opts.OutDir == "" {
		opts.OutDir = "generated"
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	limit := rate.Inf
	switch {
	case opts.Interval == 0:
		limit = rate.Every(DefaultInterval)
	case opts.Interval > 0:
		limit = rate.Every(opts.Interval)
	}
	return &Generator{
		completer: completer,
		limiter:   rate.NewLimiter(limit, 1),
		outDir:    opts.OutDir,
		logger:    opts.Logger,
	}, nil
}

// Run generates spec.Repeat files per language. A failed or empty
// completion is logged and counted, and the batch continues. Run returns
// early only when ctx ends or a file cannot be written.
func (g *Generator) Run(ctx context.Context, spec PromptSpec) (Result, error) {
	var res Result
	for _, lang := range spec.Languages {
		ext, ok := Extensions[lang]
		if !ok {
			return res, fmt.Errorf("unsupported language %q", lang)
		}
		dir := filepath.Join(g.outDir, lang)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return res, fmt.Errorf("create %s: %w", dir, err)
		}

		prompt := spec.Prompt(lang)
		for i := 0; i < spec.Repeat; i++ {
			if err := g.limiter.Wait(ctx); err != nil {
				return res, err
			}
			model := spec.ModelFor(i)
			code, err := g.completer.Complete(ctx, model, prompt)
			if err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				g.logger.Warn("generation failed", "language", lang, "index", i+1, "model", model, "error", err)
				res.Failed++
				continue
			}
			if strings.TrimSpace(code) == "" {
				g.logger.Warn("empty generation", "language", lang, "index", i+1, "model", model)
				res.Failed++
				continue
			}

			path := filepath.Join(dir, uuid.NewString()+"."+ext)
			if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
				return res, fmt.Errorf("write %s: %w", path, err)
			}
			res.Written = append(res.Written, path)
			g.logger.Info("generated file", "language", lang, "index", i+1, "model", model, "path", path)
		}
	}
	return res, nil
}
