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
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/licenseguard/cmd/licenseguard/config"
	"github.com/AleutianAI/licenseguard/pkg/logging"
	"github.com/AleutianAI/licenseguard/services/dependency"
	le "github.com/AleutianAI/licenseguard/services/license_engine"
	"github.com/AleutianAI/licenseguard/services/scanner"
	"github.com/AleutianAI/licenseguard/services/similarity"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

// envFile is loaded from the working directory when present.
const envFile = ".env"

// app holds the process streams and the parsed global flags. Every command
// tree gets its own app so tests can run commands in isolation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	flags globalFlags
}

type globalFlags struct {
	configPath          string
	ignore              string
	summaryOnly         bool
	verbose             bool
	json                bool
	output              string
	sarif               string
	rules               string
	workers             int
	maxLines            int
	deps                bool
	referenceCorpus     string
	similarityThreshold float64
	historyDir          string
	metricsFile         string
	upload              string
	debug               bool
	logDir              string
}

func newApp(stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) *app {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &app{stdin: stdin, stdout: stdout, stderr: stderr, getenv: getenv}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "licenseguard [path]",
		Short: "Scan source trees for license contamination and provenance risk",
		Long: `licenseguard walks a directory (or a single file), matches every line
against a catalog of license, copyright, attribution and code-generation
patterns, and reports a verdict:

  0  CLEAN  no findings
  1  WARN   findings, none critical
  2  BLOCK  at least one critical finding

Configuration errors exit 3; rule compilation and internal errors exit 4.`,
		Version:       version,
		Args:          usageArgs(cobra.MaximumNArgs(1)),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          a.runScan,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &scanner.ConfigurationError{Field: "flags", Err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", "", "config file (default <path>/"+config.FileName+")")
	pf.StringVar(&a.flags.ignore, "ignore", "", "comma-separated directory names to skip, added to the defaults")
	pf.BoolVar(&a.flags.summaryOnly, "summary-only", false, "print only the summary block")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "show the full matched line instead of the matched text")
	pf.BoolVar(&a.flags.json, "json", false, "write the report to stdout as JSON")
	pf.StringVarP(&a.flags.output, "output", "o", "", "write findings to a CSV file")
	pf.StringVar(&a.flags.sarif, "sarif", "", "write findings to a SARIF 2.1.0 file")
	pf.StringVar(&a.flags.rules, "rules", "", "YAML file of rule overrides")
	pf.IntVar(&a.flags.workers, "workers", 0, "concurrent file workers (default: number of CPUs)")
	pf.IntVar(&a.flags.maxLines, "max-lines", le.DefaultMaxLines, "flag files longer than this many lines (0 disables)")
	pf.BoolVar(&a.flags.deps, "deps", false, "flag imports and manifest entries with problematic licenses")
	pf.StringVar(&a.flags.referenceCorpus, "reference-corpus", "", "directory of reference sources for similarity matching")
	pf.Float64Var(&a.flags.similarityThreshold, "similarity-threshold", similarity.DefaultThreshold, "similarity score that counts as a match")
	pf.StringVar(&a.flags.historyDir, "history-dir", "", "record run summaries in this directory")
	pf.StringVar(&a.flags.metricsFile, "metrics-file", "", "write Prometheus textfile metrics")
	pf.StringVar(&a.flags.upload, "upload", "", "upload reports to gs://bucket/prefix or s3://bucket/prefix")
	pf.BoolVar(&a.flags.debug, "debug", false, "debug logging")
	pf.StringVar(&a.flags.logDir, "log-dir", "", "also write JSON logs to this directory")

	root.AddCommand(
		newDiffCmd(a),
		newWatchCmd(a),
		newHistoryCmd(a),
		newGenerateCmd(a),
		newScancodeCmd(a),
	)
	return root
}

// usageArgs reports argument errors as configuration errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &scanner.ConfigurationError{Field: "arguments", Err: err}
		}
		return nil
	}
}

// applyFlags copies explicitly set flags over cfg.
func (a *app) applyFlags(changed func(string) bool, cfg *config.Config) error {
	f := a.flags
	if changed("ignore") {
		list, err := scanner.ParseExcludeList(f.ignore)
		if err != nil {
			return &scanner.ConfigurationError{Field: "--ignore", Value: f.ignore, Err: err}
		}
		cfg.Ignore = list
	}
	strs := []struct {
		name string
		src  string
		dst  *string
	}{
		{"output", f.output, &cfg.Output},
		{"sarif", f.sarif, &cfg.SARIF},
		{"rules", f.rules, &cfg.Rules},
		{"reference-corpus", f.referenceCorpus, &cfg.ReferenceCorpus},
		{"history-dir", f.historyDir, &cfg.HistoryDir},
		{"metrics-file", f.metricsFile, &cfg.MetricsFile},
		{"upload", f.upload, &cfg.Upload},
		{"log-dir", f.logDir, &cfg.LogDir},
	}
	for _, s := range strs {
		if changed(s.name) {
			*s.dst = s.src
		}
	}
	bools := []struct {
		name string
		src  bool
		dst  *bool
	}{
		{"summary-only", f.summaryOnly, &cfg.SummaryOnly},
		{"verbose", f.verbose, &cfg.Verbose},
		{"json", f.json, &cfg.JSON},
		{"deps", f.deps, &cfg.Deps},
	}
	for _, b := range bools {
		if changed(b.name) {
			*b.dst = b.src
		}
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("max-lines") {
		cfg.MaxLines = f.maxLines
	}
	if changed("similarity-threshold") {
		cfg.SimilarityThreshold = f.similarityThreshold
	}
	if changed("debug") && f.debug {
		cfg.LogLevel = "debug"
	}
	return nil
}

// session is the resolved configuration and logger for one command.
type session struct {
	cfg        config.Config
	configPath string
	logger     *logging.Logger
}

func (s *session) close() {
	_ = s.logger.Close()
}

// loadSession layers defaults, config file, environment and flags, then
// validates the result.
func (a *app) loadSession(cmd *cobra.Command, root string) (*session, error) {
	cfg, path, err := config.Load(config.LoadOptions{
		Path:    a.flags.configPath,
		Root:    root,
		EnvFile: envFile,
		Getenv:  a.getenv,
	})
	if err != nil {
		return nil, err
	}
	if err := a.applyFlags(cmd.Flags().Changed, &cfg); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, &scanner.ConfigurationError{Field: "log_level", Value: cfg.LogLevel, Err: err}
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.LogDir,
		Service: "licenseguard",
		Output:  a.stderr,
	})
	if path != "" {
		logger.Debug("config loaded", "path", path)
	}
	return &session{cfg: cfg, configPath: path, logger: logger}, nil
}

// excludes returns the default exclusions plus the configured ones.
func (s *session) excludes() []string {
	return scanner.MergeExcludes(scanner.DefaultExcludes, s.cfg.Ignore)
}

// buildClassifier loads the catalog with any overrides and wires the
// configured file checks.
func (s *session) buildClassifier(ctx context.Context, withFileChecks bool) (*le.Classifier, error) {
	catalog, err := le.LoadDefaultCatalog()
	if err != nil {
		return nil, err
	}
	if s.cfg.Rules != "" {
		data, err := os.ReadFile(s.cfg.Rules)
		if err != nil {
			return nil, &scanner.ConfigurationError{Field: "rules", Value: s.cfg.Rules, Err: err}
		}
		if catalog, err = catalog.WithOverrides(s.cfg.Rules, data); err != nil {
			return nil, err
		}
		s.logger.Debug("rule overrides applied", "path", s.cfg.Rules, "rules", catalog.Len())
	}

	opts := []le.ClassifierOption{le.WithVerbose(s.cfg.Verbose)}
	if !withFileChecks {
		return le.NewClassifier(catalog, opts...), nil
	}

	checks := []le.FileCheck{le.NewLargeFileCheck(s.cfg.MaxLines)}
	if s.cfg.Deps {
		checks = append(checks, dependency.NewCheck(nil))
	}
	if s.cfg.ReferenceCorpus != "" {
		corpus, warnings, err := similarity.LoadCorpus(ctx, s.cfg.ReferenceCorpus, scanner.DefaultExcludes, similarity.DefaultShingleSize)
		if err != nil {
			return nil, &scanner.ConfigurationError{Field: "reference_corpus", Value: s.cfg.ReferenceCorpus, Err: err}
		}
		for _, w := range warnings {
			s.logger.Warn("reference corpus", "warning", w)
		}
		scorer, err := similarity.NewJaccardScorer(corpus, s.cfg.SimilarityThreshold)
		if err != nil {
			return nil, &scanner.ConfigurationError{Field: "similarity_threshold", Err: err}
		}
		s.logger.Debug("reference corpus loaded", "files", corpus.Len())
		checks = append(checks, similarity.NewCheck(scorer))
	}
	opts = append(opts, le.WithFileChecks(checks...))
	return le.NewClassifier(catalog, opts...), nil
}

// newScanner builds a scanner for root from the session configuration.
func (s *session) newScanner(classifier *le.Classifier, root string, cache scanner.ResultCache) (*scanner.Scanner, error) {
	return scanner.New(classifier, scanner.Options{
		Root:        root,
		Excludes:    s.excludes(),
		Workers:     s.cfg.Workers,
		MaxFileSize: s.cfg.MaxFileSize,
		Cache:       cache,
		Logger:      s.logger,
	})
}

func (a *app) runScan(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	s, err := a.loadSession(cmd, root)
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	classifier, err := s.buildClassifier(ctx, true)
	if err != nil {
		return err
	}
	sc, err := s.newScanner(classifier, root, nil)
	if err != nil {
		return err
	}
	agg, err := sc.Scan(ctx)
	if err != nil {
		return err
	}
	return a.emit(ctx, s, agg)
}
