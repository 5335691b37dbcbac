// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config layers CLI configuration: defaults, then a YAML file, then
// .env and LICENSEGUARD_* environment variables. Command-line flags are
// applied last by the caller, followed by Validate.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/licenseguard/services/scanner"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LICENSEGUARD_"

var validate = newValidator()

// newValidator reports fields by their YAML key.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoadOptions says where to look for configuration.
type LoadOptions struct {
	// Path is an explicit config file. It must exist when set.
	Path string

	// Root is the scan root; Root/.licenseguard.yaml is used when Path is
	// empty and the file exists.
	Root string

	// EnvFile is loaded with godotenv when it exists. Variables already in
	// the environment win.
	EnvFile string

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load builds a Config from defaults, file and environment. The result is
// not validated; flags still have to be applied.
func Load(opts LoadOptions) (Config, string, error) {
	cfg := Default()

	path, err := resolvePath(opts)
	if err != nil {
		return cfg, "", err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, path, &scanner.ConfigurationError{Field: "config file", Value: path, Err: err}
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return cfg, path, &scanner.ConfigurationError{Field: "config file", Value: path, Err: err}
		}
	}

	if opts.EnvFile != "" {
		if _, err := os.Stat(opts.EnvFile); err == nil {
			if err := godotenv.Load(opts.EnvFile); err != nil {
				return cfg, path, &scanner.ConfigurationError{Field: "env file", Value: opts.EnvFile, Err: err}
			}
		}
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return cfg, path, err
	}
	return cfg, path, nil
}

func resolvePath(opts LoadOptions) (string, error) {
	if opts.Path != "" {
		if _, err := os.Stat(opts.Path); err != nil {
			return "", &scanner.ConfigurationError{Field: "config file", Value: opts.Path, Err: err}
		}
		return opts.Path, nil
	}
	if opts.Root == "" {
		return "", nil
	}
	dir := opts.Root
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	candidate := filepath.Join(dir, FileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", nil
}

// decodeYAML rejects unknown keys so typos do not pass silently. An empty
// document leaves cfg unchanged.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type envBinding struct {
	name  string
	apply func(cfg *Config, v string) error
}

var envBindings = []envBinding{
	{"IGNORE", func(c *Config, v string) error {
		list, err := scanner.ParseExcludeList(v)
		c.Ignore = list
		return err
	}},
	{"WORKERS", intVar(func(c *Config) *int { return &c.Workers })},
	{"MAX_LINES", intVar(func(c *Config) *int { return &c.MaxLines })},
	{"MAX_FILE_SIZE", func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		c.MaxFileSize = n
		return err
	}},
	{"RULES", strVar(func(c *Config) *string { return &c.Rules })},
	{"VERBOSE", boolVar(func(c *Config) *bool { return &c.Verbose })},
	{"DEPS", boolVar(func(c *Config) *bool { return &c.Deps })},
	{"REFERENCE_CORPUS", strVar(func(c *Config) *string { return &c.ReferenceCorpus })},
	{"SIMILARITY_THRESHOLD", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		c.SimilarityThreshold = f
		return err
	}},
	{"SUMMARY_ONLY", boolVar(func(c *Config) *bool { return &c.SummaryOnly })},
	{"JSON", boolVar(func(c *Config) *bool { return &c.JSON })},
	{"OUTPUT", strVar(func(c *Config) *string { return &c.Output })},
	{"SARIF", strVar(func(c *Config) *string { return &c.SARIF })},
	{"METRICS_FILE", strVar(func(c *Config) *string { return &c.MetricsFile })},
	{"HISTORY_DIR", strVar(func(c *Config) *string { return &c.HistoryDir })},
	{"HISTORY_KEEP", intVar(func(c *Config) *int { return &c.HistoryKeep })},
	{"UPLOAD", strVar(func(c *Config) *string { return &c.Upload })},
	{"GCS_CREDENTIALS", strVar(func(c *Config) *string { return &c.GCSCredentials })},
	{"DEBOUNCE", func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		c.Debounce = d
		return err
	}},
	{"LOG_LEVEL", func(c *Config, v string) error {
		c.LogLevel = strings.ToLower(v)
		return nil
	}},
	{"LOG_DIR", strVar(func(c *Config) *string { return &c.LogDir })},
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	for _, b := range envBindings {
		v := strings.TrimSpace(getenv(EnvPrefix + b.name))
		if v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			return &scanner.ConfigurationError{Field: EnvPrefix + b.name, Value: v, Err: err}
		}
	}
	return nil
}

func intVar(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func boolVar(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func strVar(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

// Validate checks ranges and formats. The first violation is returned as a
// *scanner.ConfigurationError naming the YAML key.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &scanner.ConfigurationError{
			Field: fe.Field(),
			Value: fmt.Sprint(fe.Value()),
			Err:   fmt.Errorf("failed %q check", fe.Tag()),
		}
	}
	return &scanner.ConfigurationError{Field: "config", Err: err}
}
