// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"time"

	le "github.com/AleutianAI/licenseguard/services/license_engine"
	"github.com/AleutianAI/licenseguard/services/scanner"
	"github.com/AleutianAI/licenseguard/services/similarity"
)

// FileName is the per-repository config file looked up in the scan root.
const FileName = ".licenseguard.yaml"

// Config is the merged CLI configuration.
type Config struct {
	// Scan
	Ignore      []string `yaml:"ignore" validate:"dive,required,excludesall=/\\,ne=.,ne=.."`
	Workers     int      `yaml:"workers" validate:"gte=0"`
	MaxLines    int      `yaml:"max_lines" validate:"gte=0"`
	MaxFileSize int64    `yaml:"max_file_size" validate:"gte=0"`
	Rules       string   `yaml:"rules"`
	Verbose     bool     `yaml:"verbose"`

	// Optional checks
	Deps                bool    `yaml:"deps"`
	ReferenceCorpus     string  `yaml:"reference_corpus"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" validate:"gte=0,lte=1"`

	// Output
	SummaryOnly bool   `yaml:"summary_only"`
	JSON        bool   `yaml:"json"`
	Output      string `yaml:"output"`
	SARIF       string `yaml:"sarif"`
	MetricsFile string `yaml:"metrics_file"`

	// Collaborators
	HistoryDir     string        `yaml:"history_dir"`
	HistoryKeep    int           `yaml:"history_keep" validate:"gte=0"`
	Upload         string        `yaml:"upload" validate:"omitempty,startswith=gs://|startswith=s3://"`
	GCSCredentials string        `yaml:"gcs_credentials"`
	Debounce       time.Duration `yaml:"debounce" validate:"gte=0"`

	// Logging
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogDir   string `yaml:"log_dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxLines:            le.DefaultMaxLines,
		MaxFileSize:         scanner.DefaultMaxFileSize,
		SimilarityThreshold: similarity.DefaultThreshold,
		HistoryKeep:         500,
		LogLevel:            "warn",
	}
}
