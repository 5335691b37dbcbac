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
	"time"

	"github.com/prometheus/client_golang/prometheus"

	le "github.com/AleutianAI/licenseguard/services/license_engine"
	"github.com/AleutianAI/licenseguard/services/scanner"
)

// newRunRegistry builds a registry describing one finished run. A fresh
// registry per run keeps the textfile free of Go runtime collectors.
func newRunRegistry(agg scanner.RunAggregate, finished time.Time) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	findings := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "licenseguard",
		Name:      "findings",
		Help:      "Findings in the last run by severity.",
	}, []string{"severity"})
	files := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "licenseguard",
		Name:      "files",
		Help:      "Files in the last run by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "licenseguard",
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last run.",
	})
	exit := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "licenseguard",
		Name:      "verdict_exit_code",
		Help:      "Exit code of the last verdict: 0 clean, 1 warn, 2 block.",
	})
	last := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "licenseguard",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished.",
	})
	reg.MustRegister(findings, files, duration, exit, last)

	for _, sev := range le.Severities() {
		findings.WithLabelValues(string(sev)).Set(float64(agg.SeverityCounts[sev]))
	}
	files.WithLabelValues("scanned").Set(float64(agg.TotalFilesScanned))
	files.WithLabelValues("with_findings").Set(float64(agg.FilesWithFindings))
	files.WithLabelValues("unreadable").Set(float64(agg.UnreadableFiles))
	duration.Set(agg.Duration.Seconds())
	exit.Set(float64(agg.Verdict().ExitCode()))
	last.Set(float64(finished.Unix()))
	return reg
}

// writeMetricsFile writes the run in the node_exporter textfile format.
func writeMetricsFile(path string, agg scanner.RunAggregate) error {
	return prometheus.WriteToTextfile(path, newRunRegistry(agg, time.Now()))
}
