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
	"sync"
	"time"

	le "github.com/AleutianAI/licenseguard/services/license_engine"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for scan operations. Both are no-ops until
// the host installs a provider.
var (
	tracer = otel.Tracer("licenseguard.scanner")
	meter  = otel.Meter("licenseguard.scanner")
)

var (
	scanLatency   metric.Float64Histogram
	filesTotal    metric.Int64Counter
	findingsTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		scanLatency, err = meter.Float64Histogram(
			"licenseguard_scan_duration_seconds",
			metric.WithDescription("Duration of a full scan"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesTotal, err = meter.Int64Counter(
			"licenseguard_files_total",
			metric.WithDescription("Files visited, by whether they were classified"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		findingsTotal, err = meter.Int64Counter(
			"licenseguard_findings_total",
			metric.WithDescription("Findings by severity"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startScanSpan(ctx context.Context, name, root string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("scan.root", root),
		),
	)
}

func setScanSpanResult(span trace.Span, agg RunAggregate) {
	span.SetAttributes(
		attribute.Int("scan.files", agg.TotalFilesScanned),
		attribute.Int("scan.files_with_findings", agg.FilesWithFindings),
		attribute.Int("scan.unreadable", agg.UnreadableFiles),
		attribute.String("scan.verdict", string(agg.Verdict())),
	)
}

func recordFileMetrics(ctx context.Context, r FileResult) {
	if err := initMetrics(); err != nil {
		return
	}
	filesTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("scanned", r.Scanned)))
	for _, f := range r.Findings {
		findingsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("severity", string(f.Severity)),
			attribute.String("category", string(f.Category)),
		))
	}
}

func recordScanMetrics(ctx context.Context, duration time.Duration, verdict Verdict) {
	if err := initMetrics(); err != nil {
		return
	}
	scanLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("verdict", string(verdict)),
	))
}

// addCriticalEvent marks a CRITICAL finding on the current span.
func addCriticalEvent(ctx context.Context, f le.Finding) {
	trace.SpanFromContext(ctx).AddEvent("critical finding", trace.WithAttributes(
		attribute.String("finding.severity", string(f.Severity)),
		attribute.String("finding.rule_id", f.RuleID),
		attribute.String("finding.path", f.Path),
	))
}
