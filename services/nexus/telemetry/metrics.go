// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined instruments for the nexus service: HTTP
// traffic, graph loads, analysis runs, and narration calls. All metrics use
// the "nexus_" prefix.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- HTTP Metrics ---

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// HTTPActiveRequests tracks currently active HTTP requests.
	HTTPActiveRequests metric.Int64UpDownCounter

	// --- Graph Metrics ---

	// GraphLoadsTotal counts graph document loads by status.
	GraphLoadsTotal metric.Int64Counter

	// GraphNodes records the node count of the most recent load.
	GraphNodes metric.Int64Gauge

	// --- Analysis Metrics ---

	// AnalysisRunsTotal counts analysis executions by algorithm and status.
	AnalysisRunsTotal metric.Int64Counter

	// AnalysisDuration records analysis duration in seconds by algorithm.
	AnalysisDuration metric.Float64Histogram

	// --- Narration Metrics ---

	// NarrationsTotal counts narrator calls by backend and status.
	NarrationsTotal metric.Int64Counter

	// --- Error Metrics ---

	// ErrorsTotal counts errors by component.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics registers all nexus instruments with the provided meter.
//
// Outputs:
//
//	*Metrics - Instruments ready for use.
//	error - Non-nil if any registration fails.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"nexus_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"nexus_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"nexus_http_active_requests",
		metric.WithDescription("Currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	m.GraphLoadsTotal, err = meter.Int64Counter(
		"nexus_graph_loads_total",
		metric.WithDescription("Total graph document loads"),
		metric.WithUnit("{load}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create graph_loads_total: %w", err)
	}

	m.GraphNodes, err = meter.Int64Gauge(
		"nexus_graph_nodes",
		metric.WithDescription("Node count of the current graph"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create graph_nodes: %w", err)
	}

	m.AnalysisRunsTotal, err = meter.Int64Counter(
		"nexus_analysis_runs_total",
		metric.WithDescription("Total analysis executions"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create analysis_runs_total: %w", err)
	}

	m.AnalysisDuration, err = meter.Float64Histogram(
		"nexus_analysis_duration_seconds",
		metric.WithDescription("Analysis duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("create analysis_duration: %w", err)
	}

	m.NarrationsTotal, err = meter.Int64Counter(
		"nexus_narrations_total",
		metric.WithDescription("Total narrator calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create narrations_total: %w", err)
	}

	m.ErrorsTotal, err = meter.Int64Counter(
		"nexus_errors_total",
		metric.WithDescription("Total errors by component"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}
