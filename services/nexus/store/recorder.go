// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Recorder ships run measurements to InfluxDB for trend dashboards.
// Badger holds the full result payloads; Influx only gets the numbers
// worth graphing over time.
//
// A nil *Recorder is valid and drops every write, so callers never need
// an enabled check.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewRecorder connects to InfluxDB and verifies it is healthy.
//
// Inputs:
//
//	ctx - Used for the health probe.
//	url, token, org, bucket - InfluxDB connection parameters.
//
// Outputs:
//
//	*Recorder - Ready to record runs.
//	error - ErrNilContext or a connection/health failure.
func NewRecorder(ctx context.Context, url, token, org, bucket string) (*Recorder, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	client := influxdb2.NewClient(url, token)
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb health check: %w", err)
	}
	if health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("influxdb unhealthy: %s", health.Status)
	}

	return &Recorder{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}, nil
}

// Record writes one run measurement. Failures are logged, not returned:
// trend data is best-effort and must never fail an analysis request.
func (r *Recorder) Record(ctx context.Context, run Run) {
	if r == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ts := run.RequestedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	point := influxdb2.NewPoint(
		"nexus_analysis_runs",
		map[string]string{
			"algorithm": run.Algorithm,
		},
		map[string]interface{}{
			"duration_ms":  run.DurationMs,
			"graph_nodes":  run.GraphNodes,
			"graph_edges":  run.GraphEdges,
			"result_count": run.ResultCount,
		},
		ts,
	)

	if err := r.writeAPI.WritePoint(ctx, point); err != nil {
		slog.Warn("Failed to record run in InfluxDB",
			"run_id", run.ID,
			"algorithm", run.Algorithm,
			"error", err)
	}
}

// Close releases the InfluxDB client. Safe on nil.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.client.Close()
}
