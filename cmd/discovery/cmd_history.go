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
	"encoding/json"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/spf13/cobra"
)

func runHistoryList(cmd *cobra.Command, args []string) {
	logger := setupLogging()
	defer logger.Close()

	st, err := openRunStore()
	if err != nil {
		OutputError("Failed to open run store", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(context.Background(), limitFlag)
	if err != nil {
		OutputError("Failed to list runs", err)
	}

	if jsonOutput {
		if err := OutputJSON(runs); err != nil {
			OutputError("Failed to encode runs", err)
		}
		return
	}

	if len(runs) == 0 {
		dim("No stored runs.")
		return
	}
	heading(fmt.Sprintf("Analysis runs (%d)", len(runs)))
	for _, run := range runs {
		fmt.Printf("  %s  %-22s  %s  %d findings  %.0fms\n",
			run.RequestedAt.Format(time.RFC3339),
			run.Algorithm,
			run.ID,
			run.ResultCount,
			run.DurationMs)
	}
}

func runHistoryShow(cmd *cobra.Command, args []string) {
	logger := setupLogging()
	defer logger.Close()

	if len(args) != 1 {
		OutputError("Missing run id", fmt.Errorf("usage: discovery history show <run-id>"))
	}

	st, err := openRunStore()
	if err != nil {
		OutputError("Failed to open run store", err)
	}
	defer st.Close()

	run, err := st.GetRun(context.Background(), args[0])
	if err != nil {
		OutputError("Failed to fetch run", err)
	}

	if jsonOutput {
		if err := OutputJSON(run); err != nil {
			OutputError("Failed to encode run", err)
		}
		return
	}

	heading("Run " + run.ID)
	field("Algorithm", run.Algorithm)
	field("Requested", run.RequestedAt.Format(time.RFC3339))
	field("Duration ms", fmt.Sprintf("%.1f", run.DurationMs))
	field("Graph", fmt.Sprintf("%d nodes / %d edges", run.GraphNodes, run.GraphEdges))
	field("Findings", run.ResultCount)
	if len(run.Parameters) > 0 {
		heading("\nParameters")
		if err := OutputJSON(run.Parameters); err != nil {
			OutputError("Failed to encode parameters", err)
		}
	}
	if len(run.Result) > 0 {
		heading("\nResult")
		var payload any
		if err := json.Unmarshal(run.Result, &payload); err != nil {
			OutputError("Stored result is unreadable", err)
		}
		if err := OutputJSON(payload); err != nil {
			OutputError("Failed to encode result", err)
		}
	}
}

// runHistoryTrends aggregates run measurements recorded in InfluxDB: run
// counts and mean durations per algorithm over the trend window.
func runHistoryTrends(cmd *cobra.Command, args []string) {
	logger := setupLogging()
	defer logger.Close()

	if !cfg.Influx.Enabled {
		OutputError("InfluxDB disabled", fmt.Errorf("set influx.enabled in config"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
	defer client.Close()

	flux := fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dd)
  |> filter(fn: (r) => r._measurement == "nexus_analysis_runs" and r._field == "duration_ms")
  |> group(columns: ["algorithm"])
  |> reduce(
      identity: {count: 0, total: 0.0},
      fn: (r, accumulator) => ({
        count: accumulator.count + 1,
        total: accumulator.total + r._value,
      }),
  )`, cfg.Influx.Bucket, trendDays)

	result, err := client.QueryAPI(cfg.Influx.Org).Query(ctx, flux)
	if err != nil {
		OutputError("Trend query failed", err)
	}

	type trend struct {
		Algorithm      string  `json:"algorithm"`
		Runs           int64   `json:"runs"`
		MeanDurationMs float64 `json:"meanDurationMs"`
	}
	var trends []trend
	for result.Next() {
		record := result.Record()
		count, _ := record.ValueByKey("count").(int64)
		total, _ := record.ValueByKey("total").(float64)
		t := trend{
			Algorithm: fmt.Sprintf("%v", record.ValueByKey("algorithm")),
			Runs:      count,
		}
		if count > 0 {
			t.MeanDurationMs = total / float64(count)
		}
		trends = append(trends, t)
	}
	if result.Err() != nil {
		OutputError("Trend query failed", result.Err())
	}

	if jsonOutput {
		if err := OutputJSON(trends); err != nil {
			OutputError("Failed to encode trends", err)
		}
		return
	}

	if len(trends) == 0 {
		dim(fmt.Sprintf("No runs recorded in the last %d days.", trendDays))
		return
	}
	heading(fmt.Sprintf("Analysis trends, last %d days", trendDays))
	for _, t := range trends {
		fmt.Printf("  %-22s %5d runs  mean %.0fms\n", t.Algorithm, t.Runs, t.MeanDurationMs)
	}
}
