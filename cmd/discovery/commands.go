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
	"log"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianDiscovery/services/nexus/config"
)

// --- Global Command Variables ---
var (
	configPath  string
	graphPath   string
	jsonOutput  bool
	narrate     bool
	interactive bool
	analyzeArgs []string
	limitFlag   int
	trendDays   int

	backupBucket  string
	backupProject string
	backupKeyPath string

	rootCmd = &cobra.Command{
		Use:   "discovery",
		Short: "Analyze conceptual nexus model graphs for structure, gaps, and clusters",
		Long: `Discovery runs graph analyses (connected components, betweenness
centrality, concept-gap detection, concept clustering) over CNM graph
documents, either as a long-running HTTP service or one-shot from the
command line.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loaded, err := config.Load(configPath)
			if err != nil {
				log.Fatalf("Error loading configuration: %v", err)
			}
			cfg = loaded
		},
	}

	// --- Service ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the Discovery HTTP API server",
		Run:   runServe, // Defined in cmd_serve.go
	}

	// --- Analysis ---
	analyzeCmd = &cobra.Command{
		Use:   "analyze [algorithm]",
		Short: "Run one analysis against a graph document",
		Long: `Runs a registered algorithm against a graph document and prints the
result. Parameters are passed as repeated --param key=value flags;
omitted parameters take their defaults. With --interactive the
algorithm and parameters are chosen through a form instead.`,
		Run: runAnalyze, // Defined in cmd_analyze.go
	}

	algorithmsCmd = &cobra.Command{
		Use:   "algorithms",
		Short: "List registered analysis algorithms and their parameters",
		Run:   runAlgorithms, // Defined in cmd_graph.go
	}

	// --- Graph Inspection ---
	graphCmd = &cobra.Command{
		Use:   "graph",
		Short: "Inspect a graph document without running a full analysis",
	}
	graphStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print node/edge counts and type distributions",
		Run:   runGraphStats, // Defined in cmd_graph.go
	}
	graphComponentsCmd = &cobra.Command{
		Use:   "components",
		Short: "Print the connected components of the graph",
		Run:   runGraphComponents, // Defined in cmd_graph.go
	}

	// --- Run History ---
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Inspect the stored analysis run history",
	}
	historyListCmd = &cobra.Command{
		Use:   "list",
		Short: "List recent analysis runs, newest first",
		Run:   runHistoryList, // Defined in cmd_history.go
	}
	historyShowCmd = &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show one stored run including its full result payload",
		Run:   runHistoryShow, // Defined in cmd_history.go
	}
	historyTrendsCmd = &cobra.Command{
		Use:   "trends",
		Short: "Summarize analysis trends from InfluxDB",
		Run:   runHistoryTrends, // Defined in cmd_history.go
	}

	// --- Backup ---
	backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Upload the run-history store to Google Cloud Storage",
		Run:   runBackup, // Defined in cmd_backup.go
	}

	// --- Explore ---
	exploreCmd = &cobra.Command{
		Use:   "explore",
		Short: "Interactively browse analyses over a graph document",
		Run:   runExplore, // Defined in cmd_explore.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML config file (defaults are embedded)")

	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&graphPath, "graph", "g", "", "Graph document to analyze")
	analyzeCmd.Flags().StringArrayVar(&analyzeArgs, "param", nil,
		"Algorithm parameter as key=value (repeatable)")
	analyzeCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the raw result as JSON")
	analyzeCmd.Flags().BoolVar(&narrate, "narrate", false,
		"Generate a prose summary of the result (needs a narrator backend)")
	analyzeCmd.Flags().BoolVarP(&interactive, "interactive", "i", false,
		"Choose the algorithm and parameters through a form")

	rootCmd.AddCommand(algorithmsCmd)
	algorithmsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	rootCmd.AddCommand(graphCmd)
	graphCmd.PersistentFlags().StringVarP(&graphPath, "graph", "g", "", "Graph document to inspect")
	graphCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	graphCmd.AddCommand(graphStatsCmd)
	graphCmd.AddCommand(graphComponentsCmd)

	rootCmd.AddCommand(historyCmd)
	historyCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	historyCmd.AddCommand(historyListCmd)
	historyListCmd.Flags().IntVar(&limitFlag, "limit", 20, "Maximum runs to list")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyTrendsCmd)
	historyTrendsCmd.Flags().IntVar(&trendDays, "days", 7, "Trend window in days")

	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().StringVar(&backupBucket, "bucket", "", "GCS bucket name (required)")
	backupCmd.Flags().StringVar(&backupProject, "project", "", "GCP project id (required)")
	backupCmd.Flags().StringVar(&backupKeyPath, "sa-key", "",
		"Path to a service account key JSON file (required)")

	rootCmd.AddCommand(exploreCmd)
	exploreCmd.Flags().StringVarP(&graphPath, "graph", "g", "", "Graph document to explore")
}
