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
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianDiscovery/services/nexus/graph"
)

func runAlgorithms(cmd *cobra.Command, args []string) {
	specs := graph.Algorithms()

	if jsonOutput {
		if err := OutputJSON(specs); err != nil {
			OutputError("Failed to encode algorithms", err)
		}
		return
	}

	heading("Registered algorithms")
	for _, spec := range specs {
		fmt.Printf("\n%s  [%s]\n", spec.Name, spec.Category)
		dim("  " + spec.Description)
		for _, p := range spec.Params {
			fmt.Printf("  --param %s=<%s>  default %v\n", p.Name, p.Type, p.Default)
			dim("      " + p.Description)
		}
	}
}

func runGraphStats(cmd *cobra.Command, args []string) {
	logger := setupLogging()
	defer logger.Close()

	g, err := loadGraph(context.Background())
	if err != nil {
		OutputError("Failed to load graph", err)
	}
	stats := g.Stats()

	if jsonOutput {
		if err := OutputJSON(stats); err != nil {
			OutputError("Failed to encode stats", err)
		}
		return
	}

	heading("Graph statistics")
	field("Nodes", stats.Nodes)
	field("Edges", stats.Edges)
	field("Citation edges", stats.CitationEdges)

	heading("\nNode types")
	for _, line := range sortedCounts(stats.NodeTypes) {
		fmt.Println("  " + line)
	}
	heading("\nEdge types")
	for _, line := range sortedCounts(stats.EdgeTypes) {
		fmt.Println("  " + line)
	}
}

func runGraphComponents(cmd *cobra.Command, args []string) {
	logger := setupLogging()
	defer logger.Close()
	ctx := context.Background()

	g, err := loadGraph(ctx)
	if err != nil {
		OutputError("Failed to load graph", err)
	}

	result, err := graph.Execute(ctx, g, graph.AlgorithmComponents, nil)
	if err != nil {
		OutputError("Component analysis failed", err)
	}

	if jsonOutput {
		if err := OutputJSON(result.Data); err != nil {
			OutputError("Failed to encode components", err)
		}
		return
	}
	printResult(result)
}

// sortedCounts renders a name->count map as "name: count" lines, largest
// count first.
func sortedCounts(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %d", name, counts[name]))
	}
	return lines
}
