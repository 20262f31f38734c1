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
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianDiscovery/services/nexus/graph"
)

func runAnalyze(cmd *cobra.Command, args []string) {
	logger := setupLogging()
	defer logger.Close()
	ctx := context.Background()

	algorithm := ""
	if len(args) > 0 {
		algorithm = args[0]
	}

	params, err := parseParams(analyzeArgs)
	if err != nil {
		OutputError("Invalid parameters", err)
	}

	if interactive {
		algorithm, params, err = promptAnalysis()
		if err != nil {
			OutputError("Form aborted", err)
		}
	}
	if algorithm == "" {
		OutputError("No algorithm", fmt.Errorf("pass an algorithm name or use --interactive"))
	}

	g, err := loadGraph(ctx)
	if err != nil {
		OutputError("Failed to load graph", err)
	}

	result, err := graph.Execute(ctx, g, algorithm, params)
	if err != nil {
		OutputError("Analysis failed", err)
	}

	if jsonOutput {
		if err := OutputJSON(result); err != nil {
			OutputError("Failed to encode result", err)
		}
	} else {
		printResult(result)
	}

	if narrate {
		n, err := buildNarrator()
		if err != nil {
			OutputError("Narrator setup failed", err)
		}
		if n == nil {
			OutputError("Narration unavailable",
				fmt.Errorf("set narrator.backend to openai or ollama in config"))
		}
		text, err := n.Narrate(ctx, result)
		if err != nil {
			OutputError("Narration failed", err)
		}
		fmt.Println()
		heading("Narration")
		fmt.Println(text)
	}
}

// promptAnalysis collects the algorithm and its parameters through forms.
// Parameter inputs left empty keep their defaults.
func promptAnalysis() (string, map[string]any, error) {
	specs := graph.Algorithms()
	options := make([]huh.Option[string], 0, len(specs))
	for _, spec := range specs {
		options = append(options,
			huh.NewOption(fmt.Sprintf("%s — %s", spec.Name, spec.Description), spec.Name))
	}

	var algorithm string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Algorithm").
			Options(options...).
			Value(&algorithm),
	))
	if err := form.Run(); err != nil {
		return "", nil, err
	}

	spec, err := graph.LookupAlgorithm(algorithm)
	if err != nil {
		return "", nil, err
	}
	if len(spec.Params) == 0 {
		return algorithm, nil, nil
	}

	values := make([]string, len(spec.Params))
	fields := make([]huh.Field, 0, len(spec.Params))
	for i, p := range spec.Params {
		fields = append(fields,
			huh.NewInput().
				Title(p.Name).
				Description(fmt.Sprintf("%s (default %v)", p.Description, p.Default)).
				Value(&values[i]))
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return "", nil, err
	}

	params := make(map[string]any)
	for i, p := range spec.Params {
		if v := strings.TrimSpace(values[i]); v != "" {
			params[p.Name] = coerceParam(v)
		}
	}
	if len(params) == 0 {
		params = nil
	}
	return algorithm, params, nil
}

// printResult renders an AlgorithmResult for humans.
func printResult(result *graph.AlgorithmResult) {
	heading(fmt.Sprintf("Analysis: %s", result.AlgorithmName))
	field("Graph size", result.Metadata.GraphSize)
	field("Execution ms", fmt.Sprintf("%.1f", result.Metadata.ExecutionTimeMs))
	fmt.Println()

	switch data := result.Data.(type) {
	case []graph.Component:
		field("Components", len(data))
		for _, c := range data {
			suffix := ""
			if c.IsIsolated {
				suffix = " (isolated)"
			}
			fmt.Printf("  %s: %d members%s\n", c.ID, c.Size, suffix)
			dim("    " + previewMembers(c.Members, 8))
		}
	case []graph.NodeCentrality:
		field("Ranked nodes", len(data))
		for i, nc := range data {
			if i >= 20 {
				dim(fmt.Sprintf("  ... and %d more", len(data)-i))
				break
			}
			fmt.Printf("  %-30s %.4f  %s\n", nc.NodeID, nc.Score, nc.ComponentID)
		}
	case []graph.ConceptGap:
		field("Gaps", len(data))
		for _, gap := range data {
			fmt.Printf("  %s <-> %s  confidence %.2f  %s\n",
				gap.Source, gap.Target, gap.Confidence, gap.Type)
			if len(gap.Bridges) > 0 {
				dim(fmt.Sprintf("    bridge: %s (%.2f)", gap.Bridges[0].NodeID, gap.Bridges[0].Score))
			}
		}
	case []graph.ConceptCluster:
		field("Clusters", len(data))
		for _, cluster := range data {
			fmt.Printf("  %s: %d members, cohesion %.2f, %s\n",
				cluster.ID, len(cluster.Members), cluster.Cohesion, cluster.Type)
			dim("    " + cluster.Description)
		}
	default:
		// Unknown payload; fall back to JSON.
		if err := OutputJSON(result.Data); err != nil {
			OutputError("Failed to encode result", err)
		}
	}
}

func previewMembers(members []string, limit int) string {
	if len(members) <= limit {
		return strings.Join(members, ", ")
	}
	return fmt.Sprintf("%s, ... (+%d)", strings.Join(members[:limit], ", "), len(members)-limit)
}
