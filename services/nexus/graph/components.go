// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var componentTracer = otel.Tracer("nexus.graph.components")

// ComponentResult is the output of a component decomposition.
type ComponentResult struct {
	// Components lists every connected component in discovery order.
	Components []Component `json:"components"`

	// Stats aggregates the decomposition.
	Stats ComponentStats `json:"stats"`
}

// Components partitions the graph into connected components.
//
// Description:
//
//	Iterates nodes in insertion order; each unvisited node seeds a
//	breadth-first traversal over undirected adjacency that collects one
//	component. Components are numbered "component-<seq>" in discovery
//	order, so the ids are a function of node ordering, not a stable
//	identity across reordered inputs.
//
// Inputs:
//
//	ctx - Context for cancellation, checked between components.
//	g - Frozen graph. An empty graph is valid and yields an empty result.
//
// Outputs:
//
//	*ComponentResult - Components plus aggregate statistics.
//	error - ErrNilContext, ErrGraphNotFrozen, or ErrAnalysisCancelled.
//
// Complexity: O(V + E).
func Components(ctx context.Context, g *Graph) (*ComponentResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if !g.IsFrozen() {
		return nil, ErrGraphNotFrozen
	}

	ctx, span := componentTracer.Start(ctx, "graph.Components")
	defer span.End()
	span.SetAttributes(
		attribute.Int("graph.nodes", g.NodeCount()),
		attribute.Int("graph.edges", g.EdgeCount()),
	)

	result := &ComponentResult{Components: []Component{}}
	visited := make(map[string]bool, g.NodeCount())

	for _, n := range g.Nodes() {
		if visited[n.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAnalysisCancelled, err)
		}

		members := bfsCollect(g, n.ID, visited)
		comp := Component{
			ID:         fmt.Sprintf("component-%d", len(result.Components)),
			Members:    members,
			Size:       len(members),
			IsIsolated: len(members) == 1,
		}
		result.Components = append(result.Components, comp)

		result.Stats.Sizes = append(result.Stats.Sizes, comp.Size)
		if comp.IsIsolated {
			result.Stats.Isolated++
		}
	}
	result.Stats.Total = len(result.Components)

	span.SetAttributes(
		attribute.Int("components.total", result.Stats.Total),
		attribute.Int("components.isolated", result.Stats.Isolated),
	)
	slog.Debug("Component decomposition complete",
		"nodes", g.NodeCount(),
		"components", result.Stats.Total,
		"isolated", result.Stats.Isolated)

	return result, nil
}

// bfsCollect runs a breadth-first traversal from start over undirected
// adjacency, marking and returning every reachable node in visit order.
func bfsCollect(g *Graph, start string, visited map[string]bool) []string {
	members := []string{start}
	visited[start] = true

	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, neighbor := range g.Neighbors(current) {
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			members = append(members, neighbor)
			queue = append(queue, neighbor)
		}
	}
	return members
}

// ComponentContaining returns the id of the component holding the node.
func ComponentContaining(components []Component, nodeID string) (string, bool) {
	for _, c := range components {
		for _, m := range c.Members {
			if m == nodeID {
				return c.ID, true
			}
		}
	}
	return "", false
}

// SameComponent reports whether two nodes resolve to the same component id.
// Unknown nodes are never in the same component as anything.
func SameComponent(components []Component, a, b string) bool {
	ca, okA := ComponentContaining(components, a)
	cb, okB := ComponentContaining(components, b)
	return okA && okB && ca == cb
}
