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
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var centralityTracer = otel.Tracer("nexus.graph.centrality")

// CentralityOptions configures betweenness centrality.
type CentralityOptions struct {
	// Normalize divides every node's score by the maximum score within its
	// own component, so the top node(s) of any component that has interior
	// shortest-path nodes score exactly 1.0. Components without interior
	// nodes (for example a two-node component) keep their zero scores.
	Normalize bool `json:"normalize"`

	// Directed is accepted and recorded in result parameters, but the
	// traversal always treats edges as undirected. Directed betweenness is
	// not implemented.
	Directed bool `json:"directed"`
}

// DefaultCentralityOptions returns the default configuration.
func DefaultCentralityOptions() CentralityOptions {
	return CentralityOptions{Normalize: true, Directed: false}
}

// NodeCentrality is one node's betweenness score, tagged with the component
// the node belongs to.
type NodeCentrality struct {
	NodeID      string  `json:"nodeId"`
	Score       float64 `json:"betweenness"`
	ComponentID string  `json:"componentId"`
}

// CentralityResult is the output of a betweenness analysis.
type CentralityResult struct {
	// Scores lists every node in graph insertion order.
	Scores []NodeCentrality `json:"scores"`

	// Stats carries the underlying component decomposition statistics.
	Stats ComponentStats `json:"componentStats"`
}

// BetweennessCentrality computes betweenness centrality for every node.
//
// Description:
//
//	Runs Brandes' algorithm independently inside each non-isolated
//	component; betweenness across component boundaries is undefined
//	because no path exists. For each source node, a breadth-first pass
//	computes distances, shortest-path counts (sigma), and predecessor
//	sets; nodes are then processed in descending distance order,
//	distributing each node's (1 + dependency) back to its predecessors
//	weighted by sigma(pred)/sigma(node). Unnormalized scores use the
//	unordered-pair convention: accumulated dependencies are halved so a
//	node interior to one unit-weight pair path scores 1, not 2. Isolated
//	nodes score zero without running the algorithm.
//
// Inputs:
//
//	ctx - Context for cancellation, checked per source node.
//	g - Frozen graph with at least one node.
//	opts - Normalization and the recorded (inert) directed flag.
//
// Outputs:
//
//	*CentralityResult - Per-node scores merged across components, each
//	tagged with its component id, plus decomposition statistics.
//	error - ErrNilContext, ErrGraphNotFrozen, ErrEmptyGraph, or
//	ErrAnalysisCancelled.
//
// Complexity: O(V * E) per component.
func BetweennessCentrality(ctx context.Context, g *Graph, opts CentralityOptions) (*CentralityResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if !g.IsFrozen() {
		return nil, ErrGraphNotFrozen
	}
	if g.NodeCount() == 0 {
		return nil, fmt.Errorf("%w: betweenness centrality requires at least one node", ErrEmptyGraph)
	}

	ctx, span := centralityTracer.Start(ctx, "graph.BetweennessCentrality")
	defer span.End()
	span.SetAttributes(
		attribute.Int("graph.nodes", g.NodeCount()),
		attribute.Bool("normalize", opts.Normalize),
	)

	decomp, err := Components(ctx, g)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64, g.NodeCount())
	componentOf := make(map[string]string, g.NodeCount())
	for _, comp := range decomp.Components {
		for _, id := range comp.Members {
			scores[id] = 0
			componentOf[id] = comp.ID
		}
	}

	for _, comp := range decomp.Components {
		if comp.IsIsolated {
			continue
		}
		if err := accumulateComponent(ctx, g, comp, scores); err != nil {
			return nil, err
		}
		if opts.Normalize {
			normalizeComponent(comp, scores)
		}
	}

	result := &CentralityResult{
		Scores: make([]NodeCentrality, 0, g.NodeCount()),
		Stats:  decomp.Stats,
	}
	for _, n := range g.Nodes() {
		result.Scores = append(result.Scores, NodeCentrality{
			NodeID:      n.ID,
			Score:       scores[n.ID],
			ComponentID: componentOf[n.ID],
		})
	}

	span.SetAttributes(attribute.Int("components.analyzed", decomp.Stats.Total-decomp.Stats.Isolated))
	slog.Debug("Betweenness centrality complete",
		"nodes", g.NodeCount(),
		"components", decomp.Stats.Total,
		"normalized", opts.Normalize)

	return result, nil
}

// accumulateComponent runs Brandes' accumulation for every source in one
// component, adding dependency values into the shared score map.
func accumulateComponent(ctx context.Context, g *Graph, comp Component, scores map[string]float64) error {
	for _, source := range comp.Members {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrAnalysisCancelled, err)
		}

		dist, sigma, preds, visited := shortestPathCounts(g, source)

		// Descending-distance order; ties broken by id so accumulation
		// output is deterministic for a given input.
		sort.Slice(visited, func(i, j int) bool {
			if dist[visited[i]] != dist[visited[j]] {
				return dist[visited[i]] > dist[visited[j]]
			}
			return visited[i] < visited[j]
		})

		delta := make(map[string]float64, len(visited))
		for _, w := range visited {
			for _, v := range preds[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != source {
				// The undirected traversal discovers each unordered pair
				// from both endpoints; halve so every pair counts once.
				scores[w] += delta[w] / 2
			}
		}
	}
	return nil
}

// shortestPathCounts performs the breadth-first phase of Brandes' algorithm
// from one source: distances, shortest-path counts, predecessor sets, and
// the visited node list.
func shortestPathCounts(g *Graph, source string) (dist map[string]int, sigma map[string]float64, preds map[string][]string, visited []string) {
	dist = map[string]int{source: 0}
	sigma = map[string]float64{source: 1}
	preds = make(map[string][]string)
	visited = []string{source}

	queue := []string{source}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]

		for _, w := range g.Neighbors(v) {
			if _, seen := dist[w]; !seen {
				dist[w] = dist[v] + 1
				visited = append(visited, w)
				queue = append(queue, w)
			}
			if dist[w] == dist[v]+1 {
				sigma[w] += sigma[v]
				preds[w] = append(preds[w], v)
			}
		}
	}
	return dist, sigma, preds, visited
}

// normalizeComponent divides every member's score by the component maximum.
// A component whose maximum is zero is left untouched.
func normalizeComponent(comp Component, scores map[string]float64) {
	var max float64
	for _, id := range comp.Members {
		if scores[id] > max {
			max = scores[id]
		}
	}
	if max == 0 {
		return
	}
	for _, id := range comp.Members {
		scores[id] /= max
	}
}
