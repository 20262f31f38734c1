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
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var gapTracer = otel.Tracer("nexus.graph.gaps")

// Scoring constants for gap analysis. Confidence starts at the base and is
// raised by type compatibility and feature similarity, so a perfect pair
// reaches exactly 1.0 before the citation multiplier.
const (
	gapBaseConfidence      = 0.5
	gapTypeCompatBonus     = 0.2
	gapSimilarityWeight    = 0.3
	gapMinViableConfidence = 0.3

	bridgeBothConnected  = 0.4
	bridgeOneConnected   = 0.2
	bridgeTypeCompat     = 0.3
	bridgeSimilarityEach = 0.15
	bridgeMinScore       = 0.3

	citationBonusBase    = 0.5
	citationBonusPerEdge = 0.1
)

// GapType classifies a detected gap by the kinds of concepts it separates.
type GapType string

const (
	GapMethodological GapType = "methodological"
	GapTheoretical    GapType = "theoretical"
	GapExperimental   GapType = "experimental"
	GapConceptual     GapType = "conceptual"
)

// GapOptions configures gap detection.
type GapOptions struct {
	// MinConfidence filters reported gaps; range [0, 1].
	MinConfidence float64 `json:"minConfidence"`

	// MaxGapDistance caps the shortest-path distance between candidate
	// pairs; must be positive.
	MaxGapDistance int `json:"maxGapDistance"`

	// ConsiderCitations applies the citation multiplier to confidence.
	// The multiplier counts cites-source edges incident to either endpoint
	// of the candidate pair; edges between the pair itself are always zero
	// because candidates are by construction not directly linked.
	ConsiderCitations bool `json:"considerCitations"`
}

// DefaultGapOptions returns the default configuration.
func DefaultGapOptions() GapOptions {
	return GapOptions{
		MinConfidence:     0.5,
		MaxGapDistance:    3,
		ConsiderCitations: true,
	}
}

// Validate rejects out-of-range options, naming the offending parameter.
func (o GapOptions) Validate() error {
	if o.MinConfidence < 0 || o.MinConfidence > 1 {
		return fmt.Errorf("%w: minConfidence must be in [0, 1], got %v", ErrInvalidParameter, o.MinConfidence)
	}
	if o.MaxGapDistance < 1 {
		return fmt.Errorf("%w: maxGapDistance must be positive, got %d", ErrInvalidParameter, o.MaxGapDistance)
	}
	return nil
}

// BridgeCandidate is a node scored as a plausible connector for a gap.
type BridgeCandidate struct {
	NodeID string  `json:"nodeId"`
	Score  float64 `json:"score"`
}

// ConceptGap is one detected missing connection.
type ConceptGap struct {
	// Source and Target are the unlinked pair, in graph insertion order.
	Source string `json:"source"`
	Target string `json:"target"`

	// Distance is the shortest-path hop count between the pair. Zero for
	// cross-component gaps, where no path exists.
	Distance int `json:"distance"`

	// Path is one shortest path including both endpoints. Empty for
	// cross-component gaps.
	Path []string `json:"path,omitempty"`

	// Confidence scores how plausible the missing connection is, in [0, 1].
	Confidence float64 `json:"confidence"`

	// Type classifies the gap by the concept kinds it separates.
	Type GapType `json:"gapType"`

	// CrossComponent marks gaps whose endpoints lie in different
	// components. Such pairs are selected by feature similarity because no
	// finite path distance exists between components.
	CrossComponent bool `json:"crossComponent,omitempty"`

	// Bridges lists candidate connector nodes, best first. Always
	// non-empty; gaps with no viable bridge are discarded.
	Bridges []BridgeCandidate `json:"bridgingNodes"`
}

// GapResult is the output of gap detection.
type GapResult struct {
	// Gaps is sorted by confidence descending.
	Gaps []ConceptGap `json:"gaps"`

	// Stats carries the underlying component decomposition statistics.
	Stats ComponentStats `json:"componentStats"`
}

// DetectGaps finds plausible missing connections in the graph.
//
// Description:
//
//	Within each non-isolated component, every unordered pair of nodes that
//	is not directly linked and sits within MaxGapDistance hops becomes a
//	candidate. Confidence starts at 0.5, gains 0.2 for a type-compatible
//	pair and up to 0.3 for feature similarity, and is multiplied by a
//	citation bonus when enabled. Each candidate is classified
//	(methodological, theoretical, experimental, conceptual) and annotated
//	with bridge candidates; pairs with confidence below the viability
//	floor or with no viable bridge are discarded, and the remainder is
//	filtered by MinConfidence.
//
//	Across components no finite path distance exists, so candidate cross
//	pairs are instead selected by feature similarity: for each component
//	pair, the most similar cross pair above the compatibility threshold
//	receives the same confidence and bridging analysis and is marked
//	CrossComponent.
//
// Inputs:
//
//	ctx - Context for cancellation, checked per source node.
//	g - Frozen graph. An empty graph yields an empty result.
//	opts - Detection thresholds; see GapOptions.
//
// Outputs:
//
//	*GapResult - Gaps sorted by confidence descending.
//	error - ErrNilContext, ErrGraphNotFrozen, ErrInvalidParameter, or
//	ErrAnalysisCancelled.
//
// Complexity: roughly O(V^2 * E) per component; practical inputs are
// bounded to the low thousands of nodes.
func DetectGaps(ctx context.Context, g *Graph, opts GapOptions) (*GapResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if !g.IsFrozen() {
		return nil, ErrGraphNotFrozen
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ctx, span := gapTracer.Start(ctx, "graph.DetectGaps")
	defer span.End()
	span.SetAttributes(
		attribute.Int("graph.nodes", g.NodeCount()),
		attribute.Float64("min_confidence", opts.MinConfidence),
		attribute.Int("max_gap_distance", opts.MaxGapDistance),
		attribute.Bool("consider_citations", opts.ConsiderCitations),
	)

	decomp, err := Components(ctx, g)
	if err != nil {
		return nil, err
	}

	result := &GapResult{Gaps: []ConceptGap{}, Stats: decomp.Stats}

	for _, comp := range decomp.Components {
		if comp.IsIsolated {
			continue
		}
		gaps, err := intraComponentGaps(ctx, g, comp, opts)
		if err != nil {
			return nil, err
		}
		result.Gaps = append(result.Gaps, gaps...)
	}

	crossGaps, err := crossComponentGaps(ctx, g, decomp.Components, opts)
	if err != nil {
		return nil, err
	}
	result.Gaps = append(result.Gaps, crossGaps...)

	sort.SliceStable(result.Gaps, func(i, j int) bool {
		if result.Gaps[i].Confidence != result.Gaps[j].Confidence {
			return result.Gaps[i].Confidence > result.Gaps[j].Confidence
		}
		if result.Gaps[i].Source != result.Gaps[j].Source {
			return result.Gaps[i].Source < result.Gaps[j].Source
		}
		return result.Gaps[i].Target < result.Gaps[j].Target
	})

	span.SetAttributes(attribute.Int("gaps.found", len(result.Gaps)))
	slog.Debug("Gap detection complete",
		"nodes", g.NodeCount(),
		"gaps", len(result.Gaps),
		"min_confidence", opts.MinConfidence)

	return result, nil
}

// intraComponentGaps enumerates qualifying unlinked pairs within one
// component.
func intraComponentGaps(ctx context.Context, g *Graph, comp Component, opts GapOptions) ([]ConceptGap, error) {
	var gaps []ConceptGap

	for i, sourceID := range comp.Members {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAnalysisCancelled, err)
		}

		dist, parent := shortestPaths(g, sourceID)

		for _, targetID := range comp.Members[i+1:] {
			if g.HasEdgeBetween(sourceID, targetID) {
				continue
			}
			d, reachable := dist[targetID]
			if !reachable || d > opts.MaxGapDistance {
				continue
			}

			source, _ := g.Node(sourceID)
			target, _ := g.Node(targetID)
			path := rebuildPath(parent, sourceID, targetID)

			gap := scoreGap(g, source, target, d, path, false, opts)
			if gap != nil && gap.Confidence >= opts.MinConfidence {
				gaps = append(gaps, *gap)
			}
		}
	}
	return gaps, nil
}

// crossComponentGaps selects, for each component pair, the most similar
// cross pair of nodes and analyzes it as a gap. Pairs below the
// compatibility threshold are skipped: with no path between components,
// feature similarity is the only available signal.
func crossComponentGaps(ctx context.Context, g *Graph, components []Component, opts GapOptions) ([]ConceptGap, error) {
	var gaps []ConceptGap

	for i := range components {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAnalysisCancelled, err)
		}
		for j := i + 1; j < len(components); j++ {
			bestSim := 0.0
			var bestSource, bestTarget Node
			found := false

			for _, aID := range components[i].Members {
				a, _ := g.Node(aID)
				if len(a.Features) == 0 {
					continue
				}
				for _, bID := range components[j].Members {
					b, _ := g.Node(bID)
					sim := FeatureSimilarity(a.Features, b.Features)
					if sim > bestSim {
						bestSim = sim
						bestSource, bestTarget = a, b
						found = true
					}
				}
			}

			if !found || bestSim <= compatibilityThreshold {
				continue
			}
			gap := scoreGap(g, bestSource, bestTarget, 0, nil, true, opts)
			if gap != nil && gap.Confidence >= opts.MinConfidence {
				gaps = append(gaps, *gap)
			}
		}
	}
	return gaps, nil
}

// scoreGap computes confidence, classification, and bridge candidates for
// one candidate pair. Returns nil when the pair is not a viable gap.
func scoreGap(g *Graph, source, target Node, distance int, path []string, cross bool, opts GapOptions) *ConceptGap {
	confidence := gapBaseConfidence
	if TypesCompatible(source.Type, target.Type) {
		confidence += gapTypeCompatBonus
	}
	confidence += gapSimilarityWeight * FeatureSimilarity(source.Features, target.Features)

	if opts.ConsiderCitations {
		citations := g.CitationCount(source.ID) + g.CitationCount(target.ID)
		bonus := citationBonusBase + citationBonusPerEdge*float64(citations)
		if bonus > 1.0 {
			bonus = 1.0
		}
		confidence *= bonus
	}

	if confidence < gapMinViableConfidence {
		return nil
	}

	bridges := bridgeCandidates(g, source, target, path)
	if len(bridges) == 0 {
		return nil
	}

	return &ConceptGap{
		Source:         source.ID,
		Target:         target.ID,
		Distance:       distance,
		Path:           path,
		Confidence:     confidence,
		Type:           classifyGap(source, target),
		CrossComponent: cross,
		Bridges:        bridges,
	}
}

// bridgeCandidates scores every node off the gap's shortest path as a
// potential connector: 0.4 for adjacency to both endpoints (0.2 for one),
// 0.3 for type compatibility with either endpoint, and up to 0.15 per
// endpoint for feature similarity. Candidates at or below the minimum
// score are dropped; the rest are returned best first.
func bridgeCandidates(g *Graph, source, target Node, path []string) []BridgeCandidate {
	excluded := make(map[string]struct{}, len(path)+2)
	excluded[source.ID] = struct{}{}
	excluded[target.ID] = struct{}{}
	for _, id := range path {
		excluded[id] = struct{}{}
	}

	var candidates []BridgeCandidate
	for _, n := range g.Nodes() {
		if _, skip := excluded[n.ID]; skip {
			continue
		}

		score := 0.0
		connectedSource := g.HasEdgeBetween(n.ID, source.ID)
		connectedTarget := g.HasEdgeBetween(n.ID, target.ID)
		switch {
		case connectedSource && connectedTarget:
			score += bridgeBothConnected
		case connectedSource || connectedTarget:
			score += bridgeOneConnected
		}

		if TypesCompatible(n.Type, source.Type) || TypesCompatible(n.Type, target.Type) {
			score += bridgeTypeCompat
		}

		score += bridgeSimilarityEach * FeatureSimilarity(n.Features, source.Features)
		score += bridgeSimilarityEach * FeatureSimilarity(n.Features, target.Features)

		if score > bridgeMinScore {
			candidates = append(candidates, BridgeCandidate{NodeID: n.ID, Score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].NodeID < candidates[j].NodeID
	})
	return candidates
}

// classifyGap assigns a gap type from either endpoint's type string, in
// priority order: Method, Theoretical, Material, then conceptual.
func classifyGap(source, target Node) GapType {
	s, t := source.Type.String(), target.Type.String()
	switch {
	case strings.Contains(s, "Method") || strings.Contains(t, "Method"):
		return GapMethodological
	case strings.Contains(s, "Theoretical") || strings.Contains(t, "Theoretical"):
		return GapTheoretical
	case strings.Contains(s, "Material") || strings.Contains(t, "Material"):
		return GapExperimental
	default:
		return GapConceptual
	}
}

// shortestPaths runs one breadth-first pass from source, returning hop
// distances and a parent map for path reconstruction.
func shortestPaths(g *Graph, source string) (dist map[string]int, parent map[string]string) {
	dist = map[string]int{source: 0}
	parent = make(map[string]string)

	queue := []string{source}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]

		for _, w := range g.Neighbors(v) {
			if _, seen := dist[w]; seen {
				continue
			}
			dist[w] = dist[v] + 1
			parent[w] = v
			queue = append(queue, w)
		}
	}
	return dist, parent
}

// rebuildPath walks the parent map from target back to source, returning
// the path inclusive of both endpoints.
func rebuildPath(parent map[string]string, source, target string) []string {
	path := []string{target}
	for current := target; current != source; {
		current = parent[current]
		path = append(path, current)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
