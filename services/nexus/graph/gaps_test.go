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
	"errors"
	"math"
	"testing"
)

// squareGraph builds the 4-cycle A-B-C-D-A. The unlinked diagonals (A,C)
// and (B,D) are the only gap candidates.
func squareGraph(t *testing.T) *Graph {
	t.Helper()
	return newTestGraph().
		addNode("A", NodeTypeMaterial).
		addNode("B", NodeTypeMaterial).
		addNode("C", NodeTypeMaterial).
		addNode("D", NodeTypeMaterial).
		addEdge("A", "B", EdgeTypeRelatedTo).
		addEdge("B", "C", EdgeTypeRelatedTo).
		addEdge("C", "D", EdgeTypeRelatedTo).
		addEdge("D", "A", EdgeTypeRelatedTo).
		build(t)
}

func TestGapOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    GapOptions
		wantErr bool
	}{
		{name: "defaults valid", opts: DefaultGapOptions()},
		{name: "confidence below range", opts: GapOptions{MinConfidence: -0.1, MaxGapDistance: 3}, wantErr: true},
		{name: "confidence above range", opts: GapOptions{MinConfidence: 1.1, MaxGapDistance: 3}, wantErr: true},
		{name: "zero distance", opts: GapOptions{MinConfidence: 0.5, MaxGapDistance: 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("expected ErrInvalidParameter, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDetectGaps_EmptyGraph(t *testing.T) {
	g := newTestGraph().build(t)

	result, err := DetectGaps(context.Background(), g, DefaultGapOptions())
	if err != nil {
		t.Fatalf("DetectGaps on empty graph should succeed, got %v", err)
	}
	if len(result.Gaps) != 0 {
		t.Errorf("expected no gaps, got %d", len(result.Gaps))
	}
}

func TestDetectGaps_SquareDiagonals(t *testing.T) {
	g := squareGraph(t)
	opts := GapOptions{MinConfidence: 0.5, MaxGapDistance: 3, ConsiderCitations: false}

	result, err := DetectGaps(context.Background(), g, opts)
	if err != nil {
		t.Fatalf("DetectGaps failed: %v", err)
	}
	if len(result.Gaps) != 2 {
		t.Fatalf("expected 2 gaps (the diagonals), got %d: %+v", len(result.Gaps), result.Gaps)
	}

	for _, gap := range result.Gaps {
		// Base 0.5 + type-compatible 0.2, no features.
		if math.Abs(gap.Confidence-0.7) > 1e-9 {
			t.Errorf("gap %s-%s confidence = %v, want 0.7", gap.Source, gap.Target, gap.Confidence)
		}
		if gap.Distance != 2 {
			t.Errorf("gap %s-%s distance = %d, want 2", gap.Source, gap.Target, gap.Distance)
		}
		if len(gap.Bridges) == 0 {
			t.Errorf("gap %s-%s has no bridges", gap.Source, gap.Target)
		}
		if gap.Type != GapExperimental {
			t.Errorf("gap type = %s, want experimental for Material pairs", gap.Type)
		}
		if gap.CrossComponent {
			t.Error("intra-component gap marked cross-component")
		}
	}
}

func TestDetectGaps_NeverReportsLinkedPairs(t *testing.T) {
	g := squareGraph(t)

	result, err := DetectGaps(context.Background(), g, GapOptions{MinConfidence: 0, MaxGapDistance: 10})
	if err != nil {
		t.Fatalf("DetectGaps failed: %v", err)
	}
	for _, gap := range result.Gaps {
		if g.HasEdgeBetween(gap.Source, gap.Target) {
			t.Errorf("gap reported for directly linked pair %s-%s", gap.Source, gap.Target)
		}
	}
}

func TestDetectGaps_MaxGapDistance(t *testing.T) {
	// A-B-C-D path: (A,C) and (B,D) sit at distance 2, (A,D) at 3.
	g := pathGraph(t)

	near, err := DetectGaps(context.Background(), g, GapOptions{MinConfidence: 0, MaxGapDistance: 1})
	if err != nil {
		t.Fatalf("DetectGaps failed: %v", err)
	}
	if len(near.Gaps) != 0 {
		t.Errorf("distance cap 1 should exclude all pairs, got %d gaps", len(near.Gaps))
	}

	wide, err := DetectGaps(context.Background(), g, GapOptions{MinConfidence: 0, MaxGapDistance: 2})
	if err != nil {
		t.Fatalf("DetectGaps failed: %v", err)
	}
	for _, gap := range wide.Gaps {
		if gap.Distance > 2 {
			t.Errorf("gap %s-%s distance %d exceeds cap", gap.Source, gap.Target, gap.Distance)
		}
	}
}

func TestDetectGaps_CitationMultiplier(t *testing.T) {
	g := squareGraph(t)

	// No citation edges anywhere: the multiplier bottoms out at 0.5 and
	// scales 0.7 down to 0.35.
	result, err := DetectGaps(context.Background(), g, GapOptions{MinConfidence: 0, MaxGapDistance: 3, ConsiderCitations: true})
	if err != nil {
		t.Fatalf("DetectGaps failed: %v", err)
	}
	if len(result.Gaps) != 2 {
		t.Fatalf("expected 2 gaps, got %d", len(result.Gaps))
	}
	for _, gap := range result.Gaps {
		if math.Abs(gap.Confidence-0.35) > 1e-9 {
			t.Errorf("gap confidence = %v, want 0.35 under citation multiplier", gap.Confidence)
		}
	}
}

func TestDetectGaps_CitationsRaiseConfidence(t *testing.T) {
	// Citation edges incident to the diagonal endpoints push the bonus
	// multiplier back toward 1.0.
	b := newTestGraph().
		addNode("A", NodeTypeMaterial).
		addNode("B", NodeTypeMaterial).
		addNode("C", NodeTypeMaterial).
		addNode("D", NodeTypeMaterial).
		addNode("S", NodeTypeTheoreticalConcept).
		addEdge("A", "B", EdgeTypeRelatedTo).
		addEdge("B", "C", EdgeTypeRelatedTo).
		addEdge("C", "D", EdgeTypeRelatedTo).
		addEdge("D", "A", EdgeTypeRelatedTo)
	for i := 0; i < 3; i++ {
		b.addEdge("A", "S", EdgeTypeCitesSource)
		b.addEdge("C", "S", EdgeTypeCitesSource)
	}
	g := b.build(t)

	result, err := DetectGaps(context.Background(), g, GapOptions{MinConfidence: 0, MaxGapDistance: 3, ConsiderCitations: true})
	if err != nil {
		t.Fatalf("DetectGaps failed: %v", err)
	}

	var ac, bd *ConceptGap
	for i := range result.Gaps {
		gap := &result.Gaps[i]
		switch {
		case gap.Source == "A" && gap.Target == "C":
			ac = gap
		case gap.Source == "B" && gap.Target == "D":
			bd = gap
		}
	}
	if ac == nil || bd == nil {
		t.Fatalf("expected both diagonals, got %+v", result.Gaps)
	}
	if ac.Confidence <= bd.Confidence {
		t.Errorf("cited pair A-C (%v) should outrank uncited B-D (%v)", ac.Confidence, bd.Confidence)
	}
	// A and C carry 3 citation edges each: bonus = 0.5 + 0.1*6, capped at 1.
	if math.Abs(ac.Confidence-0.7) > 1e-9 {
		t.Errorf("A-C confidence = %v, want 0.7 with capped citation bonus", ac.Confidence)
	}
}

func TestDetectGaps_GapTypePriority(t *testing.T) {
	tests := []struct {
		name   string
		source NodeType
		target NodeType
		want   GapType
	}{
		{name: "method wins", source: NodeTypeMethod, target: NodeTypeTheoreticalConcept, want: GapMethodological},
		{name: "theoretical over material", source: NodeTypeTheoreticalConcept, target: NodeTypeMaterial, want: GapTheoretical},
		{name: "material over conceptual", source: NodeTypeMaterial, target: NodeTypeApplication, want: GapExperimental},
		{name: "conceptual fallback", source: NodeTypeApplication, target: NodeTypePhenomenon, want: GapConceptual},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyGap(Node{ID: "s", Type: tt.source}, Node{ID: "t", Type: tt.target})
			if got != tt.want {
				t.Errorf("classifyGap(%s, %s) = %s, want %s", tt.source, tt.target, got, tt.want)
			}
		})
	}
}

func TestDetectGaps_CrossComponent(t *testing.T) {
	features := FeatureVector{"topics": ListFeature("soft-matter", "actuation")}
	g := newTestGraph().
		addFeatureNode("A1", NodeTypeMaterial, features).
		addNode("A2", NodeTypeMaterial).
		addFeatureNode("B1", NodeTypeMaterial, features).
		addNode("B2", NodeTypeMaterial).
		addEdge("A1", "A2", EdgeTypeRelatedTo).
		addEdge("B1", "B2", EdgeTypeRelatedTo).
		build(t)

	result, err := DetectGaps(context.Background(), g, GapOptions{MinConfidence: 0.5, MaxGapDistance: 3})
	if err != nil {
		t.Fatalf("DetectGaps failed: %v", err)
	}

	var cross *ConceptGap
	for i := range result.Gaps {
		if result.Gaps[i].CrossComponent {
			cross = &result.Gaps[i]
			break
		}
	}
	if cross == nil {
		t.Fatalf("expected a cross-component gap, got %+v", result.Gaps)
	}
	if cross.Source != "A1" || cross.Target != "B1" {
		t.Errorf("cross gap pair = %s-%s, want A1-B1 (most similar)", cross.Source, cross.Target)
	}
	if cross.Distance != 0 || len(cross.Path) != 0 {
		t.Errorf("cross gap should carry no path: distance %d, path %v", cross.Distance, cross.Path)
	}
	// Base 0.5 + compat 0.2 + 0.3 * similarity 1.0 = 1.0.
	if math.Abs(cross.Confidence-1.0) > 1e-9 {
		t.Errorf("cross gap confidence = %v, want 1.0", cross.Confidence)
	}
}

func TestDetectGaps_CrossComponentRequiresSimilarity(t *testing.T) {
	// No feature vectors anywhere: the cross pass has no signal and must
	// stay silent rather than invent gaps between components.
	g := newTestGraph().
		addNode("A1", NodeTypeMaterial).
		addNode("A2", NodeTypeMaterial).
		addNode("B1", NodeTypeMaterial).
		addNode("B2", NodeTypeMaterial).
		addEdge("A1", "A2", EdgeTypeRelatedTo).
		addEdge("B1", "B2", EdgeTypeRelatedTo).
		build(t)

	result, err := DetectGaps(context.Background(), g, GapOptions{MinConfidence: 0, MaxGapDistance: 3})
	if err != nil {
		t.Fatalf("DetectGaps failed: %v", err)
	}
	for _, gap := range result.Gaps {
		if gap.CrossComponent {
			t.Errorf("unexpected cross-component gap %s-%s", gap.Source, gap.Target)
		}
	}
}

func TestDetectGaps_SortedByConfidence(t *testing.T) {
	g := squareGraph(t)

	result, err := DetectGaps(context.Background(), g, GapOptions{MinConfidence: 0, MaxGapDistance: 3})
	if err != nil {
		t.Fatalf("DetectGaps failed: %v", err)
	}
	for i := 1; i < len(result.Gaps); i++ {
		if result.Gaps[i].Confidence > result.Gaps[i-1].Confidence {
			t.Errorf("gaps not sorted by confidence at %d: %v > %v",
				i, result.Gaps[i].Confidence, result.Gaps[i-1].Confidence)
		}
	}
}

func TestDetectGaps_BridgeScoring(t *testing.T) {
	g := squareGraph(t)

	result, err := DetectGaps(context.Background(), g, GapOptions{MinConfidence: 0, MaxGapDistance: 3})
	if err != nil {
		t.Fatalf("DetectGaps failed: %v", err)
	}

	for _, gap := range result.Gaps {
		for i, bridge := range gap.Bridges {
			if bridge.Score <= bridgeMinScore {
				t.Errorf("bridge %s score %v at or below floor", bridge.NodeID, bridge.Score)
			}
			if i > 0 && bridge.Score > gap.Bridges[i-1].Score {
				t.Errorf("bridges not sorted descending at %d", i)
			}
			for _, onPath := range gap.Path {
				if bridge.NodeID == onPath {
					t.Errorf("bridge %s lies on the gap's shortest path", bridge.NodeID)
				}
			}
		}
	}
}

func TestDetectGaps_ContextCancellation(t *testing.T) {
	g := squareGraph(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DetectGaps(ctx, g, DefaultGapOptions())
	if !errors.Is(err, ErrAnalysisCancelled) {
		t.Errorf("expected ErrAnalysisCancelled, got %v", err)
	}
}
