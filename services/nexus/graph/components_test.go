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
	"testing"
)

func TestComponents_EmptyGraph(t *testing.T) {
	g := newTestGraph().build(t)

	result, err := Components(context.Background(), g)
	if err != nil {
		t.Fatalf("Components on empty graph should succeed, got %v", err)
	}
	if len(result.Components) != 0 {
		t.Errorf("expected no components, got %d", len(result.Components))
	}
	if result.Stats.Total != 0 || result.Stats.Isolated != 0 {
		t.Errorf("expected zero stats, got %+v", result.Stats)
	}
}

func TestComponents_DisconnectedPair(t *testing.T) {
	// {A-B, C}: two components, one isolated.
	g := newTestGraph().
		addNode("A", NodeTypeMaterial).
		addNode("B", NodeTypeMaterial).
		addNode("C", NodeTypeMaterial).
		addEdge("A", "B", EdgeTypeRelatedTo).
		build(t)

	result, err := Components(context.Background(), g)
	if err != nil {
		t.Fatalf("Components failed: %v", err)
	}
	if len(result.Components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(result.Components))
	}

	first, second := result.Components[0], result.Components[1]
	if first.Size != 2 || first.IsIsolated {
		t.Errorf("first component = %+v, want size 2 not isolated", first)
	}
	if second.Size != 1 || !second.IsIsolated {
		t.Errorf("second component = %+v, want size 1 isolated", second)
	}
	if result.Stats.Isolated != 1 {
		t.Errorf("Stats.Isolated = %d, want 1", result.Stats.Isolated)
	}
}

func TestComponents_PartitionProperty(t *testing.T) {
	g := newTestGraph().
		addNode("A", NodeTypeMaterial).
		addNode("B", NodeTypeMechanism).
		addNode("C", NodeTypeMethod).
		addNode("D", NodeTypePhenomenon).
		addNode("E", NodeTypeApplication).
		addEdge("A", "B", EdgeTypeRelatedTo).
		addEdge("C", "D", EdgeTypeRelatedTo).
		build(t)

	result, err := Components(context.Background(), g)
	if err != nil {
		t.Fatalf("Components failed: %v", err)
	}

	total := 0
	assigned := make(map[string]int)
	for _, comp := range result.Components {
		total += comp.Size
		for _, id := range comp.Members {
			assigned[id]++
		}
	}
	if total != g.NodeCount() {
		t.Errorf("component sizes sum to %d, want %d", total, g.NodeCount())
	}
	for id, count := range assigned {
		if count != 1 {
			t.Errorf("node %s assigned to %d components, want exactly 1", id, count)
		}
	}
}

func TestComponents_IDsFollowDiscoveryOrder(t *testing.T) {
	g := newTestGraph().
		addNode("Z", NodeTypeMaterial).
		addNode("A", NodeTypeMaterial).
		build(t)

	result, err := Components(context.Background(), g)
	if err != nil {
		t.Fatalf("Components failed: %v", err)
	}
	// Z was inserted first, so its component is component-0.
	if result.Components[0].ID != "component-0" || result.Components[0].Members[0] != "Z" {
		t.Errorf("first component = %+v, want component-0 containing Z", result.Components[0])
	}
	if result.Components[1].ID != "component-1" {
		t.Errorf("second component id = %s, want component-1", result.Components[1].ID)
	}
}

func TestComponents_RequiresFrozenGraph(t *testing.T) {
	g := NewGraph()
	if err := g.AddNode(Node{ID: "A", Type: NodeTypeMaterial}); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}

	_, err := Components(context.Background(), g)
	if !errors.Is(err, ErrGraphNotFrozen) {
		t.Errorf("expected ErrGraphNotFrozen, got %v", err)
	}
}

func TestComponents_NilContext(t *testing.T) {
	g := newTestGraph().build(t)

	//nolint:staticcheck // deliberately passing nil context
	_, err := Components(nil, g)
	if !errors.Is(err, ErrNilContext) {
		t.Errorf("expected ErrNilContext, got %v", err)
	}
}

func TestComponents_ContextCancellation(t *testing.T) {
	g := newTestGraph().
		addNode("A", NodeTypeMaterial).
		addNode("B", NodeTypeMaterial).
		build(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Components(ctx, g)
	if !errors.Is(err, ErrAnalysisCancelled) {
		t.Errorf("expected ErrAnalysisCancelled, got %v", err)
	}
}

func TestComponentContaining(t *testing.T) {
	g := newTestGraph().
		addNode("A", NodeTypeMaterial).
		addNode("B", NodeTypeMaterial).
		addNode("C", NodeTypeMaterial).
		addEdge("A", "B", EdgeTypeRelatedTo).
		build(t)

	result, err := Components(context.Background(), g)
	if err != nil {
		t.Fatalf("Components failed: %v", err)
	}

	id, ok := ComponentContaining(result.Components, "B")
	if !ok || id != "component-0" {
		t.Errorf("ComponentContaining(B) = %q, %v; want component-0, true", id, ok)
	}
	if _, ok := ComponentContaining(result.Components, "missing"); ok {
		t.Error("ComponentContaining should report false for unknown nodes")
	}
}

func TestSameComponent(t *testing.T) {
	g := newTestGraph().
		addNode("A", NodeTypeMaterial).
		addNode("B", NodeTypeMaterial).
		addNode("C", NodeTypeMaterial).
		addEdge("A", "B", EdgeTypeRelatedTo).
		build(t)

	result, err := Components(context.Background(), g)
	if err != nil {
		t.Fatalf("Components failed: %v", err)
	}

	if !SameComponent(result.Components, "A", "B") {
		t.Error("A and B should share a component")
	}
	if SameComponent(result.Components, "A", "C") {
		t.Error("A and C should not share a component")
	}
	if SameComponent(result.Components, "A", "missing") {
		t.Error("unknown nodes are never in the same component")
	}
}
