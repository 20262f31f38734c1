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
	"encoding/json"
	"errors"
	"testing"
)

// =============================================================================
// Test Helpers
// =============================================================================

// testGraphBuilder helps construct test graphs with a fluent API. Build
// failures surface at build(t), so test bodies stay declarative.
type testGraphBuilder struct {
	g   *Graph
	err error
}

func newTestGraph() *testGraphBuilder {
	return &testGraphBuilder{g: NewGraph()}
}

func (b *testGraphBuilder) addNode(id string, nodeType NodeType) *testGraphBuilder {
	return b.addFeatureNode(id, nodeType, nil)
}

func (b *testGraphBuilder) addFeatureNode(id string, nodeType NodeType, features FeatureVector) *testGraphBuilder {
	if b.err == nil {
		b.err = b.g.AddNode(Node{ID: id, Type: nodeType, Features: features})
	}
	return b
}

func (b *testGraphBuilder) addEdge(source, target string, edgeType EdgeType) *testGraphBuilder {
	if b.err == nil {
		b.err = b.g.AddEdge(Edge{Source: source, Target: target, Type: edgeType})
	}
	return b
}

func (b *testGraphBuilder) build(t *testing.T) *Graph {
	t.Helper()
	if b.err != nil {
		t.Fatalf("test graph construction failed: %v", b.err)
	}
	b.g.Freeze()
	return b.g
}

// pathGraph builds A-B-C-D with related-to edges.
func pathGraph(t *testing.T) *Graph {
	t.Helper()
	return newTestGraph().
		addNode("A", NodeTypeMaterial).
		addNode("B", NodeTypeMaterial).
		addNode("C", NodeTypeMaterial).
		addNode("D", NodeTypeMaterial).
		addEdge("A", "B", EdgeTypeRelatedTo).
		addEdge("B", "C", EdgeTypeRelatedTo).
		addEdge("C", "D", EdgeTypeRelatedTo).
		build(t)
}

// starGraph builds center X with five leaves.
func starGraph(t *testing.T) *Graph {
	t.Helper()
	b := newTestGraph().addNode("X", NodeTypeMechanism)
	for _, leaf := range []string{"L1", "L2", "L3", "L4", "L5"} {
		b.addNode(leaf, NodeTypeMaterial).addEdge("X", leaf, EdgeTypeRelatedTo)
	}
	return b.build(t)
}

// =============================================================================
// Graph Construction Tests
// =============================================================================

func TestGraph_AddNode(t *testing.T) {
	tests := []struct {
		name    string
		node    Node
		wantErr error
	}{
		{
			name: "valid node",
			node: Node{ID: "A", Type: NodeTypeMaterial},
		},
		{
			name:    "empty id rejected",
			node:    Node{Type: NodeTypeMaterial},
			wantErr: ErrInvalidNode,
		},
		{
			name:    "invalid type rejected",
			node:    Node{ID: "A", Type: NodeType(99)},
			wantErr: ErrInvalidNode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph()
			err := g.AddNode(tt.node)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddNode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGraph_AddNode_Duplicate(t *testing.T) {
	g := NewGraph()
	if err := g.AddNode(Node{ID: "A", Type: NodeTypeMaterial}); err != nil {
		t.Fatalf("first AddNode failed: %v", err)
	}
	err := g.AddNode(Node{ID: "A", Type: NodeTypeMethod})
	if !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("expected ErrDuplicateNode, got %v", err)
	}
}

func TestGraph_AddEdge_UnknownEndpoint(t *testing.T) {
	g := NewGraph()
	if err := g.AddNode(Node{ID: "A", Type: NodeTypeMaterial}); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	err := g.AddEdge(Edge{Source: "A", Target: "missing", Type: EdgeTypeRelatedTo})
	if !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestGraph_FrozenRejectsModification(t *testing.T) {
	g := newTestGraph().addNode("A", NodeTypeMaterial).build(t)

	if err := g.AddNode(Node{ID: "B", Type: NodeTypeMaterial}); !errors.Is(err, ErrGraphFrozen) {
		t.Errorf("AddNode on frozen graph: expected ErrGraphFrozen, got %v", err)
	}
	if err := g.AddEdge(Edge{Source: "A", Target: "A", Type: EdgeTypeRelatedTo}); !errors.Is(err, ErrGraphFrozen) {
		t.Errorf("AddEdge on frozen graph: expected ErrGraphFrozen, got %v", err)
	}
}

func TestGraph_MaxNodesLimit(t *testing.T) {
	g := NewGraph(WithMaxNodes(1))
	if err := g.AddNode(Node{ID: "A", Type: NodeTypeMaterial}); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	err := g.AddNode(Node{ID: "B", Type: NodeTypeMaterial})
	if !errors.Is(err, ErrMaxNodesExceeded) {
		t.Errorf("expected ErrMaxNodesExceeded, got %v", err)
	}
}

func TestGraph_AdjacencyDeduplicatesParallelEdges(t *testing.T) {
	g := newTestGraph().
		addNode("A", NodeTypeMaterial).
		addNode("B", NodeTypeMaterial).
		addEdge("A", "B", EdgeTypeRelatedTo).
		addEdge("B", "A", EdgeTypeEnables).
		addEdge("A", "B", EdgeTypeInteractsWith).
		build(t)

	if got := g.Degree("A"); got != 1 {
		t.Errorf("Degree(A) = %d, want 1 (parallel edges deduplicated)", got)
	}
	if g.EdgeCount() != 3 {
		t.Errorf("EdgeCount() = %d, want 3 (raw edges preserved)", g.EdgeCount())
	}
}

func TestGraph_CitationCounting(t *testing.T) {
	g := newTestGraph().
		addNode("A", NodeTypeMaterial).
		addNode("B", NodeTypeMaterial).
		addNode("C", NodeTypeMaterial).
		addEdge("A", "B", EdgeTypeCitesSource).
		addEdge("A", "C", EdgeTypeCitesSource).
		addEdge("B", "C", EdgeTypeRelatedTo).
		build(t)

	if got := g.CitationCount("A"); got != 2 {
		t.Errorf("CitationCount(A) = %d, want 2", got)
	}
	if got := g.CitationCount("C"); got != 1 {
		t.Errorf("CitationCount(C) = %d, want 1", got)
	}
	if got := g.CitationEdgeCount(); got != 2 {
		t.Errorf("CitationEdgeCount() = %d, want 2", got)
	}
}

func TestGraph_Stats(t *testing.T) {
	g := newTestGraph().
		addNode("A", NodeTypeMaterial).
		addNode("B", NodeTypeMethod).
		addEdge("A", "B", EdgeTypeMeasures).
		build(t)

	stats := g.Stats()
	if stats.Nodes != 2 || stats.Edges != 1 {
		t.Errorf("Stats() = %+v, want 2 nodes / 1 edge", stats)
	}
	if stats.NodeTypes["Material"] != 1 || stats.NodeTypes["Method"] != 1 {
		t.Errorf("node type counts wrong: %v", stats.NodeTypes)
	}
	if !stats.Frozen {
		t.Error("Stats().Frozen = false after Freeze")
	}
}

// =============================================================================
// Type Parsing Tests
// =============================================================================

func TestParseNodeType(t *testing.T) {
	tests := []struct {
		input   string
		want    NodeType
		wantErr bool
	}{
		{input: "Material", want: NodeTypeMaterial},
		{input: "Material_Category", want: NodeTypeMaterialCategory},
		{input: "TheoreticalConcept", want: NodeTypeTheoreticalConcept},
		{input: "Banana", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseNodeType(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidNode) {
					t.Errorf("expected ErrInvalidNode, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseNodeType(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseNodeType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNodeType_CategoryRelations(t *testing.T) {
	if !NodeTypeMaterialCategory.IsCategory() {
		t.Error("Material_Category should be a category")
	}
	if NodeTypeMaterial.IsCategory() {
		t.Error("Material should not be a category")
	}
	if NodeTypeMaterialCategory.Base() != NodeTypeMaterial {
		t.Error("Base of Material_Category should be Material")
	}
	if NodeTypeMethod.Category() != NodeTypeMethodCategory {
		t.Error("Category of Method should be Method_Category")
	}
}

func TestFeatureValue_JSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		json string
		want FeatureValue
	}{
		{name: "string scalar", json: `"graphene"`, want: ScalarFeature("graphene")},
		{name: "number scalar", json: `3.14`, want: ScalarFeature("3.14")},
		{name: "bool scalar", json: `true`, want: ScalarFeature("true")},
		{name: "string list", json: `["a","b"]`, want: ListFeature("a", "b")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got FeatureValue
			if err := json.Unmarshal([]byte(tt.json), &got); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if got.Kind() != tt.want.Kind() {
				t.Fatalf("kind = %v, want %v", got.Kind(), tt.want.Kind())
			}
			if got.Kind() == FeatureScalar && got.Scalar() != tt.want.Scalar() {
				t.Errorf("scalar = %q, want %q", got.Scalar(), tt.want.Scalar())
			}
		})
	}
}

func TestFeatureValue_RejectsMixedList(t *testing.T) {
	var v FeatureValue
	err := json.Unmarshal([]byte(`["a", 1]`), &v)
	if !errors.Is(err, ErrInvalidFeatureValue) {
		t.Errorf("expected ErrInvalidFeatureValue, got %v", err)
	}
}
