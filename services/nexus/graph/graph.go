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

import "fmt"

// GraphState tracks the build lifecycle.
type GraphState int

const (
	// GraphStateBuilding allows AddNode and AddEdge.
	GraphStateBuilding GraphState = iota

	// GraphStateFrozen allows analysis and forbids modification.
	GraphStateFrozen
)

// Default capacity limits. Analyses are quadratic or worse in component
// size, so graphs are expected to stay in the low thousands of nodes; the
// limits exist to fail loudly rather than degrade silently.
const (
	DefaultMaxNodes = 50_000
	DefaultMaxEdges = 500_000
)

// Graph is an in-memory conceptual nexus model snapshot.
//
// Nodes keep their insertion order; that order is semantic, because
// component discovery (and therefore component numbering) iterates nodes
// in it. Edges keep their insertion order as well, which makes adjacency
// neighbor order deterministic for a given input document.
type Graph struct {
	nodes     []Node
	edges     []Edge
	nodeIndex map[string]int

	state    GraphState
	maxNodes int
	maxEdges int

	// Built by Freeze.
	adjacency map[string][]string
	adjSet    map[string]map[string]struct{}
	citations map[string]int
	citeTotal int
}

// GraphOption configures a Graph at construction.
type GraphOption func(*Graph)

// WithMaxNodes caps the node count. Non-positive values keep the default.
func WithMaxNodes(n int) GraphOption {
	return func(g *Graph) {
		if n > 0 {
			g.maxNodes = n
		}
	}
}

// WithMaxEdges caps the edge count. Non-positive values keep the default.
func WithMaxEdges(n int) GraphOption {
	return func(g *Graph) {
		if n > 0 {
			g.maxEdges = n
		}
	}
}

// NewGraph creates an empty graph in the building state.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		nodeIndex: make(map[string]int),
		maxNodes:  DefaultMaxNodes,
		maxEdges:  DefaultMaxEdges,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddNode appends a node to the graph.
//
// Errors:
//
//	ErrGraphFrozen - the graph is no longer building
//	ErrInvalidNode - empty id or unrecognized type
//	ErrDuplicateNode - a node with the same id already exists
//	ErrMaxNodesExceeded - the configured capacity is reached
func (g *Graph) AddNode(n Node) error {
	if g.state != GraphStateBuilding {
		return ErrGraphFrozen
	}
	if n.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidNode)
	}
	if !n.Type.IsValid() {
		return fmt.Errorf("%w: %s has invalid type", ErrInvalidNode, n.ID)
	}
	if _, exists := g.nodeIndex[n.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	if len(g.nodes) >= g.maxNodes {
		return fmt.Errorf("%w: limit %d", ErrMaxNodesExceeded, g.maxNodes)
	}
	g.nodeIndex[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return nil
}

// AddEdge appends an edge to the graph. Both endpoints must already exist.
//
// Errors:
//
//	ErrGraphFrozen - the graph is no longer building
//	ErrInvalidEdge - empty endpoint or unrecognized type
//	ErrNodeNotFound - an endpoint id is not in the graph
//	ErrMaxEdgesExceeded - the configured capacity is reached
func (g *Graph) AddEdge(e Edge) error {
	if g.state != GraphStateBuilding {
		return ErrGraphFrozen
	}
	if e.Source == "" || e.Target == "" {
		return fmt.Errorf("%w: empty endpoint", ErrInvalidEdge)
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("%w: %s -> %s has invalid type", ErrInvalidEdge, e.Source, e.Target)
	}
	if _, ok := g.nodeIndex[e.Source]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, e.Source)
	}
	if _, ok := g.nodeIndex[e.Target]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, e.Target)
	}
	if len(g.edges) >= g.maxEdges {
		return fmt.Errorf("%w: limit %d", ErrMaxEdgesExceeded, g.maxEdges)
	}
	g.edges = append(g.edges, e)
	return nil
}

// Freeze finalizes the graph: it builds the undirected adjacency index and
// the citation index, then transitions to the frozen state. Freeze is
// idempotent. After Freeze the graph is safe for concurrent readers.
//
// Adjacency is deduplicated: parallel edges contribute one neighbor entry.
// Citation counting is not: every cites-source edge counts toward both of
// its endpoints.
func (g *Graph) Freeze() {
	if g.state == GraphStateFrozen {
		return
	}
	g.adjacency = make(map[string][]string, len(g.nodes))
	g.adjSet = make(map[string]map[string]struct{}, len(g.nodes))
	g.citations = make(map[string]int)

	for _, e := range g.edges {
		g.addNeighbor(e.Source, e.Target)
		g.addNeighbor(e.Target, e.Source)
		if e.Type == EdgeTypeCitesSource {
			g.citations[e.Source]++
			g.citations[e.Target]++
			g.citeTotal++
		}
	}
	g.state = GraphStateFrozen
}

// addNeighbor records a directed half of an undirected adjacency entry,
// skipping duplicates and self-loops.
func (g *Graph) addNeighbor(from, to string) {
	if from == to {
		return
	}
	set, ok := g.adjSet[from]
	if !ok {
		set = make(map[string]struct{})
		g.adjSet[from] = set
	}
	if _, seen := set[to]; seen {
		return
	}
	set[to] = struct{}{}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// IsFrozen reports whether Freeze has been called.
func (g *Graph) IsFrozen() bool { return g.state == GraphStateFrozen }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges, counting parallel edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Nodes returns the node slice in insertion order. Read-only.
func (g *Graph) Nodes() []Node { return g.nodes }

// Edges returns the edge slice in insertion order. Read-only.
func (g *Graph) Edges() []Edge { return g.edges }

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	idx, ok := g.nodeIndex[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[idx], true
}

// HasNode reports whether a node with the given id exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodeIndex[id]
	return ok
}

// Neighbors returns the deduplicated undirected neighbors of a node in
// first-edge order. Only valid on a frozen graph. Read-only.
func (g *Graph) Neighbors(id string) []string { return g.adjacency[id] }

// Degree returns the deduplicated undirected degree of a node. Only valid
// on a frozen graph.
func (g *Graph) Degree(id string) int { return len(g.adjacency[id]) }

// HasEdgeBetween reports whether the two nodes are directly linked by at
// least one edge in either direction. Only valid on a frozen graph.
func (g *Graph) HasEdgeBetween(a, b string) bool {
	set, ok := g.adjSet[a]
	if !ok {
		return false
	}
	_, linked := set[b]
	return linked
}

// CitationCount returns the number of cites-source edges incident to the
// node, counting multiplicity. Only valid on a frozen graph.
func (g *Graph) CitationCount(id string) int { return g.citations[id] }

// CitationEdgeCount returns the total number of cites-source edges in the
// graph. Only valid on a frozen graph.
func (g *Graph) CitationEdgeCount() int { return g.citeTotal }

// GraphStats summarizes a graph for diagnostics and API responses.
type GraphStats struct {
	Nodes         int            `json:"nodes"`
	Edges         int            `json:"edges"`
	CitationEdges int            `json:"citationEdges"`
	NodeTypes     map[string]int `json:"nodeTypes"`
	EdgeTypes     map[string]int `json:"edgeTypes"`
	Frozen        bool           `json:"frozen"`
}

// Stats computes summary counts. Valid in either lifecycle state; citation
// totals are only populated once frozen.
func (g *Graph) Stats() GraphStats {
	s := GraphStats{
		Nodes:         len(g.nodes),
		Edges:         len(g.edges),
		CitationEdges: g.citeTotal,
		NodeTypes:     make(map[string]int),
		EdgeTypes:     make(map[string]int),
		Frozen:        g.state == GraphStateFrozen,
	}
	for _, n := range g.nodes {
		s.NodeTypes[n.Type.String()]++
	}
	for _, e := range g.edges {
		s.EdgeTypes[e.Type.String()]++
	}
	return s
}
