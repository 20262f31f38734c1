// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph implements the conceptual nexus model (CNM) analytics engine:
// an in-memory knowledge graph of typed research concepts plus the four
// analyses that run over it (connected components, betweenness centrality,
// gap detection, cluster detection).
//
// # Ownership Model
//
// The graph owns its nodes and edges by value:
//   - AddNode and AddEdge copy their arguments into the graph
//   - Slices returned by accessors are the graph's internal storage and
//     MUST be treated as read-only by callers
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use during building. It is designed for:
//   - Single-writer access during the build phase (AddNode, AddEdge calls)
//   - Read-only access after Freeze() is called
//
// After Freeze(), the graph and every analysis over it can be used from
// multiple goroutines; the analyses themselves never mutate the graph.
//
// # Lifecycle
//
// A typical graph lifecycle:
//  1. Create with NewGraph()
//  2. Build with AddNode() and AddEdge() calls
//  3. Call Freeze() to build the adjacency and citation indexes
//  4. Analyze with Components(), BetweennessCentrality(), DetectGaps(),
//     DetectClusters(), or uniformly through Execute()
//
// Analyses hold no state between calls; every invocation recomputes from
// the frozen snapshot it is given.
package graph

import "errors"

// Sentinel errors for graph construction and analysis.
var (
	// ErrNilContext is returned when a nil context is passed to an analysis.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrGraphFrozen is returned when attempting to modify a frozen graph.
	// Once Freeze() is called, the graph becomes read-only and no further
	// nodes or edges can be added.
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrGraphNotFrozen is returned when an analysis is invoked on a graph
	// that is still in its build phase. Analyses require the adjacency
	// index that Freeze() constructs.
	ErrGraphNotFrozen = errors.New("graph must be frozen before analysis")

	// ErrDuplicateNode is returned when adding a node with an ID that
	// already exists in the graph.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrNodeNotFound is returned when an edge references a non-existent
	// node. Both endpoints must exist before an edge can be added.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidNode is returned when a node has an empty ID or an
	// unrecognized type.
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidEdge is returned when an edge has an empty endpoint or an
	// unrecognized type.
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrMaxNodesExceeded is returned when the graph has reached its
	// configured maximum node capacity.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrMaxEdgesExceeded is returned when the graph has reached its
	// configured maximum edge capacity.
	ErrMaxEdgesExceeded = errors.New("maximum edge count exceeded")

	// ErrEmptyGraph is returned by analyses that require at least one node,
	// such as betweenness centrality. Component decomposition is the
	// exception: it returns an empty result for an empty graph.
	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrInvalidParameter is returned when a supplied algorithm parameter
	// fails validation. The wrapped message names the offending parameter.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUnknownParameter is returned when the caller supplies a parameter
	// the algorithm does not declare. Declared parameter names are part of
	// each AlgorithmSpec.
	ErrUnknownParameter = errors.New("unknown parameter")

	// ErrUnknownAlgorithm is returned by Execute and LookupAlgorithm when
	// no registered algorithm matches the requested name.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")

	// ErrInvalidFeatureValue is returned when decoding a feature value that
	// is neither a scalar (string, number, bool) nor a list of strings.
	ErrInvalidFeatureValue = errors.New("invalid feature value")

	// ErrAnalysisCancelled is returned when an analysis is cancelled via
	// its context. No partial result accompanies it.
	ErrAnalysisCancelled = errors.New("analysis cancelled")
)
