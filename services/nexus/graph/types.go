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
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// =============================================================================
// NODE TYPES
// =============================================================================

// NodeType classifies a concept node within the conceptual nexus model.
//
// Each concrete type has a "_Category" aggregate variant representing the
// taxonomy node that groups concepts of that type. Aggregates participate in
// compatibility scoring differently from concrete concepts: two aggregates
// are never considered compatible with each other.
type NodeType int

const (
	// NodeTypeMaterial is a physical substance or material system.
	NodeTypeMaterial NodeType = iota

	// NodeTypeMechanism is a physical or chemical process.
	NodeTypeMechanism

	// NodeTypeMethod is an experimental or computational technique.
	NodeTypeMethod

	// NodeTypePhenomenon is an observed or predicted effect.
	NodeTypePhenomenon

	// NodeTypeApplication is a use case or engineered outcome.
	NodeTypeApplication

	// NodeTypeTheoreticalConcept is an abstract model or principle.
	NodeTypeTheoreticalConcept

	// NodeTypeMaterialCategory aggregates material concepts.
	NodeTypeMaterialCategory

	// NodeTypeMechanismCategory aggregates mechanism concepts.
	NodeTypeMechanismCategory

	// NodeTypeMethodCategory aggregates method concepts.
	NodeTypeMethodCategory

	// NodeTypePhenomenonCategory aggregates phenomenon concepts.
	NodeTypePhenomenonCategory

	// NodeTypeApplicationCategory aggregates application concepts.
	NodeTypeApplicationCategory

	// NodeTypeTheoreticalConceptCategory aggregates theoretical concepts.
	NodeTypeTheoreticalConceptCategory
)

// nodeTypeNames maps node types to their wire representation.
var nodeTypeNames = map[NodeType]string{
	NodeTypeMaterial:                   "Material",
	NodeTypeMechanism:                  "Mechanism",
	NodeTypeMethod:                     "Method",
	NodeTypePhenomenon:                 "Phenomenon",
	NodeTypeApplication:                "Application",
	NodeTypeTheoreticalConcept:         "TheoreticalConcept",
	NodeTypeMaterialCategory:           "Material_Category",
	NodeTypeMechanismCategory:          "Mechanism_Category",
	NodeTypeMethodCategory:             "Method_Category",
	NodeTypePhenomenonCategory:         "Phenomenon_Category",
	NodeTypeApplicationCategory:        "Application_Category",
	NodeTypeTheoreticalConceptCategory: "TheoreticalConcept_Category",
}

// nodeTypesByName is the reverse of nodeTypeNames, built at init.
var nodeTypesByName = func() map[string]NodeType {
	m := make(map[string]NodeType, len(nodeTypeNames))
	for t, name := range nodeTypeNames {
		m[name] = t
	}
	return m
}()

// String returns the wire representation of the node type.
func (t NodeType) String() string {
	if name, ok := nodeTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// IsCategory reports whether the type is a "_Category" aggregate.
func (t NodeType) IsCategory() bool {
	return t >= NodeTypeMaterialCategory && t <= NodeTypeTheoreticalConceptCategory
}

// Base returns the concrete type an aggregate groups. For concrete types it
// returns the type itself.
func (t NodeType) Base() NodeType {
	if t.IsCategory() {
		return t - NodeTypeMaterialCategory
	}
	return t
}

// Category returns the aggregate variant of a concrete type. For aggregates
// it returns the type itself.
func (t NodeType) Category() NodeType {
	if t.IsCategory() {
		return t
	}
	return t + NodeTypeMaterialCategory
}

// IsValid reports whether the type is a member of the closed type set.
func (t NodeType) IsValid() bool {
	_, ok := nodeTypeNames[t]
	return ok
}

// ParseNodeType converts a wire string into a NodeType.
func ParseNodeType(s string) (NodeType, error) {
	if t, ok := nodeTypesByName[s]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("%w: unrecognized node type %q", ErrInvalidNode, s)
}

// MarshalJSON encodes the type as its wire string.
func (t NodeType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes the type from its wire string.
func (t *NodeType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseNodeType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// =============================================================================
// EDGE TYPES
// =============================================================================

// EdgeType classifies a link between two concept nodes.
type EdgeType int

const (
	// EdgeTypeRelatedTo is a generic association between concepts.
	EdgeTypeRelatedTo EdgeType = iota

	// EdgeTypeCategorizes links a concept to its taxonomy aggregate.
	EdgeTypeCategorizes

	// EdgeTypeEnables marks one concept as a prerequisite of another.
	EdgeTypeEnables

	// EdgeTypeDerivesFrom marks conceptual descent.
	EdgeTypeDerivesFrom

	// EdgeTypeInteractsWith marks a physical or causal interaction.
	EdgeTypeInteractsWith

	// EdgeTypeMeasures links a method to what it observes.
	EdgeTypeMeasures

	// EdgeTypeCitesSource links a concept to cited literature. This is the
	// distinguished type consumed by citation-aware scoring.
	EdgeTypeCitesSource
)

// edgeTypeNames maps edge types to their wire representation.
var edgeTypeNames = map[EdgeType]string{
	EdgeTypeRelatedTo:     "related-to",
	EdgeTypeCategorizes:   "categorizes",
	EdgeTypeEnables:       "enables",
	EdgeTypeDerivesFrom:   "derives-from",
	EdgeTypeInteractsWith: "interacts-with",
	EdgeTypeMeasures:      "measures",
	EdgeTypeCitesSource:   "cites-source",
}

// edgeTypesByName is the reverse of edgeTypeNames, built at init.
var edgeTypesByName = func() map[string]EdgeType {
	m := make(map[string]EdgeType, len(edgeTypeNames))
	for t, name := range edgeTypeNames {
		m[name] = t
	}
	return m
}()

// String returns the wire representation of the edge type.
func (t EdgeType) String() string {
	if name, ok := edgeTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsValid reports whether the type is a member of the closed type set.
func (t EdgeType) IsValid() bool {
	_, ok := edgeTypeNames[t]
	return ok
}

// ParseEdgeType converts a wire string into an EdgeType.
func ParseEdgeType(s string) (EdgeType, error) {
	if t, ok := edgeTypesByName[s]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("%w: unrecognized edge type %q", ErrInvalidEdge, s)
}

// MarshalJSON encodes the type as its wire string.
func (t EdgeType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes the type from its wire string.
func (t *EdgeType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseEdgeType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// =============================================================================
// FEATURE VECTORS
// =============================================================================

// FeatureKind discriminates the two shapes a feature value can take.
type FeatureKind int

const (
	// FeatureScalar is a single value (string, number, or boolean on the
	// wire; held canonically as a string).
	FeatureScalar FeatureKind = iota

	// FeatureList is an unordered list of string values.
	FeatureList
)

// FeatureValue is one field of a node's sparse feature vector: either a
// scalar or a list of strings, never both. The zero value is an empty
// scalar. Construct with ScalarFeature or ListFeature.
//
// Similarity semantics: scalar fields compare by equality, list fields by
// Jaccard overlap ratio; a scalar never matches a list.
type FeatureValue struct {
	kind   FeatureKind
	scalar string
	list   []string
}

// ScalarFeature returns a scalar feature value.
func ScalarFeature(v string) FeatureValue {
	return FeatureValue{kind: FeatureScalar, scalar: v}
}

// ListFeature returns a list feature value.
func ListFeature(values ...string) FeatureValue {
	return FeatureValue{kind: FeatureList, list: values}
}

// Kind returns the value's discriminator.
func (v FeatureValue) Kind() FeatureKind { return v.kind }

// Scalar returns the scalar payload. Empty for list values.
func (v FeatureValue) Scalar() string { return v.scalar }

// List returns the list payload. Nil for scalar values; callers must treat
// the returned slice as read-only.
func (v FeatureValue) List() []string { return v.list }

// MarshalJSON encodes a scalar as a JSON string and a list as a JSON array.
func (v FeatureValue) MarshalJSON() ([]byte, error) {
	if v.kind == FeatureList {
		if v.list == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(v.list)
	}
	return json.Marshal(v.scalar)
}

// UnmarshalJSON accepts a string, number, or boolean as a scalar, and an
// array of strings as a list. Numbers are canonicalized to their decimal
// string form so equality comparison stays exact.
func (v *FeatureValue) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case string:
		*v = ScalarFeature(val)
	case json.Number:
		*v = ScalarFeature(val.String())
	case bool:
		*v = ScalarFeature(strconv.FormatBool(val))
	case []any:
		list := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("%w: list elements must be strings, got %T", ErrInvalidFeatureValue, item)
			}
			list = append(list, s)
		}
		*v = ListFeature(list...)
	default:
		return fmt.Errorf("%w: got %T", ErrInvalidFeatureValue, raw)
	}
	return nil
}

// FeatureVector is a node's sparse feature record: field name to value.
// Node fields absent from the map simply do not participate in similarity.
type FeatureVector map[string]FeatureValue

// =============================================================================
// NODES AND EDGES
// =============================================================================

// Node is a single research concept in the nexus model.
type Node struct {
	// ID uniquely identifies the node within its graph.
	ID string `json:"id"`

	// Type places the node in the closed domain taxonomy.
	Type NodeType `json:"type"`

	// Features is the node's optional sparse feature vector, used for
	// semantic-similarity scoring. The wire name follows the CNM schema.
	Features FeatureVector `json:"cssVector,omitempty"`

	// Origin is optional free-text provenance (source document, section).
	Origin string `json:"origin,omitempty"`
}

// Edge is a typed link between two nodes. All analyses treat edges as
// undirected regardless of source/target ordering.
type Edge struct {
	// Source is the id of the first endpoint.
	Source string `json:"source"`

	// Target is the id of the second endpoint.
	Target string `json:"target"`

	// Type places the link in the closed edge taxonomy.
	Type EdgeType `json:"type"`

	// Weight is an optional strength annotation. Analyses ignore it.
	Weight float64 `json:"weight,omitempty"`

	// Justification is an optional free-text rationale for the link.
	Justification string `json:"justification,omitempty"`
}

// =============================================================================
// DERIVED ENTITIES
// =============================================================================

// Component is one connected component of the graph: a maximal set of nodes
// mutually reachable over undirected edges.
//
// Component ids take the form "component-<seq>" where <seq> is the order in
// which the decomposition discovered the component. Because discovery
// follows node insertion order, the ids are an artifact of that order and
// not a stable identity across differently ordered inputs.
type Component struct {
	// ID is "component-<seq>" in discovery order.
	ID string `json:"id"`

	// Members lists member node ids in discovery (BFS) order.
	Members []string `json:"members"`

	// Size is len(Members).
	Size int `json:"size"`

	// IsIsolated is true when the component is a single edgeless node.
	IsIsolated bool `json:"isIsolated"`
}

// ComponentStats aggregates a decomposition for result metadata.
type ComponentStats struct {
	// Total is the number of components found.
	Total int `json:"totalComponents"`

	// Isolated is the number of single-node components.
	Isolated int `json:"isolatedNodes"`

	// Sizes lists component sizes in discovery order.
	Sizes []int `json:"componentSizes"`
}

// =============================================================================
// RESULTS
// =============================================================================

// ResultMetadata accompanies every AlgorithmResult.
type ResultMetadata struct {
	// ExecutionTimeMs is wall-clock time for the analysis in milliseconds.
	ExecutionTimeMs float64 `json:"executionTime"`

	// GraphSize is the node count of the analyzed graph.
	GraphSize int `json:"graphSize"`

	// Parameters is the fully resolved parameter set the analysis ran with.
	Parameters map[string]any `json:"parameters"`

	// Extras carries algorithm-specific metadata such as component
	// statistics.
	Extras map[string]any `json:"extras,omitempty"`
}

// AlgorithmResult is the uniform envelope every analysis returns through
// Execute. It is the only engine type that crosses to external collaborators
// and is JSON-serializable in full.
type AlgorithmResult struct {
	// AlgorithmName is the registry name of the analysis that produced
	// this result.
	AlgorithmName string `json:"algorithmName"`

	// Timestamp is when the analysis completed.
	Timestamp time.Time `json:"timestamp"`

	// Data is the algorithm-specific payload: component list, centrality
	// scores, gap list, or cluster list.
	Data any `json:"data"`

	// Metadata carries timing, sizing, and the resolved parameters.
	Metadata ResultMetadata `json:"metadata"`
}
