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
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var algorithmTracer = otel.Tracer("nexus.graph.algorithms")

// Algorithm registry names.
const (
	AlgorithmComponents = "connected-components"
	AlgorithmCentrality = "betweenness-centrality"
	AlgorithmGaps       = "gap-detection"
	AlgorithmClusters   = "cluster-detection"
)

// Algorithm categories.
const (
	CategoryGapDetection         = "Gap Detection"
	CategoryPatternRecognition   = "Pattern Recognition"
	CategoryRelationshipAnalysis = "Relationship Analysis"
)

// ParamSpec declares one algorithm parameter: its wire name, a human type
// label, a default applied when the caller omits it, and an optional
// validation predicate applied when the caller supplies it.
type ParamSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"defaultValue"`

	// Validate returns a descriptive error for an unacceptable value. Nil
	// means any value of the right shape is accepted. The error is wrapped
	// with ErrInvalidParameter and the parameter name by Resolve.
	Validate func(value any) error `json:"-"`
}

// AlgorithmSpec declares one registered analysis for API and CLI discovery.
type AlgorithmSpec struct {
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"parameters"`

	run func(ctx context.Context, g *Graph, resolved map[string]any) (data any, extras map[string]any, err error)
}

// Resolve produces a fully resolved parameter map for this algorithm.
//
// Description:
//
//	Pure with respect to the caller: the supplied map is never mutated and
//	a fresh map is always returned. Every declared parameter absent from
//	the input receives its default; every supplied parameter must pass its
//	validation predicate. Parameters the algorithm does not declare are
//	rejected rather than silently ignored, which surfaces typos at the
//	call site.
//
// Outputs:
//
//	map[string]any - One entry per declared parameter.
//	error - ErrUnknownParameter or ErrInvalidParameter naming the
//	offending parameter.
func (s AlgorithmSpec) Resolve(params map[string]any) (map[string]any, error) {
	declared := make(map[string]ParamSpec, len(s.Params))
	for _, p := range s.Params {
		declared[p.Name] = p
	}
	for name := range params {
		if _, ok := declared[name]; !ok {
			return nil, fmt.Errorf("%w: %q is not a parameter of %s", ErrUnknownParameter, name, s.Name)
		}
	}

	resolved := make(map[string]any, len(s.Params))
	for _, p := range s.Params {
		value, supplied := params[p.Name]
		if !supplied {
			resolved[p.Name] = p.Default
			continue
		}
		if p.Validate != nil {
			if err := p.Validate(value); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidParameter, p.Name, err)
			}
		}
		resolved[p.Name] = value
	}
	return resolved, nil
}

// Algorithms returns the full registry in a stable presentation order.
// The returned slice is freshly allocated; the specs inside share no
// mutable state.
func Algorithms() []AlgorithmSpec {
	return []AlgorithmSpec{
		componentsSpec(),
		centralitySpec(),
		gapsSpec(),
		clustersSpec(),
	}
}

// LookupAlgorithm finds a registered algorithm by name.
func LookupAlgorithm(name string) (AlgorithmSpec, error) {
	for _, spec := range Algorithms() {
		if spec.Name == name {
			return spec, nil
		}
	}
	return AlgorithmSpec{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// Execute runs a registered algorithm uniformly: resolve and validate
// parameters, run the analysis, and wrap the payload in an AlgorithmResult
// stamped with wall-clock milliseconds, the graph's node count, and the
// resolved parameters.
//
// Errors:
//
//	ErrUnknownAlgorithm - no algorithm with the given name
//	ErrUnknownParameter, ErrInvalidParameter - parameter resolution failed
//	Any error of the underlying analysis (see the per-analysis functions).
func Execute(ctx context.Context, g *Graph, name string, params map[string]any) (*AlgorithmResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	spec, err := LookupAlgorithm(name)
	if err != nil {
		return nil, err
	}
	resolved, err := spec.Resolve(params)
	if err != nil {
		return nil, err
	}

	ctx, span := algorithmTracer.Start(ctx, "graph.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("algorithm", name),
		attribute.Int("graph.nodes", g.NodeCount()),
	)

	start := time.Now()
	data, extras, err := spec.run(ctx, g, resolved)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	elapsed := time.Since(start)

	slog.Debug("Algorithm execution complete",
		"algorithm", name,
		"graph_nodes", g.NodeCount(),
		"elapsed_ms", elapsed.Milliseconds())

	return &AlgorithmResult{
		AlgorithmName: name,
		Timestamp:     time.Now().UTC(),
		Data:          data,
		Metadata: ResultMetadata{
			ExecutionTimeMs: float64(elapsed.Microseconds()) / 1000.0,
			GraphSize:       g.NodeCount(),
			Parameters:      resolved,
			Extras:          extras,
		},
	}, nil
}

// componentsSpec declares the connected-component decomposition.
func componentsSpec() AlgorithmSpec {
	return AlgorithmSpec{
		Name:        AlgorithmComponents,
		Category:    CategoryRelationshipAnalysis,
		Description: "Partitions the graph into connected components over undirected adjacency.",
		Params:      []ParamSpec{},
		run: func(ctx context.Context, g *Graph, _ map[string]any) (any, map[string]any, error) {
			res, err := Components(ctx, g)
			if err != nil {
				return nil, nil, err
			}
			return res.Components, map[string]any{"componentStats": res.Stats}, nil
		},
	}
}

// centralitySpec declares betweenness centrality.
func centralitySpec() AlgorithmSpec {
	defaults := DefaultCentralityOptions()
	return AlgorithmSpec{
		Name:        AlgorithmCentrality,
		Category:    CategoryRelationshipAnalysis,
		Description: "Computes betweenness centrality per component with Brandes' algorithm.",
		Params: []ParamSpec{
			{
				Name:        "normalize",
				Type:        "boolean",
				Description: "Divide scores by each component's own maximum.",
				Default:     defaults.Normalize,
				Validate:    validateBool,
			},
			{
				Name:        "directed",
				Type:        "boolean",
				Description: "Recorded for callers; traversal is always undirected.",
				Default:     defaults.Directed,
				Validate:    validateBool,
			},
		},
		run: func(ctx context.Context, g *Graph, resolved map[string]any) (any, map[string]any, error) {
			opts := CentralityOptions{
				Normalize: boolParam(resolved, "normalize"),
				Directed:  boolParam(resolved, "directed"),
			}
			res, err := BetweennessCentrality(ctx, g, opts)
			if err != nil {
				return nil, nil, err
			}
			return res.Scores, map[string]any{"componentStats": res.Stats}, nil
		},
	}
}

// gapsSpec declares gap detection.
func gapsSpec() AlgorithmSpec {
	defaults := DefaultGapOptions()
	return AlgorithmSpec{
		Name:        AlgorithmGaps,
		Category:    CategoryGapDetection,
		Description: "Scores plausible missing connections between unlinked concept pairs.",
		Params: []ParamSpec{
			{
				Name:        "minConfidence",
				Type:        "number",
				Description: "Minimum confidence for a reported gap, in [0, 1].",
				Default:     defaults.MinConfidence,
				Validate:    validateUnitInterval,
			},
			{
				Name:        "maxGapDistance",
				Type:        "integer",
				Description: "Maximum shortest-path distance between candidate pairs.",
				Default:     defaults.MaxGapDistance,
				Validate:    validatePositiveInt,
			},
			{
				Name:        "considerCitations",
				Type:        "boolean",
				Description: "Fold citation counts into confidence scoring.",
				Default:     defaults.ConsiderCitations,
				Validate:    validateBool,
			},
		},
		run: func(ctx context.Context, g *Graph, resolved map[string]any) (any, map[string]any, error) {
			opts := GapOptions{
				MinConfidence:     floatParam(resolved, "minConfidence"),
				MaxGapDistance:    intParam(resolved, "maxGapDistance"),
				ConsiderCitations: boolParam(resolved, "considerCitations"),
			}
			res, err := DetectGaps(ctx, g, opts)
			if err != nil {
				return nil, nil, err
			}
			return res.Gaps, map[string]any{"componentStats": res.Stats}, nil
		},
	}
}

// clustersSpec declares cluster detection.
func clustersSpec() AlgorithmSpec {
	defaults := DefaultClusterOptions()
	return AlgorithmSpec{
		Name:        AlgorithmClusters,
		Category:    CategoryPatternRecognition,
		Description: "Finds cohesive concept groups via compatibility-guided growth.",
		Params: []ParamSpec{
			{
				Name:        "minClusterSize",
				Type:        "integer",
				Description: "Minimum member count for a reported cluster (at least 2).",
				Default:     defaults.MinClusterSize,
				Validate:    validateMinClusterSize,
			},
			{
				Name:        "minCohesion",
				Type:        "number",
				Description: "Minimum composite cohesion for a reported cluster, in [0, 1].",
				Default:     defaults.MinCohesion,
				Validate:    validateUnitInterval,
			},
			{
				Name:        "considerCitations",
				Type:        "boolean",
				Description: "Include citation density in cohesion and importance.",
				Default:     defaults.ConsiderCitations,
				Validate:    validateBool,
			},
		},
		run: func(ctx context.Context, g *Graph, resolved map[string]any) (any, map[string]any, error) {
			opts := ClusterOptions{
				MinClusterSize:    intParam(resolved, "minClusterSize"),
				MinCohesion:       floatParam(resolved, "minCohesion"),
				ConsiderCitations: boolParam(resolved, "considerCitations"),
			}
			res, err := DetectClusters(ctx, g, opts)
			if err != nil {
				return nil, nil, err
			}
			return res.Clusters, map[string]any{"componentStats": res.Stats}, nil
		},
	}
}

// =============================================================================
// PARAMETER COERCION
// =============================================================================
//
// Parameters arrive as map[string]any, typically decoded from JSON where
// every number is a float64. The validators below accept the JSON shapes;
// the *Param readers coerce resolved values into option fields.

func validateBool(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected a boolean, got %T", value)
	}
	return nil
}

func validateUnitInterval(value any) error {
	f, ok := asFloat(value)
	if !ok {
		return fmt.Errorf("expected a number, got %T", value)
	}
	if f < 0 || f > 1 {
		return fmt.Errorf("must be in [0, 1], got %v", f)
	}
	return nil
}

func validatePositiveInt(value any) error {
	i, ok := asInt(value)
	if !ok {
		return fmt.Errorf("expected an integer, got %v (%T)", value, value)
	}
	if i < 1 {
		return fmt.Errorf("must be positive, got %d", i)
	}
	return nil
}

func validateMinClusterSize(value any) error {
	i, ok := asInt(value)
	if !ok {
		return fmt.Errorf("expected an integer, got %v (%T)", value, value)
	}
	if i < 2 {
		return fmt.Errorf("must be at least 2, got %d", i)
	}
	return nil
}

// asFloat accepts the numeric shapes JSON decoding and Go callers produce.
func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// asInt accepts integers and whole-valued floats.
func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

func boolParam(resolved map[string]any, name string) bool {
	b, _ := resolved[name].(bool)
	return b
}

func floatParam(resolved map[string]any, name string) float64 {
	f, _ := asFloat(resolved[name])
	return f
}

func intParam(resolved map[string]any, name string) int {
	i, _ := asInt(resolved[name])
	return i
}
