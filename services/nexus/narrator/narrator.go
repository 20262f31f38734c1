// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package narrator turns analysis results into prose summaries via an LLM.
//
// The narrator is strictly additive: it reads a finished AlgorithmResult
// and produces text. It never feeds anything back into the engine, so a
// hallucinated summary cannot corrupt an analysis. A nil *Narrator is
// valid and reports narration as unavailable.
package narrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianDiscovery/services/nexus/graph"
)

var narratorTracer = otel.Tracer("nexus.narrator")

// Sentinel errors for narration.
var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNotConfigured is returned when narration is requested but no
	// backend is configured.
	ErrNotConfigured = errors.New("narrator not configured")

	// ErrNilResult is returned for a nil analysis result.
	ErrNilResult = errors.New("result must not be nil")

	// ErrEmptyResponse is returned when the backend produces no text.
	ErrEmptyResponse = errors.New("backend returned empty response")
)

// GenerationParams tune a single generation request.
type GenerationParams struct {
	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// LLMClient is the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// systemPrompt frames every narration request.
const systemPrompt = "You are a research analyst summarizing knowledge-graph " +
	"analyses of scientific concepts. Be concrete and brief. Refer only to " +
	"the findings given to you; do not invent nodes or relationships."

// promptFindingLimit caps how many findings are spelled out per prompt so
// large results do not blow the context window.
const promptFindingLimit = 10

// Narrator renders analysis results to prose through an LLMClient.
//
// Thread Safety: safe for concurrent use when the client is.
type Narrator struct {
	client LLMClient
}

// New creates a Narrator over the given backend.
func New(client LLMClient) (*Narrator, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil client", ErrNotConfigured)
	}
	return &Narrator{client: client}, nil
}

// Available reports whether narration is configured. Safe on nil.
func (n *Narrator) Available() bool {
	return n != nil && n.client != nil
}

// Narrate produces a prose summary of one analysis result.
//
// Errors:
//
//	ErrNilContext - ctx is nil
//	ErrNotConfigured - the narrator is nil or has no backend
//	ErrNilResult - result is nil
//	ErrEmptyResponse - the backend returned nothing
func (n *Narrator) Narrate(ctx context.Context, result *graph.AlgorithmResult) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	if !n.Available() {
		return "", ErrNotConfigured
	}
	if result == nil {
		return "", ErrNilResult
	}

	ctx, span := narratorTracer.Start(ctx, "narrator.Narrate")
	defer span.End()
	span.SetAttributes(attribute.String("algorithm", result.AlgorithmName))

	prompt := BuildPrompt(result)
	text, err := n.client.Generate(ctx, prompt, GenerationParams{})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("narrate %s: %w", result.AlgorithmName, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("narrate %s: %w", result.AlgorithmName, ErrEmptyResponse)
	}

	slog.Debug("Narration generated",
		"algorithm", result.AlgorithmName,
		"prompt_chars", len(prompt),
		"response_chars", len(text))
	return text, nil
}

// BuildPrompt renders an algorithm-aware prompt for a result. Exported so
// callers can inspect exactly what would be sent to the backend.
func BuildPrompt(result *graph.AlgorithmResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis: %s over a graph of %d concepts.\n\n",
		result.AlgorithmName, result.Metadata.GraphSize)

	switch data := result.Data.(type) {
	case []graph.Component:
		writeComponentFindings(&b, data)
	case []graph.NodeCentrality:
		writeCentralityFindings(&b, data)
	case []graph.ConceptGap:
		writeGapFindings(&b, data)
	case []graph.ConceptCluster:
		writeClusterFindings(&b, data)
	default:
		fmt.Fprintf(&b, "Findings: %v\n", result.Data)
	}

	b.WriteString("\nSummarize what these findings suggest about the " +
		"structure of this knowledge graph and which concepts deserve " +
		"attention, in at most three short paragraphs.")
	return b.String()
}

func writeComponentFindings(b *strings.Builder, components []graph.Component) {
	isolated := 0
	for _, c := range components {
		if c.IsIsolated {
			isolated++
		}
	}
	fmt.Fprintf(b, "The graph splits into %d connected components, %d of them isolated single concepts.\n",
		len(components), isolated)
	for i, c := range components {
		if i >= promptFindingLimit {
			fmt.Fprintf(b, "... and %d more components.\n", len(components)-i)
			break
		}
		sample := c.Members
		if len(sample) > 5 {
			sample = sample[:5]
		}
		fmt.Fprintf(b, "- %s: %d concepts (e.g. %s)\n", c.ID, c.Size, strings.Join(sample, ", "))
	}
}

func writeCentralityFindings(b *strings.Builder, scores []graph.NodeCentrality) {
	ranked := make([]graph.NodeCentrality, len(scores))
	copy(ranked, scores)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].NodeID < ranked[j].NodeID
	})

	b.WriteString("Betweenness centrality, highest first:\n")
	for i, s := range ranked {
		if i >= promptFindingLimit {
			break
		}
		fmt.Fprintf(b, "- %s: %.3f (in %s)\n", s.NodeID, s.Score, s.ComponentID)
	}
}

func writeGapFindings(b *strings.Builder, gaps []graph.ConceptGap) {
	fmt.Fprintf(b, "%d potential missing links between concepts:\n", len(gaps))
	for i, gap := range gaps {
		if i >= promptFindingLimit {
			fmt.Fprintf(b, "... and %d more gaps.\n", len(gaps)-i)
			break
		}
		fmt.Fprintf(b, "- %s <-> %s: confidence %.2f, %s gap", gap.Source, gap.Target, gap.Confidence, gap.Type)
		if gap.CrossComponent {
			b.WriteString(", spans disconnected components")
		}
		if len(gap.Bridges) > 0 {
			fmt.Fprintf(b, ", possible bridge via %s", gap.Bridges[0].NodeID)
		}
		b.WriteString("\n")
	}
}

func writeClusterFindings(b *strings.Builder, clusters []graph.ConceptCluster) {
	fmt.Fprintf(b, "%d concept clusters, strongest cohesion first:\n", len(clusters))
	for i, c := range clusters {
		if i >= promptFindingLimit {
			fmt.Fprintf(b, "... and %d more clusters.\n", len(clusters)-i)
			break
		}
		var keys []string
		for _, kn := range c.KeyNodes {
			keys = append(keys, fmt.Sprintf("%s (%s)", kn.NodeID, kn.Role))
		}
		fmt.Fprintf(b, "- %s: %d members, cohesion %.2f, %s cluster; key nodes: %s\n",
			c.ID, len(c.Members), c.Cohesion, c.Type, strings.Join(keys, ", "))
	}
}
