// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package semdex mirrors graph concepts into Weaviate for similarity
// search beyond the engine's exact feature matching.
//
// Concepts are embedded locally by feature hashing, so no external
// embedding service is needed: each feature token of a node hashes to a
// dimension of a fixed-width vector. Two nodes sharing feature values
// share dimensions, which makes vector distance a smooth relaxation of
// the engine's Jaccard overlap.
//
// The index is optional. A nil *Index is valid and reports itself
// unavailable.
package semdex

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianDiscovery/services/nexus/graph"
)

var semdexTracer = otel.Tracer("nexus.semdex")

// ClassName is the Weaviate class holding indexed concepts.
const ClassName = "NexusConcept"

// embeddingDim is the width of the feature-hash embedding.
const embeddingDim = 256

// originExcerptLimit caps how much provenance text is stored per concept.
const originExcerptLimit = 512

// Sentinel errors for the semantic index.
var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNotAvailable is returned when the index is nil or disabled.
	ErrNotAvailable = errors.New("semantic index not available")

	// ErrNodeNotIndexed is returned when a similarity query names a node
	// that was never indexed.
	ErrNodeNotIndexed = errors.New("node not indexed")
)

// SimilarConcept is one similarity search hit.
type SimilarConcept struct {
	NodeID    string  `json:"nodeId"`
	NodeType  string  `json:"nodeType"`
	Certainty float64 `json:"certainty"`
}

// Index is a Weaviate-backed semantic concept index.
//
// Thread Safety: safe for concurrent use.
type Index struct {
	client   *weaviate.Client
	splitter textsplitter.RecursiveCharacter
}

// New connects to Weaviate and verifies readiness.
//
// Inputs:
//
//	ctx - Used for the readiness probe.
//	scheme - "http" or "https".
//	host - Host and port, e.g. "localhost:8080".
//	apiKey - Optional API key; empty means anonymous access.
func New(ctx context.Context, scheme, host, apiKey string) (*Index, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	cfg := weaviate.Config{Host: host, Scheme: scheme}
	if apiKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: apiKey}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	ready, err := client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate readiness check: %w", err)
	}
	if !ready {
		return nil, fmt.Errorf("%w: weaviate not ready at %s://%s", ErrNotAvailable, scheme, host)
	}

	sp := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(originExcerptLimit),
		textsplitter.WithChunkOverlap(0),
	)

	slog.Info("Semantic index connected", "host", host, "scheme", scheme)
	return &Index{client: client, splitter: sp}, nil
}

// Available reports whether the index can serve queries. Safe on nil.
func (x *Index) Available() bool {
	return x != nil && x.client != nil
}

// EnsureSchema creates the NexusConcept class if it does not exist.
func (x *Index) EnsureSchema(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	if !x.Available() {
		return ErrNotAvailable
	}

	exists, err := x.client.Schema().ClassExistenceChecker().
		WithClassName(ClassName).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("check %s class: %w", ClassName, err)
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class:       ClassName,
		Description: "A concept node from a CNM knowledge graph.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:         "nodeId",
				DataType:     []string{"text"},
				Description:  "Graph node id.",
				Tokenization: "field",
			},
			{
				Name:         "nodeType",
				DataType:     []string{"text"},
				Description:  "CNM node type.",
				Tokenization: "field",
			},
			{
				Name:        "origin",
				DataType:    []string{"text"},
				Description: "Provenance excerpt.",
			},
		},
	}
	if err := x.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create %s class: %w", ClassName, err)
	}

	slog.Info("Semantic index schema created", "class", ClassName)
	return nil
}

// IndexGraph replaces the indexed concepts with the nodes of g.
//
// Outputs:
//
//	int - Number of concepts successfully indexed.
//	error - ErrNilContext, ErrNotAvailable, or a Weaviate failure.
func (x *Index) IndexGraph(ctx context.Context, g *graph.Graph) (int, error) {
	if ctx == nil {
		return 0, ErrNilContext
	}
	if !x.Available() {
		return 0, ErrNotAvailable
	}

	ctx, span := semdexTracer.Start(ctx, "semdex.IndexGraph")
	defer span.End()
	span.SetAttributes(attribute.Int("nodes", g.NodeCount()))

	nodes := g.Nodes()
	if len(nodes) == 0 {
		return 0, nil
	}

	objects := make([]*models.Object, len(nodes))
	for i, node := range nodes {
		objects[i] = &models.Object{
			Class:  ClassName,
			ID:     ConceptUUID(node.ID),
			Vector: featureEmbedding(node),
			Properties: map[string]interface{}{
				"nodeId":   node.ID,
				"nodeType": node.Type.String(),
				"origin":   x.originExcerpt(node.Origin),
			},
		}
	}

	resp, err := x.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("batch index concepts: %w", err)
	}

	indexed := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			indexed++
			continue
		}
		if item.Result != nil && item.Result.Errors != nil {
			for _, e := range item.Result.Errors.Error {
				slog.Warn("Concept index batch item failed", "error", e.Message)
			}
		}
	}

	slog.Debug("Graph indexed", "nodes", len(nodes), "indexed", indexed)
	return indexed, nil
}

// Similar returns up to limit concepts nearest to the given node.
//
// Errors:
//
//	ErrNilContext - ctx is nil
//	ErrNotAvailable - the index is nil or disabled
//	ErrNodeNotIndexed - the node has no indexed concept
func (x *Index) Similar(ctx context.Context, nodeID string, limit int) ([]SimilarConcept, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if !x.Available() {
		return nil, ErrNotAvailable
	}
	if limit < 1 {
		limit = 10
	}

	ctx, span := semdexTracer.Start(ctx, "semdex.Similar")
	defer span.End()
	span.SetAttributes(attribute.String("node_id", nodeID), attribute.Int("limit", limit))

	nearObject := x.client.GraphQL().NearObjectArgBuilder().
		WithID(string(ConceptUUID(nodeID)))

	fields := []graphql.Field{
		{Name: "nodeId"},
		{Name: "nodeType"},
		{Name: "_additional { certainty }"},
	}

	// Fetch one extra hit: the query node itself comes back first.
	result, err := x.client.GraphQL().Get().
		WithClassName(ClassName).
		WithFields(fields...).
		WithNearObject(nearObject).
		WithLimit(limit + 1).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("similarity query for %s: %w", nodeID, err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s: %s", ErrNodeNotIndexed, nodeID, result.Errors[0].Message)
	}

	return parseSimilar(result.Data, nodeID, limit)
}

// parseSimilar unpacks a GraphQL Get response, dropping the query node.
func parseSimilar(data map[string]models.JSONObject, selfID string, limit int) ([]SimilarConcept, error) {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected response shape: no Get block")
	}
	rows, ok := get[ClassName].([]interface{})
	if !ok {
		return []SimilarConcept{}, nil
	}

	hits := []SimilarConcept{}
	for _, row := range rows {
		obj, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		hit := SimilarConcept{}
		if v, ok := obj["nodeId"].(string); ok {
			hit.NodeID = v
		}
		if v, ok := obj["nodeType"].(string); ok {
			hit.NodeType = v
		}
		if add, ok := obj["_additional"].(map[string]interface{}); ok {
			if v, ok := add["certainty"].(float64); ok {
				hit.Certainty = v
			}
		}
		if hit.NodeID == "" || hit.NodeID == selfID {
			continue
		}
		hits = append(hits, hit)
		if len(hits) >= limit {
			break
		}
	}
	return hits, nil
}

// originExcerpt trims provenance text to its first chunk.
func (x *Index) originExcerpt(origin string) string {
	if origin == "" {
		return ""
	}
	chunks, err := x.splitter.SplitText(origin)
	if err != nil || len(chunks) == 0 {
		if len(origin) > originExcerptLimit {
			return origin[:originExcerptLimit]
		}
		return origin
	}
	return chunks[0]
}

// ConceptUUID derives the deterministic Weaviate object id for a node, so
// re-indexing overwrites instead of duplicating.
func ConceptUUID(nodeID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(ClassName+"/"+nodeID)).String())
}

// featureEmbedding hashes a node's feature tokens into a fixed-width
// unit vector. Nodes with no features embed as their type token alone.
func featureEmbedding(node graph.Node) []float32 {
	vec := make([]float32, embeddingDim)
	bump := func(token string) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[h.Sum32()%embeddingDim]++
	}

	bump("type=" + node.Type.String())
	for name, value := range node.Features {
		if value.Kind() == graph.FeatureList {
			for _, item := range value.List() {
				bump(name + "=" + item)
			}
			continue
		}
		bump(name + "=" + value.Scalar())
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}
