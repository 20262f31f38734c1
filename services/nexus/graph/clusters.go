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
	"math"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var clusterTracer = otel.Tracer("nexus.graph.clusters")

// Cohesion sub-score weights. The final cohesion is the weighted sum divided
// by the number of sub-scores actually included, so the practical ceiling
// with structural and semantic cohesion alone is 0.4.
const (
	cohesionStructuralWeight = 0.4
	cohesionSemanticWeight   = 0.4
	cohesionCitationWeight   = 0.2

	keyNodeFraction   = 0.2
	clusterMergeLimit = 0.5
	topicLimit        = 5
)

// ClusterType classifies a cluster by the dominant kind of its members.
type ClusterType string

const (
	ClusterTheoretical    ClusterType = "theoretical"
	ClusterExperimental   ClusterType = "experimental"
	ClusterMethodological ClusterType = "methodological"
	ClusterMixed          ClusterType = "mixed"
)

// KeyNodeRole tags a key node's structural position in its cluster.
type KeyNodeRole string

const (
	// RoleConnector marks a key node with more than half its edges leaving
	// the cluster.
	RoleConnector KeyNodeRole = "connector"

	// RoleSpecialist marks a key node that is a taxonomy aggregate.
	RoleSpecialist KeyNodeRole = "specialist"

	// RoleCentral is the default role for a key node.
	RoleCentral KeyNodeRole = "central"
)

// ClusterOptions configures cluster detection.
type ClusterOptions struct {
	// MinClusterSize is the minimum member count; must be at least 2.
	MinClusterSize int `json:"minClusterSize"`

	// MinCohesion filters candidate clusters; range [0, 1]. Because final
	// cohesion is a weighted mean capped near 0.4 without citations,
	// thresholds above that admit nothing.
	MinCohesion float64 `json:"minCohesion"`

	// ConsiderCitations adds the citation-density sub-score and folds
	// citation counts into key-node importance.
	ConsiderCitations bool `json:"considerCitations"`
}

// DefaultClusterOptions returns the default configuration.
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{
		MinClusterSize:    3,
		MinCohesion:       0.3,
		ConsiderCitations: true,
	}
}

// Validate rejects out-of-range options, naming the offending parameter.
func (o ClusterOptions) Validate() error {
	if o.MinClusterSize < 2 {
		return fmt.Errorf("%w: minClusterSize must be at least 2, got %d", ErrInvalidParameter, o.MinClusterSize)
	}
	if o.MinCohesion < 0 || o.MinCohesion > 1 {
		return fmt.Errorf("%w: minCohesion must be in [0, 1], got %v", ErrInvalidParameter, o.MinCohesion)
	}
	return nil
}

// KeyNode is a cluster member ranked important by degree (and citations when
// enabled), tagged with its structural role.
type KeyNode struct {
	NodeID     string      `json:"nodeId"`
	Importance float64     `json:"importance"`
	Role       KeyNodeRole `json:"role"`
}

// ClusterMetadata summarizes a cluster for downstream consumers.
type ClusterMetadata struct {
	// Size is the member count.
	Size int `json:"size"`

	// Density is edges present over possible edges among members.
	Density float64 `json:"density"`

	// CitationCount is the number of cites-source edges among members.
	CitationCount int `json:"citationCount"`

	// PrimaryTopics lists up to five most frequent feature values across
	// member feature vectors.
	PrimaryTopics []string `json:"primaryTopics,omitempty"`
}

// ConceptCluster is one detected cohesive node group.
type ConceptCluster struct {
	// ID is "cluster-<seq>" in post-merge output order.
	ID string `json:"id"`

	// Members lists member node ids in graph insertion order.
	Members []string `json:"members"`

	// Cohesion is the composite score in [0, 1]; see ClusterOptions.
	Cohesion float64 `json:"cohesion"`

	// Type is the majority classification of the membership.
	Type ClusterType `json:"clusterType"`

	// KeyNodes lists the top members by importance, best first.
	KeyNodes []KeyNode `json:"keyNodes"`

	// Description is a generated prose summary referencing key nodes.
	Description string `json:"description"`

	// Metadata carries size, density, citation, and topic summaries.
	Metadata ClusterMetadata `json:"metadata"`
}

// ClusterResult is the output of cluster detection.
type ClusterResult struct {
	// Clusters is sorted by cohesion descending.
	Clusters []ConceptCluster `json:"clusters"`

	// Stats carries the underlying component decomposition statistics.
	Stats ComponentStats `json:"componentStats"`
}

// DetectClusters finds cohesive groups of related concepts.
//
// Description:
//
//	Within each component holding at least MinClusterSize members, every
//	member seeds a compatibility-guided breadth-first growth: a neighbor
//	joins only if it is compatible with the member that discovered it (two
//	taxonomy aggregates never are; two vectored nodes must clear the
//	similarity threshold; unvectored pairs always are). Candidates are
//	scored by cohesion — the weighted mean of structural density, semantic
//	cohesion, and (when enabled) citation density — and dropped below
//	MinClusterSize or MinCohesion. Surviving clusters are classified,
//	annotated with key nodes and metadata, and finally merged pairwise
//	wherever the overlap ratio (intersection over the smaller set) exceeds
//	one half.
//
// Inputs:
//
//	ctx - Context for cancellation, checked per growth seed.
//	g - Frozen graph. An empty graph yields an empty result.
//	opts - Detection thresholds; see ClusterOptions.
//
// Outputs:
//
//	*ClusterResult - Clusters sorted by cohesion descending.
//	error - ErrNilContext, ErrGraphNotFrozen, ErrInvalidParameter, or
//	ErrAnalysisCancelled.
//
// Complexity: every member is a growth seed and cohesion is pairwise over
// members, so roughly O(V^2 * E) per component; practical inputs are
// bounded to the low thousands of nodes.
func DetectClusters(ctx context.Context, g *Graph, opts ClusterOptions) (*ClusterResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if !g.IsFrozen() {
		return nil, ErrGraphNotFrozen
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ctx, span := clusterTracer.Start(ctx, "graph.DetectClusters")
	defer span.End()
	span.SetAttributes(
		attribute.Int("graph.nodes", g.NodeCount()),
		attribute.Int("min_cluster_size", opts.MinClusterSize),
		attribute.Float64("min_cohesion", opts.MinCohesion),
		attribute.Bool("consider_citations", opts.ConsiderCitations),
	)

	decomp, err := Components(ctx, g)
	if err != nil {
		return nil, err
	}

	result := &ClusterResult{Clusters: []ConceptCluster{}, Stats: decomp.Stats}
	seen := make(map[string]struct{})

	for _, comp := range decomp.Components {
		if comp.Size < opts.MinClusterSize {
			continue
		}
		for _, seed := range comp.Members {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrAnalysisCancelled, err)
			}

			members := growCluster(g, seed)
			if len(members) < opts.MinClusterSize {
				continue
			}
			// Different seeds frequently grow identical sets; score each
			// distinct set once.
			key := strings.Join(members, "\x00")
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			cohesion := clusterCohesion(g, members, opts.ConsiderCitations)
			if cohesion < opts.MinCohesion {
				continue
			}
			result.Clusters = append(result.Clusters, buildCluster(g, members, cohesion, opts.ConsiderCitations))
		}
	}

	result.Clusters = mergeOverlapping(g, result.Clusters, opts.ConsiderCitations)

	sort.SliceStable(result.Clusters, func(i, j int) bool {
		if result.Clusters[i].Cohesion != result.Clusters[j].Cohesion {
			return result.Clusters[i].Cohesion > result.Clusters[j].Cohesion
		}
		return result.Clusters[i].Members[0] < result.Clusters[j].Members[0]
	})
	for i := range result.Clusters {
		result.Clusters[i].ID = fmt.Sprintf("cluster-%d", i)
	}

	span.SetAttributes(attribute.Int("clusters.found", len(result.Clusters)))
	slog.Debug("Cluster detection complete",
		"nodes", g.NodeCount(),
		"clusters", len(result.Clusters),
		"min_cohesion", opts.MinCohesion)

	return result, nil
}

// growCluster expands a candidate member set from a seed by breadth-first
// traversal, admitting a neighbor only when it is compatible with the node
// that discovered it. Members are returned in graph insertion order so that
// identical sets grown from different seeds compare equal.
func growCluster(g *Graph, seed string) []string {
	inCluster := map[string]struct{}{seed: {}}
	queue := []string{seed}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		currentNode, _ := g.Node(current)

		for _, neighborID := range g.Neighbors(current) {
			if _, member := inCluster[neighborID]; member {
				continue
			}
			neighbor, _ := g.Node(neighborID)
			if !nodesCompatible(currentNode, neighbor) {
				continue
			}
			inCluster[neighborID] = struct{}{}
			queue = append(queue, neighborID)
		}
	}

	members := make([]string, 0, len(inCluster))
	for _, n := range g.Nodes() {
		if _, member := inCluster[n.ID]; member {
			members = append(members, n.ID)
		}
	}
	return members
}

// clusterCohesion computes the composite cohesion of a member set: the
// weighted sum of the included sub-scores divided by their count.
// Structural density is always included; semantic cohesion when at least
// one member pair carries feature vectors on both sides; citation density
// when enabled.
func clusterCohesion(g *Graph, members []string, considerCitations bool) float64 {
	n := len(members)
	if n < 2 {
		return 0
	}

	var weighted float64
	included := 0

	weighted += cohesionStructuralWeight * structuralDensity(g, members)
	included++

	if semantic, ok := semanticCohesion(g, members); ok {
		weighted += cohesionSemanticWeight * semantic
		included++
	}

	if considerCitations {
		citations := memberCitationEdges(g, members)
		possible := float64(n * (n - 1))
		weighted += cohesionCitationWeight * math.Min(1, float64(citations)/possible)
		included++
	}

	return weighted / float64(included)
}

// structuralDensity is edges present over possible edges among members,
// counting deduplicated undirected adjacency.
func structuralDensity(g *Graph, members []string) float64 {
	n := len(members)
	if n < 2 {
		return 0
	}
	present := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if g.HasEdgeBetween(members[i], members[j]) {
				present++
			}
		}
	}
	return float64(present) / float64(n*(n-1)/2)
}

// semanticCohesion is the mean pairwise feature similarity over member
// pairs where both sides carry vectors. The second return is false when no
// such pair exists.
func semanticCohesion(g *Graph, members []string) (float64, bool) {
	var total float64
	pairs := 0
	for i := 0; i < len(members); i++ {
		a, _ := g.Node(members[i])
		if len(a.Features) == 0 {
			continue
		}
		for j := i + 1; j < len(members); j++ {
			b, _ := g.Node(members[j])
			if len(b.Features) == 0 {
				continue
			}
			total += FeatureSimilarity(a.Features, b.Features)
			pairs++
		}
	}
	if pairs == 0 {
		return 0, false
	}
	return total / float64(pairs), true
}

// memberCitationEdges counts cites-source edges with both endpoints in the
// member set, honoring edge multiplicity.
func memberCitationEdges(g *Graph, members []string) int {
	inSet := make(map[string]struct{}, len(members))
	for _, id := range members {
		inSet[id] = struct{}{}
	}
	count := 0
	for _, e := range g.Edges() {
		if e.Type != EdgeTypeCitesSource {
			continue
		}
		_, src := inSet[e.Source]
		_, dst := inSet[e.Target]
		if src && dst {
			count++
		}
	}
	return count
}

// buildCluster assembles the full cluster record for a scored member set.
func buildCluster(g *Graph, members []string, cohesion float64, considerCitations bool) ConceptCluster {
	keyNodes := identifyKeyNodes(g, members, considerCitations)
	clusterType := classifyCluster(g, members)
	metadata := ClusterMetadata{
		Size:          len(members),
		Density:       structuralDensity(g, members),
		CitationCount: memberCitationEdges(g, members),
		PrimaryTopics: primaryTopics(g, members),
	}
	return ConceptCluster{
		Members:     members,
		Cohesion:    cohesion,
		Type:        clusterType,
		KeyNodes:    keyNodes,
		Description: describeCluster(clusterType, len(members), keyNodes),
		Metadata:    metadata,
	}
}

// classifyCluster takes a majority vote over member type substrings. A
// category must exceed half the membership to win; otherwise the cluster is
// mixed.
func classifyCluster(g *Graph, members []string) ClusterType {
	counts := map[ClusterType]int{}
	for _, id := range members {
		n, _ := g.Node(id)
		typeName := n.Type.String()
		switch {
		case strings.Contains(typeName, "Theoretical"):
			counts[ClusterTheoretical]++
		case strings.Contains(typeName, "Material"), strings.Contains(typeName, "Phenomenon"):
			counts[ClusterExperimental]++
		case strings.Contains(typeName, "Method"):
			counts[ClusterMethodological]++
		}
	}
	half := len(members) / 2
	for _, t := range []ClusterType{ClusterTheoretical, ClusterExperimental, ClusterMethodological} {
		if counts[t] > half {
			return t
		}
	}
	return ClusterMixed
}

// identifyKeyNodes ranks members by importance — degree normalized by the
// cluster maximum, averaged with normalized citation count when enabled —
// and keeps the top fifth (at least one). Each key node is tagged connector
// when more than half its edges leave the cluster, specialist when it is a
// taxonomy aggregate, and central otherwise.
func identifyKeyNodes(g *Graph, members []string, considerCitations bool) []KeyNode {
	inSet := make(map[string]struct{}, len(members))
	for _, id := range members {
		inSet[id] = struct{}{}
	}

	maxDegree, maxCitations := 0, 0
	for _, id := range members {
		if d := g.Degree(id); d > maxDegree {
			maxDegree = d
		}
		if c := g.CitationCount(id); c > maxCitations {
			maxCitations = c
		}
	}

	ranked := make([]KeyNode, 0, len(members))
	for _, id := range members {
		importance := 0.0
		if maxDegree > 0 {
			importance = float64(g.Degree(id)) / float64(maxDegree)
		}
		if considerCitations && maxCitations > 0 {
			importance = (importance + float64(g.CitationCount(id))/float64(maxCitations)) / 2
		}
		ranked = append(ranked, KeyNode{
			NodeID:     id,
			Importance: importance,
			Role:       keyNodeRole(g, id, inSet),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Importance != ranked[j].Importance {
			return ranked[i].Importance > ranked[j].Importance
		}
		return ranked[i].NodeID < ranked[j].NodeID
	})

	keep := int(math.Ceil(float64(len(members)) * keyNodeFraction))
	if keep < 1 {
		keep = 1
	}
	if keep > len(ranked) {
		keep = len(ranked)
	}
	return ranked[:keep]
}

// keyNodeRole classifies one member's structural position.
func keyNodeRole(g *Graph, id string, inSet map[string]struct{}) KeyNodeRole {
	node, _ := g.Node(id)
	if strings.Contains(node.Type.String(), "Category") {
		return RoleSpecialist
	}
	outside := 0
	neighbors := g.Neighbors(id)
	for _, neighbor := range neighbors {
		if _, member := inSet[neighbor]; !member {
			outside++
		}
	}
	if len(neighbors) > 0 && outside*2 > len(neighbors) {
		return RoleConnector
	}
	return RoleCentral
}

// primaryTopics collects the most frequent feature values across member
// vectors, up to the topic limit. Ties break alphabetically.
func primaryTopics(g *Graph, members []string) []string {
	freq := map[string]int{}
	for _, id := range members {
		n, _ := g.Node(id)
		for _, value := range n.Features {
			if value.Kind() == FeatureList {
				for _, item := range value.List() {
					freq[item]++
				}
				continue
			}
			if s := value.Scalar(); s != "" {
				freq[s]++
			}
		}
	}
	if len(freq) == 0 {
		return nil
	}

	topics := make([]string, 0, len(freq))
	for value := range freq {
		topics = append(topics, value)
	}
	sort.SliceStable(topics, func(i, j int) bool {
		if freq[topics[i]] != freq[topics[j]] {
			return freq[topics[i]] > freq[topics[j]]
		}
		return topics[i] < topics[j]
	})
	if len(topics) > topicLimit {
		topics = topics[:topicLimit]
	}
	return topics
}

// describeCluster generates the prose summary, naming the top central and
// connector key nodes when present.
func describeCluster(t ClusterType, size int, keyNodes []KeyNode) string {
	var central, connector string
	for _, k := range keyNodes {
		if central == "" && k.Role == RoleCentral {
			central = k.NodeID
		}
		if connector == "" && k.Role == RoleConnector {
			connector = k.NodeID
		}
	}

	desc := fmt.Sprintf("A %s cluster of %d related concepts", t, size)
	if central != "" {
		desc += fmt.Sprintf(", centered on %q", central)
	}
	if connector != "" {
		desc += fmt.Sprintf(", bridged outward by %q", connector)
	}
	return desc + "."
}

// mergeOverlapping combines clusters whose node-set overlap ratio —
// intersection size over the smaller set's size — exceeds one half. The
// union keeps the mean of the two cohesions, deduplicates key nodes keeping
// the higher importance entry, and recomputes type, description, and
// metadata over the combined membership. A merged cluster keeps absorbing
// later overlapping clusters in one pass.
func mergeOverlapping(g *Graph, clusters []ConceptCluster, considerCitations bool) []ConceptCluster {
	merged := make([]bool, len(clusters))
	out := make([]ConceptCluster, 0, len(clusters))

	for i := range clusters {
		if merged[i] {
			continue
		}
		current := clusters[i]
		for j := i + 1; j < len(clusters); j++ {
			if merged[j] {
				continue
			}
			if overlapRatio(current.Members, clusters[j].Members) > clusterMergeLimit {
				current = mergeClusters(g, current, clusters[j], considerCitations)
				merged[j] = true
			}
		}
		out = append(out, current)
	}
	return out
}

// overlapRatio is intersection size over the smaller set's size.
func overlapRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, id := range a {
		setA[id] = struct{}{}
	}
	intersection := 0
	for _, id := range b {
		if _, ok := setA[id]; ok {
			intersection++
		}
	}
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	return float64(intersection) / float64(smaller)
}

// mergeClusters unions two overlapping clusters.
func mergeClusters(g *Graph, a, b ConceptCluster, considerCitations bool) ConceptCluster {
	inUnion := make(map[string]struct{}, len(a.Members)+len(b.Members))
	for _, id := range a.Members {
		inUnion[id] = struct{}{}
	}
	for _, id := range b.Members {
		inUnion[id] = struct{}{}
	}
	members := make([]string, 0, len(inUnion))
	for _, n := range g.Nodes() {
		if _, ok := inUnion[n.ID]; ok {
			members = append(members, n.ID)
		}
	}

	best := make(map[string]KeyNode, len(a.KeyNodes)+len(b.KeyNodes))
	for _, k := range append(append([]KeyNode{}, a.KeyNodes...), b.KeyNodes...) {
		if existing, ok := best[k.NodeID]; !ok || k.Importance > existing.Importance {
			best[k.NodeID] = k
		}
	}
	keyNodes := make([]KeyNode, 0, len(best))
	for _, k := range best {
		keyNodes = append(keyNodes, k)
	}
	sort.SliceStable(keyNodes, func(i, j int) bool {
		if keyNodes[i].Importance != keyNodes[j].Importance {
			return keyNodes[i].Importance > keyNodes[j].Importance
		}
		return keyNodes[i].NodeID < keyNodes[j].NodeID
	})

	clusterType := classifyCluster(g, members)
	cohesion := (a.Cohesion + b.Cohesion) / 2
	return ConceptCluster{
		Members:     members,
		Cohesion:    cohesion,
		Type:        clusterType,
		KeyNodes:    keyNodes,
		Description: describeCluster(clusterType, len(members), keyNodes),
		Metadata: ClusterMetadata{
			Size:          len(members),
			Density:       structuralDensity(g, members),
			CitationCount: memberCitationEdges(g, members),
			PrimaryTopics: primaryTopics(g, members),
		},
	}
}
