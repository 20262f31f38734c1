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

// compatibilityThreshold is the feature-similarity floor used when growth
// and cross-component candidate selection decide whether two vectored
// nodes belong together.
const compatibilityThreshold = 0.3

// FeatureSimilarity scores two sparse feature vectors in [0, 1].
//
// Only fields present on both vectors participate. List fields compare by
// Jaccard overlap (intersection over union), scalar fields by exact
// equality, and mismatched kinds score zero. The result is the mean over
// shared fields; disjoint or empty vectors score zero.
func FeatureSimilarity(a, b FeatureVector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var total float64
	var shared int
	for name, av := range a {
		bv, ok := b[name]
		if !ok {
			continue
		}
		shared++
		total += featureValueSimilarity(av, bv)
	}
	if shared == 0 {
		return 0
	}
	return total / float64(shared)
}

// featureValueSimilarity scores a single shared field.
func featureValueSimilarity(a, b FeatureValue) float64 {
	if a.Kind() != b.Kind() {
		return 0
	}
	if a.Kind() == FeatureScalar {
		if a.Scalar() == b.Scalar() {
			return 1
		}
		return 0
	}
	return jaccardOverlap(a.List(), b.List())
}

// jaccardOverlap computes |A intersect B| / |A union B| over string sets.
func jaccardOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, v := range a {
		setA[v] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, v := range b {
		setB[v] = struct{}{}
	}
	intersection := 0
	for v := range setA {
		if _, ok := setB[v]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// TypesCompatible reports whether two node types form a known compatible
// pair: a type is compatible with itself and with its own "_Category"
// aggregate. Two distinct aggregates are never compatible.
func TypesCompatible(a, b NodeType) bool {
	if a.IsCategory() && b.IsCategory() {
		return a == b
	}
	return a.Base() == b.Base()
}

// nodesCompatible is the growth admission test used by cluster detection
// and cross-component gap candidate selection: two aggregates never match;
// if both nodes carry feature vectors their similarity must clear the
// compatibility threshold; otherwise the pair is accepted.
func nodesCompatible(a, b Node) bool {
	if a.Type.IsCategory() && b.Type.IsCategory() {
		return false
	}
	if len(a.Features) > 0 && len(b.Features) > 0 {
		return FeatureSimilarity(a.Features, b.Features) > compatibilityThreshold
	}
	return true
}
