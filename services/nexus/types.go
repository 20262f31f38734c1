// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nexus

import (
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/graph"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/semdex"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/store"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.0.0"

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the machine-readable error code.
	Code string `json:"code,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is returned by GET /ready.
type ReadyResponse struct {
	Ready       bool `json:"ready"`
	GraphLoaded bool `json:"graphLoaded"`
	StoreOK     bool `json:"storeOk"`
	NarratorOK  bool `json:"narratorOk"`
	SemdexOK    bool `json:"semdexOk"`
}

// AlgorithmsResponse is returned by GET /algorithms.
type AlgorithmsResponse struct {
	Algorithms []graph.AlgorithmSpec `json:"algorithms"`
}

// LoadGraphResponse is returned by POST /graph.
type LoadGraphResponse struct {
	Stats graph.GraphStats `json:"stats"`
}

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	// Algorithm is a registry name, e.g. "gap-detection".
	Algorithm string `json:"algorithm" binding:"required"`

	// Parameters are algorithm parameters; omitted ones take defaults.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Narrate requests a prose summary alongside the result.
	Narrate bool `json:"narrate,omitempty"`
}

// AnalyzeResponse is returned by POST /analyze.
type AnalyzeResponse struct {
	RunID     string                 `json:"runId,omitempty"`
	Result    *graph.AlgorithmResult `json:"result"`
	Narration string                 `json:"narration,omitempty"`
}

// HistoryResponse is returned by GET /history.
type HistoryResponse struct {
	Runs []store.Run `json:"runs"`
}

// NarrateRequest is the body of POST /narrate.
type NarrateRequest struct {
	Result *graph.AlgorithmResult `json:"result" binding:"required"`
}

// NarrateResponse is returned by POST /narrate.
type NarrateResponse struct {
	Narration string `json:"narration"`
}

// SimilarResponse is returned by GET /similar/:id.
type SimilarResponse struct {
	NodeID  string                  `json:"nodeId"`
	Similar []semdex.SimilarConcept `json:"similar"`
}
