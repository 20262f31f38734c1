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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianDiscovery/services/nexus/graph"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/loader"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/narrator"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/store"
)

func init() {
	// Set Gin to test mode to reduce noise
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(svc *Service) *gin.Engine {
	router := gin.New()
	handlers := NewHandlers(svc)
	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}

func TestHandlers_HandleHealth(t *testing.T) {
	router := setupTestRouter(NewService(loader.New()))

	req, _ := http.NewRequest("GET", "/v1/nexus/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %q", resp.Status)
	}
	if resp.Version != ServiceVersion {
		t.Errorf("expected version %q, got %q", ServiceVersion, resp.Version)
	}
}

func TestHandlers_HandleReady(t *testing.T) {
	svc := NewService(loader.New())
	router := setupTestRouter(svc)

	// Not ready before a graph is loaded.
	req, _ := http.NewRequest("GET", "/v1/nexus/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d before load, got %d", http.StatusServiceUnavailable, w.Code)
	}

	loadTestGraph(t, svc)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d after load, got %d", http.StatusOK, w.Code)
	}

	var resp ReadyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if !resp.Ready || !resp.GraphLoaded {
		t.Errorf("expected Ready and GraphLoaded, got %+v", resp)
	}
}

func TestHandlers_HandleAlgorithms(t *testing.T) {
	router := setupTestRouter(NewService(loader.New()))

	req, _ := http.NewRequest("GET", "/v1/nexus/algorithms", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp AlgorithmsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Algorithms) != 4 {
		t.Errorf("expected 4 algorithms, got %d", len(resp.Algorithms))
	}
}

func TestHandlers_HandleLoadGraph(t *testing.T) {
	router := setupTestRouter(NewService(loader.New()))

	req, _ := http.NewRequest("POST", "/v1/nexus/graph",
		bytes.NewBufferString(testDocument))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp LoadGraphResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Stats.Nodes != 4 {
		t.Errorf("expected 4 nodes, got %d", resp.Stats.Nodes)
	}
}

func TestHandlers_HandleLoadGraph_Invalid(t *testing.T) {
	router := setupTestRouter(NewService(loader.New()))

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed json",
			body:       "not json",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_DOCUMENT",
		},
		{
			name:       "unsupported schema",
			body:       `{"schemaVersion": "v2.0.0"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "UNSUPPORTED_SCHEMA",
		},
		{
			name:       "unknown node type",
			body:       `{"schemaVersion": "v1.0.0", "nodes": [{"id": "x", "type": "Widget"}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_DOCUMENT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("POST", "/v1/nexus/graph",
				bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}

			var errResp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if errResp.Code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, errResp.Code)
			}
		})
	}
}

func TestHandlers_HandleGraphStats_NoGraph(t *testing.T) {
	router := setupTestRouter(NewService(loader.New()))

	req, _ := http.NewRequest("GET", "/v1/nexus/graph/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestHandlers_HandleAnalyze(t *testing.T) {
	st, err := store.Open(store.InMemoryConfig())
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := NewService(loader.New(), WithRunStore(st))
	loadTestGraph(t, svc)
	router := setupTestRouter(svc)

	body := `{"algorithm": "connected-components"}`
	req, _ := http.NewRequest("POST", "/v1/nexus/analyze", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp AnalyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Result == nil {
		t.Fatal("expected a result")
	}
	if resp.Result.AlgorithmName != graph.AlgorithmComponents {
		t.Errorf("AlgorithmName = %q", resp.Result.AlgorithmName)
	}
	if resp.RunID == "" {
		t.Error("expected a run id")
	}

	// The run shows up in history.
	histReq, _ := http.NewRequest("GET", "/v1/nexus/history/"+resp.RunID, nil)
	histW := httptest.NewRecorder()
	router.ServeHTTP(histW, histReq)
	if histW.Code != http.StatusOK {
		t.Errorf("expected status %d for stored run, got %d", http.StatusOK, histW.Code)
	}
}

func TestHandlers_HandleAnalyze_Errors(t *testing.T) {
	svc := NewService(loader.New())
	router := setupTestRouter(svc)

	tests := []struct {
		name       string
		body       string
		loadGraph  bool
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing algorithm",
			body:       "{}",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "no graph",
			body:       `{"algorithm": "connected-components"}`,
			wantStatus: http.StatusNotFound,
			wantCode:   "NO_GRAPH",
		},
		{
			name:       "unknown algorithm",
			body:       `{"algorithm": "page-rank"}`,
			loadGraph:  true,
			wantStatus: http.StatusBadRequest,
			wantCode:   "UNKNOWN_ALGORITHM",
		},
		{
			name:       "unknown parameter",
			body:       `{"algorithm": "gap-detection", "parameters": {"bogus": 1}}`,
			loadGraph:  true,
			wantStatus: http.StatusBadRequest,
			wantCode:   "UNKNOWN_PARAMETER",
		},
		{
			name:       "invalid parameter value",
			body:       `{"algorithm": "gap-detection", "parameters": {"minConfidence": "high"}}`,
			loadGraph:  true,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PARAMETER",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.loadGraph && !svc.HasGraph() {
				loadTestGraph(t, svc)
			}
			req, _ := http.NewRequest("POST", "/v1/nexus/analyze",
				bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}

			var errResp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if errResp.Code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, errResp.Code)
			}
		})
	}
}

func TestHandlers_HandleAnalyze_RateLimited(t *testing.T) {
	svc := NewService(loader.New(), WithAnalyzeRate(1, 1))
	loadTestGraph(t, svc)
	router := setupTestRouter(svc)

	body := `{"algorithm": "connected-components"}`
	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req, _ := http.NewRequest("POST", "/v1/nexus/analyze", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("request %d: expected status %d, got %d", i, want, w.Code)
		}
	}
}

func TestHandlers_HandleAnalyze_WithNarration(t *testing.T) {
	n, err := narrator.New(&stubLLM{response: "One connected island."})
	if err != nil {
		t.Fatalf("narrator.New failed: %v", err)
	}
	svc := NewService(loader.New(), WithNarrator(n))
	loadTestGraph(t, svc)
	router := setupTestRouter(svc)

	body := `{"algorithm": "connected-components", "narrate": true}`
	req, _ := http.NewRequest("POST", "/v1/nexus/analyze", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp AnalyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Narration != "One connected island." {
		t.Errorf("Narration = %q", resp.Narration)
	}
}

func TestHandlers_HandleHistory(t *testing.T) {
	st, err := store.Open(store.InMemoryConfig())
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := NewService(loader.New(), WithRunStore(st))
	loadTestGraph(t, svc)
	router := setupTestRouter(svc)

	if _, _, err := svc.Analyze(context.Background(), graph.AlgorithmComponents, nil); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	req, _ := http.NewRequest("GET", "/v1/nexus/history?limit=5", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(resp.Runs))
	}
}

func TestHandlers_HandleHistory_BadLimit(t *testing.T) {
	router := setupTestRouter(NewService(loader.New()))

	req, _ := http.NewRequest("GET", "/v1/nexus/history?limit=banana", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandlers_HandleRun_NotFound(t *testing.T) {
	router := setupTestRouter(NewService(loader.New()))

	req, _ := http.NewRequest("GET", "/v1/nexus/history/no-such-run", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if errResp.Code != "RUN_NOT_FOUND" {
		t.Errorf("expected code RUN_NOT_FOUND, got %q", errResp.Code)
	}
}

func TestHandlers_HandleNarrate_NotConfigured(t *testing.T) {
	router := setupTestRouter(NewService(loader.New()))

	body := `{"result": {"algorithmName": "gap-detection"}}`
	req, _ := http.NewRequest("POST", "/v1/nexus/narrate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestHandlers_HandleSimilar_NoIndex(t *testing.T) {
	svc := NewService(loader.New())
	loadTestGraph(t, svc)
	router := setupTestRouter(svc)

	req, _ := http.NewRequest("GET", "/v1/nexus/similar/alginate", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestHandlers_HandleSimilar_UnknownNode(t *testing.T) {
	svc := NewService(loader.New())
	loadTestGraph(t, svc)
	router := setupTestRouter(svc)

	req, _ := http.NewRequest("GET", "/v1/nexus/similar/ghost", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestHandlers_RequestIDEcho(t *testing.T) {
	router := setupTestRouter(NewService(loader.New()))

	req, _ := http.NewRequest("POST", "/v1/nexus/analyze", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want req-123", got)
	}
}
