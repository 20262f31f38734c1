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
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianDiscovery/services/nexus/graph"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/loader"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/narrator"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/semdex"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/store"
)

// Handlers holds the HTTP handlers for the nexus API.
type Handlers struct {
	svc *Service
}

// NewHandlers creates the handler set over a service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// HandleHealth handles GET /v1/nexus/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/nexus/ready.
//
// Response:
//
//	200 OK: ReadyResponse (Ready=true) - A graph is loaded.
//	503 Service Unavailable: ReadyResponse (Ready=false) - No graph yet.
func (h *Handlers) HandleReady(c *gin.Context) {
	resp := ReadyResponse{
		Ready:       h.svc.HasGraph(),
		GraphLoaded: h.svc.HasGraph(),
		StoreOK:     h.svc.runs != nil,
		NarratorOK:  h.svc.NarrationAvailable(),
		SemdexOK:    h.svc.SemanticIndexAvailable(),
	}
	if !resp.Ready {
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleAlgorithms handles GET /v1/nexus/algorithms.
func (h *Handlers) HandleAlgorithms(c *gin.Context) {
	c.JSON(http.StatusOK, AlgorithmsResponse{Algorithms: h.svc.Algorithms()})
}

// HandleLoadGraph handles POST /v1/nexus/graph.
//
// Description:
//
//	Accepts a CNM graph document as the request body, builds a frozen
//	graph, and installs it as the current analysis target.
//
// Response:
//
//	200 OK: LoadGraphResponse
//	400 Bad Request: Malformed or invalid document
//	413 Request Entity Too Large: Document over the size cap
func (h *Handlers) HandleLoadGraph(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleLoadGraph")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, loader.MaxDocumentSize+1))
	if err != nil {
		logger.Warn("Failed to read request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Failed to read request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	stats, err := h.svc.LoadDocument(c.Request.Context(), body)
	if err != nil {
		status := http.StatusBadRequest
		code := "INVALID_DOCUMENT"
		if errors.Is(err, loader.ErrDocumentTooLarge) {
			status = http.StatusRequestEntityTooLarge
			code = "DOCUMENT_TOO_LARGE"
		} else if errors.Is(err, loader.ErrUnsupportedSchema) {
			code = "UNSUPPORTED_SCHEMA"
		}
		logger.Warn("Graph load rejected", "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	logger.Info("Graph loaded", "nodes", stats.Nodes, "edges", stats.Edges)
	c.JSON(http.StatusOK, LoadGraphResponse{Stats: stats})
}

// HandleGraphStats handles GET /v1/nexus/graph/stats.
func (h *Handlers) HandleGraphStats(c *gin.Context) {
	stats, err := h.svc.Stats()
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NO_GRAPH"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleAnalyze handles POST /v1/nexus/analyze.
//
// Description:
//
//	Executes one analysis against the current graph, records the run,
//	and optionally narrates the result.
//
// Response:
//
//	200 OK: AnalyzeResponse
//	400 Bad Request: Unknown algorithm or bad parameters
//	404 Not Found: No graph loaded
//	422 Unprocessable Entity: Graph rejected by the algorithm
//	429 Too Many Requests: Rate limit hit
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnalyze")

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	logger.Info("Running analysis", "algorithm", req.Algorithm)

	result, runID, err := h.svc.Analyze(c.Request.Context(), req.Algorithm, req.Parameters)
	if err != nil {
		status, code := analyzeErrorStatus(err)
		logger.Warn("Analysis failed", "algorithm", req.Algorithm, "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	resp := AnalyzeResponse{RunID: runID, Result: result}
	if req.Narrate {
		narration, err := h.svc.Narrate(c.Request.Context(), result)
		if err != nil {
			// Narration is additive; its failure does not void the result.
			logger.Warn("Narration failed", "error", err)
		} else {
			resp.Narration = narration
		}
	}

	logger.Info("Analysis complete",
		"algorithm", req.Algorithm,
		"run_id", runID,
		"execution_ms", result.Metadata.ExecutionTimeMs)
	c.JSON(http.StatusOK, resp)
}

// analyzeErrorStatus maps engine and service errors to HTTP status codes.
func analyzeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNoGraph):
		return http.StatusNotFound, "NO_GRAPH"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, graph.ErrUnknownAlgorithm):
		return http.StatusBadRequest, "UNKNOWN_ALGORITHM"
	case errors.Is(err, graph.ErrUnknownParameter):
		return http.StatusBadRequest, "UNKNOWN_PARAMETER"
	case errors.Is(err, graph.ErrInvalidParameter):
		return http.StatusBadRequest, "INVALID_PARAMETER"
	case errors.Is(err, graph.ErrEmptyGraph), errors.Is(err, graph.ErrGraphNotFrozen):
		return http.StatusUnprocessableEntity, "GRAPH_NOT_ANALYZABLE"
	case errors.Is(err, graph.ErrAnalysisCancelled):
		return http.StatusRequestTimeout, "ANALYSIS_CANCELLED"
	default:
		return http.StatusInternalServerError, "ANALYSIS_FAILED"
	}
}

// HandleHistory handles GET /v1/nexus/history.
//
// Query Parameters:
//
//	limit: Maximum runs to return (default 20).
func (h *Handlers) HandleHistory(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be a positive integer",
				Code:  "INVALID_REQUEST",
			})
			return
		}
		limit = parsed
	}

	runs, err := h.svc.History(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "HISTORY_FAILED"})
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{Runs: runs})
}

// HandleRun handles GET /v1/nexus/history/:id.
func (h *Handlers) HandleRun(c *gin.Context) {
	run, err := h.svc.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "RUN_NOT_FOUND"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "HISTORY_FAILED"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// HandleNarrate handles POST /v1/nexus/narrate.
//
// Response:
//
//	200 OK: NarrateResponse
//	400 Bad Request: Missing result
//	503 Service Unavailable: No narration backend configured
func (h *Handlers) HandleNarrate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleNarrate")

	var req NarrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	narration, err := h.svc.Narrate(c.Request.Context(), req.Result)
	if err != nil {
		if errors.Is(err, narrator.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error: "narration backend not configured",
				Code:  "NARRATOR_UNAVAILABLE",
			})
			return
		}
		logger.Error("Narration failed", "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: "NARRATION_FAILED"})
		return
	}
	c.JSON(http.StatusOK, NarrateResponse{Narration: narration})
}

// HandleSimilar handles GET /v1/nexus/similar/:id.
//
// Query Parameters:
//
//	limit: Maximum hits to return (default 10).
func (h *Handlers) HandleSimilar(c *gin.Context) {
	nodeID := c.Param("id")
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be a positive integer",
				Code:  "INVALID_REQUEST",
			})
			return
		}
		limit = parsed
	}

	similar, err := h.svc.Similar(c.Request.Context(), nodeID, limit)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoGraph):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NO_GRAPH"})
		case errors.Is(err, graph.ErrNodeNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NODE_NOT_FOUND"})
		case errors.Is(err, semdex.ErrNotAvailable):
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "SEMDEX_UNAVAILABLE"})
		default:
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: "SIMILARITY_FAILED"})
		}
		return
	}
	c.JSON(http.StatusOK, SimilarResponse{NodeID: nodeID, Similar: similar})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWatch handles GET /v1/nexus/watch.
//
// Description:
//
//	Upgrades to a WebSocket and streams WatchEvent messages whenever the
//	graph is replaced, until the client disconnects.
func (h *Handlers) HandleWatch(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("Failed to upgrade watch websocket", "error", err)
		return
	}
	defer ws.Close()
	slog.Info("Watch client connected")

	events, unsubscribe := h.svc.Subscribe()
	defer unsubscribe()

	// Reader goroutine: we never expect client messages, but reading is
	// the only way to observe the close frame.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			slog.Info("Watch client disconnected")
			return
		case <-c.Request.Context().Done():
			return
		case event := <-events:
			if err := ws.WriteJSON(event); err != nil {
				slog.Warn("Failed to write watch event", "error", err)
				return
			}
		}
	}
}
