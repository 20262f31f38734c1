// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package nexus exposes the graph analysis engine as an HTTP service.
//
// The Service owns one graph at a time, swapped atomically so analyses
// always run against a consistent frozen snapshot: a reload never
// mutates a graph an in-flight analysis is reading. Collaborators
// (run store, InfluxDB recorder, narrator, semantic index) are optional;
// the analysis path works with all of them absent.
package nexus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianDiscovery/services/nexus/graph"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/loader"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/narrator"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/semdex"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/store"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/telemetry"
)

var serviceTracer = otel.Tracer("nexus.service")

// Sentinel errors for the service layer.
var (
	// ErrNoGraph is returned when an operation needs a graph and none is
	// loaded.
	ErrNoGraph = errors.New("no graph loaded")

	// ErrRateLimited is returned when the analysis rate limit is hit.
	ErrRateLimited = errors.New("analysis rate limit exceeded")
)

// WatchEvent is pushed to /watch subscribers when the graph changes.
type WatchEvent struct {
	Type      string           `json:"type"`
	Stats     graph.GraphStats `json:"stats"`
	Timestamp time.Time        `json:"timestamp"`
}

// Service coordinates the engine and its collaborators.
//
// Thread Safety: safe for concurrent use.
type Service struct {
	loader   *loader.Loader
	runs     *store.Store
	recorder *store.Recorder
	narrator *narrator.Narrator
	index    *semdex.Index
	metrics  *telemetry.Metrics
	limiter  *rate.Limiter

	current atomic.Pointer[graph.Graph]

	watchMu  sync.Mutex
	watchers map[chan WatchEvent]struct{}
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*Service)

// WithRunStore attaches the run-history store.
func WithRunStore(s *store.Store) ServiceOption {
	return func(svc *Service) { svc.runs = s }
}

// WithRecorder attaches the InfluxDB trend recorder.
func WithRecorder(r *store.Recorder) ServiceOption {
	return func(svc *Service) { svc.recorder = r }
}

// WithNarrator attaches the LLM narrator.
func WithNarrator(n *narrator.Narrator) ServiceOption {
	return func(svc *Service) { svc.narrator = n }
}

// WithSemanticIndex attaches the Weaviate concept index.
func WithSemanticIndex(x *semdex.Index) ServiceOption {
	return func(svc *Service) { svc.index = x }
}

// WithMetrics attaches service metrics.
func WithMetrics(m *telemetry.Metrics) ServiceOption {
	return func(svc *Service) { svc.metrics = m }
}

// WithAnalyzeRate bounds analyses to perMinute with the given burst.
func WithAnalyzeRate(perMinute, burst int) ServiceOption {
	return func(svc *Service) {
		svc.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
	}
}

// NewService creates a Service around the given document loader.
func NewService(l *loader.Loader, opts ...ServiceOption) *Service {
	svc := &Service{
		loader:   l,
		watchers: make(map[chan WatchEvent]struct{}),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Graph returns the current graph snapshot.
func (s *Service) Graph() (*graph.Graph, error) {
	g := s.current.Load()
	if g == nil {
		return nil, ErrNoGraph
	}
	return g, nil
}

// HasGraph reports whether a graph is loaded.
func (s *Service) HasGraph() bool { return s.current.Load() != nil }

// Stats returns summary statistics for the current graph.
func (s *Service) Stats() (graph.GraphStats, error) {
	g, err := s.Graph()
	if err != nil {
		return graph.GraphStats{}, err
	}
	return g.Stats(), nil
}

// Algorithms lists the analysis registry.
func (s *Service) Algorithms() []graph.AlgorithmSpec {
	return graph.Algorithms()
}

// LoadDocument parses a graph document and installs it as the current
// graph.
func (s *Service) LoadDocument(ctx context.Context, data []byte) (graph.GraphStats, error) {
	if ctx == nil {
		return graph.GraphStats{}, graph.ErrNilContext
	}
	g, err := s.loader.LoadBytes(data)
	if err != nil {
		return graph.GraphStats{}, err
	}
	s.install(ctx, g)
	return g.Stats(), nil
}

// LoadFile loads a graph document from disk and installs it.
func (s *Service) LoadFile(ctx context.Context, path string) (graph.GraphStats, error) {
	g, err := s.loader.LoadFile(ctx, path)
	if err != nil {
		return graph.GraphStats{}, err
	}
	s.install(ctx, g)
	return g.Stats(), nil
}

// install swaps in a new graph, updates gauges, reindexes the semantic
// index, and notifies watch subscribers.
func (s *Service) install(ctx context.Context, g *graph.Graph) {
	s.current.Store(g)
	stats := g.Stats()

	if s.metrics != nil {
		s.metrics.GraphLoadsTotal.Add(ctx, 1)
		s.metrics.GraphNodes.Record(ctx, int64(stats.Nodes))
	}

	if s.index.Available() {
		// Reindexing can take a while on big graphs; it must not block
		// the reload path.
		go func() {
			idxCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := s.index.EnsureSchema(idxCtx); err != nil {
				slog.Warn("Semantic index schema check failed", "error", err)
				return
			}
			indexed, err := s.index.IndexGraph(idxCtx, g)
			if err != nil {
				slog.Warn("Semantic reindex failed", "error", err)
				return
			}
			slog.Info("Semantic index refreshed", "concepts", indexed)
		}()
	}

	s.notify(WatchEvent{Type: "graph_loaded", Stats: stats, Timestamp: time.Now().UTC()})
	slog.Info("Graph installed", "nodes", stats.Nodes, "edges", stats.Edges)
}

// Analyze executes one algorithm against the current graph and records
// the run.
//
// Outputs:
//
//	*graph.AlgorithmResult - The analysis result.
//	string - The stored run id; empty when no run store is attached.
//	error - ErrNoGraph, ErrRateLimited, or an engine error.
func (s *Service) Analyze(ctx context.Context, algorithm string, params map[string]any) (*graph.AlgorithmResult, string, error) {
	if ctx == nil {
		return nil, "", graph.ErrNilContext
	}
	g, err := s.Graph()
	if err != nil {
		return nil, "", err
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return nil, "", ErrRateLimited
	}

	ctx, span := serviceTracer.Start(ctx, "service.Analyze")
	defer span.End()
	span.SetAttributes(attribute.String("algorithm", algorithm))

	result, err := graph.Execute(ctx, g, algorithm, params)
	if err != nil {
		span.RecordError(err)
		if s.metrics != nil {
			s.metrics.ErrorsTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("operation", "analyze")))
		}
		return nil, "", err
	}

	if s.metrics != nil {
		attrs := metric.WithAttributes(attribute.String("algorithm", algorithm))
		s.metrics.AnalysisRunsTotal.Add(ctx, 1, attrs)
		s.metrics.AnalysisDuration.Record(ctx, result.Metadata.ExecutionTimeMs/1000, attrs)
	}

	runID := s.recordRun(ctx, g, result)
	return result, runID, nil
}

// recordRun persists a run and ships its measurement. Both are
// best-effort: history failures never fail an analysis.
func (s *Service) recordRun(ctx context.Context, g *graph.Graph, result *graph.AlgorithmResult) string {
	run := store.Run{
		Algorithm:   result.AlgorithmName,
		Parameters:  result.Metadata.Parameters,
		RequestedAt: result.Timestamp,
		DurationMs:  result.Metadata.ExecutionTimeMs,
		GraphNodes:  g.NodeCount(),
		GraphEdges:  g.EdgeCount(),
		ResultCount: resultCount(result.Data),
	}
	if payload, err := json.Marshal(result); err == nil {
		run.Result = payload
	} else {
		slog.Warn("Failed to serialize result for history", "error", err)
	}

	var runID string
	if s.runs != nil {
		id, err := s.runs.SaveRun(ctx, run)
		if err != nil {
			slog.Warn("Failed to save run history", "algorithm", run.Algorithm, "error", err)
		} else {
			runID = id
			run.ID = id
		}
	}
	s.recorder.Record(ctx, run)
	return runID
}

// resultCount counts top-level findings in a result payload.
func resultCount(data any) int {
	switch d := data.(type) {
	case []graph.Component:
		return len(d)
	case []graph.NodeCentrality:
		return len(d)
	case []graph.ConceptGap:
		return len(d)
	case []graph.ConceptCluster:
		return len(d)
	default:
		return 0
	}
}

// Narrate produces a prose summary for a result.
func (s *Service) Narrate(ctx context.Context, result *graph.AlgorithmResult) (string, error) {
	if !s.narrator.Available() {
		return "", narrator.ErrNotConfigured
	}
	text, err := s.narrator.Narrate(ctx, result)
	if err == nil && s.metrics != nil {
		s.metrics.NarrationsTotal.Add(ctx, 1)
	}
	return text, err
}

// NarrationAvailable reports whether a narration backend is configured.
func (s *Service) NarrationAvailable() bool { return s.narrator.Available() }

// History lists stored runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]store.Run, error) {
	if s.runs == nil {
		return []store.Run{}, nil
	}
	return s.runs.ListRuns(ctx, limit)
}

// Run fetches one stored run by id.
func (s *Service) Run(ctx context.Context, id string) (store.Run, error) {
	if s.runs == nil {
		return store.Run{}, fmt.Errorf("%w: %s", store.ErrRunNotFound, id)
	}
	return s.runs.GetRun(ctx, id)
}

// Similar queries the semantic index for concepts near a node.
func (s *Service) Similar(ctx context.Context, nodeID string, limit int) ([]semdex.SimilarConcept, error) {
	g, err := s.Graph()
	if err != nil {
		return nil, err
	}
	if !g.HasNode(nodeID) {
		return nil, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, nodeID)
	}
	return s.index.Similar(ctx, nodeID, limit)
}

// SemanticIndexAvailable reports whether similarity queries can be served.
func (s *Service) SemanticIndexAvailable() bool { return s.index.Available() }

// Subscribe registers a watch channel. The returned func unsubscribes;
// it must be called to avoid leaking the channel.
func (s *Service) Subscribe() (<-chan WatchEvent, func()) {
	ch := make(chan WatchEvent, 4)
	s.watchMu.Lock()
	s.watchers[ch] = struct{}{}
	s.watchMu.Unlock()

	return ch, func() {
		s.watchMu.Lock()
		delete(s.watchers, ch)
		s.watchMu.Unlock()
	}
}

// notify fans an event out to subscribers, dropping it for any that
// cannot keep up.
func (s *Service) notify(event WatchEvent) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for ch := range s.watchers {
		select {
		case ch <- event:
		default:
		}
	}
}
