// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianDiscovery/services/nexus"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/loader"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/semdex"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/store"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/telemetry"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/watcher"
)

func runServe(cmd *cobra.Command, args []string) {
	logger := setupLogging()
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Telemetry.Environment,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		OutputError("Failed to initialize telemetry", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("Telemetry shutdown", "error", err)
		}
	}()

	metrics, err := telemetry.NewMetrics(otel.Meter("nexus"))
	if err != nil {
		OutputError("Failed to create metrics", err)
	}

	svc, cleanup, err := buildService(ctx, metrics)
	if err != nil {
		OutputError("Failed to build service", err)
	}
	defer cleanup()

	if cfg.Graph.DocumentPath != "" {
		stats, err := svc.LoadFile(ctx, cfg.Graph.DocumentPath)
		if err != nil {
			OutputError("Failed to load graph document", err)
		}
		slog.Info("Startup graph loaded",
			"path", cfg.Graph.DocumentPath,
			"nodes", stats.Nodes,
			"edges", stats.Edges)
	}

	var docWatcher *watcher.Watcher
	if cfg.Graph.Watch && cfg.Graph.DocumentPath != "" {
		docWatcher, err = watcher.New(cfg.Graph.DocumentPath,
			func(ctx context.Context, path string) error {
				_, err := svc.LoadFile(ctx, path)
				return err
			},
			&watcher.Options{Debounce: time.Duration(cfg.Graph.DebounceMs) * time.Millisecond})
		if err != nil {
			OutputError("Failed to create document watcher", err)
		}
		if err := docWatcher.Start(ctx); err != nil {
			OutputError("Failed to start document watcher", err)
		}
		defer docWatcher.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(telemetry.MetricsMiddleware(metrics))

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	v1 := router.Group("/v1")
	nexus.RegisterRoutes(v1, nexus.NewHandlers(svc))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
	}

	printBanner(addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting Discovery server", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down Discovery server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		OutputError("Server failed", err)
	}
	slog.Info("Discovery server stopped")
}

// buildService assembles the Service from configuration. The returned
// cleanup closes every collaborator that was actually constructed.
func buildService(ctx context.Context, metrics *telemetry.Metrics) (*nexus.Service, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	opts := []nexus.ServiceOption{
		nexus.WithMetrics(metrics),
		nexus.WithAnalyzeRate(cfg.Server.AnalyzeRatePerMinute, cfg.Server.AnalyzeRateBurst),
	}

	runStore, err := openRunStore()
	if err != nil {
		return nil, nil, fmt.Errorf("open run store: %w", err)
	}
	closers = append(closers, func() {
		if err := runStore.Close(); err != nil {
			slog.Warn("Run store close", "error", err)
		}
	})
	opts = append(opts, nexus.WithRunStore(runStore))

	if cfg.Influx.Enabled {
		recorder, err := store.NewRecorder(ctx, cfg.Influx.URL, cfg.Influx.Token,
			cfg.Influx.Org, cfg.Influx.Bucket)
		if err != nil {
			// The recorder is a trend sink, not a dependency; run without it.
			slog.Warn("InfluxDB recorder unavailable", "url", cfg.Influx.URL, "error", err)
		} else {
			closers = append(closers, recorder.Close)
			opts = append(opts, nexus.WithRecorder(recorder))
		}
	}

	n, err := buildNarrator()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if n != nil {
		opts = append(opts, nexus.WithNarrator(n))
		slog.Info("Narrator configured", "backend", cfg.Narrator.Backend, "model", cfg.Narrator.Model)
	}

	if cfg.Semdex.Enabled {
		index, err := semdex.New(ctx, cfg.Semdex.Scheme, cfg.Semdex.Host, cfg.Semdex.APIKey)
		if err != nil {
			slog.Warn("Semantic index unavailable", "host", cfg.Semdex.Host, "error", err)
		} else {
			opts = append(opts, nexus.WithSemanticIndex(index))
		}
	}

	l := loader.New(loader.WithGraphLimits(cfg.Graph.MaxNodes, cfg.Graph.MaxEdges))
	return nexus.NewService(l, opts...), cleanup, nil
}

func printBanner(addr string) {
	banner := `
╔══════════════════════════════════════════════════════════════╗
║                  ALEUTIAN DISCOVERY SERVER                   ║
╠══════════════════════════════════════════════════════════════╣
║                                                              ║
║  Graph analysis over conceptual nexus models:                ║
║  components, centrality, concept gaps, concept clusters.     ║
║                                                              ║
║  Quick Start:                                                ║
║  ┌────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                         │  ║
║  │ curl http://%-22s/v1/nexus/health      │  ║
║  │                                                        │  ║
║  │ # Load a graph document                                │  ║
║  │ curl -X POST http://%-13s/v1/nexus/graph \      │  ║
║  │   -H "Content-Type: application/json" -d @nexus.json   │  ║
║  │                                                        │  ║
║  │ # Run an analysis                                      │  ║
║  │ curl -X POST http://%-13s/v1/nexus/analyze \    │  ║
║  │   -d '{"algorithm": "gap-detection"}'                  │  ║
║  └────────────────────────────────────────────────────────┘  ║
║                                                              ║
║  Press Ctrl+C to stop                                        ║
╚══════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, addr, addr, addr)
}
