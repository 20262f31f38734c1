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
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDiscovery/services/nexus/graph"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/loader"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/narrator"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/store"
)

// resolveGraphPath prefers the --graph flag over the configured document.
func resolveGraphPath() (string, error) {
	if graphPath != "" {
		return graphPath, nil
	}
	if cfg.Graph.DocumentPath != "" {
		return cfg.Graph.DocumentPath, nil
	}
	return "", fmt.Errorf("no graph document: pass --graph or set graph.document_path in config")
}

// loadGraph loads the graph document for one-shot commands.
func loadGraph(ctx context.Context) (*graph.Graph, error) {
	path, err := resolveGraphPath()
	if err != nil {
		return nil, err
	}
	l := loader.New(loader.WithGraphLimits(cfg.Graph.MaxNodes, cfg.Graph.MaxEdges))
	return l.LoadFile(ctx, path)
}

// openRunStore opens the configured badger run-history store.
func openRunStore() (*store.Store, error) {
	sc := store.DefaultConfig()
	sc.Path = cfg.Store.Path
	sc.InMemory = cfg.Store.InMemory
	sc.GCInterval = time.Duration(cfg.Store.GCIntervalMinutes) * time.Minute
	sc.RunTTL = time.Duration(cfg.Store.RunTTLHours) * time.Hour
	return store.Open(sc)
}

// buildNarrator constructs the configured narration backend, or nil when
// narration is disabled.
func buildNarrator() (*narrator.Narrator, error) {
	switch cfg.Narrator.Backend {
	case "openai":
		client, err := narrator.NewOpenAIClient(cfg.Narrator.APIKey, cfg.Narrator.Model)
		if err != nil {
			return nil, fmt.Errorf("openai narrator: %w", err)
		}
		return narrator.New(client)
	case "ollama":
		client, err := narrator.NewOllamaClient(cfg.Narrator.OllamaURL, cfg.Narrator.Model)
		if err != nil {
			return nil, fmt.Errorf("ollama narrator: %w", err)
		}
		return narrator.New(client)
	default:
		return nil, nil
	}
}

// parseParams converts repeated key=value flags into an algorithm
// parameter map, coercing values to bool or float64 where they parse.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --param %q: expected key=value", pair)
		}
		params[key] = coerceParam(value)
	}
	return params, nil
}

func coerceParam(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err == nil {
		return f
	}
	return s
}
