// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command discovery is the CLI for the Aleutian Discovery graph analysis
// engine. It serves the HTTP API, runs analyses against CNM graph
// documents from the command line, and manages the stored run history.
//
// Usage:
//
//	discovery serve --config config.yaml
//	discovery analyze gap-detection --graph nexus.json --param minConfidence=0.5
//	discovery graph stats --graph nexus.json
//	discovery history list
//	discovery explore --graph nexus.json
package main

import (
	"log"
	"log/slog"

	"github.com/AleutianAI/AleutianDiscovery/pkg/logging"
	"github.com/AleutianAI/AleutianDiscovery/services/nexus/config"
)

var cfg config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

// setupLogging builds the process logger from config and installs it as
// the slog default so library packages pick it up.
func setupLogging() *logging.Logger {
	logger := logging.New(logging.Config{
		Level:   parseLogLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "discovery",
		JSON:    cfg.Logging.JSON,
	})
	slog.SetDefault(logger.Slog())
	return logger
}

func parseLogLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
