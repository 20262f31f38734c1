// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config provides configuration loading for the nexus service.
//
// Defaults ship embedded in the binary; an external YAML file overrides
// them field by field, and secrets come exclusively from environment
// variables:
//
//	NEXUS_OPENAI_API_KEY   - narrator OpenAI backend key
//	NEXUS_INFLUX_TOKEN     - InfluxDB run recorder token
//	NEXUS_WEAVIATE_API_KEY - semdex Weaviate key (optional)
//
// Thread Safety: Load returns an independent Config value; no shared state.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileSize caps external config files at 1MB to prevent memory
// issues from malformed or hostile files.
const MaxConfigFileSize = 1024 * 1024

// Sentinel errors for configuration loading.
var (
	// ErrConfigTooLarge is returned when an external config file exceeds
	// MaxConfigFileSize.
	ErrConfigTooLarge = errors.New("config file too large")

	// ErrInvalidConfig is returned when a config file cannot be parsed.
	ErrInvalidConfig = errors.New("invalid config")
)

//go:embed config.yaml
var defaultConfigYAML []byte

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	ReadTimeoutSeconds     int    `yaml:"read_timeout_seconds"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`

	// AnalyzeRatePerMinute bounds analysis requests; the engine's
	// quadratic algorithms make unthrottled analyze calls an easy way to
	// saturate a core.
	AnalyzeRatePerMinute int `yaml:"analyze_rate_per_minute"`
	AnalyzeRateBurst     int `yaml:"analyze_rate_burst"`
}

// GraphConfig controls graph document loading and hot reload.
type GraphConfig struct {
	// DocumentPath is the CNM graph document loaded at startup. Empty
	// starts the service with no graph; one can be posted later.
	DocumentPath string `yaml:"document_path"`
	MaxNodes     int    `yaml:"max_nodes"`
	MaxEdges     int    `yaml:"max_edges"`

	// Watch reloads DocumentPath on file changes.
	Watch      bool `yaml:"watch"`
	DebounceMs int  `yaml:"debounce_ms"`
}

// StoreConfig controls the badger run-history store.
type StoreConfig struct {
	Path              string `yaml:"path"`
	InMemory          bool   `yaml:"in_memory"`
	GCIntervalMinutes int    `yaml:"gc_interval_minutes"`

	// RunTTLHours expires stored runs; zero keeps them forever.
	RunTTLHours int `yaml:"run_ttl_hours"`
}

// InfluxConfig controls the optional InfluxDB run recorder.
type InfluxConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`

	// Token is populated from NEXUS_INFLUX_TOKEN, never from YAML.
	Token string `yaml:"-"`
}

// NarratorConfig controls the LLM narration backend.
type NarratorConfig struct {
	// Backend is "openai", "ollama", or "none".
	Backend   string `yaml:"backend"`
	Model     string `yaml:"model"`
	OllamaURL string `yaml:"ollama_url"`

	// APIKey is populated from NEXUS_OPENAI_API_KEY, never from YAML.
	APIKey string `yaml:"-"`
}

// SemdexConfig controls the optional Weaviate semantic index.
type SemdexConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Scheme  string `yaml:"scheme"`

	// APIKey is populated from NEXUS_WEAVIATE_API_KEY, never from YAML.
	APIKey string `yaml:"-"`
}

// TelemetryConfig mirrors telemetry.Config in YAML form.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
	TraceExporter  string `yaml:"trace_exporter"`
	MetricExporter string `yaml:"metric_exporter"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
}

// LoggingConfig controls the slog assembly in pkg/logging.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`

	// Dir enables file logging when non-empty.
	Dir string `yaml:"dir"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`
}

// Config is the root nexus service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Graph     GraphConfig     `yaml:"graph"`
	Store     StoreConfig     `yaml:"store"`
	Influx    InfluxConfig    `yaml:"influx"`
	Narrator  NarratorConfig  `yaml:"narrator"`
	Semdex    SemdexConfig    `yaml:"semdex"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Default returns the embedded default configuration.
func Default() Config {
	var cfg Config
	// The embedded defaults are compiled in and must parse.
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		panic(fmt.Sprintf("embedded config.yaml is invalid: %v", err))
	}
	cfg.applyEnv()
	return cfg
}

// Load reads configuration: embedded defaults, then the optional external
// YAML file, then environment overrides for secrets, then Validate.
//
// Inputs:
//
//	path - External YAML path. Empty uses the embedded defaults only.
//
// Outputs:
//
//	Config - Fully resolved configuration.
//	error - ErrConfigTooLarge, ErrInvalidConfig, or a filesystem error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		cfg.Validate()
		return cfg, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return Config{}, fmt.Errorf("%w: %s is %d bytes (limit %d)",
			ErrConfigTooLarge, path, info.Size(), MaxConfigFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	cfg.applyEnv()
	cfg.Validate()
	return cfg, nil
}

// applyEnv pulls secrets from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("NEXUS_OPENAI_API_KEY"); v != "" {
		c.Narrator.APIKey = v
	}
	if v := os.Getenv("NEXUS_INFLUX_TOKEN"); v != "" {
		c.Influx.Token = v
	}
	if v := os.Getenv("NEXUS_WEAVIATE_API_KEY"); v != "" {
		c.Semdex.APIKey = v
	}
}

// Validate replaces invalid values with defaults rather than erroring, so
// a partially wrong config file still yields a runnable service.
func (c *Config) Validate() {
	def := Default()

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.ReadTimeoutSeconds < 1 {
		c.Server.ReadTimeoutSeconds = def.Server.ReadTimeoutSeconds
	}
	if c.Server.ShutdownTimeoutSeconds < 1 {
		c.Server.ShutdownTimeoutSeconds = def.Server.ShutdownTimeoutSeconds
	}
	if c.Server.AnalyzeRatePerMinute < 1 {
		c.Server.AnalyzeRatePerMinute = def.Server.AnalyzeRatePerMinute
	}
	if c.Server.AnalyzeRateBurst < 1 {
		c.Server.AnalyzeRateBurst = def.Server.AnalyzeRateBurst
	}

	if c.Graph.MaxNodes < 1 {
		c.Graph.MaxNodes = def.Graph.MaxNodes
	}
	if c.Graph.MaxEdges < 1 {
		c.Graph.MaxEdges = def.Graph.MaxEdges
	}
	if c.Graph.DebounceMs < 1 {
		c.Graph.DebounceMs = def.Graph.DebounceMs
	}

	if c.Store.GCIntervalMinutes < 1 {
		c.Store.GCIntervalMinutes = def.Store.GCIntervalMinutes
	}
	if c.Store.RunTTLHours < 0 {
		c.Store.RunTTLHours = 0
	}

	switch c.Narrator.Backend {
	case "openai", "ollama", "none":
	default:
		c.Narrator.Backend = "none"
	}

	if c.Semdex.Scheme != "http" && c.Semdex.Scheme != "https" {
		c.Semdex.Scheme = def.Semdex.Scheme
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		c.Logging.Level = def.Logging.Level
	}
}
