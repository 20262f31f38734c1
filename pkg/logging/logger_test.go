// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestLevel_ToSlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(42), slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := tt.level.toSlogLevel(); got != tt.want {
			t.Errorf("Level(%d).toSlogLevel() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestNew_StderrOnly(t *testing.T) {
	logger := New(Config{})
	if logger.Slog() == nil {
		t.Fatal("Slog() returned nil")
	}
	if logger.file != nil {
		t.Error("no LogDir set, but a log file was opened")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close without a file: %v", err)
	}
}

// logFileContent closes the logger and returns the single log file written
// to dir, failing the test on any surprise.
func logFileContent(t *testing.T, logger *Logger, dir, wantPrefix string) string {
	t.Helper()

	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read log dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d files in log dir, want 1", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, wantPrefix) || !strings.HasSuffix(name, ".log") {
		t.Errorf("log file name = %q, want %s*.log", name, wantPrefix)
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(data)
}

func TestNew_WithLogDir(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelInfo, LogDir: dir, Service: "nexus"})

	logger.Slog().Info("graph loaded", "nodes", 4)

	content := logFileContent(t, logger, dir, "nexus_")
	if !strings.Contains(content, "graph loaded") {
		t.Errorf("log file missing message: %q", content)
	}
	if !strings.Contains(content, `"service":"nexus"`) {
		t.Errorf("log file missing service attribute: %q", content)
	}
	if !strings.Contains(content, `"nodes":4`) {
		t.Errorf("log file missing attribute: %q", content)
	}
}

func TestNew_LogDirDefaultServiceName(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir})

	logger.Slog().Info("unnamed service")

	logFileContent(t, logger, dir, "discovery_")
}

func TestNew_LevelFiltersFileOutput(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelWarn, LogDir: dir, Service: "nexus"})

	logger.Slog().Info("below threshold")
	logger.Slog().Warn("at threshold")

	content := logFileContent(t, logger, dir, "nexus_")
	if strings.Contains(content, "below threshold") {
		t.Error("Info entry written despite LevelWarn")
	}
	if !strings.Contains(content, "at threshold") {
		t.Error("Warn entry missing")
	}
}

func TestNew_LogDirCreatesNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	logger := New(Config{LogDir: dir, Service: "cli"})

	logger.Slog().Info("first entry")

	logFileContent(t, logger, dir, "cli_")
}

func TestMultiHandler_FansOut(t *testing.T) {
	var first, second bytes.Buffer
	handler := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&first, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&second, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}}

	slog.New(handler).Info("fan out", "k", "v")

	for name, buf := range map[string]*bytes.Buffer{"first": &first, "second": &second} {
		if !strings.Contains(buf.String(), "fan out") {
			t.Errorf("%s handler missing record: %q", name, buf.String())
		}
	}
}

func TestMultiHandler_EnabledIfAnyEnabled(t *testing.T) {
	var buf bytes.Buffer
	handler := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}}

	if !handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(Debug) = false, one handler accepts Debug")
	}
}

func TestMultiHandler_SkipsDisabledHandlers(t *testing.T) {
	var errOnly, all bytes.Buffer
	handler := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&errOnly, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewJSONHandler(&all, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}}

	slog.New(handler).Info("selective")

	if strings.Contains(errOnly.String(), "selective") {
		t.Error("error-level handler received an Info record")
	}
	if !strings.Contains(all.String(), "selective") {
		t.Error("debug-level handler missed the Info record")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir: %v", err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/.discovery/logs", filepath.Join(home, ".discovery/logs")},
		{"/var/log/discovery", "/var/log/discovery"},
		{"relative/logs", "relative/logs"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClose_Idempotent(t *testing.T) {
	logger := New(Config{})
	if err := logger.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
