// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging assembles the slog configuration shared by the Discovery
// binaries.
//
// Every process logs to stderr (text by default, JSON when Config.JSON is
// set). When Config.LogDir names a directory, a JSON log file named
// "{service}_{YYYY-MM-DD}.log" is written alongside stderr; file logs are
// always JSON because they exist for machine processing. The commands call
// Slog() once at startup and install the result with slog.SetDefault, so
// the rest of the tree logs through plain slog.
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.discovery/logs",
//	    Service: "nexus",
//	})
//	defer logger.Close()
//	slog.SetDefault(logger.Slog())
//
// Nothing here redacts sensitive values. Callers must keep tokens and keys
// out of log attributes; log presence ("token_present", key != "") rather
// than contents.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Level is the minimum severity a logger emits. Levels order as
// Debug < Info < Warn < Error, matching slog.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures a Logger. The zero value logs Info and above to
// stderr as text.
type Config struct {
	// Level is the minimum emitted level. Default: LevelInfo.
	Level Level

	// LogDir enables file logging in the named directory, created with
	// 0750 permissions when missing. A leading ~ expands to the user's
	// home directory ("~/.discovery/logs"). Empty disables file logging.
	LogDir string

	// Service tags every entry with a "service" attribute and prefixes
	// the log file name. Empty falls back to "discovery" for the file
	// name and omits the attribute.
	Service string

	// JSON switches stderr output from text to JSON. File output is
	// JSON regardless.
	JSON bool
}

// Logger owns the configured slog handler chain and the optional log file.
//
// Thread Safety: safe for concurrent use; slog handlers serialize writes
// internally. Close is not safe to call concurrently with logging.
type Logger struct {
	slog   *slog.Logger
	config Config
	file   *os.File
}

// New builds a Logger from config.
//
// Description:
//
//	Assembles a stderr handler plus, when LogDir is set and writable, a
//	JSON file handler. File setup failures (unwritable directory, open
//	error) degrade to stderr-only rather than failing startup; logging
//	must never take the process down.
//
// Outputs:
//
//	*Logger - Never nil. Close it to flush and release the log file.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	var stderrHandler slog.Handler
	if config.JSON {
		stderrHandler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		stderrHandler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := &Logger{config: config}
	handler := stderrHandler

	if config.LogDir != "" {
		if file, err := openLogFile(config); err == nil {
			logger.file = file
			handler = &multiHandler{handlers: []slog.Handler{
				stderrHandler,
				slog.NewJSONHandler(file, opts),
			}}
		}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	logger.slog = slog.New(handler)
	return logger
}

// Slog returns the assembled slog.Logger, suitable for slog.SetDefault.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close syncs and closes the log file, if one was opened.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return fmt.Errorf("sync log file: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// openLogFile creates the log directory and opens the dated, append-mode
// log file for config.
func openLogFile(config Config) (*os.File, error) {
	dir := expandPath(config.LogDir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}
	service := config.Service
	if service == "" {
		service = "discovery"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
}

// multiHandler fans one record out to stderr and the log file, which use
// different formats.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// expandPath expands a leading ~ to the user's home directory. Other
// paths pass through unchanged.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
