// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists analysis run history in an embedded BadgerDB.
//
// Every analysis executed through the service is recorded as a Run: the
// algorithm, its resolved parameters, graph dimensions, and the full
// result payload. Runs are keyed by timestamp so listing is newest-first
// without a scan, with a secondary id index for point lookups.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Key layout. The timestamp segment is fixed-width UTC so that
// lexicographic key order is chronological order.
const (
	runKeyPrefix   = "run/"
	runIDKeyPrefix = "runid/"
	runKeyTimeFmt  = "2006-01-02T15:04:05.000000000Z"
)

// Sentinel errors for the run store.
var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrRunNotFound is returned when no run exists for the given id.
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidRun is returned when a run cannot be stored or decoded.
	ErrInvalidRun = errors.New("invalid run")
)

// Run is one recorded analysis execution.
type Run struct {
	// ID is a UUID assigned by SaveRun when empty.
	ID string `json:"id"`

	// Algorithm is the registry name that was executed.
	Algorithm string `json:"algorithm"`

	// Parameters are the resolved parameters the run executed with.
	Parameters map[string]any `json:"parameters,omitempty"`

	// RequestedAt is when the run started. Stamped by SaveRun when zero.
	RequestedAt time.Time `json:"requestedAt"`

	DurationMs float64 `json:"durationMs"`
	GraphNodes int     `json:"graphNodes"`
	GraphEdges int     `json:"graphEdges"`

	// ResultCount is the number of top-level findings (components, gaps,
	// clusters, or scored nodes).
	ResultCount int `json:"resultCount"`

	// Result is the full algorithm result envelope, stored verbatim.
	Result json.RawMessage `json:"result,omitempty"`
}

// Config holds configuration for the run store.
type Config struct {
	// Path is the directory for database files. A leading "~/" expands to
	// the user home directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps all data in RAM. Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// RunTTL expires stored runs after the given duration. Zero keeps
	// runs forever.
	RunTTL time.Duration

	// GCInterval is how often to run value log garbage collection.
	// Zero disables GC.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64

	// Logger receives BadgerDB's internal log output. Nil disables it.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable writes, 10-minute
// GC, runs kept forever.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests: no disk I/O, no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is the run-history database.
//
// Thread Safety: safe for concurrent use after Open.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger

	gcStop chan struct{}
	gcDone chan struct{}
}

// Open creates and opens a run store.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*Store - The opened store. Caller must call Close when done.
//	error - Non-nil if the path is invalid or the database cannot open.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		path, err := expandHome(cfg.Path)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}

	s := &Store{db: db, ttl: cfg.RunTTL, logger: cfg.Logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
		s.gcStop = nil
	}
	return s.db.Close()
}

// SaveRun persists a run, assigning an id and timestamp when absent.
//
// Outputs:
//
//	string - The run id (assigned or pre-existing).
//	error - ErrNilContext, ErrInvalidRun, or a storage error.
func (s *Store) SaveRun(ctx context.Context, run Run) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	if run.Algorithm == "" {
		return "", fmt.Errorf("%w: algorithm is required", ErrInvalidRun)
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.RequestedAt.IsZero() {
		run.RequestedAt = time.Now().UTC()
	}

	data, err := json.Marshal(run)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}

	primary := runKey(run.RequestedAt, run.ID)
	err = s.withTxn(ctx, func(txn *badger.Txn) error {
		main := badger.NewEntry(primary, data)
		index := badger.NewEntry([]byte(runIDKeyPrefix+run.ID), primary)
		if s.ttl > 0 {
			main = main.WithTTL(s.ttl)
			index = index.WithTTL(s.ttl)
		}
		if err := txn.SetEntry(main); err != nil {
			return err
		}
		return txn.SetEntry(index)
	})
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}

	slog.Debug("Analysis run saved",
		"run_id", run.ID,
		"algorithm", run.Algorithm,
		"result_count", run.ResultCount)
	return run.ID, nil
}

// GetRun fetches one run by id.
//
// Errors:
//
//	ErrNilContext - ctx is nil
//	ErrRunNotFound - no run with that id (or it expired)
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	if ctx == nil {
		return Run{}, ErrNilContext
	}

	var run Run
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runIDKeyPrefix + id))
		if err != nil {
			return err
		}
		primary, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(primary)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &run)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	runs := []Run{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration needs a seek key past every run key.
		seek := append([]byte(runKeyPrefix), 0xFF)
		for it.Seek(seek); it.Valid(); it.Next() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run Run
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			})
			if err != nil {
				return fmt.Errorf("%w: decode %s: %v", ErrInvalidRun, it.Item().Key(), err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// withTxn runs fn in a read-write transaction, committing on nil error.
func (s *Store) withTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := s.db.NewTransaction(true)
	defer txn.Discard()
	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// runGC periodically rewrites the value log. ErrNoRewrite means nothing
// needed collecting, not a failure.
func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err == nil {
				if s.logger != nil {
					s.logger.Debug("run store value log GC completed")
				}
			} else if !errors.Is(err, badger.ErrNoRewrite) {
				if s.logger != nil {
					s.logger.Warn("run store value log GC error", slog.String("error", err.Error()))
				}
			}
		}
	}
}

func runKey(ts time.Time, id string) []byte {
	return []byte(runKeyPrefix + ts.UTC().Format(runKeyTimeFmt) + "/" + id)
}

// expandHome resolves a leading "~/" against the user home directory.
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}
