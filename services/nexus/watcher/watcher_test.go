// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeDoc(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", func(context.Context, string) error { return nil }, nil); err == nil {
		t.Error("expected an error for empty path")
	}
	if _, err := New("graph.json", nil, nil); err == nil {
		t.Error("expected an error for nil reload func")
	}
}

func TestStart_NilContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	writeDoc(t, path, "{}")

	w, err := New(path, func(context.Context, string) error { return nil }, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Stop()

	//nolint:staticcheck // deliberately passing nil context
	if err := w.Start(nil); !errors.Is(err, ErrNilContext) {
		t.Errorf("expected ErrNilContext, got %v", err)
	}
}

func TestStart_Twice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	writeDoc(t, path, "{}")

	w, err := New(path, func(context.Context, string) error { return nil }, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := w.Start(ctx); !errors.Is(err, ErrAlreadyWatching) {
		t.Errorf("expected ErrAlreadyWatching, got %v", err)
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	writeDoc(t, path, `{"schemaVersion":"v1.0.0"}`)

	var reloads atomic.Int32
	reloaded := make(chan struct{}, 8)
	w, err := New(path, func(_ context.Context, p string) error {
		if p != path {
			t.Errorf("reload path = %q, want %q", p, path)
		}
		reloads.Add(1)
		reloaded <- struct{}{}
		return nil
	}, &Options{Debounce: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	writeDoc(t, path, `{"schemaVersion":"v1.0.1"}`)

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("reload not triggered within 5s")
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	writeDoc(t, path, "{}")

	var reloads atomic.Int32
	w, err := New(path, func(context.Context, string) error {
		reloads.Add(1)
		return nil
	}, &Options{Debounce: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// A burst of writes inside the debounce window.
	for i := 0; i < 5; i++ {
		writeDoc(t, path, "{}")
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(600 * time.Millisecond)
	if got := reloads.Load(); got != 1 {
		t.Errorf("reloads = %d, want 1 for a single burst", got)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	writeDoc(t, path, "{}")

	var reloads atomic.Int32
	w, err := New(path, func(context.Context, string) error {
		reloads.Add(1)
		return nil
	}, &Options{Debounce: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	writeDoc(t, filepath.Join(dir, "notes.txt"), "unrelated")
	time.Sleep(300 * time.Millisecond)
	if got := reloads.Load(); got != 0 {
		t.Errorf("reloads = %d, want 0 for unrelated file", got)
	}
}

func TestStop_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	writeDoc(t, path, "{}")

	w, err := New(path, func(context.Context, string) error { return nil }, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	w.Stop()
	w.Stop()
	if w.IsWatching() {
		t.Error("watcher still reports watching after Stop")
	}
}
