// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watcher reloads the graph document when it changes on disk.
//
// The watcher observes the document's parent directory rather than the
// file itself: editors and atomic writers typically replace the file via
// rename, which would silently detach a direct file watch. Change bursts
// are debounced so one save triggers one reload.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc is called after the debounce window with the document path.
// A returned error is logged; watching continues either way.
type ReloadFunc func(ctx context.Context, path string) error

// Sentinel errors for the watcher.
var (
	// ErrNilContext is returned when a nil context is passed to Start.
	ErrNilContext = errors.New("context must not be nil")

	// ErrAlreadyWatching is returned when Start is called twice.
	ErrAlreadyWatching = errors.New("watcher already started")
)

// defaultDebounce batches editor write bursts into one reload.
const defaultDebounce = 500 * time.Millisecond

// Watcher watches one graph document for changes.
//
// Thread Safety: safe for concurrent use.
type Watcher struct {
	path     string
	reload   ReloadFunc
	debounce time.Duration

	fsw      *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
}

// Options configures a Watcher.
type Options struct {
	// Debounce is how long to wait after the last change before
	// reloading. Non-positive uses the default of 500ms.
	Debounce time.Duration
}

// New creates a watcher for the given document path.
//
// Inputs:
//
//	path - Graph document to watch. Required.
//	reload - Called after each debounced change burst. Required.
//	opts - Optional tuning (nil uses defaults).
func New(path string, reload ReloadFunc, opts *Options) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("document path is required")
	}
	if reload == nil {
		return nil, errors.New("reload func is required")
	}

	debounce := defaultDebounce
	if opts != nil && opts.Debounce > 0 {
		debounce = opts.Debounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		path:     abs,
		reload:   reload,
		debounce: debounce,
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. The goroutine exits when ctx is cancelled or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}

	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return ErrAlreadyWatching
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.fsw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.run(ctx)
	slog.Info("Watching graph document", "path", w.path, "debounce", w.debounce)
	return nil
}

// Stop halts watching. Idempotent.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fsw.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is active.
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

func (w *Watcher) run(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	fire := func() {
		timer = nil
		timerC = nil
		if err := w.reload(ctx, w.path); err != nil {
			slog.Error("Graph document reload failed", "path", w.path, "error", err)
			return
		}
		slog.Info("Graph document reloaded", "path", w.path)
	}

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			fire()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("Watcher error", "path", w.path, "error", err)
		}
	}
}

// relevant filters directory events down to writes of the watched file.
// Create and Rename cover atomic replace-by-rename saves.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
