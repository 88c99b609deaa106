// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// Watch reloads the config file whenever it changes and calls fn with the
// new value.
//
// # Description
//
// The parent directory is watched rather than the file, so atomic saves
// (write to temp, rename over) are seen. Events are debounced. A reload
// that fails to parse or validate is logged and fn is not called.
//
// Blocks until ctx is cancelled. Run it in a goroutine.
//
// # Outputs
//
//   - error: Non-nil if the watcher could not be started.
func Watch(ctx context.Context, path string, debounce time.Duration, fn func(ReviewConfig)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	slog.Debug("Watching config", "path", target)

	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, target) {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Config watcher error", "error", err)

		case <-timer.C:
			cfg, err := Load(target)
			if err != nil {
				slog.Warn("Config reload rejected", "path", target, "error", err)
				continue
			}
			slog.Info("Config reloaded", "path", target)
			fn(cfg)

		case <-ctx.Done():
			slog.Debug("Config watcher stopping")
			return nil
		}
	}
}

func relevant(event fsnotify.Event, target string) bool {
	if filepath.Clean(event.Name) != target {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
