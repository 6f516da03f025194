// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/rigchat/internal/logging"
)

// DefaultWatchDebounce coalesces the burst of events editors emit on save.
const DefaultWatchDebounce = 200 * time.Millisecond

// Watch reloads the config at path whenever it changes and passes the result
// to onChange. A reload that fails validation is logged and skipped. Watch
// blocks until ctx is done.
//
// The parent directory is watched rather than the file so that editors that
// save by rename keep triggering reloads.
func Watch(ctx context.Context, path string, debounce time.Duration, onChange func(*Config)) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	log := logging.For("config")
	target := filepath.Clean(path)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", "err", err)

		case <-timer.C:
			cfg, err := LoadFromPath(path)
			if err != nil {
				log.Warn("config reload failed", "path", path, "err", err)
				continue
			}
			log.Info("config reloaded", "path", path)
			onChange(cfg)
		}
	}
}
