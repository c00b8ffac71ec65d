/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_tv/internal/events"
)

// Watcher observes the media root and publishes a library_changed event when
// files are added, removed, or renamed. Events are debounced so a bulk copy
// produces one notification, not hundreds.
type Watcher struct {
	root     string
	debounce time.Duration
	bus      *events.Bus
	logger   zerolog.Logger
}

// NewWatcher creates a media directory watcher.
func NewWatcher(root string, debounce time.Duration, bus *events.Bus, logger zerolog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		bus:      bus,
		logger:   logger.With().Str("component", "library_watcher").Logger(),
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := w.addRecursive(watcher, w.root); err != nil {
		return err
	}
	w.logger.Info().Str("root", w.root).Msg("watching media root")

	var timer *time.Timer
	var timerC <-chan time.Time
	pending := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			// New subdirectories need their own watch.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(watcher, event.Name); err != nil {
						w.logger.Warn().Err(err).Str("dir", event.Name).Msg("watch new directory")
					}
				}
			}
			pending++
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case <-timerC:
			w.logger.Info().Int("changes", pending).Msg("media root changed")
			w.bus.Publish(events.EventLibraryChanged, events.Payload{"changes": pending})
			pending = 0
			timer = nil
			timerC = nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			w.logger.Warn().Err(err).Msg("fsnotify watcher error")
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	// Ignore dotfiles and partial-transfer artifacts.
	if len(base) > 0 && base[0] == '.' {
		return false
	}
	if filepath.Ext(base) == ".part" || filepath.Ext(base) == ".tmp" {
		return false
	}
	return true
}

func (w *Watcher) addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch directory %s: %w", path, err)
		}
		return nil
	})
}
