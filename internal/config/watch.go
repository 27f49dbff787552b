package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events an editor produces for one
// save.
const reloadDebounce = 200 * time.Millisecond

// ReloadFunc receives the previous and the newly loaded config after a
// successful reload.
type ReloadFunc func(prev, next *Config)

// Watch reloads the config file of h whenever it changes on disk and stores
// the result in h. Only settings that a running server can apply without a
// restart take effect; onReload decides which. A file that fails to load or
// validate is logged and the previous config stays active. Watch blocks
// until ctx is canceled.
func Watch(ctx context.Context, h *Holder, onReload ReloadFunc, logger *slog.Logger) error {
	if h.Path() == "" {
		<-ctx.Done()
		return nil
	}

	// Editors often replace the file by rename, so watch the directory.
	dir := filepath.Dir(h.Path())
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		logger.Debug("config directory does not exist, not watching", slog.String("dir", dir))
		<-ctx.Done()

		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config: watching %s: %w", dir, err)
	}

	logger.Debug("watching config file", slog.String("path", h.Path()))

	name := filepath.Clean(h.Path())

	debounce := time.NewTimer(reloadDebounce)
	debounce.Stop()

	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(ev.Name) != name {
				continue
			}

			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				debounce.Reset(reloadDebounce)
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("config watcher error", slog.String("error", watchErr.Error()))

		case <-debounce.C:
			_ = Reload(h, onReload, logger)
		}
	}
}

// Reload reads the config file of h again and, if it is valid, stores it
// and calls onReload. On failure the previous config stays active.
func Reload(h *Holder, onReload ReloadFunc, logger *slog.Logger) error {
	next, err := LoadOrDefault(h.Path())
	if err == nil {
		h.applyOverrides(next)
		err = Validate(next)
	}

	if err != nil {
		logger.Warn("config reload failed, keeping previous config",
			slog.String("path", h.Path()),
			slog.String("error", err.Error()),
		)

		return err
	}

	prev := h.Config()
	h.Update(next)

	logger.Info("config reloaded", slog.String("path", h.Path()))

	if onReload != nil {
		onReload(prev, next)
	}

	return nil
}
