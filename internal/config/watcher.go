package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/crewd/internal/logging"
	"github.com/fyrsmithlabs/crewd/internal/quality"
)

// ApplyQuality pushes the configured thresholds into a standards set.
func ApplyQuality(q QualityConfig, standards *quality.Standards) error {
	for _, s := range []struct {
		name  quality.Standard
		value float64
	}{
		{quality.StandardCodeReview, q.CodeReview},
		{quality.StandardTesting, q.Testing},
		{quality.StandardDocumentation, q.Documentation},
		{quality.StandardSecurity, q.Security},
		{quality.StandardPerformance, q.Performance},
	} {
		if err := standards.Set(s.name, s.value); err != nil {
			return err
		}
	}
	return nil
}

// WatchQuality re-reads the config file whenever it changes and applies
// the quality thresholds to the standards set. Other sections are
// ignored at runtime, only the review thresholds are safe to move
// mid-run. Blocks until the context ends.
func WatchQuality(ctx context.Context, configPath string, standards *quality.Standards, log *logging.Logger) error {
	if log == nil {
		log = logging.Nop()
	}
	log = log.Named("config")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which drops
	// a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(configPath) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(configPath)
			if err != nil {
				log.Warn(ctx, "config reload failed, keeping previous thresholds", zap.Error(err))
				continue
			}
			if err := ApplyQuality(cfg.Quality, standards); err != nil {
				log.Warn(ctx, "applying quality thresholds failed", zap.Error(err))
				continue
			}
			log.Info(ctx, "quality thresholds reloaded",
				zap.Float64("code_review", cfg.Quality.CodeReview),
				zap.Float64("testing", cfg.Quality.Testing))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn(ctx, "config watcher error", zap.Error(err))
		}
	}
}
