package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/crewd/internal/quality"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	// Nonexistent file falls through to pure defaults.
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "claude", cfg.Backend.Command)
	assert.Equal(t, 10*time.Minute, cfg.Backend.Timeout)
	assert.Equal(t, 10, cfg.Coordinator.MaxIterations)
	assert.Equal(t, 2, cfg.Coordinator.ConcurrencyLimit)
	assert.Equal(t, 5, cfg.Coordinator.IdleIterationCap)
	assert.Equal(t, 3, cfg.Coordinator.MaxConsecutiveErrors)
	assert.InDelta(t, 0.7, cfg.Quality.CodeReview, 0.001)
	assert.InDelta(t, 0.9, cfg.Quality.Security, 0.001)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
backend:
  command: /usr/local/bin/runner
  model: fast-model
coordinator:
  max_iterations: 7
  concurrency_limit: 1
quality:
  testing: 0.95
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/runner", cfg.Backend.Command)
	assert.Equal(t, "fast-model", cfg.Backend.Model)
	assert.Equal(t, 7, cfg.Coordinator.MaxIterations)
	assert.Equal(t, 1, cfg.Coordinator.ConcurrencyLimit)
	assert.InDelta(t, 0.95, cfg.Quality.Testing, 0.001)
	// Untouched sections keep defaults.
	assert.InDelta(t, 0.7, cfg.Quality.CodeReview, 0.001)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
coordinator:
  max_iterations: 7
`)
	t.Setenv("CREWD_COORDINATOR_MAX_ITERATIONS", "12")
	t.Setenv("CREWD_BACKEND_MODEL", "env-model")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Coordinator.MaxIterations)
	assert.Equal(t, "env-model", cfg.Backend.Model)
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	path := writeConfig(t, `
quality:
  testing: 1.5
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threshold")
}

func TestValidateRejectsIterationCeiling(t *testing.T) {
	path := writeConfig(t, `
coordinator:
  max_iterations: 40
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "25")
}

func TestApplyQuality(t *testing.T) {
	standards := quality.DefaultStandards()
	q := QualityConfig{CodeReview: 0.5, Testing: 0.6, Documentation: 0.7, Security: 0.8, Performance: 0.9}
	require.NoError(t, ApplyQuality(q, standards))
	assert.InDelta(t, 0.5, standards.Get(quality.StandardCodeReview), 0.001)
	assert.InDelta(t, 0.9, standards.Get(quality.StandardPerformance), 0.001)

	q.Testing = 2.0
	assert.Error(t, ApplyQuality(q, standards))
}

func TestWatchQualityReloads(t *testing.T) {
	path := writeConfig(t, `
quality:
  testing: 0.8
`)
	standards := quality.DefaultStandards()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- WatchQuality(ctx, path, standards, nil) }()

	// Give the watcher a moment to register before rewriting.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("quality:\n  testing: 0.92\n"), 0o600))

	require.Eventually(t, func() bool {
		return standards.Get(quality.StandardTesting) > 0.91
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
