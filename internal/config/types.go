package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fyrsmithlabs/crewd/internal/logging"
)

// Config is the full application configuration.
type Config struct {
	Logging     logging.Config    `koanf:"logging"`
	Backend     BackendConfig     `koanf:"backend"`
	Coordinator CoordinatorConfig `koanf:"coordinator"`
	Quality     QualityConfig     `koanf:"quality"`
	Monitor     MonitorConfig     `koanf:"monitor"`
	Server      ServerConfig      `koanf:"server"`
	Session     SessionConfig     `koanf:"session"`
}

// BackendConfig drives the execution backend adapter.
type BackendConfig struct {
	Command      string        `koanf:"command"`
	Args         []string      `koanf:"args"`
	Model        string        `koanf:"model"`
	WorkDir      string        `koanf:"work_dir"`
	Timeout      time.Duration `koanf:"timeout"`
	AllowedTools []string      `koanf:"allowed_tools"`
}

// CoordinatorConfig bounds the coordination loop.
type CoordinatorConfig struct {
	MaxIterations        int           `koanf:"max_iterations"`
	ConcurrencyLimit     int           `koanf:"concurrency_limit"`
	IdleIterationCap     int           `koanf:"idle_iteration_cap"`
	MaxConsecutiveErrors int           `koanf:"max_consecutive_errors"`
	StopOnFirstError     bool          `koanf:"stop_on_first_error"`
	IterationDelay       time.Duration `koanf:"iteration_delay"`
	ErrorBackoff         time.Duration `koanf:"error_backoff"`
	ToolHints            []string      `koanf:"tool_hints"`
	Constraints          []string      `koanf:"constraints"`
}

// QualityConfig holds the named review thresholds. Watched for changes
// at runtime, see Watch.
type QualityConfig struct {
	CodeReview    float64 `koanf:"code_review"`
	Testing       float64 `koanf:"testing"`
	Documentation float64 `koanf:"documentation"`
	Security      float64 `koanf:"security"`
	Performance   float64 `koanf:"performance"`
}

// MonitorConfig controls event emission.
type MonitorConfig struct {
	// NATSURL enables the NATS sink when non-empty.
	NATSURL string `koanf:"nats_url"`
}

// ServerConfig controls the HTTP observation surface.
type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// SessionConfig controls run persistence.
type SessionConfig struct {
	Dir string `koanf:"dir"`
}

func applyDefaults(cfg *Config) {
	def := logging.NewDefaultConfig()
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Format
	}
	if !cfg.Logging.Output.Stdout && !cfg.Logging.Output.OTEL {
		cfg.Logging.Output = def.Output
	}
	if cfg.Logging.Fields == nil {
		cfg.Logging.Fields = def.Fields
	}

	if cfg.Backend.Command == "" {
		cfg.Backend.Command = "claude"
	}
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = 10 * time.Minute
	}

	if cfg.Coordinator.MaxIterations <= 0 {
		cfg.Coordinator.MaxIterations = 10
	}
	if cfg.Coordinator.ConcurrencyLimit <= 0 {
		cfg.Coordinator.ConcurrencyLimit = 2
	}
	if cfg.Coordinator.IdleIterationCap <= 0 {
		cfg.Coordinator.IdleIterationCap = 5
	}
	if cfg.Coordinator.MaxConsecutiveErrors <= 0 {
		cfg.Coordinator.MaxConsecutiveErrors = 3
	}
	if cfg.Coordinator.IterationDelay <= 0 {
		cfg.Coordinator.IterationDelay = time.Second
	}
	if cfg.Coordinator.ErrorBackoff <= 0 {
		cfg.Coordinator.ErrorBackoff = 2 * time.Second
	}

	if cfg.Quality.CodeReview == 0 {
		cfg.Quality.CodeReview = 0.7
	}
	if cfg.Quality.Testing == 0 {
		cfg.Quality.Testing = 0.8
	}
	if cfg.Quality.Documentation == 0 {
		cfg.Quality.Documentation = 0.6
	}
	if cfg.Quality.Security == 0 {
		cfg.Quality.Security = 0.9
	}
	if cfg.Quality.Performance == 0 {
		cfg.Quality.Performance = 0.7
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:8420"
	}

	if cfg.Session.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Session.Dir = filepath.Join(home, ".local", "share", "crewd", "sessions")
		}
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Backend.Command == "" {
		return fmt.Errorf("backend: command is required")
	}
	for name, v := range c.Quality.thresholds() {
		if v < 0 || v > 1 {
			return fmt.Errorf("quality: %s threshold must be in [0,1], got %v", name, v)
		}
	}
	if c.Coordinator.MaxIterations > 25 {
		return fmt.Errorf("coordinator: max_iterations cannot exceed 25")
	}
	return nil
}

func (q QualityConfig) thresholds() map[string]float64 {
	return map[string]float64{
		"code_review":   q.CodeReview,
		"testing":       q.Testing,
		"documentation": q.Documentation,
		"security":      q.Security,
		"performance":   q.Performance,
	}
}
