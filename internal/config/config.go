// Package config loads questsim's runtime settings from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Checkpoint drivers.
const (
	CheckpointNone     = "none"
	CheckpointSQLite   = "sqlite"
	CheckpointPostgres = "postgres"
	CheckpointRedis    = "redis"
)

// Config holds the settings for one questsim run. Logging lives in its own
// section and is loaded by the logger package.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Storage    StorageConfig    `yaml:"storage"`
	Progress   ProgressConfig   `yaml:"progress"`
}

// SimulationConfig controls how studies are executed.
type SimulationConfig struct {
	// Workers is the number of studies run in parallel.
	Workers int `yaml:"workers" env:"QUESTSIM_WORKERS"`

	// MaxRounds ends a stalemated fight as a loss. 0 disables the cap.
	MaxRounds int `yaml:"max_rounds" env:"QUESTSIM_MAX_ROUNDS"`

	// ProgressBuffer is the capacity of the progress event channel.
	ProgressBuffer int `yaml:"progress_buffer"`

	// RecordSimulations stores one row per simulation in addition to the
	// per-loadout rows.
	RecordSimulations bool `yaml:"record_simulations" env:"QUESTSIM_RECORD_SIMULATIONS"`
}

// StorageConfig selects where cursors and results are persisted.
type StorageConfig struct {
	// Checkpoint is one of none, sqlite, postgres, redis.
	Checkpoint  string `yaml:"checkpoint" env:"QUESTSIM_CHECKPOINT"`
	SQLitePath  string `yaml:"sqlite_path" env:"QUESTSIM_SQLITE_PATH"`
	PostgresURL string `yaml:"postgres_url" env:"QUESTSIM_POSTGRES_URL"`
	RedisURL    string `yaml:"redis_url" env:"QUESTSIM_REDIS_URL"`

	// RedisTTL expires Redis checkpoints after their last save. Zero keeps them.
	RedisTTL time.Duration `yaml:"redis_ttl" env:"QUESTSIM_REDIS_TTL"`

	// ResultsDir receives CSV exports. Empty disables CSV output.
	ResultsDir string `yaml:"results_dir" env:"QUESTSIM_RESULTS_DIR"`
}

// ProgressConfig controls progress reporting.
type ProgressConfig struct {
	// ListenAddr serves the WebSocket progress feed. Empty disables it.
	ListenAddr string `yaml:"listen_addr" env:"QUESTSIM_PROGRESS_ADDR"`

	// AllowedOrigins is a list of origins allowed to connect to the feed.
	// Empty list enforces same-origin policy. "*" allows all origins.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// LogInterval is the minimum time between progress log lines per study.
	LogInterval time.Duration `yaml:"log_interval"`
}

// DefaultConfig returns a Config that runs without external services.
func DefaultConfig() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Workers:        runtime.NumCPU(),
			MaxRounds:      1000,
			ProgressBuffer: 1024,
		},
		Storage: StorageConfig{
			Checkpoint: CheckpointSQLite,
			SQLitePath: "data/questsim.db",
			ResultsDir: "results",
		},
		Progress: ProgressConfig{
			AllowedOrigins: []string{},
			LogInterval:    5 * time.Second,
		},
	}
}

// LoadConfig loads configuration from a YAML file over the defaults, then
// applies environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return config, err
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(config); err != nil {
		return config, fmt.Errorf("parse environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Validate checks that the selected drivers have what they need.
func (c *Config) Validate() error {
	if c.Simulation.Workers < 1 {
		return fmt.Errorf("simulation.workers must be at least 1, got %d", c.Simulation.Workers)
	}
	if c.Simulation.MaxRounds < 0 {
		return fmt.Errorf("simulation.max_rounds must not be negative, got %d", c.Simulation.MaxRounds)
	}
	if c.Simulation.ProgressBuffer < 1 {
		return fmt.Errorf("simulation.progress_buffer must be at least 1, got %d", c.Simulation.ProgressBuffer)
	}

	c.Storage.Checkpoint = strings.ToLower(strings.TrimSpace(c.Storage.Checkpoint))
	switch c.Storage.Checkpoint {
	case "", CheckpointNone:
		c.Storage.Checkpoint = CheckpointNone
	case CheckpointSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite checkpoint driver")
		}
	case CheckpointPostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("storage.postgres_url is required for the postgres checkpoint driver")
		}
	case CheckpointRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("storage.redis_url is required for the redis checkpoint driver")
		}
		if c.Storage.RedisTTL < 0 {
			return fmt.Errorf("storage.redis_ttl must not be negative, got %v", c.Storage.RedisTTL)
		}
	default:
		return fmt.Errorf("unknown storage.checkpoint driver %q", c.Storage.Checkpoint)
	}
	return nil
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *ProgressConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host.
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // non-browser client
	}

	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
