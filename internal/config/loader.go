package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Load reads and parses the configuration file and environment variables
func Load(configPath string) (*Config, *Secrets, error) {
	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse TOML
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return finish(&cfg)
}

// LoadOrDefault behaves like Load but falls back to Default when the file does not exist
func LoadOrDefault(configPath string) (*Config, *Secrets, error) {
	cfg, secrets, err := Load(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return finish(Default())
	}
	return cfg, secrets, err
}

// Default returns a configuration with every default applied and no file behind it
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func finish(cfg *Config) (*Config, *Secrets, error) {
	// Environment overrides come before defaults so an empty file plus env is enough
	applyEnvOverrides(cfg)

	// Apply defaults
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Additional input security validation
	if err := cfg.ValidateInputs(); err != nil {
		return nil, nil, fmt.Errorf("input validation failed: %w", err)
	}

	// Load secrets from environment
	secrets, err := LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return cfg, secrets, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SALONFORGE_BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("SALONFORGE_REDIS_URL"); v != "" {
		cfg.Featured.RedisURL = v
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = DefaultBaseURL
	}
	if cfg.Server.GeneratePath == "" {
		cfg.Server.GeneratePath = "/api/generate"
	}
	if cfg.Server.FeaturedPath == "" {
		cfg.Server.FeaturedPath = "/api/featured-keywords"
	}
	if cfg.Server.RequestsPerMinute == 0 {
		cfg.Server.RequestsPerMinute = 30
	}

	// Generation defaults
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = DefaultModel
	}
	if cfg.Generation.DefaultGender == "" {
		cfg.Generation.DefaultGender = "ladies"
	}
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = 60
	}
	// NOTE: 0 cannot be told apart from unset in TOML, so an immediate
	// fallback notice is configured with -1 and clamped here.
	if cfg.Generation.FallbackNoticeDelayMs == 0 {
		cfg.Generation.FallbackNoticeDelayMs = 2000
	} else if cfg.Generation.FallbackNoticeDelayMs == -1 {
		cfg.Generation.FallbackNoticeDelayMs = 0
	}
	if cfg.Generation.ErrorNoticeSeconds == 0 {
		cfg.Generation.ErrorNoticeSeconds = 5
	}

	// Featured keyword defaults
	if cfg.Featured.TimeoutSeconds == 0 {
		cfg.Featured.TimeoutSeconds = 10
	}
	if cfg.Featured.RetryDelayMs == 0 {
		cfg.Featured.RetryDelayMs = 500
	}
	if cfg.Featured.AutoChangeWindowMs == 0 {
		cfg.Featured.AutoChangeWindowMs = 1000
	}
	if cfg.Featured.ConfirmWindowMs == 0 {
		cfg.Featured.ConfirmWindowMs = 3000
	}
	if cfg.Featured.CacheBackend == "" {
		cfg.Featured.CacheBackend = "memory"
	}

	// Progress defaults
	if cfg.Progress.TickMs == 0 {
		cfg.Progress.TickMs = 100
	}
	if len(cfg.Progress.Stages) == 0 {
		cfg.Progress.Stages = DefaultStages()
	}

	if cfg.Pagination.MaxVisiblePages == 0 {
		cfg.Pagination.MaxVisiblePages = 5
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "output"
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":2112"
	}
}
