package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lamim/salonforge/pkg/models"
)

// Config represents the complete client configuration
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Generation GenerationConfig `toml:"generation"`
	Featured   FeaturedConfig   `toml:"featured"`
	Progress   ProgressConfig   `toml:"progress"`
	Pagination PaginationConfig `toml:"pagination"`
	Output     OutputConfig     `toml:"output"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// ServerConfig describes the remote generation service
type ServerConfig struct {
	BaseURL           string `toml:"base_url"`
	GeneratePath      string `toml:"generate_path"`       // default: /api/generate
	FeaturedPath      string `toml:"featured_path"`       // default: /api/featured-keywords
	RequestsPerMinute int    `toml:"requests_per_minute"` // outbound pacing per endpoint (default: 30)
}

// GenerationConfig holds settings for the generate call
type GenerationConfig struct {
	Model                 string `toml:"model"`
	DefaultGender         string `toml:"default_gender"`
	DefaultSeason         string `toml:"default_season"`
	TimeoutSeconds        int    `toml:"timeout_seconds"`          // default: 60
	FallbackNoticeDelayMs int    `toml:"fallback_notice_delay_ms"` // default: 2000
	ErrorNoticeSeconds    int    `toml:"error_notice_seconds"`     // default: 5
}

// FeaturedConfig holds featured keyword settings.
// The windows are heuristics; tests shrink them.
type FeaturedConfig struct {
	Disabled           bool   `toml:"disabled"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`       // default: 10
	RetryDelayMs       int    `toml:"retry_delay_ms"`        // default: 500
	AutoChangeWindowMs int    `toml:"auto_change_window_ms"` // default: 1000
	ConfirmWindowMs    int    `toml:"confirm_window_ms"`     // default: 3000
	CacheTTLSeconds    int    `toml:"cache_ttl_seconds"`     // 0 disables caching
	CacheBackend       string `toml:"cache_backend"`         // memory or redis
	RedisURL           string `toml:"redis_url"`
}

// ProgressConfig holds the cosmetic progress schedule
type ProgressConfig struct {
	TickMs int           `toml:"tick_ms"` // default: 100
	Stages []StageConfig `toml:"stages"`
}

// StageConfig is one named progress stage
type StageConfig struct {
	Name          string `toml:"name"`
	TargetPercent int    `toml:"target_percent"`
	DurationMs    int    `toml:"duration_ms"`
}

// PaginationConfig holds page strip settings. Page size is fixed.
type PaginationConfig struct {
	MaxVisiblePages int `toml:"max_visible_pages"` // default: 5
}

// OutputConfig controls where session artifacts land
type OutputConfig struct {
	Dir             string `toml:"dir"`               // default: output
	SkipSessionSave bool   `toml:"skip_session_save"` // do not write checkpoint.json per session
}

// MetricsConfig controls the prometheus listener
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"` // default: :2112
}

// Secrets holds sensitive credentials loaded from environment variables
type Secrets struct {
	APIKey string
}

const (
	// MaxTimeoutSeconds bounds every configured timeout
	MaxTimeoutSeconds = 600
	// MaxRequestsPerMinute bounds outbound pacing
	MaxRequestsPerMinute = 600
	// MaxStages bounds the progress schedule length
	MaxStages = 20
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if !strings.HasPrefix(c.Server.GeneratePath, "/") {
		return fmt.Errorf("server.generate_path must start with / (got %q)", c.Server.GeneratePath)
	}
	if !strings.HasPrefix(c.Server.FeaturedPath, "/") {
		return fmt.Errorf("server.featured_path must start with / (got %q)", c.Server.FeaturedPath)
	}
	if c.Server.RequestsPerMinute < 1 || c.Server.RequestsPerMinute > MaxRequestsPerMinute {
		return fmt.Errorf("server.requests_per_minute must be between 1 and %d (got %d)", MaxRequestsPerMinute, c.Server.RequestsPerMinute)
	}

	// Generation
	if c.Generation.Model == "" {
		return fmt.Errorf("generation.model is required")
	}
	if !models.Gender(c.Generation.DefaultGender).Valid() {
		return fmt.Errorf("generation.default_gender must be ladies or mens (got %q)", c.Generation.DefaultGender)
	}
	if err := validateSeconds("generation.timeout_seconds", c.Generation.TimeoutSeconds); err != nil {
		return err
	}
	if err := validateSeconds("generation.error_notice_seconds", c.Generation.ErrorNoticeSeconds); err != nil {
		return err
	}
	if c.Generation.FallbackNoticeDelayMs < 0 {
		return fmt.Errorf("generation.fallback_notice_delay_ms must not be negative")
	}

	// Featured keywords
	if err := validateSeconds("featured.timeout_seconds", c.Featured.TimeoutSeconds); err != nil {
		return err
	}
	if c.Featured.RetryDelayMs < 0 {
		return fmt.Errorf("featured.retry_delay_ms must not be negative")
	}
	if c.Featured.AutoChangeWindowMs < 1 {
		return fmt.Errorf("featured.auto_change_window_ms must be at least 1")
	}
	if c.Featured.ConfirmWindowMs < c.Featured.AutoChangeWindowMs {
		return fmt.Errorf("featured.confirm_window_ms (%d) must not be shorter than auto_change_window_ms (%d)",
			c.Featured.ConfirmWindowMs, c.Featured.AutoChangeWindowMs)
	}
	if c.Featured.CacheTTLSeconds < 0 {
		return fmt.Errorf("featured.cache_ttl_seconds must not be negative")
	}
	switch c.Featured.CacheBackend {
	case "memory":
	case "redis":
		if c.Featured.RedisURL == "" {
			return fmt.Errorf("featured.redis_url is required when cache_backend = \"redis\"")
		}
	default:
		return fmt.Errorf("featured.cache_backend must be memory or redis (got %q)", c.Featured.CacheBackend)
	}

	// Progress schedule
	if c.Progress.TickMs < 1 {
		return fmt.Errorf("progress.tick_ms must be at least 1")
	}
	if err := validateStages(c.Progress.Stages); err != nil {
		return err
	}

	if c.Pagination.MaxVisiblePages < 1 {
		return fmt.Errorf("pagination.max_visible_pages must be at least 1")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		return fmt.Errorf("metrics.listen_addr is required when metrics are enabled")
	}

	return nil
}

func validateSeconds(name string, v int) error {
	if v < 1 || v > MaxTimeoutSeconds {
		return fmt.Errorf("%s must be between 1 and %d (got %d)", name, MaxTimeoutSeconds, v)
	}
	return nil
}

func validateStages(stages []StageConfig) error {
	if len(stages) == 0 {
		return fmt.Errorf("progress.stages must not be empty")
	}
	if len(stages) > MaxStages {
		return fmt.Errorf("progress.stages must not exceed %d entries (got %d)", MaxStages, len(stages))
	}
	prev := 0
	for i, st := range stages {
		if st.Name == "" {
			return fmt.Errorf("progress.stages[%d].name is required", i)
		}
		if st.DurationMs < 1 {
			return fmt.Errorf("progress.stages[%d].duration_ms must be at least 1", i)
		}
		if st.TargetPercent < prev || st.TargetPercent > 100 {
			return fmt.Errorf("progress.stages[%d].target_percent must be between %d and 100 (got %d)", i, prev, st.TargetPercent)
		}
		prev = st.TargetPercent
	}
	if prev != 100 {
		return fmt.Errorf("progress.stages must end at target_percent 100 (got %d)", prev)
	}
	return nil
}

// GenerateTimeout returns the generate call timeout
func (g GenerationConfig) GenerateTimeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// FallbackNoticeDelay returns the delay before the featured fallback notice
func (g GenerationConfig) FallbackNoticeDelay() time.Duration {
	return time.Duration(g.FallbackNoticeDelayMs) * time.Millisecond
}

// ErrorNoticeTTL returns how long generation errors stay visible
func (g GenerationConfig) ErrorNoticeTTL() time.Duration {
	return time.Duration(g.ErrorNoticeSeconds) * time.Second
}

// LoadTimeout returns the featured keyword fetch timeout
func (f FeaturedConfig) LoadTimeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// RetryDelay returns the deliberate pause before a retry
func (f FeaturedConfig) RetryDelay() time.Duration {
	return time.Duration(f.RetryDelayMs) * time.Millisecond
}

// AutoChangeWindow returns the window in which a gender change counts as automatic
func (f FeaturedConfig) AutoChangeWindow() time.Duration {
	return time.Duration(f.AutoChangeWindowMs) * time.Millisecond
}

// ConfirmWindow returns the age after which a divergent gender needs confirmation
func (f FeaturedConfig) ConfirmWindow() time.Duration {
	return time.Duration(f.ConfirmWindowMs) * time.Millisecond
}

// CacheTTL returns the keyword cache lifetime
func (f FeaturedConfig) CacheTTL() time.Duration {
	return time.Duration(f.CacheTTLSeconds) * time.Second
}

// Tick returns the interpolation tick
func (p ProgressConfig) Tick() time.Duration {
	return time.Duration(p.TickMs) * time.Millisecond
}

// LoadSecrets loads sensitive credentials from environment variables
func LoadSecrets() (*Secrets, error) {
	return &Secrets{
		APIKey: os.Getenv("API_KEY"),
	}, nil
}
