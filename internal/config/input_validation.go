package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

const (
	// MaxKeywordLength is the maximum allowed length for a search keyword
	MaxKeywordLength = 200

	// MaxModelNameLength is the maximum allowed length for model names
	MaxModelNameLength = 100

	// MaxSeasonLength is the maximum allowed length for a season filter
	MaxSeasonLength = 50
)

// ValidateInputs performs additional security validation on user-controllable fields.
func (c *Config) ValidateInputs() error {
	if err := validateModelName(c.Generation.Model); err != nil {
		return err
	}

	if err := validateBaseURL(c.Server.BaseURL); err != nil {
		return err
	}

	if c.Featured.CacheBackend == "redis" {
		if err := validateRedisURL(c.Featured.RedisURL); err != nil {
			return err
		}
	}

	if err := ValidateSeason(c.Generation.DefaultSeason); err != nil {
		return fmt.Errorf("invalid default_season: %w", err)
	}

	return nil
}

// ValidateKeyword checks a user-entered keyword. An empty keyword is reported
// separately by the generation session, so only length and content are checked.
func ValidateKeyword(keyword string) error {
	// Check length
	if len(keyword) > MaxKeywordLength {
		return fmt.Errorf("exceeds maximum length of %d characters (got %d)",
			MaxKeywordLength, len(keyword))
	}

	// Check for control characters (except newlines and tabs)
	if containsControlChars(keyword) {
		return fmt.Errorf("contains invalid control characters")
	}

	return nil
}

// ValidateSeason checks the optional season filter
func ValidateSeason(season string) error {
	if len(season) > MaxSeasonLength {
		return fmt.Errorf("exceeds maximum length of %d characters (got %d)",
			MaxSeasonLength, len(season))
	}
	if containsControlChars(season) || strings.ContainsAny(season, "\n\r\t") {
		return fmt.Errorf("contains invalid control characters")
	}
	return nil
}

// validateModelName checks model name for security issues
func validateModelName(modelName string) error {
	if len(modelName) > MaxModelNameLength {
		return fmt.Errorf("generation.model exceeds maximum length of %d (got %d)",
			MaxModelNameLength, len(modelName))
	}

	// Check for control characters
	if containsControlChars(modelName) {
		return fmt.Errorf("generation.model contains invalid control characters")
	}

	return nil
}

// validateBaseURL checks that the base URL is properly formatted and safe
func validateBaseURL(baseURL string) error {
	// Parse URL
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid server.base_url: %w", err)
	}

	// Check scheme
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url must use http or https scheme (got %s)", u.Scheme)
	}

	// Check host is present
	if u.Host == "" {
		return fmt.Errorf("server.base_url must have a host")
	}

	return nil
}

func validateRedisURL(redisURL string) error {
	u, err := url.Parse(redisURL)
	if err != nil {
		return fmt.Errorf("invalid featured.redis_url: %w", err)
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return fmt.Errorf("featured.redis_url must use redis or rediss scheme (got %s)", u.Scheme)
	}
	return nil
}

// containsControlChars checks if a string contains control characters
// (excluding newlines, tabs, and carriage returns which are acceptable)
func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}
