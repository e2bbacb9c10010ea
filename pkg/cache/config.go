package cache

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls the authorization decision cache.
type Config struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max-size"`
}

// DefaultConfig returns the decision cache defaults.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		TTL:     10 * time.Second,
		MaxSize: 4096,
	}
}

// ConfigFromEnv overlays cache settings from the environment on base,
// keeping base for unset or invalid values.
//
// Environment variables:
//   - NS4KAFKA_CACHE_ENABLED: "true" or "false" (default: "true")
//   - NS4KAFKA_CACHE_TTL: seconds (default: 10)
//   - NS4KAFKA_CACHE_MAX_SIZE: max entries (default: 4096)
func ConfigFromEnv(base Config) Config {
	cfg := base

	if v := os.Getenv("NS4KAFKA_CACHE_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("NS4KAFKA_CACHE_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.TTL = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("NS4KAFKA_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSize = n
		}
	}
	return cfg
}
