package attempts

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	ConfigKeyEnabled                = "security.rate_limiting.enabled"
	ConfigKeyMaxAttempts            = "security.rate_limiting.max_attempts"
	ConfigKeyLockoutDurationMinutes = "security.rate_limiting.lockout_duration_minutes"
	ConfigKeyCleanupIntervalMinutes = "security.rate_limiting.cleanup_interval_minutes"

	DefaultMaxAttempts            = 5
	DefaultLockoutDurationMinutes = 15
	DefaultCleanupIntervalMinutes = 60
)

// Config is read once when the tracker is built and never changes afterwards.
type Config struct {
	Enabled                bool
	MaxAttempts            int
	LockoutDurationMinutes int
	CleanupIntervalMinutes int
}

func DefaultConfig() Config {
	return Config{
		Enabled:                true,
		MaxAttempts:            DefaultMaxAttempts,
		LockoutDurationMinutes: DefaultLockoutDurationMinutes,
		CleanupIntervalMinutes: DefaultCleanupIntervalMinutes,
	}
}

// ConfigFromViper reads the rate limiting block. Missing or non-positive values fall back to the defaults; we don't
// call viper.SetDefault here so the defaults never get written back in to the config file.
func ConfigFromViper() Config {
	c := DefaultConfig()

	if viper.IsSet(ConfigKeyEnabled) {
		c.Enabled = viper.GetBool(ConfigKeyEnabled)
	}

	if v := viper.GetInt(ConfigKeyMaxAttempts); v > 0 {
		c.MaxAttempts = v
	}

	if v := viper.GetInt(ConfigKeyLockoutDurationMinutes); v > 0 {
		c.LockoutDurationMinutes = v
	}

	if v := viper.GetInt(ConfigKeyCleanupIntervalMinutes); v > 0 {
		c.CleanupIntervalMinutes = v
	}

	log.Info().
		Bool("enabled", c.Enabled).
		Int("max_attempts", c.MaxAttempts).
		Int("lockout_duration_minutes", c.LockoutDurationMinutes).
		Int("cleanup_interval_minutes", c.CleanupIntervalMinutes).
		Msg("loaded rate limiting configuration")

	return c
}

func (c Config) lockoutDuration() time.Duration {
	return time.Duration(c.LockoutDurationMinutes) * time.Minute
}

func (c Config) cleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}
