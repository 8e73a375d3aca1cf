// Package ainit sets up global logging. Import it before anything that logs during init.
package ainit

import (
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/lthummus/loginguard/internal/config"
)

var loaded bool

func init() {
	var revision string
	if info, ok := debug.ReadBuildInfo(); ok {
		for i := range info.Settings {
			if info.Settings[i].Key == "vcs.revision" {
				revision = info.Settings[i].Value
				break
			}
		}
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Info().
		Str("arch", runtime.GOARCH).
		Str("os", runtime.GOOS).
		Str("go_version", strings.TrimPrefix(runtime.Version(), "go")).
		Str("git_commit", revision).
		Msg("hello world")

	zerolog.SetGlobalLevel(baseLevel())
	if zerolog.GlobalLevel() == zerolog.TraceLevel {
		log.Warn().Str("environment", os.Getenv("ENVIRONMENT")).Msg("starting with debug logging enabled")
	} else {
		log.Info().Str("environment", os.Getenv("ENVIRONMENT")).Msg("starting in production mode")
	}

	loaded = true
}

func baseLevel() zerolog.Level {
	if !config.IsProductionMode() || config.IsDebugLoggingEnabled() {
		return zerolog.TraceLevel
	}
	return zerolog.InfoLevel
}

func Loaded() bool {
	return loaded
}

// WatchDebugLogging lets operators turn on debug logging by setting debug_log in the config file without a
// restart. Must be called after config.Init.
func WatchDebugLogging() {
	applyDebugLogging()
	config.RegisterForUpdates(func(event fsnotify.Event) {
		applyDebugLogging()
	})
}

func applyDebugLogging() {
	config.Lock.RLock()
	enabled := viper.GetBool(config.KeyDebugLog)
	config.Lock.RUnlock()

	level := baseLevel()
	if enabled {
		level = zerolog.DebugLevel
		if baseLevel() < level {
			level = baseLevel()
		}
	}

	if level != zerolog.GlobalLevel() {
		log.Info().Stringer("level", level).Msg("changing log level")
		zerolog.SetGlobalLevel(level)
	}
}
