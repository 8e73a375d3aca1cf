package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const envPrefix = "LOGINGUARD"

var (
	Lock sync.RWMutex

	initLock  sync.Mutex
	hasInit   bool
	initError error

	listenerLock sync.Mutex
	listeners    []func(fsnotify.Event)
)

func IsProductionMode() bool {
	return os.Getenv("ENVIRONMENT") == "prod"
}

func IsDebugLoggingEnabled() bool {
	return os.Getenv("DEBUG_LOG") == "true"
}

// Init loads the optional .env file and the YAML config, then starts watching the config file for changes. It is safe
// to call more than once; later calls return the result of the first.
func Init() error {
	initLock.Lock()
	defer initLock.Unlock()

	if hasInit {
		return initError
	}
	hasInit = true

	Lock.Lock()
	defer Lock.Unlock()

	if err := godotenv.Load(); err != nil {
		log.Trace().Err(err).Msg("no .env file loaded")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	configFilePath := os.Getenv("CONFIG_FILE_PATH")
	if configFilePath == "" {
		viper.SetConfigName("loginguard")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(configFilePath)
	}

	err := viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			initError = err
			return initError
		}

		initError = fmt.Errorf("config: Init: could not read %s: %w", viper.ConfigFileUsed(), err)
		return initError
	}
	log.Info().Str("config_file_path", viper.ConfigFileUsed()).Msg("initialized configuration")

	viper.OnConfigChange(notifyListeners)
	viper.WatchConfig()

	return nil
}

// RegisterForUpdates adds a callback that runs every time the config file changes on disk.
func RegisterForUpdates(f func(fsnotify.Event)) {
	listenerLock.Lock()
	defer listenerLock.Unlock()

	listeners = append(listeners, f)
}

func notifyListeners(e fsnotify.Event) {
	listenerLock.Lock()
	curr := make([]func(fsnotify.Event), len(listeners))
	copy(curr, listeners)
	listenerLock.Unlock()

	log.Info().Str("file", e.Name).Str("op", e.Op.String()).Int("listener_count", len(curr)).Msg("config file changed")
	for _, f := range curr {
		f(e)
	}
}

func ValidateConfig() []string {
	var errorsFound []string

	switch dbKind := viper.GetString(KeyDBKind); dbKind {
	case "sqlite":
		if viper.GetString(KeyDBFile) == "" {
			log.Error().Msg("db.file is not set")
			errorsFound = append(errorsFound, "`db.file` is not set")
		}
	case "postgres":
		if viper.GetString(KeyDBURL) == "" {
			log.Error().Msg("db.url is not set")
			errorsFound = append(errorsFound, "`db.url` is not set")
		}
	default:
		log.Error().Str("db.kind", dbKind).Msg("invalid db kind; must be sqlite or postgres")
		errorsFound = append(errorsFound, "invalid `db.kind`; must be `sqlite` or `postgres`")
	}

	if secret := viper.GetString(KeyServerSecretKey); len(secret) < 16 {
		log.Error().Int("length", len(secret)).Msg("server.secret_key is missing or too short")
		errorsFound = append(errorsFound, "`server.secret_key` must be at least 16 characters")
	}

	if viper.GetBool(KeyServerTLSEnabled) && (viper.GetString(KeyServerTLSCertFile) == "" || viper.GetString(KeyServerTLSKeyFile) == "") {
		log.Error().Msg("tls is enabled but cert or key file is not set")
		errorsFound = append(errorsFound, "`server.tls.cert_file` and `server.tls.key_file` are required when TLS is enabled")
	}

	return errorsFound
}

// DefaultConfig is the starter file written by init-config. Values that have sane defaults are spelled out anyway so
// operators can see what is tunable.
func DefaultConfig(dbFile string, secretKey string) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"port":       DefaultPort,
			"secret_key": secretKey,
		},
		"db": map[string]any{
			"kind": "sqlite",
			"file": dbFile,
		},
		"security": map[string]any{
			"rate_limiting": map[string]any{
				"enabled":                  true,
				"max_attempts":             5,
				"lockout_duration_minutes": 15,
				"cleanup_interval_minutes": 60,
			},
			"token": map[string]any{
				"lifetime":       "24h",
				"refresh_window": "24h",
				"issuer":         "loginguard",
			},
		},
	}
}

func WriteDefaultConfig(path string, dbFile string, secretKey string) error {
	data, err := yaml.Marshal(DefaultConfig(dbFile, secretKey))
	if err != nil {
		log.Error().Err(err).Msg("could not marshal")
		return err
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		log.Error().Err(err).Str("path", path).Msg("could not write file")
		return err
	}

	log.Info().Str("config_file_path", path).Int("bytes_written", len(data)).Msg("wrote config file")
	return nil
}
