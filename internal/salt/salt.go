// Package salt keeps a per-installation random salt on disk and derives the token signing key from it and the
// configured server secret.
package salt

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/crypto/pbkdf2"

	"github.com/lthummus/loginguard/internal/config"
)

const (
	saltLength = 32
	keyLength  = 32
	version    = 1

	defaultIterations     = 600000
	defaultIterationsTest = 15
)

var ErrNoSecret = errors.New("salt: server secret is not set")

type payload struct {
	Version int    `json:"version"`
	Signing []byte `json:"signing"`
}

// Path picks the salt file location: SALT_FILE, then server.salt_file, then a dotfile next to the config file.
func Path() string {
	if p := os.Getenv("SALT_FILE"); p != "" {
		return p
	}

	if p := viper.GetString(config.KeySaltFile); p != "" {
		return p
	}

	return filepath.Join(filepath.Dir(viper.ConfigFileUsed()), ".loginguard_salt")
}

// SigningKeyFromConfig derives the signing key from server.secret_key and the salt at Path.
func SigningKeyFromConfig() ([]byte, error) {
	config.Lock.RLock()
	secret := viper.GetString(config.KeyServerSecretKey)
	path := Path()
	config.Lock.RUnlock()

	return DeriveSigningKey(secret, path)
}

// DeriveSigningKey loads the salt stored at path (creating it if missing or unreadable) and stretches secret with
// it. The same secret and salt file always produce the same key, so tokens survive restarts.
func DeriveSigningKey(secret string, path string) ([]byte, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}

	s, err := loadOrCreate(path)
	if err != nil {
		return nil, err
	}

	iterationCount := iterations()

	start := time.Now()
	key := pbkdf2.Key([]byte(secret), s.Signing, iterationCount, keyLength, sha256.New)
	log.Info().Int("iteration_count", iterationCount).Dur("key_generation_time", time.Since(start)).Msg("generated signing key")

	return key, nil
}

func loadOrCreate(path string) (*payload, error) {
	stats, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return create(path)
	} else if err != nil {
		log.Warn().Err(err).Str("salt_path", path).Msg("could not stat salt file. trying to regenerate")
		return create(path)
	}

	if stats.Mode().Perm() != 0600 {
		log.Warn().Str("salt_path", path).Msg("salt file has improper permissions -- should be 0600")
	}

	data, err := os.ReadFile(path) // #nosec G304 -- configurable path
	if err != nil {
		log.Warn().Err(err).Str("salt_path", path).Msg("could not read salt, generating new one")
		return create(path)
	}

	var read payload
	if err := json.Unmarshal(data, &read); err != nil {
		log.Warn().Err(err).Str("salt_path", path).Msg("could not unmarshal salt")
		return create(path)
	}

	if read.Version != version || len(read.Signing) != saltLength {
		log.Warn().Int("version", read.Version).Int("expected_version", version).Msg("salt file is not usable")
		return create(path)
	}

	log.Debug().Str("salt_path", path).Msg("loaded salt")
	return &read, nil
}

func create(path string) (*payload, error) {
	signing := securecookie.GenerateRandomKey(saltLength)
	if signing == nil {
		return nil, errors.New("salt: could not generate random salt")
	}

	p := &payload{
		Version: version,
		Signing: signing,
	}

	encoded, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("salt: create: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		log.Warn().Err(err).Str("salt_path", path).Msg("could not create parent directories for salt file")
	}

	if err := os.WriteFile(path, encoded, 0600); err != nil {
		// still usable for this process; issued tokens just won't validate after a restart
		log.Warn().Err(err).Str("salt_path", path).Msg("could not write salt file. Continuing anyway, but tokens will not survive restarts")
	} else {
		log.Info().Str("salt_path", path).Msg("generated and wrote salt")
	}

	return p, nil
}

func iterations() int {
	if testing.Testing() {
		return defaultIterationsTest
	}
	return defaultIterations
}
