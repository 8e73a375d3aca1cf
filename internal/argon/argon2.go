package argon

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

const (
	MemoryKey      = "security.argon2.memory"
	IterationKey   = "security.argon2.iterations"
	ParallelismKey = "security.argon2.parallelism"
	SaltLengthKey  = "security.argon2.salt_length"
	KeyLengthKey   = "security.argon2.key_length"

	DisableMigrateKey = "security.disable_migrate_on_login"

	DefaultMemory      = 64 * 1024
	DefaultIterations  = 3
	DefaultParallelism = 2
	DefaultSaltLength  = 16
	DefaultKeyLength   = 32
)

var (
	ErrInvalidHash    = errors.New("argon2: invalid password hash")
	ErrInvalidVersion = errors.New("argon2: incorrect version of argon2")
	ErrWrongPassword  = errors.New("argon2: wrong password")
	ErrInvalidParams  = errors.New("argon2: invalid parameters")
)

// Params are the argon2id cost settings used for new hashes. Existing hashes carry their own parameters in the
// encoded string.
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultParams = Params{
	Memory:      DefaultMemory,
	Iterations:  DefaultIterations,
	Parallelism: DefaultParallelism,
	SaltLength:  DefaultSaltLength,
	KeyLength:   DefaultKeyLength,
}

func positiveOrDefault(key string, def int) int {
	if v := viper.GetInt(key); v > 0 {
		return v
	}
	return def
}

// ParamsFromConfig reads the security.argon2 block, falling back to DefaultParams for anything unset.
func ParamsFromConfig() (Params, error) {
	memory := positiveOrDefault(MemoryKey, DefaultMemory)
	iterations := positiveOrDefault(IterationKey, DefaultIterations)
	parallelism := positiveOrDefault(ParallelismKey, DefaultParallelism)
	saltLength := positiveOrDefault(SaltLengthKey, DefaultSaltLength)
	keyLength := positiveOrDefault(KeyLengthKey, DefaultKeyLength)

	if parallelism > math.MaxUint8 {
		return Params{}, fmt.Errorf("argon2: ParamsFromConfig: parallelism %d does not fit in a uint8: %w", parallelism, ErrInvalidParams)
	}

	for name, v := range map[string]int{"memory": memory, "iterations": iterations, "salt_length": saltLength, "key_length": keyLength} {
		if int64(v) > math.MaxUint32 {
			return Params{}, fmt.Errorf("argon2: ParamsFromConfig: %s %d does not fit in a uint32: %w", name, v, ErrInvalidParams)
		}
	}

	return Params{
		Memory:      uint32(memory),
		Iterations:  uint32(iterations),
		Parallelism: uint8(parallelism),
		SaltLength:  uint32(saltLength),
		KeyLength:   uint32(keyLength),
	}, nil
}

// GenerateFromPassword hashes with the currently configured parameters.
func GenerateFromPassword(password string) (string, error) {
	p, err := ParamsFromConfig()
	if err != nil {
		return "", err
	}
	return p.Hash(password)
}

func (p Params) Hash(password string) (string, error) {
	log.Debug().
		Uint32("iteration_count", p.Iterations).
		Uint32("memory_count", p.Memory).
		Uint8("parallelism_count", p.Parallelism).
		Uint32("key_length", p.KeyLength).
		Uint32("salt_length", p.SaltLength).
		Msg("hashing password with argon2")

	generatedSalt := securecookie.GenerateRandomKey(int(p.SaltLength))
	if generatedSalt == nil {
		log.Error().Uint32("salt_length_bytes", p.SaltLength).Msg("could not generate random salt")
		return "", errors.New("argon2: could not generate salt")
	}

	hash := argon2.IDKey([]byte(password), generatedSalt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory,
		p.Iterations,
		p.Parallelism,
		base64.RawStdEncoding.EncodeToString(generatedSalt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

type decodedHash struct {
	params Params
	salt   []byte
	hash   []byte
}

func decode(encodedHash string) (*decodedHash, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, ErrInvalidHash
	}

	if version != argon2.Version {
		log.Warn().Int("expected_version", argon2.Version).Int("hash_version", version).Msg("invalid argon2 version")
		return nil, ErrInvalidVersion
	}

	d := &decodedHash{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &d.params.Memory, &d.params.Iterations, &d.params.Parallelism); err != nil {
		return nil, fmt.Errorf("argon2: decode: bad parameter block: %w", ErrInvalidHash)
	}

	var err error
	d.salt, err = base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil {
		return nil, fmt.Errorf("argon2: decode: bad salt: %w", ErrInvalidHash)
	}

	d.hash, err = base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil {
		return nil, fmt.Errorf("argon2: decode: bad key: %w", ErrInvalidHash)
	}

	// lengths of decoded byte slices always fit; they came from a string
	d.params.SaltLength = uint32(len(d.salt)) // #nosec G115
	d.params.KeyLength = uint32(len(d.hash))  // #nosec G115

	return d, nil
}

// NeedsMigration reports whether encodedHash should be rehashed with the current parameters. Anything that isn't an
// argon2id hash (legacy bcrypt, for instance) always needs it.
func NeedsMigration(encodedHash string) bool {
	if viper.GetBool(DisableMigrateKey) {
		return false
	}

	if !strings.HasPrefix(encodedHash, "$argon2id$") {
		return true
	}

	d, err := decode(encodedHash)
	if err != nil {
		log.Warn().Err(err).Msg("invalid argon2 hash")
		return true
	}

	wanted, err := ParamsFromConfig()
	if err != nil {
		log.Warn().Err(err).Msg("invalid argon configuration")
		return false
	}

	return d.params != wanted
}

func ValidatePassword(password, encodedHash string) error {
	d, err := decode(encodedHash)
	if err != nil {
		return err
	}

	calcedHash := argon2.IDKey([]byte(password), d.salt, d.params.Iterations, d.params.Memory, d.params.Parallelism, d.params.KeyLength)

	if subtle.ConstantTimeCompare(d.hash, calcedHash) != 1 {
		return ErrWrongPassword
	}

	return nil
}
