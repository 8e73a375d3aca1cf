package argon

import (
	"regexp"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var argonRegex = regexp.MustCompile(`^\$argon2id\$v=\d+\$m=\d+,t=\d+,p=\d+\$[-A-Za-z0-9+/]+\$[-A-Za-z0-9+/]+$`)

var cheapParams = Params{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func TestArgon2(t *testing.T) {
	t.Run("correct password", func(t *testing.T) {
		hash, err := cheapParams.Hash("password")
		require.NoError(t, err)

		assert.Regexp(t, argonRegex, hash)
		assert.NoError(t, ValidatePassword("password", hash))
	})

	t.Run("incorrect password", func(t *testing.T) {
		hash, err := cheapParams.Hash("password")
		require.NoError(t, err)

		assert.ErrorIs(t, ValidatePassword("password1", hash), ErrWrongPassword)
	})

	t.Run("invalid hash", func(t *testing.T) {
		assert.ErrorIs(t, ValidatePassword("aa", "ksdjfkdsjfkdsjfdskfjdskfjdskfjkdf"), ErrInvalidHash)
		assert.ErrorIs(t, ValidatePassword("aa", "$argon2id$v=19$m=abc$x$y"), ErrInvalidHash)
		assert.ErrorIs(t, ValidatePassword("aa", "$argon2i$v=19$m=1024,t=1,p=1$Sz1T6kOEN6fAa2/5NvHX5g$mDgZAJ7oLMYmW7yVAYnXBho7Ybg12woF66GQnP6XocA"), ErrInvalidHash)
	})

	t.Run("wrong version", func(t *testing.T) {
		assert.ErrorIs(t, ValidatePassword("aa", "$argon2id$v=16$m=1024,t=1,p=1$Sz1T6kOEN6fAa2/5NvHX5g$mDgZAJ7oLMYmW7yVAYnXBho7Ybg12woF66GQnP6XocA"), ErrInvalidVersion)
	})

	t.Run("generate uses configured params", func(t *testing.T) {
		viper.Set(MemoryKey, 2048)
		viper.Set(IterationKey, 1)
		viper.Set(ParallelismKey, 1)
		t.Cleanup(viper.Reset)

		hash, err := GenerateFromPassword("password")
		require.NoError(t, err)
		assert.Contains(t, hash, "$m=2048,t=1,p=1$")
		assert.NoError(t, ValidatePassword("password", hash))
	})
}

func TestParamsFromConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Cleanup(viper.Reset)

		p, err := ParamsFromConfig()
		require.NoError(t, err)
		assert.Equal(t, DefaultParams, p)
	})

	t.Run("parallelism too large", func(t *testing.T) {
		viper.Set(ParallelismKey, 300)
		t.Cleanup(viper.Reset)

		_, err := ParamsFromConfig()
		assert.ErrorIs(t, err, ErrInvalidParams)
	})
}

func TestNeedsMigration(t *testing.T) {
	t.Run("bcrypt hash", func(t *testing.T) {
		assert.True(t, NeedsMigration("$2y$10$UKHA7gPNKpu/Kc7tyo91eudJZdX9qDs0S2E1GWgZKPkP/o4s2SR.m"))
	})

	t.Run("don't require migration if disabled", func(t *testing.T) {
		viper.Set(DisableMigrateKey, true)
		t.Cleanup(viper.Reset)

		assert.False(t, NeedsMigration("$2y$10$UKHA7gPNKpu/Kc7tyo91eudJZdX9qDs0S2E1GWgZKPkP/o4s2SR.m"))
	})

	t.Run("don't require migration if argon props are correct", func(t *testing.T) {
		assert.False(t, NeedsMigration("$argon2id$v=19$m=65536,t=3,p=2$Sz1T6kOEN6fAa2/5NvHX5g$mDgZAJ7oLMYmW7yVAYnXBho7Ybg12woF66GQnP6XocA"))
	})

	t.Run("require migration if argon props are incorrect", func(t *testing.T) {
		assert.True(t, NeedsMigration("$argon2id$v=19$m=32768,t=4,p=2$doqbcsy6S669OpGN5twLfWm8mJjy6QywOJsPLnabTgs$zoyPNcenQg0H83J4EcX2QVLGJFAMkTXyg5Q8Rvt3qv0"))
	})
}
