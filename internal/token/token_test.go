package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lthummus/loginguard/internal/config"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func newTestIssuer(c *clock) *JWT {
	return NewJWT(testKey, "loginguard-test", time.Hour, 2*time.Hour, WithClock(c.Now))
}

func TestJWT_IssueAndValidate(t *testing.T) {
	c := &clock{now: time.Now()}
	j := newTestIssuer(c)

	tok, err := j.Issue("johndoe", Claims{UserID: "abc", Name: "John", Email: "john@example.com"})
	require.NoError(t, err)

	assert.True(t, j.Validate(tok))

	sub, err := j.ExtractSubject(tok)
	require.NoError(t, err)
	assert.Equal(t, "johndoe", sub)

	var parsed signedClaims
	_, _, err = jwt.NewParser().ParseUnverified(tok, &parsed)
	require.NoError(t, err)
	assert.Equal(t, "abc", parsed.UserID)
	assert.Equal(t, "John", parsed.Name)
	assert.Equal(t, "john@example.com", parsed.Email)
	assert.NotEmpty(t, parsed.ID)

	assert.Equal(t, int64(3600), j.ExpirySeconds())
}

func TestJWT_Expiry(t *testing.T) {
	c := &clock{now: time.Now()}
	j := newTestIssuer(c)

	tok, err := j.Issue("johndoe", Claims{})
	require.NoError(t, err)

	c.now = c.now.Add(time.Hour + time.Second)
	assert.False(t, j.Validate(tok))

	// subject is still readable from an expired token
	sub, err := j.ExtractSubject(tok)
	require.NoError(t, err)
	assert.Equal(t, "johndoe", sub)
}

func TestJWT_CanRefresh(t *testing.T) {
	c := &clock{now: time.Now()}
	j := newTestIssuer(c)

	tok, err := j.Issue("johndoe", Claims{})
	require.NoError(t, err)

	assert.True(t, j.CanRefresh(tok))

	c.now = c.now.Add(2 * time.Hour)
	assert.True(t, j.CanRefresh(tok), "expired but inside the refresh window")

	c.now = c.now.Add(time.Hour + time.Second)
	assert.False(t, j.CanRefresh(tok), "past the refresh window")
}

func TestJWT_Rejects(t *testing.T) {
	c := &clock{now: time.Now()}
	j := newTestIssuer(c)

	t.Run("empty", func(t *testing.T) {
		assert.False(t, j.Validate(""))
		_, err := j.ExtractSubject("")
		assert.ErrorIs(t, err, ErrEmptyToken)
	})

	t.Run("garbage", func(t *testing.T) {
		assert.False(t, j.Validate("not.a.token"))
		assert.False(t, j.CanRefresh("not.a.token"))
	})

	t.Run("wrong key", func(t *testing.T) {
		other := NewJWT([]byte("another-key-another-key-another!!"), "loginguard-test", time.Hour, time.Hour, WithClock(c.Now))
		tok, err := other.Issue("johndoe", Claims{})
		require.NoError(t, err)

		assert.False(t, j.Validate(tok))
		assert.False(t, j.CanRefresh(tok))
		_, err = j.ExtractSubject(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWT(testKey, "someone-else", time.Hour, time.Hour, WithClock(c.Now))
		tok, err := other.Issue("johndoe", Claims{})
		require.NoError(t, err)

		assert.False(t, j.Validate(tok))
		assert.False(t, j.CanRefresh(tok))
	})

	t.Run("no subject", func(t *testing.T) {
		tok, err := j.Issue("", Claims{})
		require.NoError(t, err)

		_, err = j.ExtractSubject(tok)
		assert.ErrorIs(t, err, ErrNoSubject)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, signedClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "johndoe", Issuer: "loginguard-test"},
		})
		tok, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		assert.False(t, j.Validate(tok))
		_, err = j.ExtractSubject(tok)
		assert.Error(t, err)
	})
}

func TestNewJWTFromConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Cleanup(viper.Reset)

		j := NewJWTFromConfig(testKey)
		assert.Equal(t, DefaultLifetime, j.lifetime)
		assert.Equal(t, DefaultRefreshWindow, j.refreshWindow)
		assert.Equal(t, DefaultIssuer, j.issuer)
	})

	t.Run("configured", func(t *testing.T) {
		t.Cleanup(viper.Reset)
		viper.Set(config.KeyTokenLifetime, "30m")
		viper.Set(config.KeyTokenRefreshWindow, "1h")
		viper.Set(config.KeyTokenIssuer, "custom")

		j := NewJWTFromConfig(testKey)
		assert.Equal(t, 30*time.Minute, j.lifetime)
		assert.Equal(t, time.Hour, j.refreshWindow)
		assert.Equal(t, "custom", j.issuer)
		assert.Equal(t, int64(1800), j.ExpirySeconds())
	})
}
