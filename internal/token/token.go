// Package token issues and checks the bearer tokens handed out after a successful login.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/lthummus/loginguard/internal/config"
)

const (
	DefaultLifetime      = 24 * time.Hour
	DefaultRefreshWindow = 24 * time.Hour
	DefaultIssuer        = "loginguard"

	TypeBearer = "Bearer"
)

var (
	ErrEmptyToken   = errors.New("token: empty token")
	ErrInvalidToken = errors.New("token: invalid token")
	ErrNoSubject    = errors.New("token: token has no subject")
)

// Claims are the caller supplied values embedded next to the subject.
type Claims struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type Issuer interface {
	Issue(subject string, claims Claims) (string, error)
	// Validate reports whether the token carries a good signature and has not expired.
	Validate(token string) bool
	// ExtractSubject returns the subject of a correctly signed token, expired or not.
	ExtractSubject(token string) (string, error)
	// CanRefresh reports whether a correctly signed token is still inside its refresh window.
	CanRefresh(token string) bool
	ExpirySeconds() int64
}

type signedClaims struct {
	Claims
	jwt.RegisteredClaims
}

type JWT struct {
	signingKey    []byte
	issuer        string
	lifetime      time.Duration
	refreshWindow time.Duration
	now           func() time.Time
}

var _ Issuer = (*JWT)(nil)

type Option func(*JWT)

// WithClock replaces the wall clock used for both issuing and checking tokens.
func WithClock(now func() time.Time) Option {
	return func(j *JWT) {
		j.now = now
	}
}

func NewJWT(signingKey []byte, issuer string, lifetime time.Duration, refreshWindow time.Duration, opts ...Option) *JWT {
	j := &JWT{
		signingKey:    signingKey,
		issuer:        issuer,
		lifetime:      lifetime,
		refreshWindow: refreshWindow,
		now:           time.Now,
	}

	for _, o := range opts {
		o(j)
	}

	return j
}

// NewJWTFromConfig builds an issuer from the security.token block. Non-positive durations fall back to the defaults.
func NewJWTFromConfig(signingKey []byte) *JWT {
	config.Lock.RLock()
	lifetime := viper.GetDuration(config.KeyTokenLifetime)
	refreshWindow := viper.GetDuration(config.KeyTokenRefreshWindow)
	issuer := viper.GetString(config.KeyTokenIssuer)
	config.Lock.RUnlock()

	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	if refreshWindow <= 0 {
		refreshWindow = DefaultRefreshWindow
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}

	log.Info().Dur("lifetime", lifetime).Dur("refresh_window", refreshWindow).Str("issuer", issuer).Msg("configured token issuer")

	return NewJWT(signingKey, issuer, lifetime, refreshWindow)
}

func (j *JWT) Issue(subject string, claims Claims) (string, error) {
	now := j.now()

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, signedClaims{
		Claims: claims,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.lifetime)),
			ID:        uuid.NewString(),
		},
	})

	signed, err := t.SignedString(j.signingKey)
	if err != nil {
		return "", fmt.Errorf("token: Issue: %w", err)
	}

	return signed, nil
}

func (j *JWT) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("token: unexpected signing algorithm %s", t.Method.Alg())
	}
	return j.signingKey, nil
}

func (j *JWT) parse(raw string, validateClaims bool) (*signedClaims, error) {
	if raw == "" {
		return nil, ErrEmptyToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithTimeFunc(j.now),
	}
	if !validateClaims {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := new(signedClaims)
	parsed, err := jwt.ParseWithClaims(raw, claims, j.keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	// WithoutClaimsValidation skips the issuer check too
	if claims.Issuer != j.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}

	return claims, nil
}

func (j *JWT) Validate(raw string) bool {
	_, err := j.parse(raw, true)
	if err != nil {
		log.Debug().Err(err).Msg("token failed validation")
		return false
	}
	return true
}

func (j *JWT) ExtractSubject(raw string) (string, error) {
	claims, err := j.parse(raw, false)
	if err != nil {
		return "", err
	}

	if claims.Subject == "" {
		return "", ErrNoSubject
	}

	return claims.Subject, nil
}

func (j *JWT) CanRefresh(raw string) bool {
	claims, err := j.parse(raw, false)
	if err != nil {
		log.Debug().Err(err).Msg("token not refreshable")
		return false
	}

	if claims.ExpiresAt == nil {
		return false
	}

	return j.now().Before(claims.ExpiresAt.Add(j.refreshWindow))
}

func (j *JWT) ExpirySeconds() int64 {
	return int64(j.lifetime / time.Second)
}
