package user

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/lthummus/loginguard/internal/argon"
)

var (
	ErrNoPasswordSet     = errors.New("user: no password set")
	ErrIncorrectPassword = errors.New("user: wrong password")
	ErrInvalidHash       = errors.New("user: invalid password hash")
	ErrInvalidPassword   = errors.New("user: password contains disallowed characters")
)

// User is an identity as known to the credential store.
type User struct {
	Id                string
	Username          string
	Name              string
	Email             string
	PasswordHash      string
	PasswordTimestamp int64
	Disabled          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// New builds an active user with a fresh id and a hashed password.
func New(username string, name string, email string, password string) (*User, error) {
	now := time.Now()
	u := &User{
		Id:        uuid.NewString(),
		Username:  username,
		Name:      name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := u.SetPassword(password); err != nil {
		return nil, err
	}

	return u, nil
}

func (u *User) IsActive() bool {
	return !u.Disabled
}

// CheckPassword returns nil on a match, ErrIncorrectPassword on a mismatch and some other error if the stored hash
// can't be used at all.
func (u *User) CheckPassword(candidate string) error {
	if len(u.PasswordHash) == 0 {
		return ErrNoPasswordSet
	}

	cleaned, err := cleanPassword(candidate)
	if err != nil {
		// a password the profile rejects can never have been set in the first place
		return ErrIncorrectPassword
	}

	if strings.HasPrefix(u.PasswordHash, "$2") {
		// legacy bcrypt hash; these get migrated to argon2 on the next good login
		err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(cleaned))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrIncorrectPassword
		}

		if err != nil {
			return ErrInvalidHash
		}

		return nil
	}

	err = argon.ValidatePassword(cleaned, u.PasswordHash)
	if errors.Is(err, argon.ErrWrongPassword) {
		return ErrIncorrectPassword
	}

	if err != nil {
		return ErrInvalidHash
	}

	return nil
}

func (u *User) VerifyPassword(candidate string) bool {
	return u.CheckPassword(candidate) == nil
}

func (u *User) SetPassword(password string) error {
	cleaned, err := cleanPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPassword, err)
	}

	hash, err := argon.GenerateFromPassword(cleaned)
	if err != nil {
		log.Error().Err(err).Str("username", u.Username).Msg("could not hash password")
		return err
	}

	u.PasswordHash = hash
	u.PasswordTimestamp = time.Now().Unix()
	u.UpdatedAt = time.Now()
	return nil
}
