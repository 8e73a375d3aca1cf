package db

import (
	"context"
	"errors"

	"github.com/lthummus/loginguard/internal/user"
)

var (
	ErrNoUsersAffected = errors.New("db: no users affected on update")

	// ErrUserExists is returned by CreateUser when the username or email is already taken. Stores translate their
	// own unique constraint errors into it so a lost registration race looks the same as a failed exists check.
	ErrUserExists = errors.New("db: username or email already in use")
)

// DB is the credential store. Lookups return (nil, nil) when the user simply doesn't exist so callers can tell "not
// found" apart from a failed query.
type DB interface {
	GetUserByUsername(ctx context.Context, username string) (*user.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	CreateUser(ctx context.Context, user *user.User) error
	SaveUser(ctx context.Context, user *user.User) error
	UpdatePassword(ctx context.Context, user *user.User) error

	GetAllUsers(ctx context.Context) ([]*user.User, error)

	Ping(ctx context.Context) error
	Close() error
}
