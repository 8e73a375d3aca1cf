// Package pwmigrate rehashes a user's password with the current argon2 settings after they log in successfully,
// which is the only time the plaintext is available.
package pwmigrate

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/lthummus/loginguard/internal/argon"
	"github.com/lthummus/loginguard/internal/db"
	"github.com/lthummus/loginguard/internal/user"
)

type Migrator struct {
	database db.DB
	locks    *userLocker
	wg       sync.WaitGroup
}

func New(database db.DB) *Migrator {
	return &Migrator{
		database: database,
		locks:    newUserLocker(lockTTL),
	}
}

// NeedsMigration reports whether u's stored hash is legacy or uses stale parameters.
func NeedsMigration(u *user.User) bool {
	if viper.GetBool(argon.DisableMigrateKey) {
		return false
	}
	return argon.NeedsMigration(u.PasswordHash)
}

// MaybeMigrate starts a background rehash if the user needs one. It never blocks the caller on hashing or I/O. The
// user is copied so the caller may keep using u.
func (m *Migrator) MaybeMigrate(ctx context.Context, u *user.User, password string) {
	if !NeedsMigration(u) {
		return
	}

	clone := *u
	ctx = context.WithoutCancel(ctx)

	m.wg.Go(func() {
		m.Migrate(ctx, &clone, password)
	})
}

// Migrate rehashes and persists synchronously. It returns false if another migration for the same user is already
// running or if the update failed.
func (m *Migrator) Migrate(ctx context.Context, u *user.User, password string) bool {
	log.Warn().Str("username", u.Username).Msg("password needs migration")

	if !m.locks.tryLock(u.Id) {
		log.Trace().Str("username", u.Username).Msg("lock held, ignoring")
		return false
	}
	defer m.locks.unlock(u.Id)

	if err := u.SetPassword(password); err != nil {
		log.Error().Err(err).Str("username", u.Username).Msg("unable to migrate password on login")
		return false
	}

	if err := m.database.UpdatePassword(ctx, u); err != nil {
		log.Error().Err(err).Str("username", u.Username).Msg("could not persist updated password")
		return false
	}

	log.Warn().Str("username", u.Username).Msg("migrated password to new params")
	return true
}

// Wait blocks until every background migration has finished.
func (m *Migrator) Wait() {
	m.wg.Wait()
}

// Close waits for background migrations, then stops expiring idle locks. The Migrator must not be used afterwards.
func (m *Migrator) Close() {
	m.wg.Wait()
	m.locks.stop()
}
