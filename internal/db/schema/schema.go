// Package schema brings a store's tables up to date with its embedded golang-migrate scripts.
package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
)

// Apply runs every pending up script in dir of fsys against driver. The driver is closed afterwards, along with the
// *sql.DB it was built from. Drivers that support it hold a database lock for the duration, so concurrent starts are
// safe.
func Apply(fsys fs.FS, dir string, databaseName string, driver database.Driver) error {
	logger := log.With().Str("database", databaseName).Logger()

	source, err := iofs.New(fsys, dir)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("schema: Apply: could not load migration files: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, databaseName, driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("schema: Apply: could not create migration instance: %w", err)
	}
	m.Log = &migrationLogger{databaseName: databaseName}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn().AnErr("source_error", srcErr).AnErr("database_error", dbErr).Msg("could not close migration")
		}
	}()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("schema: Apply: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("schema: Apply: could not read version: %w", err)
	}

	logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("database schema is current")
	return nil
}

var _ migrate.Logger = (*migrationLogger)(nil)

type migrationLogger struct {
	databaseName string
}

func (m *migrationLogger) Printf(format string, v ...any) {
	log.Debug().Str("database", m.databaseName).Msgf(strings.TrimSpace(format), v...)
}

func (m *migrationLogger) Verbose() bool {
	return false
}
