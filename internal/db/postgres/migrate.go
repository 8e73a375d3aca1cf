package postgres

import (
	"database/sql"
	"embed"
	"fmt"

	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"

	"github.com/lthummus/loginguard/internal/db/schema"
)

//go:embed migrations/*.sql
var migrations embed.FS

// migrateDatabase runs under a postgres advisory lock held by the driver, so several instances can start against
// the same database at once. database is closed when it returns.
func migrateDatabase(databaseURL string) error {
	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("db: postgres: could not open migration connection: %w", err)
	}

	driver, err := migratepgx.WithInstance(database, &migratepgx.Config{})
	if err != nil {
		_ = database.Close()
		return fmt.Errorf("db: postgres: could not load migration driver: %w", err)
	}

	return schema.Apply(migrations, "migrations", "pgx5", driver)
}
