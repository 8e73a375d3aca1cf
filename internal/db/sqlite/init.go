package sqlite

import (
	"database/sql"
	"embed"
	"fmt"

	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"

	"github.com/lthummus/loginguard/internal/db/schema"
)

//go:embed migrations/*.sql
var migrations embed.FS

// migrateDatabase consumes database; the migration driver closes it when done.
func migrateDatabase(database *sql.DB) error {
	driver, err := migratesqlite.WithInstance(database, &migratesqlite.Config{})
	if err != nil {
		_ = database.Close()
		return fmt.Errorf("db: sqlite: could not load migration driver: %w", err)
	}

	return schema.Apply(migrations, "migrations", "sqlite3", driver)
}
