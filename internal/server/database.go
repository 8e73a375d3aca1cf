package server

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/lthummus/loginguard/internal/config"
	"github.com/lthummus/loginguard/internal/db"
	"github.com/lthummus/loginguard/internal/db/postgres"
	"github.com/lthummus/loginguard/internal/db/sqlite"
)

// OpenDatabase opens whichever store db.kind names and brings its schema up to date.
func OpenDatabase(ctx context.Context) (db.DB, error) {
	config.Lock.RLock()
	kind := viper.GetString(config.KeyDBKind)
	config.Lock.RUnlock()

	switch kind {
	case "sqlite", "":
		return sqlite.NewSQLiteFromConfig()
	case "postgres":
		return postgres.NewPostgresFromConfig(ctx)
	default:
		return nil, fmt.Errorf("server: OpenDatabase: unknown db kind %q", kind)
	}
}
