package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/lthummus/loginguard/internal/config"
	"github.com/lthummus/loginguard/internal/db"
	"github.com/lthummus/loginguard/internal/user"

	"github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

var _ db.DB = (*SQLite)(nil)

const userColumns = "id, username, name, email, password, password_timestamp, disabled, created_at, updated_at"

func NewSQLiteFromConfig() (*SQLite, error) {
	config.Lock.RLock()
	file := viper.GetString(config.KeyDBFile)
	config.Lock.RUnlock()

	if file == "" {
		return nil, errors.New("db: NewSQLiteFromConfig: db file not set")
	}

	return NewSQLite(file)
}

func NewSQLite(file string) (*SQLite, error) {
	absDBFile, err := filepath.Abs(file)
	if err != nil {
		log.Warn().Str("raw_db_file", file).Err(err).Msg("could not get db file absolute path")
	}

	log.Info().Str("raw_db_file", file).Str("abs_db_file", absDBFile).Msg("starting database initialization")

	database, err := sql.Open("sqlite3", file)
	if err != nil {
		return nil, fmt.Errorf("db: NewSQLite: could not open db: %w", err)
	}

	err = migrateDatabase(database)
	if err != nil {
		return nil, fmt.Errorf("db: NewSQLite: could not migrate: %w", err)
	}

	// the migration driver closes the handle it was given, so open a fresh one
	database, err = sql.Open("sqlite3", file)
	if err != nil {
		return nil, fmt.Errorf("db: NewSQLite: could not open db: %w", err)
	}

	log.Info().Str("raw_db_file", file).Str("abs_db_file", absDBFile).Msg("finished database initialization")

	return &SQLite{db: database}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*user.User, error) {
	var u user.User
	var email sql.NullString
	var disabled int64
	var createdAt, updatedAt int64

	err := row.Scan(&u.Id, &u.Username, &u.Name, &email, &u.PasswordHash, &u.PasswordTimestamp, &disabled, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	u.Email = email.String
	u.Disabled = disabled != 0
	u.CreatedAt = time.Unix(createdAt, 0)
	u.UpdatedAt = time.Unix(updatedAt, 0)

	return &u, nil
}

func (s *SQLite) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug().Str("username", username).Msg("user not found")
			return nil, nil
		}
		return nil, fmt.Errorf("db: sqlite: lookup by username: %w", err)
	}

	return u, nil
}

func (s *SQLite) exists(ctx context.Context, query string, arg string) (bool, error) {
	var found bool
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&found)
	if err != nil {
		return false, err
	}
	return found, nil
}

func (s *SQLite) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", username)
}

func (s *SQLite) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", email)
}

func nullableEmail(email string) sql.NullString {
	return sql.NullString{String: email, Valid: email != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLite) CreateUser(ctx context.Context, u *user.User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, "INSERT INTO users ("+userColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		u.Id,
		u.Username,
		u.Name,
		nullableEmail(u.Email),
		u.PasswordHash,
		u.PasswordTimestamp,
		boolToInt(u.Disabled),
		u.CreatedAt.Unix(),
		u.UpdatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			log.Warn().Str("username", u.Username).Msg("username or email already taken")
			return db.ErrUserExists
		}
		log.Error().Err(err).Str("username", u.Username).Msg("could not save user")
		return err
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (s *SQLite) SaveUser(ctx context.Context, u *user.User) error {
	u.UpdatedAt = time.Now()

	res, err := s.db.ExecContext(ctx, "UPDATE users SET name = $1, email = $2, password = $3, password_timestamp = $4, disabled = $5, updated_at = $6 WHERE id = $7",
		u.Name,
		nullableEmail(u.Email),
		u.PasswordHash,
		u.PasswordTimestamp,
		boolToInt(u.Disabled),
		u.UpdatedAt.Unix(),
		u.Id)
	if err != nil {
		if isUniqueViolation(err) {
			return db.ErrUserExists
		}
		return err
	}

	return expectOneRow(res, u.Id)
}

func (s *SQLite) UpdatePassword(ctx context.Context, u *user.User) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET password = $1, password_timestamp = $2, updated_at = $3 WHERE id = $4",
		u.PasswordHash,
		u.PasswordTimestamp,
		time.Now().Unix(),
		u.Id)
	if err != nil {
		return err
	}

	return expectOneRow(res, u.Id)
}

func expectOneRow(res sql.Result, userId string) error {
	ra, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if ra == 0 {
		log.Warn().Str("user_id", userId).Msg("attempted to update; no rows changed")
		return db.ErrNoUsersAffected
	}

	return nil
}

func (s *SQLite) GetAllUsers(ctx context.Context) ([]*user.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ret []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, u)
	}

	return ret, rows.Err()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
