package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/lthummus/loginguard/internal/config"
	"github.com/lthummus/loginguard/internal/db"
	"github.com/lthummus/loginguard/internal/user"
)

const userColumns = "id, username, name, email, password, password_timestamp, disabled, created_at, updated_at"

// Postgres is a credential store backed by a PostgreSQL database, reached through the pgx database/sql driver.
type Postgres struct {
	db *sql.DB
}

var _ db.DB = (*Postgres)(nil)

func NewPostgresFromConfig(ctx context.Context) (*Postgres, error) {
	config.Lock.RLock()
	url := viper.GetString(config.KeyDBURL)
	config.Lock.RUnlock()

	if url == "" {
		return nil, errors.New("db: NewPostgresFromConfig: db url not set")
	}

	return NewPostgres(ctx, url)
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	log.Info().Msg("starting database initialization")

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: NewPostgres: could not open db: %w", err)
	}

	database.SetMaxOpenConns(10)
	database.SetMaxIdleConns(5)
	database.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("db: NewPostgres: could not reach db: %w", err)
	}

	if err := migrateDatabase(databaseURL); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("db: NewPostgres: could not migrate: %w", err)
	}

	log.Info().Msg("finished database initialization")

	return &Postgres{db: database}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*user.User, error) {
	var u user.User
	var email sql.NullString

	err := row.Scan(&u.Id, &u.Username, &u.Name, &email, &u.PasswordHash, &u.PasswordTimestamp, &u.Disabled, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	u.Email = email.String
	return &u, nil
}

func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	u, err := scanUser(p.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug().Str("username", username).Msg("user not found")
			return nil, nil
		}
		return nil, fmt.Errorf("db: postgres: lookup by username: %w", err)
	}

	return u, nil
}

func (p *Postgres) exists(ctx context.Context, query string, arg string) (bool, error) {
	var found bool
	if err := p.db.QueryRowContext(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("db: postgres: exists: %w", err)
	}
	return found, nil
}

func (p *Postgres) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return p.exists(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", username)
}

func (p *Postgres) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return p.exists(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", email)
}

// uniqueViolation is the SQLSTATE postgres reports for a broken UNIQUE constraint.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullableEmail(email string) sql.NullString {
	return sql.NullString{String: email, Valid: email != ""}
}

func (p *Postgres) CreateUser(ctx context.Context, u *user.User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err := p.db.ExecContext(ctx, "INSERT INTO users ("+userColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		u.Id,
		u.Username,
		u.Name,
		nullableEmail(u.Email),
		u.PasswordHash,
		u.PasswordTimestamp,
		u.Disabled,
		u.CreatedAt,
		u.UpdatedAt)
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

func (p *Postgres) SaveUser(ctx context.Context, u *user.User) error {
	u.UpdatedAt = time.Now()

	res, err := p.db.ExecContext(ctx, "UPDATE users SET name = $1, email = $2, password = $3, password_timestamp = $4, disabled = $5, updated_at = $6 WHERE id = $7",
		u.Name,
		nullableEmail(u.Email),
		u.PasswordHash,
		u.PasswordTimestamp,
		u.Disabled,
		u.UpdatedAt,
		u.Id)
	if err != nil {
		if isUniqueViolation(err) {
			return db.ErrUserExists
		}
		return err
	}

	return expectOneRow(res, u.Id)
}

func (p *Postgres) UpdatePassword(ctx context.Context, u *user.User) error {
	res, err := p.db.ExecContext(ctx, "UPDATE users SET password = $1, password_timestamp = $2, updated_at = NOW() WHERE id = $3",
		u.PasswordHash,
		u.PasswordTimestamp,
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

func (p *Postgres) GetAllUsers(ctx context.Context) ([]*user.User, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY username")
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

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
