// Package auth turns credentials into bearer tokens. It owns the order of operations between the attempt tracker,
// the credential store and the token issuer, and it is the only place that records attempt outcomes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lthummus/loginguard/internal/argon"
	"github.com/lthummus/loginguard/internal/attempts"
	"github.com/lthummus/loginguard/internal/db"
	"github.com/lthummus/loginguard/internal/token"
	"github.com/lthummus/loginguard/internal/user"
)

const tracerName = "github.com/lthummus/loginguard/internal/auth"

// TokenResponse is what a successful login or refresh hands back.
type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	ExpiresIn int64  `json:"expiresIn"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

type RegisterRequest struct {
	Username string
	Password string
	Name     string
	Email    string
}

// PasswordMigrator is told about every successful login so it can rehash stale password hashes.
type PasswordMigrator interface {
	MaybeMigrate(ctx context.Context, u *user.User, password string)
}

// OutcomeRecorder is called once per Service operation with the operation name and "success" or the failure kind.
type OutcomeRecorder func(operation string, outcome string)

type Service struct {
	tracker  *attempts.Tracker
	database db.DB
	issuer   token.Issuer

	migrator PasswordMigrator
	outcomes OutcomeRecorder
	tracer   trace.Tracer
}

type Option func(s *Service)

func WithMigrator(m PasswordMigrator) Option {
	return func(s *Service) {
		s.migrator = m
	}
}

func WithOutcomeRecorder(r OutcomeRecorder) Option {
	return func(s *Service) {
		s.outcomes = r
	}
}

func NewService(tracker *attempts.Tracker, database db.DB, issuer token.Issuer, opts ...Option) *Service {
	s := &Service{
		tracker:  tracker,
		database: database,
		issuer:   issuer,
		tracer:   otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// dummyHash is verified against when a username doesn't exist, so that a miss costs about as much as a wrong
// password.
var dummyHash = sync.OnceValue(func() string {
	h, err := argon.GenerateFromPassword("loginguard-dummy-password")
	if err != nil {
		log.Error().Err(err).Msg("could not generate dummy hash")
		return ""
	}
	return h
})

func (s *Service) start(ctx context.Context, operation string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "auth."+operation)
}

func (s *Service) finish(span trace.Span, operation string, err error) {
	defer span.End()

	outcome := "success"
	if err != nil {
		outcome = KindOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(attribute.String("auth.outcome", outcome))

	if s.outcomes != nil {
		s.outcomes(operation, outcome)
	}
}

// Login checks the lockout state, then the credentials, then issues a token. Every failure after the lockout check
// is recorded against username; a blocked attempt is not.
func (s *Service) Login(ctx context.Context, username string, password string) (resp *TokenResponse, err error) {
	ctx, span := s.start(ctx, "Login")
	defer func() { s.finish(span, "login", err) }()

	if blocked, retryAfter := s.tracker.BlockedFor(username); blocked {
		log.Warn().Str("username", username).Int64("retry_after_seconds", retryAfter).Msg("login attempt while locked out")
		return nil, rateLimited(retryAfter)
	}

	resp, err = s.login(ctx, username, password)
	if err != nil {
		s.tracker.RecordFailure(username)

		logEvent := log.Info()
		if errors.Unwrap(err) != nil {
			logEvent = log.Error().AnErr("cause", errors.Unwrap(err))
		}
		logEvent.Str("username", username).Stringer("kind", KindOf(err)).Int("failure_count", s.tracker.AttemptCount(username)).Msg("login failed")

		return nil, err
	}

	log.Info().Str("username", username).Msg("login succeeded")
	return resp, nil
}

// login does the credential part of Login. Any error it returns is counted as a failed attempt by the caller.
func (s *Service) login(ctx context.Context, username string, password string) (*TokenResponse, error) {
	u, err := s.database.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fail(KindInvalidCredentials, fmt.Errorf("lookup user: %w", err))
	}

	if u == nil {
		(&user.User{PasswordHash: dummyHash()}).VerifyPassword(password)
		return nil, fail(KindInvalidCredentials, nil)
	}

	if !u.IsActive() {
		return nil, fail(KindAccountDeactivated, nil)
	}

	if err := u.CheckPassword(password); err != nil {
		if errors.Is(err, user.ErrIncorrectPassword) {
			return nil, fail(KindInvalidCredentials, nil)
		}
		return nil, fail(KindInvalidCredentials, fmt.Errorf("check password: %w", err))
	}

	s.tracker.RecordSuccess(username)

	resp, err := s.issue(u)
	if err != nil {
		return nil, fail(KindInvalidCredentials, err)
	}

	if s.migrator != nil {
		s.migrator.MaybeMigrate(ctx, u, password)
	}

	return resp, nil
}

func (s *Service) issue(u *user.User) (*TokenResponse, error) {
	signed, err := s.issuer.Issue(u.Username, token.Claims{
		UserID: u.Id,
		Name:   u.Name,
		Email:  u.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &TokenResponse{
		Token:     signed,
		TokenType: token.TypeBearer,
		ExpiresIn: s.issuer.ExpirySeconds(),
		UserID:    u.Id,
		Username:  u.Username,
		Name:      u.Name,
		Email:     u.Email,
	}, nil
}

// resolveActive maps a token subject back to a usable identity.
func (s *Service) resolveActive(ctx context.Context, username string) (*user.User, error) {
	u, err := s.database.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fail(KindInternal, fmt.Errorf("lookup user: %w", err))
	}

	if u == nil {
		return nil, fail(KindUserNotFound, nil)
	}

	if !u.IsActive() {
		return nil, fail(KindAccountDeactivated, nil)
	}

	return u, nil
}

func (s *Service) ValidateToken(ctx context.Context, raw string) (u *user.User, err error) {
	ctx, span := s.start(ctx, "ValidateToken")
	defer func() { s.finish(span, "validate", err) }()

	if !s.issuer.Validate(raw) {
		return nil, fail(KindInvalidToken, nil)
	}

	subject, err := s.issuer.ExtractSubject(raw)
	if err != nil {
		return nil, fail(KindInvalidToken, err)
	}

	return s.resolveActive(ctx, subject)
}

// RefreshToken trades a token that is still inside its refresh window for a fresh one. Refreshing is not a
// credential check so the attempt tracker is left alone.
func (s *Service) RefreshToken(ctx context.Context, raw string) (resp *TokenResponse, err error) {
	ctx, span := s.start(ctx, "RefreshToken")
	defer func() { s.finish(span, "refresh", err) }()

	if !s.issuer.CanRefresh(raw) {
		return nil, fail(KindNotRefreshable, nil)
	}

	subject, err := s.issuer.ExtractSubject(raw)
	if err != nil {
		return nil, fail(KindInvalidToken, err)
	}

	u, err := s.resolveActive(ctx, subject)
	if err != nil {
		return nil, err
	}

	resp, err = s.issue(u)
	if err != nil {
		return nil, fail(KindInternal, err)
	}

	log.Info().Str("username", u.Username).Msg("refreshed token")
	return resp, nil
}

// ChangePassword requires the current password. It does not touch the attempt tracker; callers reach it with an
// already validated token.
func (s *Service) ChangePassword(ctx context.Context, username string, oldPassword string, newPassword string) (err error) {
	ctx, span := s.start(ctx, "ChangePassword")
	defer func() { s.finish(span, "change_password", err) }()

	u, err := s.database.GetUserByUsername(ctx, username)
	if err != nil {
		return fail(KindInternal, fmt.Errorf("lookup user: %w", err))
	}

	if u == nil {
		return fail(KindInvalidCredentials, nil)
	}

	if err := u.CheckPassword(oldPassword); err != nil {
		if errors.Is(err, user.ErrIncorrectPassword) {
			return fail(KindInvalidCredentials, nil)
		}
		return fail(KindInvalidCredentials, fmt.Errorf("check password: %w", err))
	}

	if err := u.SetPassword(newPassword); err != nil {
		if errors.Is(err, user.ErrInvalidPassword) {
			return fail(KindInvalidInput, err)
		}
		return fail(KindInternal, err)
	}

	if err := s.database.UpdatePassword(ctx, u); err != nil {
		return fail(KindInternal, fmt.Errorf("update password: %w", err))
	}

	log.Info().Str("username", username).Msg("changed password")
	return nil
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (u *user.User, err error) {
	ctx, span := s.start(ctx, "Register")
	defer func() { s.finish(span, "register", err) }()

	exists, err := s.database.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, fail(KindInternal, fmt.Errorf("check username: %w", err))
	}
	if exists {
		return nil, fail(KindUserAlreadyExists, nil)
	}

	if req.Email != "" {
		exists, err = s.database.ExistsByEmail(ctx, req.Email)
		if err != nil {
			return nil, fail(KindInternal, fmt.Errorf("check email: %w", err))
		}
		if exists {
			return nil, fail(KindUserAlreadyExists, nil)
		}
	}

	u, err = user.New(req.Username, req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidPassword) {
			return nil, fail(KindInvalidInput, err)
		}
		return nil, fail(KindInternal, err)
	}

	if err := s.database.CreateUser(ctx, u); err != nil {
		// another registration for the same name or email won between the checks above and here
		if errors.Is(err, db.ErrUserExists) {
			return nil, fail(KindUserAlreadyExists, nil)
		}
		return nil, fail(KindInternal, fmt.Errorf("create user: %w", err))
	}

	log.Info().Str("username", u.Username).Str("user_id", u.Id).Msg("registered user")
	return u, nil
}

func (s *Service) Deactivate(ctx context.Context, username string) error {
	return s.setActive(ctx, username, false)
}

func (s *Service) Activate(ctx context.Context, username string) error {
	return s.setActive(ctx, username, true)
}

// setActive is a no-op for unknown usernames.
func (s *Service) setActive(ctx context.Context, username string, active bool) (err error) {
	ctx, span := s.start(ctx, "SetActive")
	span.SetAttributes(attribute.Bool("auth.active", active))
	defer func() { s.finish(span, "set_active", err) }()

	u, err := s.database.GetUserByUsername(ctx, username)
	if err != nil {
		return fail(KindInternal, fmt.Errorf("lookup user: %w", err))
	}

	if u == nil {
		log.Warn().Str("username", username).Bool("active", active).Msg("tried to change active flag of unknown user")
		return nil
	}

	u.Disabled = !active
	if err := s.database.SaveUser(ctx, u); err != nil {
		return fail(KindInternal, fmt.Errorf("save user: %w", err))
	}

	log.Info().Str("username", username).Bool("active", active).Msg("changed active flag")
	return nil
}
