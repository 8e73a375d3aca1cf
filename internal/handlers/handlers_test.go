package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lthummus/loginguard/internal/argon"
	"github.com/lthummus/loginguard/internal/attempts"
	"github.com/lthummus/loginguard/internal/auth"
	"github.com/lthummus/loginguard/internal/token"
	"github.com/lthummus/loginguard/internal/user"
	"github.com/lthummus/loginguard/mocks"
)

const testAdminToken = "admin-secret"

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	env      *Env
	handler  http.Handler
	database *mocks.MockDB
	issuer   *mocks.MockIssuer
	tracker  *attempts.Tracker
}

func makeTestEnv(t *testing.T) *testEnv {
	viper.Set(argon.MemoryKey, 1024)
	viper.Set(argon.IterationKey, 1)
	viper.Set(argon.ParallelismKey, 1)
	t.Cleanup(viper.Reset)

	database := mocks.NewMockDB(t)
	issuer := mocks.NewMockIssuer(t)
	tracker := attempts.NewTracker(attempts.Config{
		Enabled:                true,
		MaxAttempts:            2,
		LockoutDurationMinutes: 15,
		CleanupIntervalMinutes: 60,
	}, attempts.WithClock(func() time.Time { return fixedNow }))

	e := &Env{
		Auth:       auth.NewService(tracker, database, issuer),
		Tracker:    tracker,
		Database:   database,
		AdminToken: testAdminToken,
		Gatherer:   prometheus.NewRegistry(),
		Now:        func() time.Time { return fixedNow },
	}

	return &testEnv{
		env:      e,
		handler:  e.BuildRouter(),
		database: database,
		issuer:   issuer,
		tracker:  tracker,
	}
}

func (te *testEnv) do(t *testing.T, method string, path string, body string, bearer string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		r.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	te.handler.ServeHTTP(w, r)

	var decoded map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}

	return w, decoded
}

func makeUser(t *testing.T) *user.User {
	u, err := user.New("alice", "Alice", "alice@example.com", "correct horse")
	require.NoError(t, err)
	return u
}

func TestHandleLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		te := makeTestEnv(t)
		u := makeUser(t)

		te.database.On("GetUserByUsername", mock.Anything, "alice").Return(u, nil)
		te.issuer.On("Issue", "alice", token.Claims{UserID: u.Id, Name: "Alice", Email: "alice@example.com"}).Return("jwt", nil)
		te.issuer.On("ExpirySeconds").Return(int64(86400))

		w, body := te.do(t, http.MethodPost, "/api/auth/login", `{"username":"  alice ","password":"correct horse"}`, "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "jwt", body["token"])
		assert.Equal(t, "Bearer", body["tokenType"])
		assert.Equal(t, float64(86400), body["expiresIn"])
		assert.Equal(t, u.Id, body["userId"])
		assert.Equal(t, "alice", body["username"])
		assert.Equal(t, "2024-05-01T10:00:00Z", body["timestamp"])
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	})

	t.Run("bad credentials", func(t *testing.T) {
		te := makeTestEnv(t)

		te.database.On("GetUserByUsername", mock.Anything, "bob").Return(nil, nil)

		w, body := te.do(t, http.MethodPost, "/api/auth/login", `{"username":"bob","password":"nope"}`, "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid_credentials", body["error"])
		assert.Equal(t, "invalid username or password", body["message"])
		assert.Equal(t, float64(401), body["status"])
		assert.Equal(t, "/api/auth/login", body["path"])
		assert.NotContains(t, body, "retryAfter")
	})

	t.Run("rate limited", func(t *testing.T) {
		te := makeTestEnv(t)
		te.tracker.RecordFailure("alice")
		te.tracker.RecordFailure("alice")

		w, body := te.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"whatever"}`, "")

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "900", w.Header().Get("Retry-After"))
		assert.Equal(t, "rate_limited", body["error"])
		assert.Equal(t, float64(900), body["retryAfter"])
		assert.Contains(t, body["message"], "15 minutes")
	})

	t.Run("validation", func(t *testing.T) {
		te := makeTestEnv(t)

		w, body := te.do(t, http.MethodPost, "/api/auth/login", `{"username":"   ","password":"x"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_failed", body["error"])

		w, _ = te.do(t, http.MethodPost, "/api/auth/login", `{"username":`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, _ = te.do(t, http.MethodPost, "/api/auth/login", `{"username":"a","password":"b","extra":1}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		assert.Equal(t, 0, te.tracker.TrackedIdentifiers())
	})

	t.Run("wrong method", func(t *testing.T) {
		te := makeTestEnv(t)

		w, _ := te.do(t, http.MethodGet, "/api/auth/login", "", "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestHandleRegister(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		te := makeTestEnv(t)

		te.database.On("ExistsByUsername", mock.Anything, "carol").Return(false, nil)
		te.database.On("ExistsByEmail", mock.Anything, "carol@example.com").Return(false, nil)
		te.database.On("CreateUser", mock.Anything, mock.AnythingOfType("*user.User")).Return(nil)

		w, body := te.do(t, http.MethodPost, "/api/auth/register", `{"username":"carol","password":"pw","name":"Carol","email":"carol@example.com"}`, "")

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "carol", body["username"])
		assert.Equal(t, true, body["active"])
		assert.NotEmpty(t, body["userId"])
	})

	t.Run("conflict", func(t *testing.T) {
		te := makeTestEnv(t)

		te.database.On("ExistsByUsername", mock.Anything, "carol").Return(true, nil)

		w, body := te.do(t, http.MethodPost, "/api/auth/register", `{"username":"carol","password":"pw"}`, "")

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "user_already_exists", body["error"])
	})

	t.Run("bad email", func(t *testing.T) {
		te := makeTestEnv(t)

		w, _ := te.do(t, http.MethodPost, "/api/auth/register", `{"username":"carol","password":"pw","email":"nope"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		te := makeTestEnv(t)

		te.database.On("ExistsByUsername", mock.Anything, "carol").Return(false, errors.New("boom"))

		w, body := te.do(t, http.MethodPost, "/api/auth/register", `{"username":"carol","password":"pw"}`, "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, body["message"], "boom")
	})
}

func TestHandleValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		te := makeTestEnv(t)
		u := makeUser(t)

		te.issuer.On("Validate", "good").Return(true)
		te.issuer.On("ExtractSubject", "good").Return("alice", nil)
		te.database.On("GetUserByUsername", mock.Anything, "alice").Return(u, nil)

		w, body := te.do(t, http.MethodPost, "/api/auth/validate", "", "good")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["valid"])
		assert.Equal(t, "alice", body["username"])
	})

	t.Run("missing header", func(t *testing.T) {
		te := makeTestEnv(t)

		te.issuer.On("Validate", "").Return(false)

		w, body := te.do(t, http.MethodPost, "/api/auth/validate", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid_token", body["error"])
	})

	t.Run("user gone looks like a bad token", func(t *testing.T) {
		te := makeTestEnv(t)

		te.issuer.On("Validate", "good").Return(true)
		te.issuer.On("ExtractSubject", "good").Return("ghost", nil)
		te.database.On("GetUserByUsername", mock.Anything, "ghost").Return(nil, nil)

		w, body := te.do(t, http.MethodPost, "/api/auth/validate", "", "good")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid_token", body["error"])
		assert.Equal(t, "invalid or expired token", body["message"])
	})
}

func TestHandleRefresh(t *testing.T) {
	te := makeTestEnv(t)

	te.issuer.On("CanRefresh", "stale").Return(false)

	w, body := te.do(t, http.MethodPost, "/api/auth/refresh", "", "stale")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "not_refreshable", body["error"])
}

func TestHandleChangePassword(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		te := makeTestEnv(t)
		u := makeUser(t)

		te.issuer.On("Validate", "good").Return(true)
		te.issuer.On("ExtractSubject", "good").Return("alice", nil)
		te.database.On("GetUserByUsername", mock.Anything, "alice").Return(u, nil)
		te.database.On("UpdatePassword", mock.Anything, u).Return(nil)

		w, body := te.do(t, http.MethodPost, "/api/auth/change-password", `{"currentPassword":"correct horse","newPassword":"battery staple"}`, "good")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "password changed", body["message"])
		assert.NoError(t, u.CheckPassword("battery staple"))
	})

	t.Run("needs a token", func(t *testing.T) {
		te := makeTestEnv(t)

		te.issuer.On("Validate", "").Return(false)

		w, _ := te.do(t, http.MethodPost, "/api/auth/change-password", `{"currentPassword":"a","newPassword":"b"}`, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAdminRoutes(t *testing.T) {
	t.Run("requires the admin token", func(t *testing.T) {
		te := makeTestEnv(t)

		w, body := te.do(t, http.MethodGet, "/api/admin/auth/config", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "unauthorized", body["error"])

		w, _ = te.do(t, http.MethodGet, "/api/admin/auth/config", "", "wrong")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("disabled without a token", func(t *testing.T) {
		te := makeTestEnv(t)
		te.env.AdminToken = ""
		te.handler = te.env.BuildRouter()

		w, _ := te.do(t, http.MethodGet, "/api/admin/auth/config", "", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("config", func(t *testing.T) {
		te := makeTestEnv(t)
		te.tracker.RecordFailure("alice")

		w, body := te.do(t, http.MethodGet, "/api/admin/auth/config", "", testAdminToken)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["enabled"])
		assert.Equal(t, float64(2), body["maxAttempts"])
		assert.Equal(t, float64(15), body["lockoutDurationMinutes"])
		assert.Equal(t, float64(1), body["currentTrackedIdentifiers"])
	})

	t.Run("attempt status and clear", func(t *testing.T) {
		te := makeTestEnv(t)
		te.tracker.RecordFailure("alice")
		te.tracker.RecordFailure("alice")

		w, body := te.do(t, http.MethodGet, "/api/admin/auth/attempts/alice", "", testAdminToken)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(2), body["attemptCount"])
		assert.Equal(t, true, body["isBlocked"])
		assert.Equal(t, float64(900), body["remainingLockoutSeconds"])
		assert.Equal(t, "15 minutes", body["remainingLockoutTime"])

		w, _ = te.do(t, http.MethodPost, "/api/admin/auth/clear/alice", "", testAdminToken)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0, te.tracker.AttemptCount("alice"))
	})

	t.Run("clear all", func(t *testing.T) {
		te := makeTestEnv(t)
		te.tracker.RecordFailure("alice")
		te.tracker.RecordFailure("bob")

		w, _ := te.do(t, http.MethodPost, "/api/admin/auth/clear-all", "", testAdminToken)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0, te.tracker.TrackedIdentifiers())
	})

	t.Run("deactivate and activate", func(t *testing.T) {
		te := makeTestEnv(t)
		u := makeUser(t)

		te.database.On("GetUserByUsername", mock.Anything, "alice").Return(u, nil)
		te.database.On("SaveUser", mock.Anything, u).Return(nil).Twice()

		w, body := te.do(t, http.MethodPost, "/api/admin/users/alice/deactivate", "", testAdminToken)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user deactivated", body["message"])

		w, _ = te.do(t, http.MethodPost, "/api/admin/users/alice/activate", "", testAdminToken)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestHealth(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		te := makeTestEnv(t)

		w, body := te.do(t, http.MethodGet, "/api/health", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "UP", body["status"])
		assert.Equal(t, "2024-05-01T10:00:00Z", body["timestamp"])
	})

	t.Run("detailed", func(t *testing.T) {
		te := makeTestEnv(t)
		te.database.On("Ping", mock.Anything).Return(nil)

		w, body := te.do(t, http.MethodGet, "/api/health/detailed", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "UP", body["status"])

		limiter := body["rateLimiter"].(map[string]any)
		assert.Equal(t, true, limiter["enabled"])
		assert.Equal(t, float64(2), limiter["maxAttempts"])
	})

	t.Run("detailed with database down", func(t *testing.T) {
		te := makeTestEnv(t)
		te.database.On("Ping", mock.Anything).Return(errors.New("no route to host"))

		w, body := te.do(t, http.MethodGet, "/api/health/detailed", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "DOWN", body["status"])
		assert.NotContains(t, w.Body.String(), "no route to host")
	})

	t.Run("metrics", func(t *testing.T) {
		te := makeTestEnv(t)

		w, _ := te.do(t, http.MethodGet, "/metrics", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, bearerToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, bearerToken(r))

	r.Header.Set("Authorization", "bearer abc.def")
	assert.Equal(t, "abc.def", bearerToken(r))

	r.Header.Set("Authorization", "Bearer ")
	assert.Empty(t, bearerToken(r))
}
