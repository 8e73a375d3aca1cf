package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/lthummus/loginguard/internal/attempts"
	"github.com/lthummus/loginguard/internal/durations"
)

type attemptConfigResponse struct {
	attempts.Snapshot
	Timestamp string `json:"timestamp"`
}

type attemptStatusResponse struct {
	Identifier              string `json:"identifier"`
	AttemptCount            int    `json:"attemptCount"`
	IsBlocked               bool   `json:"isBlocked"`
	RemainingLockoutSeconds int64  `json:"remainingLockoutSeconds"`
	RemainingLockoutTime    string `json:"remainingLockoutTime"`
	Timestamp               string `json:"timestamp"`
}

func (e *Env) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provided := bearerToken(r)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(e.AdminToken)) != 1 {
			log.Warn().Str("path", r.URL.Path).Str("client_ip", e.clientIP(r)).Msg("rejected admin request")
			e.writeError(w, r, http.StatusUnauthorized, "unauthorized", "admin token required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (e *Env) HandleAttemptConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, attemptConfigResponse{Snapshot: e.Tracker.Snapshot(), Timestamp: e.timestamp()})
}

func (e *Env) HandleClearAllAttempts(w http.ResponseWriter, r *http.Request) {
	e.Tracker.ClearAll()
	e.writeMessage(w, http.StatusOK, "all authentication attempts cleared")
}

func (e *Env) HandleClearAttempts(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	e.Tracker.Clear(identifier)
	e.writeMessage(w, http.StatusOK, "authentication attempts cleared for "+identifier)
}

func (e *Env) HandleAttemptStatus(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	blocked, remaining := e.Tracker.BlockedFor(identifier)

	writeJSON(w, http.StatusOK, attemptStatusResponse{
		Identifier:              identifier,
		AttemptCount:            e.Tracker.AttemptCount(identifier),
		IsBlocked:               blocked,
		RemainingLockoutSeconds: remaining,
		RemainingLockoutTime:    durations.HumanizeSeconds(remaining),
		Timestamp:               e.timestamp(),
	})
}

func (e *Env) HandleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if err := e.Auth.Deactivate(r.Context(), username); err != nil {
		e.writeFailure(w, r, err)
		return
	}
	e.writeMessage(w, http.StatusOK, "user deactivated")
}

func (e *Env) HandleActivateUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if err := e.Auth.Activate(r.Context(), username); err != nil {
		e.writeFailure(w, r, err)
		return
	}
	e.writeMessage(w, http.StatusOK, "user activated")
}
