package handlers

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lthummus/loginguard/internal/auth"
	"github.com/lthummus/loginguard/internal/user"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type tokenResponse struct {
	*auth.TokenResponse
	Timestamp string `json:"timestamp"`
}

type userResponse struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Active    bool   `json:"active"`
	Timestamp string `json:"timestamp"`
}

type validateResponse struct {
	Valid bool `json:"valid"`
	userResponse
}

func (e *Env) toUserResponse(u *user.User) userResponse {
	return userResponse{
		UserID:    u.Id,
		Username:  u.Username,
		Name:      u.Name,
		Email:     u.Email,
		Active:    u.IsActive(),
		Timestamp: e.timestamp(),
	}
}

// bearerToken pulls the token out of an "Authorization: Bearer ..." header, or returns empty string.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func (e *Env) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		e.writeError(w, r, http.StatusBadRequest, "validation_failed", "malformed request body")
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		e.writeError(w, r, http.StatusBadRequest, "validation_failed", "username and password are required")
		return
	}

	resp, err := e.Auth.Login(r.Context(), username, req.Password)
	if err != nil {
		log.Info().Str("username", username).Str("client_ip", e.clientIP(r)).Stringer("kind", auth.KindOf(err)).Msg("rejected login")
		e.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{TokenResponse: resp, Timestamp: e.timestamp()})
}

func (e *Env) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		e.writeError(w, r, http.StatusBadRequest, "validation_failed", "malformed request body")
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		e.writeError(w, r, http.StatusBadRequest, "validation_failed", "username and password are required")
		return
	}

	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		e.writeError(w, r, http.StatusBadRequest, "validation_failed", "email is not valid")
		return
	}

	u, err := e.Auth.Register(r.Context(), auth.RegisterRequest{
		Username: username,
		Password: req.Password,
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
	})
	if err != nil {
		e.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, e.toUserResponse(u))
}

func (e *Env) HandleValidate(w http.ResponseWriter, r *http.Request) {
	u, err := e.Auth.ValidateToken(r.Context(), bearerToken(r))
	if err != nil {
		e.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{Valid: true, userResponse: e.toUserResponse(u)})
}

func (e *Env) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	resp, err := e.Auth.RefreshToken(r.Context(), bearerToken(r))
	if err != nil {
		e.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{TokenResponse: resp, Timestamp: e.timestamp()})
}

func (e *Env) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	u, err := e.Auth.ValidateToken(r.Context(), bearerToken(r))
	if err != nil {
		e.writeFailure(w, r, err)
		return
	}

	var req changePasswordRequest
	if err := decodeBody(w, r, &req); err != nil {
		e.writeError(w, r, http.StatusBadRequest, "validation_failed", "malformed request body")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		e.writeError(w, r, http.StatusBadRequest, "validation_failed", "currentPassword and newPassword are required")
		return
	}

	if err := e.Auth.ChangePassword(r.Context(), u.Username, req.CurrentPassword, req.NewPassword); err != nil {
		e.writeFailure(w, r, err)
		return
	}

	e.writeMessage(w, http.StatusOK, "password changed")
}
