package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/oxtoacart/bpool"
	"github.com/rs/zerolog/log"

	"github.com/lthummus/loginguard/internal/auth"
	"github.com/lthummus/loginguard/internal/durations"
)

const bufferPoolSize = 64

var bufpool = bpool.NewBufferPool(bufferPoolSize)

type errorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Status     int    `json:"status"`
	Path       string `json:"path"`
	RetryAfter *int64 `json:"retryAfter,omitempty"`
	Timestamp  string `json:"timestamp"`
}

type messageResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (e *Env) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// writeJSON encodes into a pooled buffer first so an encoding failure can still become a clean 500.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	buf := bufpool.Get()
	defer bufpool.Put(buf)

	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		log.Error().Err(err).Msg("could not encode response")
		http.Error(w, `{"error":"internal","message":"internal error","status":500}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (e *Env) writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message, Timestamp: e.timestamp()})
}

func (e *Env) writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	writeJSON(w, status, errorResponse{
		Error:     code,
		Message:   message,
		Status:    status,
		Path:      r.URL.Path,
		Timestamp: e.timestamp(),
	})
}

func statusForKind(k auth.Kind) int {
	switch k {
	case auth.KindRateLimited:
		return http.StatusTooManyRequests
	case auth.KindInvalidCredentials, auth.KindAccountDeactivated, auth.KindInvalidToken, auth.KindNotRefreshable, auth.KindUserNotFound:
		return http.StatusUnauthorized
	case auth.KindUserAlreadyExists:
		return http.StatusConflict
	case auth.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure renders an error returned by auth.Service. A missing user behind a token is reported as a bad token.
func (e *Env) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var f *auth.Failure
	if !errors.As(err, &f) {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("unexpected error from auth service")
		e.writeError(w, r, http.StatusInternalServerError, auth.KindInternal.String(), "internal error")
		return
	}

	kind := f.Kind
	message := f.Message()
	if kind == auth.KindUserNotFound {
		kind = auth.KindInvalidToken
		message = auth.ErrInvalidToken.Message()
	}

	status := statusForKind(kind)
	resp := errorResponse{
		Error:     kind.String(),
		Message:   message,
		Status:    status,
		Path:      r.URL.Path,
		Timestamp: e.timestamp(),
	}

	if kind == auth.KindRateLimited {
		retryAfter := f.RetryAfterSeconds
		resp.RetryAfter = &retryAfter
		resp.Message = message + "; try again in " + durations.HumanizeSeconds(retryAfter)
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(errors.Unwrap(f)).Str("path", r.URL.Path).Msg("internal error")
	}

	writeJSON(w, status, resp)
}

// decodeBody reads at most maxBodyBytes of JSON into dst, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
