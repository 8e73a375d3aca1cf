package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lthummus/loginguard/internal/attempts"
	"github.com/lthummus/loginguard/internal/healthcheck"
)

const statusDown = "DOWN"

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type componentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type detailedHealthResponse struct {
	Status      string            `json:"status"`
	Database    componentStatus   `json:"database"`
	RateLimiter attempts.Snapshot `json:"rateLimiter"`
	Timestamp   string            `json:"timestamp"`
}

func (e *Env) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: healthcheck.StatusUp, Timestamp: e.timestamp()})
}

func (e *Env) HandleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	resp := detailedHealthResponse{
		Status:      healthcheck.StatusUp,
		Database:    componentStatus{Status: healthcheck.StatusUp},
		RateLimiter: e.Tracker.Snapshot(),
		Timestamp:   e.timestamp(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := e.Database.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("database health check failed")
		resp.Status = statusDown
		resp.Database = componentStatus{Status: statusDown, Error: "unreachable"}
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
