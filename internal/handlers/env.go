package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/lthummus/loginguard/internal/attempts"
	"github.com/lthummus/loginguard/internal/auth"
	"github.com/lthummus/loginguard/internal/db"
	"github.com/lthummus/loginguard/internal/middlewares/securityheaders"
	"github.com/lthummus/loginguard/internal/trueip"
)

const maxBodyBytes = 1 << 20

type Env struct {
	Auth       *auth.Service
	Tracker    *attempts.Tracker
	Database   db.DB
	IPResolver *trueip.Resolver

	// AdminToken guards /api/admin. Admin routes are not mounted at all when it is empty.
	AdminToken string

	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer

	Now func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) BuildRouter() http.Handler {
	log.Info().Msg("setting up routes")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(e.requestLogger)
	r.Use(securityheaders.Wrap)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", e.HandleLogin)
		r.Post("/register", e.HandleRegister)
		r.Post("/validate", e.HandleValidate)
		r.Post("/refresh", e.HandleRefresh)
		r.Post("/change-password", e.HandleChangePassword)
	})

	if e.AdminToken != "" {
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(e.requireAdmin)

			r.Get("/auth/config", e.HandleAttemptConfig)
			r.Post("/auth/clear-all", e.HandleClearAllAttempts)
			r.Post("/auth/clear/{identifier}", e.HandleClearAttempts)
			r.Get("/auth/attempts/{identifier}", e.HandleAttemptStatus)

			r.Post("/users/{username}/deactivate", e.HandleDeactivateUser)
			r.Post("/users/{username}/activate", e.HandleActivateUser)
		})
	} else {
		log.Warn().Msg("admin.token is not set; admin routes are disabled")
	}

	r.Get("/api/health", e.HandleHealth)
	r.Get("/api/health/detailed", e.HandleDetailedHealth)

	if e.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(e.Gatherer, promhttp.HandlerOpts{}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		e.writeError(w, r, http.StatusNotFound, "not_found", "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		e.writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return r
}

func (e *Env) clientIP(r *http.Request) string {
	if e.IPResolver == nil {
		return r.RemoteAddr
	}
	return e.IPResolver.Find(r)
}

func (e *Env) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("client_ip", e.clientIP(r)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("took", time.Since(start)).
			Msg("handled request")
	})
}
