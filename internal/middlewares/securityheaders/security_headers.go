// Package securityheaders sets the response headers every JSON API response should carry.
package securityheaders

import "net/http"

type Middleware struct {
	handler http.Handler
}

func NewSecurityHeadersMiddleware(next http.Handler) *Middleware {
	return &Middleware{
		handler: next,
	}
}

func (m *Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	// responses can carry tokens
	w.Header().Set("Cache-Control", "no-store")

	m.handler.ServeHTTP(w, r)
}

// Wrap adapts NewSecurityHeadersMiddleware to the func(http.Handler) http.Handler shape routers expect.
func Wrap(next http.Handler) http.Handler {
	return NewSecurityHeadersMiddleware(next)
}
