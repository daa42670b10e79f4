package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/shrubbery/internal/metrics"
)

// RouteTemplate returns the matched mux route template, e.g.
// /api/v1/shrubs/{id}, so label values stay bounded. Unmatched requests
// report "unmatched".
func RouteTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return "unmatched"
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return "unmatched"
	}
	return tpl
}

// Instrument records request latency per route into m. A nil m disables it.
func Instrument(m *metrics.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := NewResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			m.ObserveHTTPRequest(RouteTemplate(r), r.Method, wrapped.status, time.Since(start))
		})
	}
}
