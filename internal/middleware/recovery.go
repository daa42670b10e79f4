package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/mcoot/shrubbery/internal/metrics"
)

// PanicHandler writes the response for a recovered panic
type PanicHandler func(w http.ResponseWriter, r *http.Request, err any)

// Recovery turns handler panics into a response written by onPanic. The
// panic is logged with its stack and counted against the route template.
func Recovery(logger *slog.Logger, m *metrics.Manager, onPanic PanicHandler) func(http.Handler) http.Handler {
	if onPanic == nil {
		onPanic = DefaultPanicHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// net/http uses this sentinel to abort a response on purpose
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				route := RouteTemplate(r)
				m.PanicRecovered(route)
				logger.Error("panic recovered",
					slog.Any("error", rec),
					slog.String("route", route),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)

				onPanic(w, r, rec)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// DefaultPanicHandler answers with a plain 500
func DefaultPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
