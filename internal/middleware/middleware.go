package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"camfs/internal/control"
)

// Standard is the outer chain of the file service. It wraps every route,
// the stream included, so nothing here may bound a request's lifetime.
// CleanPath is left out on purpose: the resolver sees the raw target and
// rejects dot segments itself.
func Standard(label string, logger middleware.LogFormatter, dump control.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.Recoverer,
		middleware.RequestLogger(logger),
		middleware.RealIP,
		middleware.RequestID,
		Dump(label, dump),
	}
}

// Bounded is the chain of routes that answer and finish. A timeout <= 0
// leaves the request unbounded; a negative compress disables compression.
func Bounded(timeout time.Duration, compress int) []func(http.Handler) http.Handler {
	wares := []func(http.Handler) http.Handler{}
	if timeout > 0 {
		wares = append(wares, middleware.Timeout(timeout))
	}
	if compress >= 0 {
		wares = append(wares, middleware.Compress(compress))
	}
	return wares
}

func Control(handler http.Handler, withLogger bool, logger middleware.LogFormatter) http.Handler {
	wares := []func(http.Handler) http.Handler{
		middleware.Recoverer,
	}
	if withLogger {
		wares = append(wares, middleware.RequestLogger(logger))
	}
	wares = append(wares, []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.CleanPath,
		middleware.Timeout(15 * time.Second),
		middleware.Compress(5),
	}...)
	for i := len(wares) - 1; i >= 0; i-- {
		handler = wares[i](handler)
	}
	return handler
}
