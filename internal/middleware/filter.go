package middleware

import (
	"net/http"
	"slices"
)

// Methods passes requests with one of the allowed methods on and hands the
// rest to trash.
func Methods(trash http.Handler, allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(allowed, r.Method) {
				trash.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
