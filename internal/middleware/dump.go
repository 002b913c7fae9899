package middleware

import (
	"bytes"
	"encoding/hex"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"camfs/internal/control"
)

const dumpBodyMax = 1024

// Dump logs request headers and the head of the body at trace level. The
// body is handed on unchanged.
func Dump(label string, logger control.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger == nil || logger.Level() > control.LogLevelTrace {
				next.ServeHTTP(w, r)
				return
			}
			reqID := middleware.GetReqID(r.Context())

			keys := make([]string, 0, len(r.Header))
			for k := range r.Header {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Trace(`%-5s %s === %s %s`, label, reqID, r.Method, r.RequestURI)
			for _, key := range keys {
				logger.Trace(`%-5s %s >>> %-20s %s`, label, reqID, key, strings.Join(r.Header[key], `, `))
			}

			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			head, err := io.ReadAll(io.LimitReader(r.Body, dumpBodyMax))
			if err != nil {
				logger.Error(`%-5s %s body: %s`, label, reqID, err)
			} else if len(head) > 0 {
				logger.Trace(`%-5s %s === body %d`, label, reqID, len(head))
				for _, s := range strings.Split(hex.Dump(head), "\n") {
					if len(s) > 0 {
						logger.Trace(`%-5s %s >>> %s`, label, reqID, s)
					}
				}
			}
			r.Body = struct {
				io.Reader
				io.Closer
			}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
			next.ServeHTTP(w, r)
		})
	}
}
