package handler

import (
	"net/http"

	"camfs/internal/control"
)

// Log reads (GET) or sets (POST, form value "level") the log level.
func Log(logger control.Logger) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set(`Content-Type`, `text/plain; charset=utf-8`)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(logger.Level().String() + "\r\n"))
		case http.MethodPost:
			from := logger.Level()
			if err := logger.SetLevelFromString(r.FormValue(`level`)); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			logger.Audit(`logging.level %s -> %s`, from.String(), logger.Level().String())
			w.WriteHeader(http.StatusOK)
		default:
			Verboten.ServeHTTP(w, r)
		}
	})
}
