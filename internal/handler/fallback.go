package handler

import (
	"net/http"
)

// Cocytus answers requests no route claims.
var Cocytus = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(`Connection`, `close`)
	http.Error(w, `File does not exist`, http.StatusNotFound)
})

// Verboten answers a known path requested with the wrong method.
var Verboten = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(`Connection`, `close`)
	http.Error(w, `Method not allowed`, http.StatusMethodNotAllowed)
})
