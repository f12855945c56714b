package middleware

import (
	"net/http"
)

// NoStore returns a middleware that marks responses as uncacheable. Cart state
// is per-user and mutates on every write, so intermediaries must never serve a
// stale copy.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
