package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// publicPaths are served without credentials so probes and scrapers work.
var publicPaths = map[string]bool{
	"/api/health": true,
	"/metrics":    true,
}

// APIKey returns middleware that requires a valid X-API-Key header.
// If expectedKey is empty, the middleware is a no-op.
func APIKey(expectedKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expectedKey == "" || publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-API-Key")
			switch {
			case provided == "":
				unauthorized(w, "missing API key")
			case subtle.ConstantTimeCompare([]byte(provided), []byte(expectedKey)) != 1:
				unauthorized(w, "invalid API key")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
