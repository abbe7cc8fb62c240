package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mlorentedev/reworder/internal/metrics"
)

// Metrics records request count by method, route, and status code.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		metrics.RequestsTotal.WithLabelValues(r.Method, routeLabel(r.URL.Path), strconv.Itoa(sw.status)).Inc()
	})
}

// routeLabel collapses session IDs so the path label stays low-cardinality.
func routeLabel(path string) string {
	const prefix = "/api/sessions/"
	rest, ok := strings.CutPrefix(path, prefix)
	if !ok || rest == "" {
		return path
	}
	if _, action, found := strings.Cut(rest, "/"); found {
		return prefix + "{id}/" + action
	}
	return prefix + "{id}"
}
