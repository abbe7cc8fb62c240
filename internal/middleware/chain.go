package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultMaxBody = 64 * 1024
	// defaultTimeout stays above the slowest hosted backend round trip.
	defaultTimeout = 65 * time.Second
)

// Options configures Chain. Zero values select the defaults.
type Options struct {
	Logger      *slog.Logger
	RateLimiter *RateLimiter
	APIKey      string
	MaxBody     int64
	Timeout     time.Duration
}

// Chain wraps the handler with the full middleware stack.
// Order: CORS → RequestID → Logging → Metrics → RateLimit → APIKey → MaxBytes → Timeout → mux
func Chain(handler http.Handler, opts Options) http.Handler {
	if opts.MaxBody <= 0 {
		opts.MaxBody = defaultMaxBody
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	h := handler
	h = http.TimeoutHandler(h, opts.Timeout, `{"error":"request timeout"}`)
	h = MaxBytes(opts.MaxBody)(h)
	h = APIKey(opts.APIKey)(h)
	if opts.RateLimiter != nil {
		h = RateLimit(opts.RateLimiter)(h)
	}
	h = Metrics(h)
	h = Logging(opts.Logger)(h)
	h = RequestID(h)
	h = CORS(h)
	return h
}
