package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mlorentedev/reworder/internal/handler"
	"github.com/mlorentedev/reworder/internal/middleware"
	"github.com/mlorentedev/reworder/internal/reword"
	"github.com/mlorentedev/reworder/internal/session"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Service     *reword.Service
	Store       *session.Store
	RateLimiter *middleware.RateLimiter
	Logger      *slog.Logger
	APIKey      string
	Version     string

	// LoadCtx bounds background model loads; cancel it on shutdown.
	LoadCtx     context.Context
	LoadTimeout time.Duration
}

// SetupMux wires handlers with the full middleware chain.
func SetupMux(d Deps) http.Handler {
	if d.LoadCtx == nil {
		d.LoadCtx = context.Background()
	}
	if d.LoadTimeout <= 0 {
		d.LoadTimeout = 10 * time.Minute
	}
	if d.RateLimiter == nil {
		d.RateLimiter = middleware.NewRateLimiter(10, time.Minute)
	}

	sessions := handler.NewSessions(d.Store, d.Service, d.LoadCtx, d.LoadTimeout, d.Logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handler.Health(d.Service.Catalog().Backends(), d.Version))
	mux.HandleFunc("GET /api/models", handler.Models(d.Service.Catalog()))
	mux.HandleFunc("GET /api/styles", handler.Styles())
	mux.HandleFunc("POST /api/sessions", sessions.Create())
	mux.HandleFunc("GET /api/sessions/{id}", sessions.Get())
	mux.HandleFunc("DELETE /api/sessions/{id}", sessions.Delete())
	mux.HandleFunc("POST /api/sessions/{id}/load", sessions.Load())
	mux.HandleFunc("POST /api/sessions/{id}/reword", sessions.Reword())
	mux.HandleFunc("POST /api/sessions/{id}/clear", sessions.Clear())
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.Chain(mux, middleware.Options{
		Logger:      d.Logger,
		RateLimiter: d.RateLimiter,
		APIKey:      d.APIKey,
	})
}
