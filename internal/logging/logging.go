// Package logging builds the process slog logger and reports external-runtime
// failures to Sentry when a client is configured.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

// FlushTimeout bounds how long shutdown waits for buffered Sentry events.
const FlushTimeout = 2 * time.Second

// ParseLevel maps debug/info/warn/error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
	}
}

// New returns a logger writing text or json records to w.
func New(level, format string, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
	return slog.New(h), nil
}

// InitSentry configures the global Sentry client. An empty DSN is a no-op.
// The returned func flushes pending events and is always safe to call.
func InitSentry(dsn, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:     dsn,
		Release: release,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Request != nil {
				delete(event.Request.Headers, "X-Api-Key")
				delete(event.Request.Headers, "Authorization")
			}
			return event
		},
	})
	if err != nil {
		return func() {}, fmt.Errorf("logging: init sentry: %w", err)
	}
	return func() { sentry.Flush(FlushTimeout) }, nil
}

// CaptureError logs err with full detail and forwards it to the Sentry hub
// bound to ctx, or the global hub when ctx carries none.
func CaptureError(ctx context.Context, logger *slog.Logger, msg string, err error, args ...any) {
	logger.ErrorContext(ctx, msg, append(args, "error", err)...)

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("operation", msg)
		hub.CaptureException(err)
	})
}
