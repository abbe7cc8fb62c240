package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mlorentedev/reworder/internal/backends"
	"github.com/mlorentedev/reworder/internal/config"
	"github.com/mlorentedev/reworder/internal/logging"
	"github.com/mlorentedev/reworder/internal/metrics"
	"github.com/mlorentedev/reworder/internal/middleware"
	"github.com/mlorentedev/reworder/internal/reword"
	"github.com/mlorentedev/reworder/internal/server"
	"github.com/mlorentedev/reworder/internal/session"
)

var version = "dev"

const sweepInterval = time.Minute

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	useMock := flag.Bool("mock", false, "use mock adapter instead of real LLM backends")
	port := flag.Int("port", 0, "override listen port")
	flag.Parse()

	if err := run(*configPath, *useMock, *port); err != nil {
		fmt.Fprintf(os.Stderr, "reworder: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, useMock bool, port int) error {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Port = port
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	flush, err := logging.InitSentry(cfg.SentryDSN, "reworder@"+version)
	if err != nil {
		logger.Warn("sentry disabled", "error", err)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := backends.Catalog(ctx, cfg, useMock, logger)
	if err != nil {
		return err
	}
	if useMock {
		logger.Info("mode: mock adapter enabled")
	}

	store := session.NewStore(cfg.SessionTTL, cfg.MaxSessions)
	store.SetLogger(logger)
	rl := middleware.NewRateLimiter(cfg.RateLimit, time.Minute)
	go store.Run(ctx, sweepInterval, func(evicted int) {
		metrics.ActiveSessions.Set(float64(store.Len()))
		rl.Prune()
		if evicted > 0 {
			logger.Info("idle sessions evicted", "count", evicted)
		}
	})

	handler := server.SetupMux(server.Deps{
		Service:     reword.NewService(catalog, nil, logger),
		Store:       store,
		RateLimiter: rl,
		Logger:      logger,
		APIKey:      cfg.APIKey,
		Version:     version,
		LoadCtx:     ctx,
		LoadTimeout: cfg.LoadTimeout,
	})

	if cfg.APIKey != "" {
		logger.Info("auth: API key required (X-API-Key header)")
	} else {
		logger.Info("auth: disabled (no api_key configured)")
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("reworder api listening", "addr", addr, "models", catalog.Len(), "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
