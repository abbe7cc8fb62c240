package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mlorentedev/reworder/internal/adapter"
	"github.com/mlorentedev/reworder/internal/backends"
	"github.com/mlorentedev/reworder/internal/clipboard"
	"github.com/mlorentedev/reworder/internal/config"
	"github.com/mlorentedev/reworder/internal/logging"
	"github.com/mlorentedev/reworder/internal/reword"
	"github.com/mlorentedev/reworder/internal/session"
	"github.com/mlorentedev/reworder/internal/tui"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	useMock := flag.Bool("mock", false, "use mock adapter instead of real LLM backends")
	logPath := flag.String("log", "", "write logs to this file (default: discard)")
	flag.Parse()

	if err := run(*configPath, *useMock, *logPath); err != nil {
		fmt.Fprintf(os.Stderr, "reworder-tui: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, useMock bool, logPath string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// The terminal belongs to the UI; logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, logOut)
	if err != nil {
		return err
	}
	flush, err := logging.InitSentry(cfg.SentryDSN, "reworder-tui@"+version)
	if err != nil {
		logger.Warn("sentry disabled", "error", err)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	catalog, err := backends.Catalog(ctx, cfg, useMock, logger)
	if err != nil {
		return err
	}

	svc := reword.NewService(catalog, clipboard.System{}, logger)
	sess := session.New("tui")
	defer func() {
		if err := adapter.Release(sess.Close()); err != nil {
			logger.Warn("release engine", "error", err)
		}
	}()

	return tui.Run(ctx, svc, sess)
}
