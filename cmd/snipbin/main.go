package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"snipbin/internal/httpserver"
	"snipbin/internal/id"
	"snipbin/internal/paste"
	"snipbin/internal/sweeper"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed loading .env", "error", err)
		os.Exit(2)
	}
	cfg, err := parseConfig(os.Args[1:], os.LookupEnv, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	logger := newLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openCtx, cancelOpen := context.WithTimeout(ctx, 10*time.Second)
	store, err := openStore(openCtx, cfg)
	cancelOpen()
	if err != nil {
		logger.Error("failed opening data store", "store", cfg.store, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	pastes, err := paste.New(store,
		paste.WithGenerator(id.New(cfg.idLength)),
		paste.WithCache(cfg.cacheSize),
		paste.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to construct paste service", "error", err)
		os.Exit(1)
	}

	srv, err := httpserver.New(httpserver.Config{
		Pastes:     pastes,
		MaxBytes:   cfg.maxBytes,
		TrustProxy: cfg.behindProxy,
		BaseURL:    cfg.baseURL,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to construct server", "error", err)
		os.Exit(1)
	}

	limit := rate.Inf
	if cfg.sweepRate > 0 {
		limit = rate.Limit(cfg.sweepRate)
	}
	sweep := sweeper.New(pastes,
		sweeper.WithLogger(logger),
		sweeper.WithRateLimit(limit, max(1, int(cfg.sweepRate))),
	)
	sweepDone := sweeper.Schedule(ctx, sweep, cfg.sweepInterval)

	srvHTTP := &http.Server{
		Addr:              cfg.addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.addr, "store", cfg.store, "sweep_interval", cfg.sweepInterval)
		if err := srvHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	case err := <-errCh:
		logger.Error("http server error", "error", err)
		stop()
		<-sweepDone
		store.Close()
		os.Exit(1)
	}

	<-sweepDone
	logger.Info("shutdown complete")
}
