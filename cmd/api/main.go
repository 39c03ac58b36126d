package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dronenav/internal/api"
	"dronenav/internal/buildinfo"
	"dronenav/internal/config"
	"dronenav/internal/logging"
	"dronenav/internal/metrics"
	"dronenav/internal/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, logCloser := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer logCloser.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, os.Stdout, log)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer tracing.Shutdown(context.Background(), shutdownTracing, log)

	metrics.RegisterDefault()

	srvDeps, err := api.NewServer(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to init server: %w", err)
	}
	if c, ok := srvDeps.Store.(io.Closer); ok {
		defer c.Close()
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           logMiddleware(log, metrics.Instrument(srvDeps.Routes())),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Start webhook worker
	worker := srvDeps.NewWebhookWorker()
	worker.Start()
	defer close(worker.Stop)

	errc := make(chan error, 1)
	go func() {
		log.Info("API listening", "addr", srv.Addr, "uid", cfg.UID, "version", buildinfo.Version)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("graceful shutdown failed", "err", err)
	}
	return nil
}

func logMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("request", "remote", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
	})
}
