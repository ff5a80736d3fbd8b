// Package main is the entry point for the matching API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onnwee/freelamatch/internal/api"
	"github.com/onnwee/freelamatch/internal/app"
	"github.com/onnwee/freelamatch/internal/config"
	"github.com/onnwee/freelamatch/internal/middleware"
	"github.com/onnwee/freelamatch/internal/tracing"
)

// shutdownTimeout bounds draining in-flight requests.
const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Freelamatch API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	env := config.DefaultEnv
	if cfg != nil {
		env = cfg.Env
	}
	logger := middleware.NewLogger(env)
	slog.SetDefault(logger)

	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	summary := make([]any, 0, 2*len(cfg.LogSummary()))
	for k, v := range cfg.LogSummary() {
		summary = append(summary, k, v)
	}
	logger.Info("configuration loaded", summary...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// run connects the backends, serves until ctx is done and then shuts down.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	provider, err := tracing.NewProvider(ctx, tracing.FromConfig(cfg, api.ServiceName))
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	b, err := app.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	svc, err := newServices(cfg, logger, prometheus.NewRegistry(), b)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return serve(ctx, ln, svc, logger)
}

// serve runs the HTTP server and background components on ln until ctx is
// done, then drains requests before stopping the worker.
func serve(ctx context.Context, ln net.Listener, svc *services, logger *slog.Logger) error {
	server := &http.Server{
		Handler:      svc.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()
	if err := svc.start(bgCtx); err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down server...")
	case err := <-serveErr:
		runErr = fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	svc.stop()
	cancelBg()
	return runErr
}
