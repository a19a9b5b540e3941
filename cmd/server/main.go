// Package main runs the creator-stats service:
// - Pipeline: historical backfill, new-coin and migration polling, push listener
// - REST API and Prometheus metrics on one HTTP port
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

	"github.com/sirupsen/logrus"

	"github.com/Selopol/padre-pump-backend/internal/api"
	"github.com/Selopol/padre-pump-backend/internal/config"
	"github.com/Selopol/padre-pump-backend/internal/logging"
	"github.com/Selopol/padre-pump-backend/internal/observability"
	"github.com/Selopol/padre-pump-backend/internal/orchestrator"
)

// Server holds the assembled components and the HTTP listener.
type Server struct {
	cfg    *config.Config
	orch   *orchestrator.Orchestrator
	http   *http.Server
	logger logrus.FieldLogger
}

func main() {
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	migrate := flag.Bool("migrate", false, "Apply schema migrations at startup")
	port := flag.Int("port", 0, "HTTP port (overrides API_PORT)")
	flag.Parse()

	// Flags win over the environment and .env.
	if *useMemory {
		os.Setenv("USE_MEMORY", "true")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch, err := orchestrator.New(ctx, orchestrator.Options{
		Config:  cfg,
		Migrate: *migrate,
		Logger:  logger,
	})
	if errors.Is(err, orchestrator.ErrStoreUnavailable) {
		logger.WithError(err).Error("store unavailable at startup")
		os.Exit(1)
	}
	if err != nil {
		logger.WithError(err).Fatal("failed to build components")
	}
	defer orch.Close()

	server := newServer(cfg, orch, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	shutdown := make(chan struct{})

	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig.String()).Info("initiating graceful shutdown")
		close(shutdown)

		// A second signal or an overrun grace period forces exit.
		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig.String()).Warn("forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(cfg.Server.ShutdownGrace + 5*time.Second):
			logger.Error("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-ctx.Done():
		}
	}()

	if err := server.Run(ctx, shutdown); err != nil {
		logger.WithError(err).Error("server error")
		orch.Close()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newServer(cfg *config.Config, orch *orchestrator.Orchestrator, logger logrus.FieldLogger) *Server {
	apiServer := api.NewServer(api.Options{
		Store:  orch.Store,
		Status: orch.Pipeline,
		Logger: logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.Handle("/", apiServer.Handler())

	return &Server{
		cfg:  cfg,
		orch: orch,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.WithField("component", "server"),
	}
}

// Run starts the pipeline and the HTTP server, and blocks until shutdown is
// closed or the HTTP server fails. Teardown is bounded by the shutdown grace.
func (s *Server) Run(ctx context.Context, shutdown <-chan struct{}) error {
	if err := s.orch.Pipeline.Start(ctx); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.http.Addr).Info("starting HTTP server")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-shutdown:
	case runErr = <-errCh:
	}

	graceCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownGrace)
	defer cancel()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if err := s.orch.Pipeline.Stop(graceCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop pipeline: %w", err))
	}
	if err := s.http.Shutdown(graceCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop http server: %w", err))
	}
	return errors.Join(errs...)
}
