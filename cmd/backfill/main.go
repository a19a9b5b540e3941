// Package main runs a one-shot historical backfill and exits.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Selopol/padre-pump-backend/internal/config"
	"github.com/Selopol/padre-pump-backend/internal/logging"
	"github.com/Selopol/padre-pump-backend/internal/orchestrator"
)

func main() {
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	migrate := flag.Bool("migrate", false, "Apply schema migrations before the scan")
	limit := flag.Int("limit", 0, "Maximum migrated coins to scan (overrides HISTORICAL_SCAN_LIMIT)")
	timeout := flag.Duration("timeout", time.Hour, "Abort the backfill after this long")
	flag.Parse()

	if *useMemory {
		os.Setenv("USE_MEMORY", "true")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	if *limit > 0 {
		cfg.Pipeline.HistoricalScanLimit = *limit
	}
	// The one-shot run never starts the push listener.
	cfg.Solana.WSURL = ""
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig.String()).Info("cancelling backfill")
		cancel()

		sig = <-sigCh
		logger.WithField("signal", sig.String()).Warn("forcing immediate shutdown")
		os.Exit(1)
	}()

	orch, err := orchestrator.New(ctx, orchestrator.Options{
		Config:  cfg,
		Migrate: *migrate,
		Logger:  logger,
	})
	if err != nil {
		logger.WithError(err).Error("failed to build components")
		os.Exit(1)
	}

	result, err := orch.Pipeline.RunBackfill(ctx)
	orch.Close()
	if result != nil {
		logger.WithFields(logrus.Fields{
			"coins_scanned":       result.CoinsScanned,
			"creators":            result.Creators,
			"coins_stored":        result.CoinsStored,
			"migrations_recorded": result.MigrationsRecorded,
			"history_coins":       result.HistoryCoins,
			"errors":              result.Errors,
			"duration":            result.Duration.String(),
		}).Info("backfill summary")
	}
	if err != nil {
		logger.WithError(err).Error("backfill failed")
		os.Exit(1)
	}
}
