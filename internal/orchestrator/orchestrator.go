// Package orchestrator assembles the service components from configuration.
// It coordinates: store -> feed/resolver -> stats engine -> pipeline -> listener
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Selopol/padre-pump-backend/internal/config"
	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/identity"
	"github.com/Selopol/padre-pump-backend/internal/listener"
	"github.com/Selopol/padre-pump-backend/internal/logging"
	"github.com/Selopol/padre-pump-backend/internal/pipeline"
	"github.com/Selopol/padre-pump-backend/internal/pumpfun"
	"github.com/Selopol/padre-pump-backend/internal/social"
	"github.com/Selopol/padre-pump-backend/internal/solana"
	"github.com/Selopol/padre-pump-backend/internal/stats"
	"github.com/Selopol/padre-pump-backend/internal/storage"
	chstore "github.com/Selopol/padre-pump-backend/internal/storage/clickhouse"
	"github.com/Selopol/padre-pump-backend/internal/storage/memory"
	"github.com/Selopol/padre-pump-backend/internal/storage/migrations"
	pgstore "github.com/Selopol/padre-pump-backend/internal/storage/postgres"
)

// ErrStoreUnavailable is returned when the primary store cannot be reached at startup.
var ErrStoreUnavailable = errors.New("store unavailable")

// Options for creating an Orchestrator.
type Options struct {
	Config *config.Config

	// Migrate applies schema migrations before use.
	Migrate bool

	Logger logrus.FieldLogger
}

// Orchestrator owns the assembled components and their shutdown.
type Orchestrator struct {
	Store    storage.Store
	Sink     storage.EventSink
	Feed     *pumpfun.Client
	Resolver identity.Resolver
	Engine   *stats.Engine
	Pipeline *pipeline.Pipeline
	Listener *listener.Listener // nil when push is disabled

	chConn *chstore.Conn
	logger logrus.FieldLogger
}

// New opens the stores and builds every component described by opts.Config.
// A store that cannot be reached yields ErrStoreUnavailable.
func New(ctx context.Context, opts Options) (*Orchestrator, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("orchestrator requires a config")
	}
	o := &Orchestrator{
		logger: logging.OrDefault(opts.Logger).WithField("component", "orchestrator"),
	}

	store, err := o.openStore(ctx, cfg, opts.Migrate)
	if err != nil {
		return nil, err
	}
	o.Store = store
	o.Sink = o.openSink(ctx, cfg, opts.Migrate)

	o.Feed = pumpfun.NewClient(cfg.Pump.BaseURL, pumpfun.WithRateLimit(cfg.Pump.RPS, 1))

	o.Resolver, err = newResolver(cfg)
	if err != nil {
		o.Close()
		return nil, fmt.Errorf("build resolver: %w", err)
	}

	o.Engine = stats.NewEngine(stats.EngineOptions{Store: o.Store, Logger: opts.Logger})

	var push pipeline.Runnable
	if cfg.PushEnabled() {
		o.Listener = listener.New(listener.Options{
			Dial: func(ctx context.Context) (solana.WSClient, error) {
				return solana.NewWSClient(ctx, cfg.Solana.WSURL, nil)
			},
			Wallets: o.Store,
			Feed:    o.Feed,
			Observer: listener.ObserverFunc(func(ctx context.Context, coin *domain.Coin, source domain.AlertSource) (*pipeline.Observation, error) {
				return o.Pipeline.ObserveNewCoin(ctx, coin, source)
			}),
			Logger: opts.Logger,
		})
		push = o.Listener
	}

	o.Pipeline = pipeline.New(pipeline.Options{
		Feed:     o.Feed,
		Resolver: o.Resolver,
		Store:    o.Store,
		Engine:   o.Engine,
		Sink:     o.Sink,
		Listener: push,
		Backfill: pipeline.BackfillConfig{
			Enabled:  cfg.Pipeline.HistoricalScan,
			MaxCoins: cfg.Pipeline.HistoricalScanLimit,
		},
		NewCoinInterval:   cfg.Pipeline.NewCoinInterval,
		NewCoinLimit:      cfg.Pipeline.NewCoinLimit,
		MigrationInterval: cfg.Pipeline.MigrationInterval,
		MigrationLimit:    cfg.Pipeline.MigrationLimit,
		DisablePolling:    !cfg.Pipeline.RealtimeMonitor,
		Logger:            opts.Logger,
	})

	o.logger.WithFields(logrus.Fields{
		"identity_mode": o.Resolver.Mode(),
		"memory":        cfg.DB.UseMemory,
		"push":          o.Listener != nil,
		"analytics":     o.chConn != nil,
	}).Info("components ready")
	return o, nil
}

func (o *Orchestrator) openStore(ctx context.Context, cfg *config.Config, migrate bool) (storage.Store, error) {
	if cfg.DB.UseMemory {
		o.logger.Info("using in-memory storage")
		return memory.NewStore(), nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.DB.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if migrate {
		applied, err := migrations.RunPostgresMigrations(ctx, pool, o.logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		o.logger.WithField("applied", applied).Info("postgres migrations done")
	}
	return pgstore.NewStore(pool), nil
}

// openSink connects the optional ClickHouse event sink. Failures degrade to a no-op sink.
func (o *Orchestrator) openSink(ctx context.Context, cfg *config.Config, migrate bool) storage.EventSink {
	if cfg.DB.ClickhouseDSN == "" {
		return storage.NopSink{}
	}

	var (
		conn *chstore.Conn
		err  error
	)
	if migrate {
		conn, err = migrations.RunClickhouseMigrations(ctx, cfg.DB.ClickhouseDSN, o.logger)
	} else {
		conn, err = chstore.NewConn(ctx, cfg.DB.ClickhouseDSN)
	}
	if err != nil {
		o.logger.WithError(err).Warn("clickhouse unavailable, analytics events disabled")
		return storage.NopSink{}
	}
	o.chConn = conn
	return chstore.NewEventSink(conn)
}

func newResolver(cfg *config.Config) (identity.Resolver, error) {
	if cfg.Identity.Mode != config.IdentityModeSocial {
		return identity.New(cfg.Identity.Mode, identity.SocialResolverOptions{})
	}
	rpc := solana.NewHTTPClient(cfg.Solana.RPCURL)
	return identity.New(cfg.Identity.Mode, identity.SocialResolverOptions{
		Metadata:  solana.NewMetadataReader(rpc),
		Documents: identity.NewHTTPDocumentFetcher(nil, ""),
		Social:    social.NewClient(cfg.Identity.SocialBaseURL, cfg.Identity.SocialAPIKey),
	})
}

// Close releases the analytics connection and the store.
func (o *Orchestrator) Close() {
	if o.chConn != nil {
		if err := o.chConn.Close(); err != nil {
			o.logger.WithError(err).Warn("close clickhouse")
		}
	}
	if o.Store != nil {
		o.Store.Close()
	}
}
