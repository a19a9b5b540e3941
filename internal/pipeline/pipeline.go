// Package pipeline ingests pump.fun coins, keeps creator statistics current
// and raises alerts when creators with migration history launch again.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/identity"
	"github.com/Selopol/padre-pump-backend/internal/logging"
	"github.com/Selopol/padre-pump-backend/internal/observability"
	"github.com/Selopol/padre-pump-backend/internal/pumpfun"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

// Loop names, also used as metric labels.
const (
	LoopNewCoins   = "new_coins"
	LoopMigrations = "migrations"
	loopBackfill   = "backfill"
)

// ErrStoreWrite wraps a persistence failure on a single item.
var ErrStoreWrite = errors.New("store write failed")

// Feed is the subset of the pump.fun client the pipeline polls.
type Feed interface {
	ListLatest(ctx context.Context, offset, limit int) ([]*domain.Coin, error)
	ListMigrated(ctx context.Context, offset, limit int) ([]*domain.Coin, error)
	ListByCreator(ctx context.Context, wallet string, offset, limit int) ([]*domain.Coin, error)

	// Paged forms report the upstream element count so a dropped record does not end paging.
	MigratedPage(ctx context.Context, offset, limit int) (pumpfun.Page, error)
	CreatorPage(ctx context.Context, wallet string, offset, limit int) (pumpfun.Page, error)
}

// Recomputer refreshes the aggregates of one creator.
type Recomputer interface {
	Recompute(ctx context.Context, id domain.CreatorIdentity) (domain.CreatorStats, error)
}

// Runnable is a long-running task owned by the pipeline, such as the push listener.
type Runnable interface {
	Run(ctx context.Context) error
}

// StateReporter is implemented by runnables that expose a state for health checks.
type StateReporter interface {
	StateName() string
}

// BackfillConfig controls the startup backfill.
type BackfillConfig struct {
	Enabled         bool
	MaxCoins        int // migrated coins to page through (default 1000)
	PageSize        int // default 50
	HistoryPageSize int // per-creator history page size (default 50)
	HistoryMax      int // per-creator history cap (default 500)
}

// Options contains configuration for creating a Pipeline.
type Options struct {
	Feed     Feed
	Resolver identity.Resolver
	Store    storage.Store
	Engine   Recomputer
	Sink     storage.EventSink
	Listener Runnable

	Backfill BackfillConfig

	NewCoinInterval   time.Duration // default 10s
	NewCoinLimit      int           // default 50
	MigrationInterval time.Duration // default 60s
	MigrationLimit    int           // default 50
	SeenCacheSize     int           // default 1000
	ItemDelay         time.Duration // pause between items within a scan
	DisablePolling    bool          // run without the two polling loops

	Logger logrus.FieldLogger
	Now    func() time.Time
}

// Pipeline supervises the backfill, both polling loops and the push listener.
type Pipeline struct {
	feed     Feed
	resolver identity.Resolver
	store    storage.Store
	engine   Recomputer
	sink     storage.EventSink
	listener Runnable

	backfill       BackfillConfig
	newCoinLimit   int
	migrationLimit int
	itemDelay      time.Duration
	polling        bool
	seen           *SeenCache
	logger         logrus.FieldLogger
	now            func() time.Time

	newCoins   *Loop
	migrations *Loop

	mu            sync.Mutex
	started       bool
	cancel        context.CancelFunc
	group         *errgroup.Group
	backfillState string
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	newCoinInterval := opts.NewCoinInterval
	if newCoinInterval <= 0 {
		newCoinInterval = 10 * time.Second
	}
	migrationInterval := opts.MigrationInterval
	if migrationInterval <= 0 {
		migrationInterval = 60 * time.Second
	}
	newCoinLimit := opts.NewCoinLimit
	if newCoinLimit <= 0 {
		newCoinLimit = 50
	}
	migrationLimit := opts.MigrationLimit
	if migrationLimit <= 0 {
		migrationLimit = 50
	}

	backfill := opts.Backfill
	if backfill.MaxCoins <= 0 {
		backfill.MaxCoins = 1000
	}
	if backfill.PageSize <= 0 {
		backfill.PageSize = 50
	}
	if backfill.HistoryPageSize <= 0 {
		backfill.HistoryPageSize = 50
	}
	if backfill.HistoryMax <= 0 {
		backfill.HistoryMax = 500
	}

	sink := opts.Sink
	if sink == nil {
		sink = storage.NopSink{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := logging.OrDefault(opts.Logger).WithField("component", "pipeline")

	p := &Pipeline{
		feed:           opts.Feed,
		resolver:       opts.Resolver,
		store:          opts.Store,
		engine:         opts.Engine,
		sink:           sink,
		listener:       opts.Listener,
		backfill:       backfill,
		newCoinLimit:   newCoinLimit,
		migrationLimit: migrationLimit,
		itemDelay:      opts.ItemDelay,
		polling:        !opts.DisablePolling,
		seen:           NewSeenCache(opts.SeenCacheSize),
		logger:         logger,
		now:            now,
		backfillState:  "disabled",
	}
	if backfill.Enabled {
		p.backfillState = "pending"
	}
	p.newCoins = NewLoop(LoopNewCoins, newCoinInterval, p.scanNewCoins, logger)
	p.migrations = NewLoop(LoopMigrations, migrationInterval, p.scanMigrations, logger)
	return p
}

// Start launches the backfill and the polling loops when enabled, and the listener.
// It returns immediately; calling it twice is a no-op.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}
	if p.feed == nil || p.resolver == nil || p.store == nil || p.engine == nil {
		return fmt.Errorf("pipeline requires a feed, resolver, store and engine")
	}
	p.started = true

	taskCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.group = &errgroup.Group{}

	if p.backfill.Enabled {
		p.group.Go(func() error {
			p.setBackfillState("running")
			result, err := p.RunBackfill(taskCtx)
			if err != nil {
				p.setBackfillState("failed")
				p.logger.WithError(err).Error("backfill failed")
				return nil
			}
			p.setBackfillState("done")
			p.logger.WithField("errors", result.Errors).Info("backfill finished")
			return nil
		})
	}

	if p.polling {
		p.newCoins.Start(ctx)
		p.migrations.Start(ctx)
	}

	if p.listener != nil {
		p.group.Go(func() error {
			err := p.listener.Run(taskCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				p.logger.WithError(err).Warn("push listener exited")
			}
			return nil
		})
	}

	p.logger.Info("pipeline started")
	return nil
}

// Stop halts both loops, letting in-flight scans finish, then stops the
// backfill and the listener. Waiting is bounded by ctx.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	cancel, group := p.cancel, p.group
	p.mu.Unlock()

	var errs []error
	if err := p.newCoins.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop %s loop: %w", LoopNewCoins, err))
	}
	if err := p.migrations.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop %s loop: %w", LoopMigrations, err))
	}

	cancel()
	waited := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("wait for background tasks: %w", ctx.Err()))
	}

	p.logger.Info("pipeline stopped")
	return errors.Join(errs...)
}

// Status is a health snapshot of the pipeline tasks.
type Status struct {
	Loops    map[string]string `json:"loops"`
	Backfill string            `json:"backfill"`
	Listener string            `json:"listener"`
}

// Status returns the state of every task.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	backfill := p.backfillState
	p.mu.Unlock()

	listener := "disabled"
	if sr, ok := p.listener.(StateReporter); ok {
		listener = sr.StateName()
	}
	return Status{
		Loops: map[string]string{
			LoopNewCoins:   p.newCoins.State().String(),
			LoopMigrations: p.migrations.State().String(),
		},
		Backfill: backfill,
		Listener: listener,
	}
}

func (p *Pipeline) setBackfillState(s string) {
	p.mu.Lock()
	p.backfillState = s
	p.mu.Unlock()
}

// nowMillis returns the pipeline clock in milliseconds.
func (p *Pipeline) nowMillis() int64 {
	return p.now().UnixMilli()
}

// pause throttles between items. It returns ctx.Err() when cancelled.
func (p *Pipeline) pause(ctx context.Context) error {
	if p.itemDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.itemDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// resolve runs the identity resolver and ensures the creator row exists.
// A resolver failure is not an error: the coin stays unattributed.
func (p *Pipeline) resolve(ctx context.Context, loop string, coin *domain.Coin) (*identity.Resolution, error) {
	res, err := p.resolver.Resolve(ctx, coin)
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"loop":  loop,
			"mint":  coin.Mint,
			"phase": "resolve",
		}).Info("creator not resolved")
		return nil, nil
	}
	if err := p.store.EnsureCreator(ctx, res.Creator(p.nowMillis())); err != nil {
		return nil, fmt.Errorf("%w: ensure creator %s: %w", ErrStoreWrite, res.Identity, err)
	}
	return res, nil
}

// recordMigration appends a migration event for a migrated coin and forwards it to the sink.
func (p *Pipeline) recordMigration(ctx context.Context, coin *domain.Coin) (bool, error) {
	now := p.nowMillis()
	migratedAt := now
	if coin.MigratedAt != nil {
		migratedAt = *coin.MigratedAt
	}
	event := &domain.MigrationEvent{
		Mint:       coin.Mint,
		Creator:    coin.Creator,
		MigratedAt: migratedAt,
		DetectedAt: now,
	}
	recorded, err := p.store.RecordMigration(ctx, event)
	if err != nil {
		return false, fmt.Errorf("%w: record migration %s: %w", ErrStoreWrite, coin.Mint, err)
	}
	if !recorded {
		return false, nil
	}
	observability.RecordMigration()
	if err := p.sink.RecordMigration(ctx, event); err != nil {
		p.logger.WithError(err).WithField("mint", coin.Mint).Warn("event sink rejected migration")
	}
	return true, nil
}

func (p *Pipeline) itemLogger(loop, mint, phase string) logrus.FieldLogger {
	return p.logger.WithFields(logrus.Fields{"loop": loop, "mint": mint, "phase": phase})
}
