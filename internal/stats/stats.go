// Package stats keeps creator aggregates consistent with their coins.
package stats

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/logging"
	"github.com/Selopol/padre-pump-backend/internal/observability"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

const lockStripes = 64

// ComputeStats derives aggregates from the full set of a creator's coins.
// LastCoin is the newest coin by CreatedAt, ties broken by the larger mint.
// LastMigration is the coin with the latest MigratedAt.
func ComputeStats(coins []*domain.Coin) domain.CreatorStats {
	var s domain.CreatorStats
	var last, lastMigrated *domain.Coin

	for _, c := range coins {
		if c == nil {
			continue
		}
		s.TotalCoins++
		if last == nil || c.CreatedAt > last.CreatedAt || (c.CreatedAt == last.CreatedAt && c.Mint > last.Mint) {
			last = c
		}
		if !c.IsMigrated {
			continue
		}
		s.MigratedCoins++
		if lastMigrated == nil || migratedAt(c) > migratedAt(lastMigrated) ||
			(migratedAt(c) == migratedAt(lastMigrated) && c.Mint > lastMigrated.Mint) {
			lastMigrated = c
		}
	}

	s.SuccessRate = domain.SuccessRate(s.MigratedCoins, s.TotalCoins)
	if last != nil {
		s.LastCoin = &domain.CoinRef{Mint: last.Mint, Symbol: last.Symbol, At: last.CreatedAt}
	}
	if lastMigrated != nil {
		s.LastMigration = &domain.CoinRef{Mint: lastMigrated.Mint, Symbol: lastMigrated.Symbol, At: migratedAt(lastMigrated)}
	}
	return s
}

func migratedAt(c *domain.Coin) int64 {
	if c.MigratedAt != nil {
		return *c.MigratedAt
	}
	return c.CreatedAt
}

// EngineOptions configures Engine.
type EngineOptions struct {
	Store  storage.Store
	Logger logrus.FieldLogger
}

// Engine recomputes creator statistics from stored coins.
// Recomputes of one creator are serialised; different creators run in parallel.
type Engine struct {
	store  storage.Store
	logger logrus.FieldLogger
	locks  [lockStripes]sync.Mutex
}

// NewEngine creates a statistics engine.
func NewEngine(opts EngineOptions) *Engine {
	return &Engine{
		store:  opts.Store,
		logger: logging.OrDefault(opts.Logger).WithField("component", "stats"),
	}
}

// Recompute reads every coin attributed to id and writes the derived stats in one update.
func (e *Engine) Recompute(ctx context.Context, id domain.CreatorIdentity) (domain.CreatorStats, error) {
	mu := e.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	stats, err := e.recompute(ctx, id)
	observability.RecordRecompute(err)
	if err != nil {
		e.logger.WithError(err).WithField("creator", id.String()).Warn("recompute failed")
		return domain.CreatorStats{}, err
	}
	e.logger.WithFields(logrus.Fields{
		"creator":  id.String(),
		"total":    stats.TotalCoins,
		"migrated": stats.MigratedCoins,
		"rate":     stats.SuccessRate,
	}).Debug("creator stats recomputed")
	return stats, nil
}

func (e *Engine) recompute(ctx context.Context, id domain.CreatorIdentity) (domain.CreatorStats, error) {
	coins, err := e.store.CoinsByCreator(ctx, id)
	if err != nil {
		return domain.CreatorStats{}, fmt.Errorf("list coins of %s: %w", id, err)
	}
	stats := ComputeStats(coins)
	if err := e.store.UpdateCreatorStats(ctx, id, stats); err != nil {
		return domain.CreatorStats{}, fmt.Errorf("update stats of %s: %w", id, err)
	}
	return stats, nil
}

func (e *Engine) lockFor(id domain.CreatorIdentity) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id.String()))
	return &e.locks[h.Sum32()%lockStripes]
}
