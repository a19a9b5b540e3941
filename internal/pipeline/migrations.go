package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/observability"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

// ScanMigrations fetches recently migrated coins, appends a migration event for
// every coin not yet marked migrated in the store and recomputes its creator.
func (p *Pipeline) ScanMigrations(ctx context.Context) (*ScanResult, error) {
	start := p.now()
	coins, err := p.feed.ListMigrated(ctx, 0, p.migrationLimit)
	if err != nil {
		return nil, fmt.Errorf("list migrated coins: %w", err)
	}

	result := &ScanResult{Fetched: len(coins)}
	for i, coin := range coins {
		if i > 0 {
			if err := p.pause(ctx); err != nil {
				return result, err
			}
		}
		observability.RecordCoinObserved(LoopMigrations)

		recorded, err := p.observeMigration(ctx, coin)
		if err != nil {
			result.Errors++
			continue
		}
		if recorded {
			result.Migrations++
		} else {
			result.Skipped++
		}
	}
	result.Duration = p.now().Sub(start)

	p.logger.WithFields(logrus.Fields{
		"loop":       LoopMigrations,
		"fetched":    result.Fetched,
		"migrations": result.Migrations,
		"errors":     result.Errors,
	}).Debug("migration scan")
	return result, nil
}

func (p *Pipeline) scanMigrations(ctx context.Context) error {
	_, err := p.ScanMigrations(ctx)
	return err
}

// observeMigration upserts one migrated coin. It reports whether a new
// migration event was appended.
func (p *Pipeline) observeMigration(ctx context.Context, coin *domain.Coin) (bool, error) {
	const loop = LoopMigrations

	// A stored coin keeps its creator; only unknown coins are resolved.
	existing, err := p.store.GetCoin(ctx, coin.Mint)
	switch {
	case err == nil:
		coin.Creator = existing.Creator
	case errors.Is(err, storage.ErrNotFound):
		res, err := p.resolve(ctx, loop, coin)
		if err != nil {
			_, err = p.itemFailed(loop, coin.Mint, "creator", err)
			return false, err
		}
		if res != nil {
			id := res.Identity
			coin.Creator = &id
		}
	default:
		_, err = p.itemFailed(loop, coin.Mint, "lookup", fmt.Errorf("get coin %s: %w", coin.Mint, err))
		return false, err
	}

	upsert, err := p.store.UpsertCoin(ctx, coin)
	if err != nil {
		_, err = p.itemFailed(loop, coin.Mint, "upsert", fmt.Errorf("%w: upsert coin %s: %w", ErrStoreWrite, coin.Mint, err))
		return false, err
	}
	observability.RecordCoinStored(loop)
	p.seen.Add(coin.Mint)

	if upsert.WasMigrated || !upsert.IsMigrated {
		return false, nil
	}

	recorded, err := p.recordMigration(ctx, coin)
	if err != nil {
		_, err = p.itemFailed(loop, coin.Mint, "migration", err)
		return false, err
	}

	if coin.Creator != nil {
		if _, err := p.engine.Recompute(ctx, *coin.Creator); err != nil {
			_, err = p.itemFailed(loop, coin.Mint, "recompute", fmt.Errorf("%w: recompute %s: %w", ErrStoreWrite, coin.Creator, err))
			return recorded, err
		}
	}

	p.logger.WithFields(logrus.Fields{
		"mint":    coin.Mint,
		"symbol":  coin.Symbol,
		"creator": coin.CreatorID(),
	}).Info("migration recorded")
	return recorded, nil
}
