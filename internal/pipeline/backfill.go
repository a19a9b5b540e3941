package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/identity"
	"github.com/Selopol/padre-pump-backend/internal/observability"
	"github.com/Selopol/padre-pump-backend/internal/pumpfun"
)

// BackfillResult contains statistics from a backfill operation.
type BackfillResult struct {
	CoinsScanned       int // migrated coins fetched from the feed
	Creators           int // distinct creator identities
	CoinsStored        int // coin upserts across both phases
	MigrationsRecorded int
	HistoryCoins       int // coins fetched from creator histories
	Errors             int
	Duration           time.Duration
}

// backfillCreator is a distinct identity and the wallets it launched from.
type backfillCreator struct {
	resolution *identity.Resolution
	wallets    []string
}

func (c *backfillCreator) addWallet(w string) {
	if w == "" {
		return
	}
	for _, existing := range c.wallets {
		if existing == w {
			return
		}
	}
	c.wallets = append(c.wallets, w)
}

// RunBackfill seeds the store from the migrated-coins listing and the complete
// history of every creator found there. Item failures are counted, never fatal.
// An error is returned only when no page could be fetched or ctx is done.
func (p *Pipeline) RunBackfill(ctx context.Context) (*BackfillResult, error) {
	start := p.now()
	result := &BackfillResult{}
	logger := p.logger.WithField("loop", loopBackfill)

	logger.WithFields(logrus.Fields{
		"max_coins": p.backfill.MaxCoins,
		"page_size": p.backfill.PageSize,
	}).Info("starting backfill")

	page := pumpfun.Paginate(ctx, p.feed.MigratedPage, p.backfill.PageSize, p.backfill.MaxCoins)
	result.CoinsScanned = len(page.Coins)
	result.Errors += page.Errors
	if err := ctx.Err(); err != nil {
		return p.finishBackfill(result, start), err
	}
	if page.Pages == 0 && page.Errors > 0 {
		return p.finishBackfill(result, start), fmt.Errorf("fetch migrated coins: %w", page.LastErr)
	}

	creators, order := p.resolveBackfillCreators(ctx, page.Coins, result)
	result.Creators = len(order)

	p.ensureBackfillCreators(ctx, page.Coins, creators, order, result)
	p.storeBackfillCoins(ctx, page.Coins, result)

	for _, key := range order {
		if err := ctx.Err(); err != nil {
			return p.finishBackfill(result, start), err
		}
		c, ok := creators[key]
		if !ok {
			continue
		}
		p.backfillHistory(ctx, c, result)
	}

	return p.finishBackfill(result, start), nil
}

// resolveBackfillCreators attributes every coin and groups the distinct identities.
func (p *Pipeline) resolveBackfillCreators(ctx context.Context, coins []*domain.Coin, result *BackfillResult) (map[string]*backfillCreator, []string) {
	creators := make(map[string]*backfillCreator)
	var order []string

	for i, coin := range coins {
		if i > 0 && p.pause(ctx) != nil {
			break
		}
		res, err := p.resolver.Resolve(ctx, coin)
		if err != nil {
			result.Errors++
			observability.RecordItemError(loopBackfill, "resolve")
			p.itemLogger(loopBackfill, coin.Mint, "resolve").WithError(err).Info("creator not resolved")
			continue
		}
		id := res.Identity
		coin.Creator = &id

		key := id.String()
		c, ok := creators[key]
		if !ok {
			c = &backfillCreator{resolution: res}
			creators[key] = c
			order = append(order, key)
		}
		c.addWallet(coin.CreatorWallet)
	}
	return creators, order
}

// ensureBackfillCreators pre-creates every creator in one transaction. If the
// batch fails each creator is retried alone; coins of creators that still
// fail are stored unattributed.
func (p *Pipeline) ensureBackfillCreators(ctx context.Context, coins []*domain.Coin, creators map[string]*backfillCreator, order []string, result *BackfillResult) {
	now := p.nowMillis()
	batch := make([]*domain.Creator, 0, len(order))
	for _, key := range order {
		batch = append(batch, creators[key].resolution.Creator(now))
	}
	if len(batch) == 0 {
		return
	}
	err := p.store.EnsureCreators(ctx, batch)
	if err == nil {
		return
	}
	p.logger.WithError(err).Warn("batch creator insert failed, retrying one by one")

	for i, c := range batch {
		if err := p.store.EnsureCreator(ctx, c); err != nil {
			result.Errors++
			observability.RecordItemError(loopBackfill, "creator")
			p.logger.WithError(err).WithField("creator", c.Identity.String()).Warn("creator insert failed")
			delete(creators, order[i])
		}
	}
	for _, coin := range coins {
		if coin.Creator != nil {
			if _, ok := creators[coin.Creator.String()]; !ok {
				coin.Creator = nil
			}
		}
	}
}

// storeBackfillCoins upserts coins as one batch, falling back to single upserts
// when the batch fails, then appends migration events for migrated coins.
func (p *Pipeline) storeBackfillCoins(ctx context.Context, coins []*domain.Coin, result *BackfillResult) {
	if len(coins) == 0 {
		return
	}

	stored := make([]*domain.Coin, 0, len(coins))
	if _, err := p.store.UpsertCoins(ctx, coins); err == nil {
		stored = append(stored, coins...)
	} else {
		p.logger.WithError(err).Warn("batch coin upsert failed, retrying one by one")
		for _, coin := range coins {
			if _, err := p.store.UpsertCoin(ctx, coin); err != nil {
				result.Errors++
				observability.RecordItemError(loopBackfill, "upsert")
				p.itemLogger(loopBackfill, coin.Mint, "upsert").WithError(err).Warn("coin upsert failed")
				continue
			}
			stored = append(stored, coin)
		}
	}
	result.CoinsStored += len(stored)

	for _, coin := range stored {
		observability.RecordCoinStored(loopBackfill)
		if !coin.IsMigrated {
			continue
		}
		recorded, err := p.recordMigration(ctx, coin)
		if err != nil {
			result.Errors++
			observability.RecordItemError(loopBackfill, "migration")
			p.itemLogger(loopBackfill, coin.Mint, "migration").WithError(err).Warn("migration insert failed")
			continue
		}
		if recorded {
			result.MigrationsRecorded++
		}
	}
}

// backfillHistory fetches the full coin history of every wallet of a creator,
// attributes it to the creator and recomputes the creator's statistics.
func (p *Pipeline) backfillHistory(ctx context.Context, c *backfillCreator, result *BackfillResult) {
	id := c.resolution.Identity
	logger := p.logger.WithFields(logrus.Fields{"loop": loopBackfill, "creator": id.String()})

	for _, wallet := range c.wallets {
		if err := p.pause(ctx); err != nil {
			return
		}
		fetch := func(ctx context.Context, offset, limit int) (pumpfun.Page, error) {
			return p.feed.CreatorPage(ctx, wallet, offset, limit)
		}
		history := pumpfun.Paginate(ctx, fetch, p.backfill.HistoryPageSize, p.backfill.HistoryMax)
		result.Errors += history.Errors
		result.HistoryCoins += len(history.Coins)
		if history.Errors > 0 {
			logger.WithError(history.LastErr).WithField("wallet", wallet).Warn("creator history incomplete")
		}

		for _, coin := range history.Coins {
			attributed := id
			coin.Creator = &attributed
		}
		p.storeBackfillCoins(ctx, history.Coins, result)
	}

	if _, err := p.engine.Recompute(ctx, id); err != nil {
		result.Errors++
		observability.RecordItemError(loopBackfill, "recompute")
		logger.WithError(err).Warn("recompute failed")
	}
}

func (p *Pipeline) finishBackfill(result *BackfillResult, start time.Time) *BackfillResult {
	result.Duration = p.now().Sub(start)
	observability.RecordBackfill(result.CoinsScanned, result.Creators, result.MigrationsRecorded, result.Errors, result.Duration.Seconds())
	p.logger.WithFields(logrus.Fields{
		"loop":       loopBackfill,
		"coins":      result.CoinsScanned,
		"creators":   result.Creators,
		"stored":     result.CoinsStored,
		"history":    result.HistoryCoins,
		"migrations": result.MigrationsRecorded,
		"errors":     result.Errors,
		"duration":   result.Duration.String(),
	}).Info("backfill complete")
	return result
}
