package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/observability"
)

// ScanResult summarises one polling scan.
type ScanResult struct {
	Fetched    int
	Skipped    int // already seen or stored
	Stored     int
	Alerts     int
	Migrations int
	Errors     int
	Duration   time.Duration
}

// Observation describes what ObserveNewCoin did with a coin.
type Observation struct {
	Mint     string
	Skipped  bool // coin was already known
	Stored   bool
	Creator  *domain.CreatorIdentity
	Migrated bool // a migration event was appended
	Alert    *domain.Alert
}

// ScanNewCoins fetches the latest coins and observes each one in upstream order.
// Only a failed fetch is returned; item failures are counted.
func (p *Pipeline) ScanNewCoins(ctx context.Context) (*ScanResult, error) {
	start := p.now()
	coins, err := p.feed.ListLatest(ctx, 0, p.newCoinLimit)
	if err != nil {
		return nil, fmt.Errorf("list latest coins: %w", err)
	}

	result := &ScanResult{Fetched: len(coins)}
	for i, coin := range coins {
		if i > 0 {
			if err := p.pause(ctx); err != nil {
				return result, err
			}
		}
		observability.RecordCoinObserved(LoopNewCoins)

		obs, err := p.ObserveNewCoin(ctx, coin, domain.AlertSourcePoll)
		if err != nil {
			result.Errors++
			continue
		}
		switch {
		case obs.Skipped:
			result.Skipped++
		case obs.Stored:
			result.Stored++
		}
		if obs.Migrated {
			result.Migrations++
		}
		if obs.Alert != nil {
			result.Alerts++
		}
	}
	result.Duration = p.now().Sub(start)

	p.logger.WithFields(logrus.Fields{
		"loop":    LoopNewCoins,
		"fetched": result.Fetched,
		"stored":  result.Stored,
		"alerts":  result.Alerts,
		"errors":  result.Errors,
	}).Debug("new coin scan")
	return result, nil
}

func (p *Pipeline) scanNewCoins(ctx context.Context) error {
	_, err := p.ScanNewCoins(ctx)
	return err
}

// ObserveNewCoin persists a coin on first observation and raises an alert when
// its creator already had migrations before this coin. The coin is stored with
// AlertPending set and only marked seen once the alert decision is settled, so
// a failure after the insert is retried by the next observation. Both the
// polling loop and the push listener go through here.
func (p *Pipeline) ObserveNewCoin(ctx context.Context, coin *domain.Coin, source domain.AlertSource) (*Observation, error) {
	loop := LoopNewCoins
	if source == domain.AlertSourcePush {
		loop = "push"
	}
	obs := &Observation{Mint: coin.Mint}

	if p.seen.Contains(coin.Mint) {
		obs.Skipped = true
		return obs, nil
	}
	exists, err := p.store.CoinExists(ctx, coin.Mint)
	if err != nil {
		return p.itemFailed(loop, coin.Mint, "exists", fmt.Errorf("check coin %s: %w", coin.Mint, err))
	}
	if exists {
		return p.resumeObservation(ctx, loop, coin.Mint, source)
	}

	res, err := p.resolve(ctx, loop, coin)
	if err != nil {
		return p.itemFailed(loop, coin.Mint, "creator", err)
	}
	if res != nil {
		id := res.Identity
		coin.Creator = &id
	}

	coin.AlertPending = true
	upsert, err := p.store.UpsertCoin(ctx, coin)
	if err != nil {
		return p.itemFailed(loop, coin.Mint, "upsert", fmt.Errorf("%w: upsert coin %s: %w", ErrStoreWrite, coin.Mint, err))
	}
	observability.RecordCoinStored(loop)
	obs.Stored = true
	obs.Creator = coin.Creator

	if upsert.NewlyMigrated() {
		recorded, err := p.recordMigration(ctx, coin)
		if err != nil {
			return p.itemFailed(loop, coin.Mint, "migration", err)
		}
		obs.Migrated = recorded
	}
	return p.settleAlert(ctx, loop, coin, source, obs)
}

// resumeObservation skips a stored coin unless an earlier observation stopped
// before settling its alert decision, in which case it finishes that work.
func (p *Pipeline) resumeObservation(ctx context.Context, loop, mint string, source domain.AlertSource) (*Observation, error) {
	obs := &Observation{Mint: mint}
	stored, err := p.store.GetCoin(ctx, mint)
	if err != nil {
		return p.itemFailed(loop, mint, "exists", fmt.Errorf("get coin %s: %w", mint, err))
	}
	if !stored.AlertPending {
		p.seen.Add(mint)
		obs.Skipped = true
		return obs, nil
	}

	p.itemLogger(loop, mint, "resume").Info("resuming unsettled observation")
	obs.Creator = stored.Creator
	if stored.IsMigrated {
		recorded, err := p.recordMigration(ctx, stored)
		if err != nil {
			return p.itemFailed(loop, mint, "migration", err)
		}
		obs.Migrated = recorded
	}
	return p.settleAlert(ctx, loop, stored, source, obs)
}

// settleAlert recomputes the creator, applies the alert predicate and clears
// the coin's pending marker. The predicate counts only migrations of the
// creator's other coins.
func (p *Pipeline) settleAlert(ctx context.Context, loop string, coin *domain.Coin, source domain.AlertSource, obs *Observation) (*Observation, error) {
	if coin.Creator != nil {
		if _, err := p.engine.Recompute(ctx, *coin.Creator); err != nil {
			return p.itemFailed(loop, coin.Mint, "recompute", fmt.Errorf("%w: recompute %s: %w", ErrStoreWrite, coin.Creator, err))
		}

		creator, err := p.store.GetCreator(ctx, *coin.Creator)
		if err != nil {
			return p.itemFailed(loop, coin.Mint, "creator_stats", fmt.Errorf("get creator %s: %w", coin.Creator, err))
		}
		prior, err := p.priorMigrations(ctx, *coin.Creator, coin.Mint)
		if err != nil {
			return p.itemFailed(loop, coin.Mint, "creator_stats", err)
		}
		if prior > 0 {
			alert, err := p.raiseAlert(ctx, coin, creator, source)
			if err != nil {
				return p.itemFailed(loop, coin.Mint, "alert", err)
			}
			obs.Alert = alert
		}
	}

	if err := p.store.ClearAlertPending(ctx, coin.Mint); err != nil {
		return p.itemFailed(loop, coin.Mint, "settle", fmt.Errorf("%w: settle coin %s: %w", ErrStoreWrite, coin.Mint, err))
	}
	p.seen.Add(coin.Mint)
	return obs, nil
}

// priorMigrations counts migrated coins of the creator other than mint.
func (p *Pipeline) priorMigrations(ctx context.Context, id domain.CreatorIdentity, mint string) (int, error) {
	coins, err := p.store.CoinsByCreator(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("coins of %s: %w", id, err)
	}
	n := 0
	for _, c := range coins {
		if c.Mint != mint && c.IsMigrated {
			n++
		}
	}
	return n, nil
}

// raiseAlert inserts the alert for (coin, creator). It returns nil when one already exists.
func (p *Pipeline) raiseAlert(ctx context.Context, coin *domain.Coin, creator *domain.Creator, source domain.AlertSource) (*domain.Alert, error) {
	alert := &domain.Alert{
		ID:          uuid.NewString(),
		Mint:        coin.Mint,
		Creator:     creator.Identity,
		TriggeredAt: p.nowMillis(),
		Source:      source,
		Snapshot:    domain.SnapshotOf(creator.Stats),
	}
	created, err := p.store.InsertAlert(ctx, alert)
	if err != nil {
		return nil, fmt.Errorf("%w: insert alert for %s: %w", ErrStoreWrite, coin.Mint, err)
	}
	observability.RecordAlert(source.String(), created)
	if !created {
		return nil, nil
	}

	if err := p.sink.RecordAlert(ctx, alert); err != nil {
		p.logger.WithError(err).WithField("mint", coin.Mint).Warn("event sink rejected alert")
	}
	p.logger.WithFields(logrus.Fields{
		"mint":         coin.Mint,
		"symbol":       coin.Symbol,
		"creator":      creator.Identity.String(),
		"migrations":   creator.Stats.MigratedCoins,
		"success_rate": creator.Stats.SuccessRate,
		"source":       source.String(),
	}).Info("alert raised")
	return alert, nil
}

func (p *Pipeline) itemFailed(loop, mint, phase string, err error) (*Observation, error) {
	observability.RecordItemError(loop, phase)
	p.itemLogger(loop, mint, phase).WithError(err).Warn("item skipped")
	return nil, err
}
