// Package listener raises alerts from on-chain activity of known migrator wallets
// without waiting for the next poll.
package listener

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/logging"
	"github.com/Selopol/padre-pump-backend/internal/observability"
	"github.com/Selopol/padre-pump-backend/internal/pipeline"
	"github.com/Selopol/padre-pump-backend/internal/solana"
)

var errNoWallets = errors.New("no migrator wallets to track")

// DialFunc opens a new streaming connection.
type DialFunc func(ctx context.Context) (solana.WSClient, error)

// WalletSource lists wallets of creators with migrations.
type WalletSource interface {
	ListMigratorWallets(ctx context.Context) ([]domain.TrackedWallet, error)
}

// CoinLookup finds the newest coin launched by a wallet.
type CoinLookup interface {
	LatestByCreator(ctx context.Context, wallet string) (*domain.Coin, error)
}

// Observer is the shared first-observation path of the pipeline.
type Observer interface {
	ObserveNewCoin(ctx context.Context, coin *domain.Coin, source domain.AlertSource) (*pipeline.Observation, error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, coin *domain.Coin, source domain.AlertSource) (*pipeline.Observation, error)

// ObserveNewCoin calls f.
func (f ObserverFunc) ObserveNewCoin(ctx context.Context, coin *domain.Coin, source domain.AlertSource) (*pipeline.Observation, error) {
	return f(ctx, coin, source)
}

// Options contains configuration for creating a Listener.
type Options struct {
	Dial     DialFunc
	Wallets  WalletSource
	Feed     CoinLookup
	Observer Observer

	RefreshInterval time.Duration // default 10m
	Freshness       time.Duration // default 30s
	MaxAttempts     int           // default 5
	BaseDelay       time.Duration // default 5s
	MaxDelay        time.Duration // default 1m

	Logger logrus.FieldLogger
	Now    func() time.Time
}

// Listener subscribes to logs mentioning tracked wallets and reacts to new launches.
// It redials on connection loss and disables itself after MaxAttempts consecutive failures.
type Listener struct {
	dial     DialFunc
	wallets  WalletSource
	feed     CoinLookup
	observer Observer

	refreshInterval time.Duration
	freshness       time.Duration
	maxAttempts     int
	baseDelay       time.Duration
	maxDelay        time.Duration

	logger logrus.FieldLogger
	now    func() time.Time
	state  atomic.Int32
}

var _ pipeline.Runnable = (*Listener)(nil)

// New creates a listener in the Disconnected state.
func New(opts Options) *Listener {
	refresh := opts.RefreshInterval
	if refresh <= 0 {
		refresh = 10 * time.Minute
	}
	freshness := opts.Freshness
	if freshness <= 0 {
		freshness = 30 * time.Second
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 5 * time.Second
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = time.Minute
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Listener{
		dial:            opts.Dial,
		wallets:         opts.Wallets,
		feed:            opts.Feed,
		observer:        opts.Observer,
		refreshInterval: refresh,
		freshness:       freshness,
		maxAttempts:     maxAttempts,
		baseDelay:       baseDelay,
		maxDelay:        maxDelay,
		logger:          logging.OrDefault(opts.Logger).WithField("component", "listener"),
		now:             now,
	}
}

// State returns the current connection state.
func (l *Listener) State() State {
	return State(l.state.Load())
}

// StateName returns the state for health reporting.
func (l *Listener) StateName() string {
	return l.State().String()
}

func (l *Listener) setState(s State) {
	if State(l.state.Swap(int32(s))) != s {
		l.logger.WithField("state", s.String()).Debug("listener state changed")
	}
	observability.SetListenerState(int(s))
}

// Run supervises the connection until ctx is done or the listener gives up.
// Giving up returns nil; the polling loops keep running.
func (l *Listener) Run(ctx context.Context) error {
	attempt := 0
	for {
		l.setState(StateConnecting)
		subscribed, err := l.session(ctx)
		l.setState(StateDisconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if errors.Is(err, errNoWallets) {
			l.logger.Debug("no migrator wallets yet")
			if !sleep(ctx, l.refreshInterval) {
				return ctx.Err()
			}
			continue
		}

		if subscribed {
			attempt = 0
		}
		attempt++
		if attempt >= l.maxAttempts {
			l.setState(StateDisabled)
			l.logger.WithError(err).WithField("attempts", attempt).Warn("push listener disabled")
			return nil
		}

		delay := Backoff(attempt, l.baseDelay, l.maxDelay)
		l.logger.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("push connection lost, reconnecting")
		if !sleep(ctx, delay) {
			return ctx.Err()
		}
	}
}

// session runs one connection. It reports whether the subscriptions were established.
func (l *Listener) session(ctx context.Context) (bool, error) {
	wallets, err := l.wallets.ListMigratorWallets(ctx)
	if err != nil {
		return false, fmt.Errorf("list migrator wallets: %w", err)
	}
	if len(wallets) == 0 {
		return false, errNoWallets
	}

	client, err := l.dial(ctx)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer client.Close()

	tracked := make(map[string]domain.TrackedWallet, len(wallets))
	if err := l.subscribe(ctx, client, wallets, tracked); err != nil {
		return false, err
	}
	l.setState(StateSubscribed)
	l.logger.WithField("wallets", len(tracked)).Info("push listener subscribed")

	refresh := time.NewTicker(l.refreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()

		case <-client.Done():
			return true, connectionErr(client)

		case n, ok := <-client.Notifications():
			if !ok {
				return true, connectionErr(client)
			}
			l.handle(ctx, n, tracked)

		case <-refresh.C:
			wallets, err := l.wallets.ListMigratorWallets(ctx)
			if err != nil {
				l.logger.WithError(err).Warn("refresh migrator wallets failed")
				continue
			}
			if err := l.subscribe(ctx, client, wallets, tracked); err != nil {
				return true, err
			}
		}
	}
}

// subscribe adds a subscription for every wallet not yet tracked.
func (l *Listener) subscribe(ctx context.Context, client solana.WSClient, wallets []domain.TrackedWallet, tracked map[string]domain.TrackedWallet) error {
	added := 0
	for _, w := range wallets {
		if _, ok := tracked[w.Wallet]; ok {
			tracked[w.Wallet] = w
			continue
		}
		if _, err := client.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{w.Wallet}}); err != nil {
			return fmt.Errorf("subscribe %s: %w", w.Wallet, err)
		}
		tracked[w.Wallet] = w
		added++
	}
	observability.SetTrackedWallets(len(tracked))
	if added > 0 {
		l.logger.WithFields(logrus.Fields{"added": added, "tracked": len(tracked)}).Debug("wallet subscriptions updated")
	}
	return nil
}

// handle looks up the newest coin of each tracked wallet in the notification
// and feeds fresh launches into the pipeline.
func (l *Listener) handle(ctx context.Context, n solana.LogNotification, tracked map[string]domain.TrackedWallet) {
	for _, wallet := range n.Mentions {
		w, ok := tracked[wallet]
		if !ok || w.Migrated <= 0 {
			observability.RecordPushEvent("untracked")
			continue
		}
		logger := l.logger.WithFields(logrus.Fields{"wallet": wallet, "signature": n.Signature})

		coin, err := l.feed.LatestByCreator(ctx, wallet)
		if err != nil {
			observability.RecordPushEvent("lookup_failed")
			logger.WithError(err).Warn("latest coin lookup failed")
			continue
		}
		if coin == nil {
			observability.RecordPushEvent("no_coin")
			continue
		}
		age := l.now().Sub(time.UnixMilli(coin.CreatedAt))
		if age >= l.freshness {
			observability.RecordPushEvent("stale")
			continue
		}

		obs, err := l.observer.ObserveNewCoin(ctx, coin, domain.AlertSourcePush)
		if err != nil {
			observability.RecordPushEvent("observe_failed")
			continue
		}
		if obs.Alert != nil {
			observability.RecordPushEvent("alerted")
			logger.WithField("mint", coin.Mint).Info("push alert raised")
			continue
		}
		observability.RecordPushEvent("observed")
	}
}

func connectionErr(client solana.WSClient) error {
	if err := client.Err(); err != nil {
		return err
	}
	return solana.ErrConnectionLost
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
