package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/identity"
	"github.com/Selopol/padre-pump-backend/internal/pumpfun"
	"github.com/Selopol/padre-pump-backend/internal/stats"
	"github.com/Selopol/padre-pump-backend/internal/storage/memory"
)

const (
	walletA = "7EYnhQoR9YM3N7UoaKRoA44Uy8JeaZV3qyouov87awMs"
	walletB = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	walletC = "So11111111111111111111111111111111111111112"
)

func ptr[T any](v T) *T { return &v }

// fakeFeed serves canned listings. Every call returns fresh copies.
type fakeFeed struct {
	mu          sync.Mutex
	latest      []*domain.Coin
	migrated    []*domain.Coin
	history     map[string][]*domain.Coin
	failOffsets map[int]bool
	latestErr   error
	latestHits  int
	historyHits map[string]int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		history:     make(map[string][]*domain.Coin),
		failOffsets: make(map[int]bool),
		historyHits: make(map[string]int),
	}
}

func (f *fakeFeed) ListLatest(_ context.Context, offset, limit int) ([]*domain.Coin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latestHits++
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return window(f.latest, offset, limit), nil
}

func (f *fakeFeed) ListMigrated(_ context.Context, offset, limit int) ([]*domain.Coin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOffsets[offset] {
		return nil, fmt.Errorf("page at offset %d: upstream timeout", offset)
	}
	return window(f.migrated, offset, limit), nil
}

func (f *fakeFeed) ListByCreator(_ context.Context, wallet string, offset, limit int) ([]*domain.Coin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyHits[wallet]++
	return window(f.history[wallet], offset, limit), nil
}

func (f *fakeFeed) MigratedPage(ctx context.Context, offset, limit int) (pumpfun.Page, error) {
	return pumpfun.CoinPages(f.ListMigrated)(ctx, offset, limit)
}

func (f *fakeFeed) CreatorPage(ctx context.Context, wallet string, offset, limit int) (pumpfun.Page, error) {
	coins, err := f.ListByCreator(ctx, wallet, offset, limit)
	return pumpfun.Page{Coins: coins, Received: len(coins)}, err
}

func (f *fakeFeed) latestCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latestHits
}

func window(coins []*domain.Coin, offset, limit int) []*domain.Coin {
	if offset >= len(coins) {
		return nil
	}
	end := offset + limit
	if end > len(coins) {
		end = len(coins)
	}
	out := make([]*domain.Coin, 0, end-offset)
	for _, c := range coins[offset:end] {
		cp := *c
		cp.Creator = nil
		out = append(out, &cp)
	}
	return out
}

// countingEngine counts Recompute calls per creator.
type countingEngine struct {
	inner *stats.Engine
	mu    sync.Mutex
	calls map[string]int
}

func (e *countingEngine) Recompute(ctx context.Context, id domain.CreatorIdentity) (domain.CreatorStats, error) {
	e.mu.Lock()
	e.calls[id.String()]++
	e.mu.Unlock()
	return e.inner.Recompute(ctx, id)
}

func (e *countingEngine) total() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		n += c
	}
	return n
}

type harness struct {
	feed     *fakeFeed
	store    *memory.Store
	engine   *countingEngine
	pipeline *Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	feed := newFakeFeed()
	engine := &countingEngine{
		inner: stats.NewEngine(stats.EngineOptions{Store: store}),
		calls: make(map[string]int),
	}
	p := New(Options{
		Feed:     feed,
		Resolver: identity.NewWalletResolver(),
		Store:    store,
		Engine:   engine,
		Backfill: BackfillConfig{Enabled: true, PageSize: 2, HistoryPageSize: 10},
		Now:      func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	})
	return &harness{feed: feed, store: store, engine: engine, pipeline: p}
}

func coin(mint, wallet string, createdAt int64, migrated bool) *domain.Coin {
	c := &domain.Coin{
		Mint:          mint,
		Symbol:        "S" + mint,
		Name:          "Coin " + mint,
		CreatorWallet: wallet,
		CreatedAt:     createdAt,
		IsMigrated:    migrated,
	}
	if migrated {
		c.MigratedAt = ptr(createdAt + 1000)
	}
	return c
}

// seedScenario backfills creator A with two migrated coins and creator B with one.
func seedScenario(t *testing.T, h *harness) *BackfillResult {
	t.Helper()
	a1 := coin("mintA1", walletA, 1000, true)
	a2 := coin("mintA2", walletA, 2000, true)
	b1 := coin("mintB1", walletB, 1500, true)
	h.feed.migrated = []*domain.Coin{a2, b1, a1}
	h.feed.history[walletA] = []*domain.Coin{a2, a1}
	h.feed.history[walletB] = []*domain.Coin{b1}

	result, err := h.pipeline.RunBackfill(context.Background())
	require.NoError(t, err)
	return result
}

func TestRunBackfill_TwoCreators(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result := seedScenario(t, h)

	assert.Equal(t, 3, result.CoinsScanned)
	assert.Equal(t, 2, result.Creators)
	assert.Equal(t, 3, result.MigrationsRecorded)
	assert.Equal(t, 3, result.HistoryCoins)
	assert.Zero(t, result.Errors)

	a, err := h.store.GetCreator(ctx, domain.WalletIdentity(walletA))
	require.NoError(t, err)
	assert.Equal(t, 2, a.Stats.TotalCoins)
	assert.Equal(t, 2, a.Stats.MigratedCoins)
	assert.Equal(t, 100.0, a.Stats.SuccessRate)

	b, err := h.store.GetCreator(ctx, domain.WalletIdentity(walletB))
	require.NoError(t, err)
	assert.Equal(t, 1, b.Stats.TotalCoins)
	assert.Equal(t, 1, b.Stats.MigratedCoins)
	assert.Equal(t, 100.0, b.Stats.SuccessRate)

	n, err := h.store.CountMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRunBackfill_HistoryAddsUnmigratedCoins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c1 := coin("mintC1", walletC, 1000, true)
	h.feed.migrated = []*domain.Coin{c1}
	h.feed.history[walletC] = []*domain.Coin{
		coin("mintC4", walletC, 4000, false),
		coin("mintC3", walletC, 3000, false),
		coin("mintC2", walletC, 2000, false),
		c1,
	}

	result, err := h.pipeline.RunBackfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, result.HistoryCoins)
	assert.Equal(t, 1, h.feed.historyHits[walletC])

	c, err := h.store.GetCreator(ctx, domain.WalletIdentity(walletC))
	require.NoError(t, err)
	assert.Equal(t, 4, c.Stats.TotalCoins)
	assert.Equal(t, 1, c.Stats.MigratedCoins)
	assert.Equal(t, 25.0, c.Stats.SuccessRate)
	require.NotNil(t, c.Stats.LastCoin)
	assert.Equal(t, "mintC4", c.Stats.LastCoin.Mint)
}

func TestRunBackfill_OneFailingPageOfFive(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 9; i++ {
		h.feed.migrated = append(h.feed.migrated, coin(fmt.Sprintf("m%d", i), walletA, int64(1000+i), true))
	}
	h.feed.failOffsets[4] = true

	result, err := h.pipeline.RunBackfill(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, result.CoinsScanned)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 7, result.MigrationsRecorded)
}

func TestRunBackfill_AllPagesFail(t *testing.T) {
	h := newHarness(t)
	h.feed.migrated = []*domain.Coin{coin("m0", walletA, 1, true)}
	for _, offset := range []int{0, 2, 4} {
		h.feed.failOffsets[offset] = true
	}

	result, err := h.pipeline.RunBackfill(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, result.Errors)
	assert.Zero(t, result.CoinsScanned)
}

func TestRunBackfill_UnresolvableCoinIsCounted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.feed.migrated = []*domain.Coin{
		coin("good", walletA, 1000, true),
		coin("bad", "not-a-wallet", 2000, true),
	}

	result, err := h.pipeline.RunBackfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 1, result.Creators)

	bad, err := h.store.GetCoin(ctx, "bad")
	require.NoError(t, err)
	assert.Nil(t, bad.Creator)
	assert.True(t, bad.IsMigrated)
}

func TestScanNewCoins_AlertsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedScenario(t, h)

	h.feed.latest = []*domain.Coin{coin("mintA3", walletA, 3000, false)}

	first, err := h.pipeline.ScanNewCoins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Stored)
	assert.Equal(t, 1, first.Alerts)

	alerts, err := h.store.ListAlerts(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "mintA3", alerts[0].Mint)
	assert.Equal(t, domain.WalletIdentity(walletA), alerts[0].Creator)
	assert.Equal(t, 2, alerts[0].Snapshot.MigrationCount)
	assert.Equal(t, 3, alerts[0].Snapshot.TotalCoins)
	assert.Equal(t, domain.AlertSourcePoll, alerts[0].Source)

	second, err := h.pipeline.ScanNewCoins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Skipped)
	assert.Zero(t, second.Alerts)

	alerts, err = h.store.ListAlerts(ctx, 10, false)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestScanNewCoins_StoreCheckSurvivesRestart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedScenario(t, h)
	h.feed.latest = []*domain.Coin{coin("mintA3", walletA, 3000, false)}

	_, err := h.pipeline.ScanNewCoins(ctx)
	require.NoError(t, err)

	// A fresh pipeline has an empty seen cache but shares the store.
	restarted := New(Options{
		Feed:     h.feed,
		Resolver: identity.NewWalletResolver(),
		Store:    h.store,
		Engine:   h.engine,
	})
	result, err := restarted.ScanNewCoins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Alerts)

	alerts, err := h.store.ListAlerts(ctx, 10, false)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestScanNewCoins_NoAlertForNonMigrators(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.feed.latest = []*domain.Coin{
		coin("fresh", walletC, 5000, false),
		coin("orphan", "not-a-wallet", 4000, false),
	}

	result, err := h.pipeline.ScanNewCoins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Stored)
	assert.Zero(t, result.Alerts)
	assert.Zero(t, result.Errors)

	alerts, err := h.store.ListAlerts(ctx, 10, false)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	orphan, err := h.store.GetCoin(ctx, "orphan")
	require.NoError(t, err)
	assert.Nil(t, orphan.Creator)

	c, err := h.store.GetCreator(ctx, domain.WalletIdentity(walletC))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Stats.TotalCoins)
}

func TestScanNewCoins_FetchError(t *testing.T) {
	h := newHarness(t)
	h.feed.latestErr = errors.New("upstream unavailable")

	_, err := h.pipeline.ScanNewCoins(context.Background())
	require.Error(t, err)
}

func TestObserveNewCoin_Push(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedScenario(t, h)

	obs, err := h.pipeline.ObserveNewCoin(ctx, coin("pushed", walletB, 9000, false), domain.AlertSourcePush)
	require.NoError(t, err)
	require.NotNil(t, obs.Alert)
	assert.Equal(t, domain.AlertSourcePush, obs.Alert.Source)

	// The polling loop sees the same coin afterwards and stays quiet.
	h.feed.latest = []*domain.Coin{coin("pushed", walletB, 9000, false)}
	result, err := h.pipeline.ScanNewCoins(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Alerts)
}

func TestObserveNewCoin_FirstMigratedCoinDoesNotAlert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	obs, err := h.pipeline.ObserveNewCoin(ctx, coin("mintC1", walletC, 5000, true), domain.AlertSourcePoll)
	require.NoError(t, err)
	assert.True(t, obs.Migrated)
	assert.Nil(t, obs.Alert)

	alerts, err := h.store.ListAlerts(ctx, 10, false)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	c, err := h.store.GetCreator(ctx, domain.WalletIdentity(walletC))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Stats.MigratedCoins)

	// The creator's next coin has one earlier migration behind it.
	obs, err = h.pipeline.ObserveNewCoin(ctx, coin("mintC2", walletC, 6000, false), domain.AlertSourcePoll)
	require.NoError(t, err)
	require.NotNil(t, obs.Alert)
	assert.Equal(t, 1, obs.Alert.Snapshot.MigrationCount)
}

// flakyAlertStore fails the first InsertAlert call.
type flakyAlertStore struct {
	*memory.Store
	failures atomic.Int32
}

func (s *flakyAlertStore) InsertAlert(ctx context.Context, a *domain.Alert) (bool, error) {
	if s.failures.Add(-1) >= 0 {
		return false, errors.New("connection reset")
	}
	return s.Store.InsertAlert(ctx, a)
}

func TestScanNewCoins_FailedAlertIsRetried(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedScenario(t, h)

	store := &flakyAlertStore{Store: h.store}
	store.failures.Store(1)
	newPipeline := func() *Pipeline {
		return New(Options{
			Feed:     h.feed,
			Resolver: identity.NewWalletResolver(),
			Store:    store,
			Engine:   h.engine,
		})
	}
	h.feed.latest = []*domain.Coin{coin("mintA3", walletA, 3000, false)}

	p := newPipeline()
	first, err := p.ScanNewCoins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Errors)
	assert.Zero(t, first.Alerts)

	stored, err := h.store.GetCoin(ctx, "mintA3")
	require.NoError(t, err)
	assert.True(t, stored.AlertPending)

	second, err := p.ScanNewCoins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Alerts)
	assert.Zero(t, second.Errors)

	stored, err = h.store.GetCoin(ctx, "mintA3")
	require.NoError(t, err)
	assert.False(t, stored.AlertPending)

	// A restart finds the decision settled.
	third, err := newPipeline().ScanNewCoins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Skipped)
	assert.Zero(t, third.Alerts)

	alerts, err := h.store.ListAlerts(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "mintA3", alerts[0].Mint)
	assert.Equal(t, 2, alerts[0].Snapshot.MigrationCount)
}

func TestScanNewCoins_RestartResumesPendingAlert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedScenario(t, h)

	store := &flakyAlertStore{Store: h.store}
	store.failures.Store(1)
	h.feed.latest = []*domain.Coin{coin("mintA3", walletA, 3000, false)}

	_, err := New(Options{
		Feed:     h.feed,
		Resolver: identity.NewWalletResolver(),
		Store:    store,
		Engine:   h.engine,
	}).ScanNewCoins(ctx)
	require.NoError(t, err)

	restarted := New(Options{
		Feed:     h.feed,
		Resolver: identity.NewWalletResolver(),
		Store:    store,
		Engine:   h.engine,
	})
	result, err := restarted.ScanNewCoins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Alerts)

	result, err = restarted.ScanNewCoins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Alerts)

	alerts, err := h.store.ListAlerts(ctx, 10, false)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestScanMigrations_AlreadyMigratedIsSkipped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedScenario(t, h)

	before, err := h.store.CountMigrations(ctx)
	require.NoError(t, err)
	recomputes := h.engine.total()

	h.feed.migrated = []*domain.Coin{coin("mintA1", walletA, 1000, true)}
	result, err := h.pipeline.ScanMigrations(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Migrations)
	assert.Equal(t, 1, result.Skipped)

	after, err := h.store.CountMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, recomputes, h.engine.total())
}

func TestScanMigrations_RecordsNewMigration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.feed.latest = []*domain.Coin{coin("mintB2", walletB, 2000, false)}
	_, err := h.pipeline.ScanNewCoins(ctx)
	require.NoError(t, err)

	h.feed.migrated = []*domain.Coin{coin("mintB2", walletB, 2000, true)}
	result, err := h.pipeline.ScanMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Migrations)

	b, err := h.store.GetCreator(ctx, domain.WalletIdentity(walletB))
	require.NoError(t, err)
	assert.Equal(t, 1, b.Stats.TotalCoins)
	assert.Equal(t, 1, b.Stats.MigratedCoins)
	assert.Equal(t, 100.0, b.Stats.SuccessRate)

	// A stale listing never resets the flag nor records twice.
	result, err = h.pipeline.ScanMigrations(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Migrations)

	n, err := h.store.CountMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSeenCache_EvictsOldest(t *testing.T) {
	c := NewSeenCache(3)
	for _, m := range []string{"a", "b", "c", "a", "d"} {
		c.Add(m)
	}

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Contains("a"))
	assert.True(t, c.Contains("b"))
	assert.True(t, c.Contains("d"))
}

func TestLoop_StartStop(t *testing.T) {
	var scans atomic.Int32
	scanned := make(chan struct{}, 10)
	l := NewLoop("test", time.Hour, func(ctx context.Context) error {
		scans.Add(1)
		scanned <- struct{}{}
		return nil
	}, nil)

	assert.Equal(t, LoopStopped, l.State())

	ctx := context.Background()
	l.Start(ctx)
	l.Start(ctx)
	assert.Equal(t, LoopRunning, l.State())

	select {
	case <-scanned:
	case <-time.After(time.Second):
		t.Fatal("expected an immediate scan")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, l.Stop(stopCtx))
	assert.Equal(t, LoopStopped, l.State())
	assert.Equal(t, int32(1), scans.Load())
	require.NoError(t, l.Stop(stopCtx))
}

func TestLoop_ScanErrorIsNotFatal(t *testing.T) {
	var scans atomic.Int32
	l := NewLoop("flaky", 10*time.Millisecond, func(ctx context.Context) error {
		scans.Add(1)
		return errors.New("upstream timeout")
	}, nil)

	l.Start(context.Background())
	require.Eventually(t, func() bool { return scans.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, LoopRunning, l.State())
	require.NoError(t, l.Stop(context.Background()))
}

func TestLoop_StopWaitsForInFlightScan(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	l := NewLoop("slow", time.Hour, func(ctx context.Context) error {
		close(entered)
		<-release
		finished.Store(true)
		return nil
	}, nil)

	l.Start(context.Background())
	<-entered

	stopped := make(chan error, 1)
	go func() { stopped <- l.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight scan finished")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-stopped)
	assert.True(t, finished.Load())
}

type fakeListener struct {
	started chan struct{}
	stopped chan struct{}
}

func (l *fakeListener) Run(ctx context.Context) error {
	close(l.started)
	<-ctx.Done()
	close(l.stopped)
	return ctx.Err()
}

func (l *fakeListener) StateName() string { return "subscribed" }

func TestPipeline_StartStop(t *testing.T) {
	h := newHarness(t)
	seedFeed := coin("mintA1", walletA, 1000, true)
	h.feed.migrated = []*domain.Coin{seedFeed}

	listener := &fakeListener{started: make(chan struct{}), stopped: make(chan struct{})}
	p := New(Options{
		Feed:              h.feed,
		Resolver:          identity.NewWalletResolver(),
		Store:             h.store,
		Engine:            h.engine,
		Listener:          listener,
		Backfill:          BackfillConfig{Enabled: true},
		NewCoinInterval:   time.Hour,
		MigrationInterval: time.Hour,
	})

	ctx := context.Background()
	require.NoError(t, p.Start(ctx))
	require.NoError(t, p.Start(ctx))
	<-listener.started

	status := p.Status()
	assert.Equal(t, "running", status.Loops[LoopNewCoins])
	assert.Equal(t, "running", status.Loops[LoopMigrations])
	assert.Equal(t, "subscribed", status.Listener)

	require.Eventually(t, func() bool { return p.Status().Backfill == "done" }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	<-listener.stopped

	status = p.Status()
	assert.Equal(t, "stopped", status.Loops[LoopNewCoins])
	assert.Equal(t, "stopped", status.Loops[LoopMigrations])
}

func TestPipeline_DisablePolling(t *testing.T) {
	h := newHarness(t)
	p := New(Options{
		Feed:           h.feed,
		Resolver:       identity.NewWalletResolver(),
		Store:          h.store,
		Engine:         h.engine,
		DisablePolling: true,
	})

	ctx := context.Background()
	require.NoError(t, p.Start(ctx))

	status := p.Status()
	assert.Equal(t, "stopped", status.Loops[LoopNewCoins])
	assert.Equal(t, "stopped", status.Loops[LoopMigrations])
	assert.Equal(t, "disabled", status.Backfill)
	assert.Equal(t, "disabled", status.Listener)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.Zero(t, h.feed.latestCalls())
}

func TestPipeline_StartRequiresDependencies(t *testing.T) {
	p := New(Options{})
	require.Error(t, p.Start(context.Background()))
}
