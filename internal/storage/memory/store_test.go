package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

const (
	walletA = "7EYnhQoR9YM3N7UoaKRoA44Uy8JeaZV3qyouov87awMs"
	walletB = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

func ptr[T any](v T) *T {
	return &v
}

func seedCreator(t *testing.T, s *Store, wallet string) domain.CreatorIdentity {
	t.Helper()
	id := domain.WalletIdentity(wallet)
	require.NoError(t, s.EnsureCreator(context.Background(), &domain.Creator{Identity: id, Wallet: ptr(wallet)}))
	return id
}

func testCoin(mint string, creator *domain.CreatorIdentity, createdAt int64) *domain.Coin {
	c := &domain.Coin{
		Mint:         mint,
		Symbol:       "SYM" + mint,
		Name:         "Coin " + mint,
		Creator:      creator,
		CreatedAt:    createdAt,
		MarketCapUSD: 5000,
		Raw:          json.RawMessage(`{"mint":"` + mint + `"}`),
	}
	if creator != nil {
		c.CreatorWallet = creator.Key
	}
	return c
}

func TestStore_UpsertCoin_Idempotent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	id := seedCreator(t, s, walletA)

	res, err := s.UpsertCoin(ctx, testCoin("m1", &id, 1000))
	require.NoError(t, err)
	assert.True(t, res.Inserted)

	first, err := s.GetCoin(ctx, "m1")
	require.NoError(t, err)

	res, err = s.UpsertCoin(ctx, testCoin("m1", &id, 1000))
	require.NoError(t, err)
	assert.False(t, res.Inserted)

	second, err := s.GetCoin(ctx, "m1")
	require.NoError(t, err)

	assert.Equal(t, first.Mint, second.Mint)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, first.FirstSeenAt, second.FirstSeenAt)
	assert.Equal(t, first.Creator, second.Creator)

	recent, err := s.RecentCoins(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestStore_UpsertCoin_MigrationMonotonic(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	id := seedCreator(t, s, walletA)

	migrated := testCoin("m1", &id, 1000)
	migrated.IsMigrated = true
	migrated.MigratedAt = ptr(int64(5000))

	res, err := s.UpsertCoin(ctx, migrated)
	require.NoError(t, err)
	assert.True(t, res.NewlyMigrated())

	// A stale fetch must not reset the flag or move the timestamp.
	stale := testCoin("m1", &id, 1000)
	res, err = s.UpsertCoin(ctx, stale)
	require.NoError(t, err)
	assert.True(t, res.WasMigrated)
	assert.True(t, res.IsMigrated)

	later := testCoin("m1", &id, 1000)
	later.IsMigrated = true
	later.MigratedAt = ptr(int64(9000))
	res, err = s.UpsertCoin(ctx, later)
	require.NoError(t, err)
	assert.False(t, res.NewlyMigrated())

	got, err := s.GetCoin(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, got.IsMigrated)
	require.NotNil(t, got.MigratedAt)
	assert.Equal(t, int64(5000), *got.MigratedAt)
}

func TestStore_UpsertCoin_CreatorFirstWins(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a := seedCreator(t, s, walletA)
	b := seedCreator(t, s, walletB)

	_, err := s.UpsertCoin(ctx, testCoin("m1", nil, 1000))
	require.NoError(t, err)

	_, err = s.UpsertCoin(ctx, testCoin("m1", &a, 1000))
	require.NoError(t, err)

	_, err = s.UpsertCoin(ctx, testCoin("m1", &b, 1000))
	require.NoError(t, err)

	got, err := s.GetCoin(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got.Creator)
	assert.Equal(t, a, *got.Creator)
}

func TestStore_AlertPending_SetOnInsertOnly(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	id := seedCreator(t, s, walletA)

	c := testCoin("m1", &id, 1000)
	c.AlertPending = true
	_, err := s.UpsertCoin(ctx, c)
	require.NoError(t, err)

	got, err := s.GetCoin(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, got.AlertPending)

	require.NoError(t, s.ClearAlertPending(ctx, "m1"))
	_, err = s.UpsertCoin(ctx, c)
	require.NoError(t, err)

	got, err = s.GetCoin(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, got.AlertPending)

	assert.ErrorIs(t, s.ClearAlertPending(ctx, "missing"), storage.ErrNotFound)
}

func TestStore_UpsertCoin_UnknownCreator(t *testing.T) {
	s := NewStore()
	id := domain.WalletIdentity(walletA)

	_, err := s.UpsertCoin(context.Background(), testCoin("m1", &id, 1000))
	assert.True(t, errors.Is(err, storage.ErrInvalidInput))
}

func TestStore_UpsertCoins_RollsBackOnFailure(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	id := seedCreator(t, s, walletA)

	_, err := s.UpsertCoins(ctx, []*domain.Coin{
		testCoin("m1", &id, 1000),
		{Mint: ""},
	})
	require.Error(t, err)

	exists, err := s.CoinExists(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, exists)

	res, err := s.UpsertCoins(ctx, []*domain.Coin{testCoin("m1", &id, 1000), testCoin("m2", &id, 2000)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
}

func TestStore_RecordMigration_Once(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	id := seedCreator(t, s, walletA)
	_, err := s.UpsertCoin(ctx, testCoin("m1", &id, 1000))
	require.NoError(t, err)

	e := &domain.MigrationEvent{Mint: "m1", Creator: &id, MigratedAt: 2000, DetectedAt: 2000}
	created, err := s.RecordMigration(ctx, e)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.RecordMigration(ctx, e)
	require.NoError(t, err)
	assert.False(t, created)

	n, err := s.CountMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_InsertAlert_OncePerCoinAndCreator(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	id := seedCreator(t, s, walletA)
	_, err := s.UpsertCoin(ctx, testCoin("m1", &id, 1000))
	require.NoError(t, err)

	created, err := s.InsertAlert(ctx, &domain.Alert{ID: "a1", Mint: "m1", Creator: id, TriggeredAt: 10, Source: domain.AlertSourcePoll})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.InsertAlert(ctx, &domain.Alert{ID: "a2", Mint: "m1", Creator: id, TriggeredAt: 11, Source: domain.AlertSourcePush})
	require.NoError(t, err)
	assert.False(t, created)

	alerts, err := s.ListAlerts(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "a1", alerts[0].ID)
	assert.Equal(t, "SYMm1", alerts[0].CoinSymbol)

	require.NoError(t, s.MarkAlertRead(ctx, "a1"))
	unread, err := s.ListAlerts(ctx, 10, true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	assert.ErrorIs(t, s.MarkAlertRead(ctx, "missing"), storage.ErrNotFound)
}

func TestStore_UpdateCreatorStats(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	id := seedCreator(t, s, walletA)

	err := s.UpdateCreatorStats(ctx, id, domain.CreatorStats{TotalCoins: 1, MigratedCoins: 2})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = s.UpdateCreatorStats(ctx, domain.WalletIdentity(walletB), domain.CreatorStats{})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	stats := domain.CreatorStats{TotalCoins: 4, MigratedCoins: 1, SuccessRate: 25, LastCoin: &domain.CoinRef{Mint: "m1"}}
	require.NoError(t, s.UpdateCreatorStats(ctx, id, stats))

	got, err := s.GetCreator(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, stats, got.Stats)
}

func TestStore_EnsureCreator_FillsDisplayFields(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	id := domain.SocialIdentity("dev")

	require.NoError(t, s.EnsureCreator(ctx, &domain.Creator{Identity: id}))
	require.NoError(t, s.EnsureCreator(ctx, &domain.Creator{Identity: id, DisplayName: ptr("Dev"), ProfileURL: ptr("https://x.com/dev")}))
	require.NoError(t, s.EnsureCreator(ctx, &domain.Creator{Identity: id, DisplayName: ptr("Other")}))

	got, err := s.GetCreator(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Dev", *got.DisplayName)
	assert.Equal(t, "https://x.com/dev", *got.ProfileURL)
}

func TestStore_ListMigratorWallets(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a := seedCreator(t, s, walletA)
	b := seedCreator(t, s, walletB)

	_, err := s.UpsertCoin(ctx, testCoin("m1", &a, 1000))
	require.NoError(t, err)
	_, err = s.UpsertCoin(ctx, testCoin("m2", &b, 1000))
	require.NoError(t, err)
	require.NoError(t, s.UpdateCreatorStats(ctx, a, domain.CreatorStats{TotalCoins: 1, MigratedCoins: 1, SuccessRate: 100}))

	wallets, err := s.ListMigratorWallets(ctx)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, walletA, wallets[0].Wallet)
	assert.Equal(t, a, wallets[0].Creator)
}

func TestStore_ListCreators_Sorting(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a := seedCreator(t, s, walletA)
	b := seedCreator(t, s, walletB)

	require.NoError(t, s.UpdateCreatorStats(ctx, a, domain.CreatorStats{TotalCoins: 10, MigratedCoins: 2, SuccessRate: 20}))
	require.NoError(t, s.UpdateCreatorStats(ctx, b, domain.CreatorStats{TotalCoins: 1, MigratedCoins: 1, SuccessRate: 100}))

	bySuccess, err := s.ListCreators(ctx, storage.ListCreatorsParams{Limit: 10, Sort: storage.SortSuccessRate})
	require.NoError(t, err)
	require.Len(t, bySuccess, 2)
	assert.Equal(t, b, bySuccess[0].Identity)

	byMigrations, err := s.ListCreators(ctx, storage.ListCreatorsParams{Limit: 10, Sort: storage.SortMigrations})
	require.NoError(t, err)
	assert.Equal(t, a, byMigrations[0].Identity)

	paged, err := s.ListCreators(ctx, storage.ListCreatorsParams{Limit: 1, Offset: 1, Sort: storage.SortTotalCoins})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, b, paged[0].Identity)

	_, err = s.ListCreators(ctx, storage.ListCreatorsParams{Sort: "bogus"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestStore_CoinsByMints(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_, err := s.UpsertCoin(ctx, testCoin("m1", nil, 1000))
	require.NoError(t, err)

	coins, err := s.CoinsByMints(ctx, []string{"m1", "missing", "m1"})
	require.NoError(t, err)
	assert.Len(t, coins, 1)

	tooMany := make([]string, storage.MaxBatchMints+1)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("m%d", i)
	}
	_, err = s.CoinsByMints(ctx, tooMany)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestStore_Search(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	id := seedCreator(t, s, walletA)
	_, err := s.UpsertCoin(ctx, testCoin("pepe1", &id, 1000))
	require.NoError(t, err)

	creators, err := s.SearchCreators(ctx, walletA[:6], 10)
	require.NoError(t, err)
	assert.Len(t, creators, 1)

	coins, err := s.SearchCoins(ctx, "sympepe", 10)
	require.NoError(t, err)
	assert.Len(t, coins, 1)
}

func TestStore_ConcurrentUpserts(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	id := seedCreator(t, s, walletA)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := testCoin("m1", &id, 1000)
			c.IsMigrated = i%2 == 0
			_, err := s.UpsertCoin(ctx, c)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.GetCoin(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, got.IsMigrated)
}
