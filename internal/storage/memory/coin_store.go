package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

// UpsertCoin inserts or refreshes a coin keyed by mint.
func (s *Store) UpsertCoin(_ context.Context, c *domain.Coin) (storage.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.upsertCoinLocked(c)
}

// UpsertCoins upserts all coins or none.
func (s *Store) UpsertCoins(_ context.Context, coins []*domain.Coin) (storage.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Snapshot touched rows so a failure can roll the batch back.
	backup := make(map[string]*domain.Coin, len(coins))
	for _, c := range coins {
		if c == nil {
			continue
		}
		if _, done := backup[c.Mint]; done {
			continue
		}
		backup[c.Mint] = nil
		if existing, ok := s.coins[c.Mint]; ok {
			backup[c.Mint] = cloneCoin(existing)
		}
	}

	var result storage.BulkResult
	for _, c := range coins {
		res, err := s.upsertCoinLocked(c)
		if err != nil {
			for mint, prev := range backup {
				if prev == nil {
					delete(s.coins, mint)
				} else {
					s.coins[mint] = prev
				}
			}
			return storage.BulkResult{}, err
		}
		if res.Inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
		if res.NewlyMigrated() {
			result.NewlyMigrated = append(result.NewlyMigrated, c.Mint)
		}
	}
	return result, nil
}

func (s *Store) upsertCoinLocked(c *domain.Coin) (storage.UpsertResult, error) {
	now := s.nowMillis()
	if err := storage.PrepareCoin(c, now); err != nil {
		return storage.UpsertResult{}, err
	}
	if c.Creator != nil {
		if _, ok := s.creators[c.Creator.String()]; !ok {
			return storage.UpsertResult{}, fmt.Errorf("%w: creator %s not found", storage.ErrInvalidInput, c.Creator)
		}
	}

	existing, ok := s.coins[c.Mint]
	if !ok {
		stored := cloneCoin(c)
		stored.FirstSeenAt = now
		stored.UpdatedAt = now
		s.coins[c.Mint] = stored
		return storage.UpsertResult{Inserted: true, IsMigrated: stored.IsMigrated}, nil
	}

	result := storage.UpsertResult{WasMigrated: existing.IsMigrated}

	if existing.Creator == nil && c.Creator != nil {
		id := *c.Creator
		existing.Creator = &id
	}
	if existing.CreatedAt == 0 {
		existing.CreatedAt = c.CreatedAt
	}
	if !existing.IsMigrated && c.IsMigrated {
		existing.IsMigrated = true
		existing.MigratedAt = copyInt64(c.MigratedAt)
	}

	refresh(&existing.Symbol, c.Symbol)
	refresh(&existing.Name, c.Name)
	refresh(&existing.Description, c.Description)
	refresh(&existing.ImageURI, c.ImageURI)
	refresh(&existing.MetadataURI, c.MetadataURI)
	refresh(&existing.Twitter, c.Twitter)
	refresh(&existing.Telegram, c.Telegram)
	refresh(&existing.Website, c.Website)
	refresh(&existing.CreatorWallet, c.CreatorWallet)
	refresh(&existing.BondingCurve, c.BondingCurve)
	if c.MarketCapUSD > 0 {
		existing.MarketCapUSD = c.MarketCapUSD
	}
	if len(c.Raw) > 0 {
		existing.Raw = append([]byte(nil), c.Raw...)
	}
	existing.UpdatedAt = now

	result.IsMigrated = existing.IsMigrated
	return result, nil
}

// ClearAlertPending marks the coin's alert decision as settled.
func (s *Store) ClearAlertPending(_ context.Context, mint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coins[mint]
	if !ok {
		return storage.ErrNotFound
	}
	c.AlertPending = false
	return nil
}

// CoinExists reports whether the mint is stored.
func (s *Store) CoinExists(_ context.Context, mint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.coins[mint]
	return ok, nil
}

// GetCoin returns ErrNotFound if the coin does not exist.
func (s *Store) GetCoin(_ context.Context, mint string) (*domain.Coin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.coins[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneCoin(c), nil
}

// CoinsByCreator returns all coins attributed to the creator, newest first.
func (s *Store) CoinsByCreator(_ context.Context, id domain.CreatorIdentity) ([]*domain.Coin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := id.String()
	var result []*domain.Coin
	for _, c := range s.coins {
		if c.Creator != nil && c.Creator.String() == key {
			result = append(result, cloneCoin(c))
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func sortNewestFirst(coins []*domain.Coin) {
	sort.Slice(coins, func(i, j int) bool {
		if coins[i].CreatedAt != coins[j].CreatedAt {
			return coins[i].CreatedAt > coins[j].CreatedAt
		}
		return coins[i].Mint < coins[j].Mint
	})
}

func refresh(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
