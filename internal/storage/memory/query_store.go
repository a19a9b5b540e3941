package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

// Overview returns dataset counters.
func (s *Store) Overview(_ context.Context) (*storage.Overview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o := &storage.Overview{
		Creators:   len(s.creators),
		Coins:      len(s.coins),
		Migrations: len(s.migrations),
		Alerts:     len(s.alerts),
	}
	for _, c := range s.creators {
		if c.Stats.MigratedCoins > 0 {
			o.CreatorsMigrated++
		}
	}
	for _, c := range s.coins {
		if c.IsMigrated {
			o.MigratedCoins++
		}
	}
	for _, a := range s.alerts {
		if !a.Read {
			o.UnreadAlerts++
		}
	}
	o.MigrationRate = domain.SuccessRate(o.MigratedCoins, o.Coins)
	return o, nil
}

// ListCreators returns a page of creators in the requested order.
func (s *Store) ListCreators(_ context.Context, p storage.ListCreatorsParams) ([]*domain.Creator, error) {
	if p.Sort == "" {
		p.Sort = storage.SortSuccessRate
	}
	if !p.Sort.IsValid() {
		return nil, fmt.Errorf("%w: sort %q", storage.ErrInvalidInput, p.Sort)
	}

	s.mu.RLock()
	all := make([]*domain.Creator, 0, len(s.creators))
	for _, c := range s.creators {
		all = append(all, cloneCreator(c))
	}
	s.mu.RUnlock()

	sort.Slice(all, creatorLess(all, p.Sort))
	return page(all, p.Offset, p.Limit), nil
}

func creatorLess(cs []*domain.Creator, by storage.CreatorSort) func(i, j int) bool {
	return func(i, j int) bool {
		a, b := cs[i], cs[j]
		switch by {
		case storage.SortMigrations:
			if a.Stats.MigratedCoins != b.Stats.MigratedCoins {
				return a.Stats.MigratedCoins > b.Stats.MigratedCoins
			}
			if a.Stats.SuccessRate != b.Stats.SuccessRate {
				return a.Stats.SuccessRate > b.Stats.SuccessRate
			}
		case storage.SortTotalCoins:
			if a.Stats.TotalCoins != b.Stats.TotalCoins {
				return a.Stats.TotalCoins > b.Stats.TotalCoins
			}
		case storage.SortRecent:
			if a.UpdatedAt != b.UpdatedAt {
				return a.UpdatedAt > b.UpdatedAt
			}
		default:
			if a.Stats.SuccessRate != b.Stats.SuccessRate {
				return a.Stats.SuccessRate > b.Stats.SuccessRate
			}
			if a.Stats.MigratedCoins != b.Stats.MigratedCoins {
				return a.Stats.MigratedCoins > b.Stats.MigratedCoins
			}
		}
		return a.Identity.String() < b.Identity.String()
	}
}

// RecentCoins returns the newest coins by creation time.
func (s *Store) RecentCoins(_ context.Context, limit int) ([]*domain.Coin, error) {
	s.mu.RLock()
	all := make([]*domain.Coin, 0, len(s.coins))
	for _, c := range s.coins {
		all = append(all, cloneCoin(c))
	}
	s.mu.RUnlock()

	sortNewestFirst(all)
	return page(all, 0, limit), nil
}

// CoinsByMints returns the stored coins among mints, in request order.
func (s *Store) CoinsByMints(_ context.Context, mints []string) ([]*domain.Coin, error) {
	if len(mints) > storage.MaxBatchMints {
		return nil, fmt.Errorf("%w: %d mints exceeds %d", storage.ErrInvalidInput, len(mints), storage.MaxBatchMints)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(mints))
	var result []*domain.Coin
	for _, mint := range mints {
		if _, dup := seen[mint]; dup {
			continue
		}
		seen[mint] = struct{}{}
		if c, ok := s.coins[mint]; ok {
			result = append(result, cloneCoin(c))
		}
	}
	return result, nil
}

// SearchCreators matches q against identity key, display name and wallet.
func (s *Store) SearchCreators(_ context.Context, q string, limit int) ([]*domain.Creator, error) {
	needle := strings.ToLower(strings.TrimSpace(q))

	s.mu.RLock()
	var result []*domain.Creator
	for _, c := range s.creators {
		if containsFold(c.Identity.Key, needle) || containsFoldPtr(c.DisplayName, needle) || containsFoldPtr(c.Wallet, needle) {
			result = append(result, cloneCreator(c))
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, creatorLess(result, storage.SortMigrations))
	return page(result, 0, limit), nil
}

// SearchCoins matches q against mint, symbol and name.
func (s *Store) SearchCoins(_ context.Context, q string, limit int) ([]*domain.Coin, error) {
	needle := strings.ToLower(strings.TrimSpace(q))

	s.mu.RLock()
	var result []*domain.Coin
	for _, c := range s.coins {
		if strings.HasPrefix(strings.ToLower(c.Mint), needle) || containsFold(c.Symbol, needle) || containsFold(c.Name, needle) {
			result = append(result, cloneCoin(c))
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(result)
	return page(result, 0, limit), nil
}

func containsFold(s, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(s), lowerNeedle)
}

func containsFoldPtr(s *string, lowerNeedle string) bool {
	return s != nil && containsFold(*s, lowerNeedle)
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
