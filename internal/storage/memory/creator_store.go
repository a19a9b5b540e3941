package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

// EnsureCreator inserts a zero-valued creator if absent.
func (s *Store) EnsureCreator(_ context.Context, c *domain.Creator) error {
	if err := validateCreator(c); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureCreatorLocked(c)
	return nil
}

// EnsureCreators inserts all absent creators. Validation happens before any write.
func (s *Store) EnsureCreators(_ context.Context, creators []*domain.Creator) error {
	for _, c := range creators {
		if err := validateCreator(c); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range creators {
		s.ensureCreatorLocked(c)
	}
	return nil
}

func (s *Store) ensureCreatorLocked(c *domain.Creator) {
	key := c.Identity.String()
	now := s.nowMillis()

	existing, ok := s.creators[key]
	if !ok {
		stored := &domain.Creator{
			Identity:    c.Identity,
			Wallet:      copyString(c.Wallet),
			ExternalID:  copyString(c.ExternalID),
			DisplayName: copyString(c.DisplayName),
			ProfileURL:  copyString(c.ProfileURL),
			FirstSeenAt: now,
			UpdatedAt:   now,
		}
		s.creators[key] = stored
		return
	}

	existing.Wallet = coalesce(existing.Wallet, c.Wallet)
	existing.ExternalID = coalesce(existing.ExternalID, c.ExternalID)
	existing.DisplayName = coalesce(existing.DisplayName, c.DisplayName)
	existing.ProfileURL = coalesce(existing.ProfileURL, c.ProfileURL)
}

// GetCreator returns ErrNotFound if the creator does not exist.
func (s *Store) GetCreator(_ context.Context, id domain.CreatorIdentity) (*domain.Creator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.creators[id.String()]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneCreator(c), nil
}

// UpdateCreatorStats overwrites the creator's aggregates.
func (s *Store) UpdateCreatorStats(_ context.Context, id domain.CreatorIdentity, stats domain.CreatorStats) error {
	if stats.MigratedCoins > stats.TotalCoins || stats.TotalCoins < 0 || stats.MigratedCoins < 0 {
		return fmt.Errorf("%w: migrated %d of %d", storage.ErrInvalidInput, stats.MigratedCoins, stats.TotalCoins)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.creators[id.String()]
	if !ok {
		return storage.ErrNotFound
	}
	c.Stats = cloneStats(stats)
	c.UpdatedAt = s.nowMillis()
	return nil
}

// ListMigratorWallets returns launch wallets of creators with at least one migration.
func (s *Store) ListMigratorWallets(_ context.Context) ([]domain.TrackedWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var result []domain.TrackedWallet
	for _, coin := range s.coins {
		if coin.Creator == nil || coin.CreatorWallet == "" {
			continue
		}
		creator, ok := s.creators[coin.Creator.String()]
		if !ok || creator.Stats.MigratedCoins == 0 {
			continue
		}
		if _, dup := seen[coin.CreatorWallet]; dup {
			continue
		}
		seen[coin.CreatorWallet] = struct{}{}
		result = append(result, domain.TrackedWallet{
			Wallet:   coin.CreatorWallet,
			Creator:  creator.Identity,
			Migrated: creator.Stats.MigratedCoins,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Wallet < result[j].Wallet
	})
	return result, nil
}

func validateCreator(c *domain.Creator) error {
	if c == nil {
		return fmt.Errorf("%w: nil creator", storage.ErrInvalidInput)
	}
	if err := c.Identity.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	return nil
}

func coalesce(current, candidate *string) *string {
	if current != nil && *current != "" {
		return current
	}
	if candidate == nil || *candidate == "" {
		return current
	}
	return copyString(candidate)
}
