package memory

import (
	"context"
	"fmt"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

// RecordMigration appends an event. Returns false if the mint was already recorded.
func (s *Store) RecordMigration(_ context.Context, e *domain.MigrationEvent) (bool, error) {
	if e == nil || e.Mint == "" {
		return false, fmt.Errorf("%w: migration without mint", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.migrations[e.Mint]; exists {
		return false, nil
	}
	if _, ok := s.coins[e.Mint]; !ok {
		return false, fmt.Errorf("%w: coin %s not found", storage.ErrInvalidInput, e.Mint)
	}

	stored := *e
	if e.Creator != nil {
		id := *e.Creator
		stored.Creator = &id
	}
	s.migrations[e.Mint] = &stored
	return true, nil
}

// CountMigrations returns the number of recorded migration events.
func (s *Store) CountMigrations(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.migrations), nil
}
