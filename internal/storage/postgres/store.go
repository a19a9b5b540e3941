package postgres

import (
	"fmt"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

// Store composes the per-table stores into storage.Store.
type Store struct {
	*CreatorStore
	*CoinStore
	*MigrationStore
	*AlertStore
	*QueryStore
	pool *Pool
}

// NewStore creates a Store backed by pool. Close releases the pool.
func NewStore(pool *Pool) *Store {
	return &Store{
		CreatorStore:   NewCreatorStore(pool),
		CoinStore:      NewCoinStore(pool),
		MigrationStore: NewMigrationStore(pool),
		AlertStore:     NewAlertStore(pool),
		QueryStore:     NewQueryStore(pool),
		pool:           pool,
	}
}

// Close closes the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// parseCreatorID converts a nullable creators.creator_id into an identity.
func parseCreatorID(raw *string) (*domain.CreatorIdentity, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := domain.ParseIdentity(*raw)
	if err != nil {
		return nil, fmt.Errorf("parse creator_id %q: %w", *raw, err)
	}
	return &id, nil
}

func creatorIDArg(id *domain.CreatorIdentity) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
