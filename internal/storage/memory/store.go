package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

// Store is an in-memory implementation of storage.Store.
// A single lock guards all tables so multi-table operations stay consistent.
type Store struct {
	mu         sync.RWMutex
	creators   map[string]*domain.Creator        // keyed by identity string
	coins      map[string]*domain.Coin           // keyed by mint
	migrations map[string]*domain.MigrationEvent // keyed by mint
	alerts     map[string]*domain.Alert          // keyed by alert id
	alertKeys  map[string]string                 // mint|creator -> alert id
	now        func() time.Time
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		creators:   make(map[string]*domain.Creator),
		coins:      make(map[string]*domain.Coin),
		migrations: make(map[string]*domain.MigrationEvent),
		alerts:     make(map[string]*domain.Alert),
		alertKeys:  make(map[string]string),
		now:        time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() {}

func (s *Store) nowMillis() int64 {
	return s.now().UnixMilli()
}

// Verify interface compliance at compile time.
var _ storage.Store = (*Store)(nil)
