package postgres

import (
	"context"
	"fmt"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

// MigrationStore implements storage.MigrationStore using PostgreSQL.
type MigrationStore struct {
	pool *Pool
}

// NewMigrationStore creates a new MigrationStore.
func NewMigrationStore(pool *Pool) *MigrationStore {
	return &MigrationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MigrationStore = (*MigrationStore)(nil)

// RecordMigration appends an event. Returns false if the mint was already recorded.
func (s *MigrationStore) RecordMigration(ctx context.Context, e *domain.MigrationEvent) (bool, error) {
	if e == nil || e.Mint == "" {
		return false, fmt.Errorf("%w: migration without mint", storage.ErrInvalidInput)
	}

	query := `
		INSERT INTO migrations (mint, creator_id, migrated_at, detected_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (mint) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query, e.Mint, creatorIDArg(e.Creator), e.MigratedAt, e.DetectedAt)
	if err != nil {
		if isConstraintError(err) {
			return false, fmt.Errorf("%w: record migration %s: %v", storage.ErrInvalidInput, e.Mint, err)
		}
		return false, fmt.Errorf("record migration: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CountMigrations returns the number of recorded migration events.
func (s *MigrationStore) CountMigrations(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM migrations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count migrations: %w", err)
	}
	return n, nil
}
