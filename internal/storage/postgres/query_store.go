package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

// QueryStore implements storage.QueryStore using PostgreSQL.
type QueryStore struct {
	pool *Pool
}

// NewQueryStore creates a new QueryStore.
func NewQueryStore(pool *Pool) *QueryStore {
	return &QueryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.QueryStore = (*QueryStore)(nil)

var creatorOrder = map[storage.CreatorSort]string{
	storage.SortSuccessRate: "success_rate DESC, migrated_coins DESC, creator_id ASC",
	storage.SortMigrations:  "migrated_coins DESC, success_rate DESC, creator_id ASC",
	storage.SortTotalCoins:  "total_coins DESC, creator_id ASC",
	storage.SortRecent:      "updated_at DESC, creator_id ASC",
}

// Ping verifies the database is reachable.
func (s *QueryStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Overview returns dataset counters.
func (s *QueryStore) Overview(ctx context.Context) (*storage.Overview, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM creators),
			(SELECT COUNT(*) FROM creators WHERE migrated_coins > 0),
			(SELECT COUNT(*) FROM coins),
			(SELECT COUNT(*) FROM coins WHERE is_migrated),
			(SELECT COUNT(*) FROM migrations),
			(SELECT COUNT(*) FROM alerts),
			(SELECT COUNT(*) FROM alerts WHERE NOT read)
	`

	var o storage.Overview
	err := s.pool.QueryRow(ctx, query).Scan(
		&o.Creators,
		&o.CreatorsMigrated,
		&o.Coins,
		&o.MigratedCoins,
		&o.Migrations,
		&o.Alerts,
		&o.UnreadAlerts,
	)
	if err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}
	o.MigrationRate = domain.SuccessRate(o.MigratedCoins, o.Coins)
	return &o, nil
}

// ListCreators returns a page of creators in the requested order.
func (s *QueryStore) ListCreators(ctx context.Context, p storage.ListCreatorsParams) ([]*domain.Creator, error) {
	if p.Sort == "" {
		p.Sort = storage.SortSuccessRate
	}
	order, ok := creatorOrder[p.Sort]
	if !ok {
		return nil, fmt.Errorf("%w: sort %q", storage.ErrInvalidInput, p.Sort)
	}

	query := `SELECT ` + creatorColumns + ` FROM creators ORDER BY ` + order + ` LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, limitArg(p.Limit), max(p.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("list creators: %w", err)
	}
	defer rows.Close()

	return scanCreators(rows)
}

// RecentCoins returns the newest coins by creation time.
func (s *QueryStore) RecentCoins(ctx context.Context, limit int) ([]*domain.Coin, error) {
	query := `SELECT ` + coinColumns + ` FROM coins ORDER BY created_at DESC, mint ASC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("recent coins: %w", err)
	}
	defer rows.Close()

	return scanCoins(rows)
}

// CoinsByMints returns the stored coins among mints, in request order.
func (s *QueryStore) CoinsByMints(ctx context.Context, mints []string) ([]*domain.Coin, error) {
	if len(mints) > storage.MaxBatchMints {
		return nil, fmt.Errorf("%w: %d mints exceeds %d", storage.ErrInvalidInput, len(mints), storage.MaxBatchMints)
	}
	if len(mints) == 0 {
		return nil, nil
	}

	query := `SELECT ` + coinColumns + ` FROM coins WHERE mint = ANY($1)`

	rows, err := s.pool.Query(ctx, query, mints)
	if err != nil {
		return nil, fmt.Errorf("coins by mints: %w", err)
	}
	defer rows.Close()

	found, err := scanCoins(rows)
	if err != nil {
		return nil, err
	}

	byMint := make(map[string]*domain.Coin, len(found))
	for _, c := range found {
		byMint[c.Mint] = c
	}
	result := make([]*domain.Coin, 0, len(found))
	for _, mint := range mints {
		if c, ok := byMint[mint]; ok {
			result = append(result, c)
			delete(byMint, mint)
		}
	}
	return result, nil
}

// SearchCreators matches q against identity key, display name and wallet.
func (s *QueryStore) SearchCreators(ctx context.Context, q string, limit int) ([]*domain.Creator, error) {
	query := `
		SELECT ` + creatorColumns + `
		FROM creators
		WHERE identity_key ILIKE $1 OR display_name ILIKE $1 OR wallet ILIKE $1
		ORDER BY migrated_coins DESC, success_rate DESC, creator_id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, containsPattern(q), limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("search creators: %w", err)
	}
	defer rows.Close()

	return scanCreators(rows)
}

// SearchCoins matches q against mint prefix, symbol and name.
func (s *QueryStore) SearchCoins(ctx context.Context, q string, limit int) ([]*domain.Coin, error) {
	query := `
		SELECT ` + coinColumns + `
		FROM coins
		WHERE mint ILIKE $1 OR symbol ILIKE $2 OR name ILIKE $2
		ORDER BY created_at DESC, mint ASC
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, query, prefixPattern(q), containsPattern(q), limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("search coins: %w", err)
	}
	defer rows.Close()

	return scanCoins(rows)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(q)) + "%"
}

func prefixPattern(q string) string {
	return likeEscaper.Replace(strings.TrimSpace(q)) + "%"
}

// limitArg maps non-positive limits to NULL, which Postgres treats as no limit.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
