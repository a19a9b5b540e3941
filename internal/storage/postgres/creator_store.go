package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

// CreatorStore implements storage.CreatorStore using PostgreSQL.
type CreatorStore struct {
	pool *Pool
}

// NewCreatorStore creates a new CreatorStore.
func NewCreatorStore(pool *Pool) *CreatorStore {
	return &CreatorStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CreatorStore = (*CreatorStore)(nil)

const creatorColumns = `
	identity_kind, identity_key, wallet, external_id, display_name, profile_url,
	total_coins, migrated_coins, success_rate,
	last_coin_mint, last_coin_symbol, last_coin_at,
	last_migration_mint, last_migration_symbol, last_migration_at,
	first_seen_at, updated_at
`

const ensureCreatorQuery = `
	INSERT INTO creators (
		creator_id, identity_kind, identity_key, wallet, external_id, display_name, profile_url,
		first_seen_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	ON CONFLICT (creator_id) DO UPDATE SET
		wallet       = COALESCE(NULLIF(creators.wallet, ''), EXCLUDED.wallet),
		external_id  = COALESCE(NULLIF(creators.external_id, ''), EXCLUDED.external_id),
		display_name = COALESCE(NULLIF(creators.display_name, ''), EXCLUDED.display_name),
		profile_url  = COALESCE(NULLIF(creators.profile_url, ''), EXCLUDED.profile_url)
`

// EnsureCreator inserts a zero-valued creator if absent.
func (s *CreatorStore) EnsureCreator(ctx context.Context, c *domain.Creator) error {
	return ensureCreator(ctx, s.pool, c, time.Now().UnixMilli())
}

// EnsureCreators inserts all absent creators in one transaction.
func (s *CreatorStore) EnsureCreators(ctx context.Context, creators []*domain.Creator) error {
	if len(creators) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UnixMilli()
	for _, c := range creators {
		if err := ensureCreator(ctx, tx, c, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func ensureCreator(ctx context.Context, q querier, c *domain.Creator, now int64) error {
	if c == nil {
		return fmt.Errorf("%w: nil creator", storage.ErrInvalidInput)
	}
	if err := c.Identity.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	_, err := q.Exec(ctx, ensureCreatorQuery,
		c.Identity.String(),
		string(c.Identity.Kind),
		c.Identity.Key,
		c.Wallet,
		c.ExternalID,
		c.DisplayName,
		c.ProfileURL,
		now,
	)
	if err != nil {
		return fmt.Errorf("ensure creator %s: %w", c.Identity, err)
	}
	return nil
}

// GetCreator returns ErrNotFound if the creator does not exist.
func (s *CreatorStore) GetCreator(ctx context.Context, id domain.CreatorIdentity) (*domain.Creator, error) {
	query := `SELECT ` + creatorColumns + ` FROM creators WHERE creator_id = $1`

	c, err := scanCreator(s.pool.QueryRow(ctx, query, id.String()))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get creator: %w", err)
	}
	return c, nil
}

// UpdateCreatorStats overwrites aggregates in a single statement.
func (s *CreatorStore) UpdateCreatorStats(ctx context.Context, id domain.CreatorIdentity, st domain.CreatorStats) error {
	if st.TotalCoins < 0 || st.MigratedCoins < 0 || st.MigratedCoins > st.TotalCoins {
		return fmt.Errorf("%w: migrated %d of %d", storage.ErrInvalidInput, st.MigratedCoins, st.TotalCoins)
	}

	query := `
		UPDATE creators SET
			total_coins = $2,
			migrated_coins = $3,
			success_rate = $4,
			last_coin_mint = $5,
			last_coin_symbol = $6,
			last_coin_at = $7,
			last_migration_mint = $8,
			last_migration_symbol = $9,
			last_migration_at = $10,
			updated_at = $11
		WHERE creator_id = $1
	`

	lastCoin := refArgs(st.LastCoin)
	lastMigration := refArgs(st.LastMigration)

	tag, err := s.pool.Exec(ctx, query,
		id.String(),
		st.TotalCoins,
		st.MigratedCoins,
		st.SuccessRate,
		lastCoin[0], lastCoin[1], lastCoin[2],
		lastMigration[0], lastMigration[1], lastMigration[2],
		time.Now().UnixMilli(),
	)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("update creator stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListMigratorWallets returns launch wallets of creators with at least one migration.
func (s *CreatorStore) ListMigratorWallets(ctx context.Context) ([]domain.TrackedWallet, error) {
	query := `
		SELECT DISTINCT ON (c.creator_wallet) c.creator_wallet, cr.identity_kind, cr.identity_key, cr.migrated_coins
		FROM coins c
		JOIN creators cr ON cr.creator_id = c.creator_id
		WHERE cr.migrated_coins > 0 AND c.creator_wallet <> ''
		ORDER BY c.creator_wallet
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list migrator wallets: %w", err)
	}
	defer rows.Close()

	var result []domain.TrackedWallet
	for rows.Next() {
		var w domain.TrackedWallet
		var kind string
		if err := rows.Scan(&w.Wallet, &kind, &w.Creator.Key, &w.Migrated); err != nil {
			return nil, fmt.Errorf("scan migrator wallet: %w", err)
		}
		w.Creator.Kind = domain.IdentityKind(kind)
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migrator wallets: %w", err)
	}
	return result, nil
}

func refArgs(ref *domain.CoinRef) [3]any {
	if ref == nil {
		return [3]any{nil, nil, nil}
	}
	return [3]any{ref.Mint, ref.Symbol, ref.At}
}

// scanCreator scans a single row selected with creatorColumns.
func scanCreator(row pgx.Row) (*domain.Creator, error) {
	var c domain.Creator
	var kind string
	var lastCoinMint, lastCoinSymbol, lastMigMint, lastMigSymbol *string
	var lastCoinAt, lastMigAt *int64

	err := row.Scan(
		&kind,
		&c.Identity.Key,
		&c.Wallet,
		&c.ExternalID,
		&c.DisplayName,
		&c.ProfileURL,
		&c.Stats.TotalCoins,
		&c.Stats.MigratedCoins,
		&c.Stats.SuccessRate,
		&lastCoinMint, &lastCoinSymbol, &lastCoinAt,
		&lastMigMint, &lastMigSymbol, &lastMigAt,
		&c.FirstSeenAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Identity.Kind = domain.IdentityKind(kind)
	c.Stats.LastCoin = buildRef(lastCoinMint, lastCoinSymbol, lastCoinAt)
	c.Stats.LastMigration = buildRef(lastMigMint, lastMigSymbol, lastMigAt)
	return &c, nil
}

// scanCreators scans multiple rows into a slice of Creator.
func scanCreators(rows pgx.Rows) ([]*domain.Creator, error) {
	var creators []*domain.Creator
	for rows.Next() {
		c, err := scanCreator(rows)
		if err != nil {
			return nil, fmt.Errorf("scan creator row: %w", err)
		}
		creators = append(creators, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate creator rows: %w", err)
	}
	return creators, nil
}

func buildRef(mint, symbol *string, at *int64) *domain.CoinRef {
	if mint == nil {
		return nil
	}
	ref := &domain.CoinRef{Mint: *mint}
	if symbol != nil {
		ref.Symbol = *symbol
	}
	if at != nil {
		ref.At = *at
	}
	return ref
}
