package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

// CoinStore implements storage.CoinStore using PostgreSQL.
type CoinStore struct {
	pool *Pool
}

// NewCoinStore creates a new CoinStore.
func NewCoinStore(pool *Pool) *CoinStore {
	return &CoinStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CoinStore = (*CoinStore)(nil)

const coinColumns = `
	mint, symbol, name, description, image_uri, metadata_uri, twitter, telegram, website,
	creator_wallet, creator_id, bonding_curve, created_at, is_migrated, migrated_at,
	market_cap_usd, raw, alert_pending, first_seen_at, updated_at
`

// upsertCoinQuery keeps mint, created_at, first_seen_at and the first non-null creator,
// only ever flips is_migrated to true and sets migrated_at once.
// alert_pending is written on insert only.
const upsertCoinQuery = `
	WITH prev AS (
		SELECT is_migrated FROM coins WHERE mint = $1
	)
	INSERT INTO coins (
		mint, symbol, name, description, image_uri, metadata_uri, twitter, telegram, website,
		creator_wallet, creator_id, bonding_curve, created_at, is_migrated, migrated_at,
		market_cap_usd, raw, alert_pending, first_seen_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $19, $18, $18)
	ON CONFLICT (mint) DO UPDATE SET
		symbol         = COALESCE(NULLIF(EXCLUDED.symbol, ''), coins.symbol),
		name           = COALESCE(NULLIF(EXCLUDED.name, ''), coins.name),
		description    = COALESCE(NULLIF(EXCLUDED.description, ''), coins.description),
		image_uri      = COALESCE(NULLIF(EXCLUDED.image_uri, ''), coins.image_uri),
		metadata_uri   = COALESCE(NULLIF(EXCLUDED.metadata_uri, ''), coins.metadata_uri),
		twitter        = COALESCE(NULLIF(EXCLUDED.twitter, ''), coins.twitter),
		telegram       = COALESCE(NULLIF(EXCLUDED.telegram, ''), coins.telegram),
		website        = COALESCE(NULLIF(EXCLUDED.website, ''), coins.website),
		creator_wallet = COALESCE(NULLIF(EXCLUDED.creator_wallet, ''), coins.creator_wallet),
		creator_id     = COALESCE(coins.creator_id, EXCLUDED.creator_id),
		bonding_curve  = COALESCE(NULLIF(EXCLUDED.bonding_curve, ''), coins.bonding_curve),
		created_at     = CASE WHEN coins.created_at = 0 THEN EXCLUDED.created_at ELSE coins.created_at END,
		is_migrated    = coins.is_migrated OR EXCLUDED.is_migrated,
		migrated_at    = COALESCE(coins.migrated_at, EXCLUDED.migrated_at),
		market_cap_usd = CASE WHEN EXCLUDED.market_cap_usd > 0 THEN EXCLUDED.market_cap_usd ELSE coins.market_cap_usd END,
		raw            = COALESCE(EXCLUDED.raw, coins.raw),
		updated_at     = EXCLUDED.updated_at
	RETURNING (xmax = 0), COALESCE((SELECT is_migrated FROM prev), FALSE), is_migrated
`

// UpsertCoin inserts or refreshes a coin keyed by mint.
func (s *CoinStore) UpsertCoin(ctx context.Context, c *domain.Coin) (storage.UpsertResult, error) {
	return upsertCoin(ctx, s.pool, c, time.Now().UnixMilli())
}

// UpsertCoins upserts all coins in one transaction.
func (s *CoinStore) UpsertCoins(ctx context.Context, coins []*domain.Coin) (storage.BulkResult, error) {
	var result storage.BulkResult
	if len(coins) == 0 {
		return result, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UnixMilli()
	for _, c := range coins {
		res, err := upsertCoin(ctx, tx, c, now)
		if err != nil {
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

	if err := tx.Commit(ctx); err != nil {
		return storage.BulkResult{}, fmt.Errorf("commit transaction: %w", err)
	}
	return result, nil
}

func upsertCoin(ctx context.Context, q querier, c *domain.Coin, now int64) (storage.UpsertResult, error) {
	if err := storage.PrepareCoin(c, now); err != nil {
		return storage.UpsertResult{}, err
	}

	var raw []byte
	if len(c.Raw) > 0 {
		raw = c.Raw
	}

	var result storage.UpsertResult
	err := q.QueryRow(ctx, upsertCoinQuery,
		c.Mint,
		c.Symbol,
		c.Name,
		c.Description,
		c.ImageURI,
		c.MetadataURI,
		c.Twitter,
		c.Telegram,
		c.Website,
		c.CreatorWallet,
		creatorIDArg(c.Creator),
		c.BondingCurve,
		c.CreatedAt,
		c.IsMigrated,
		c.MigratedAt,
		c.MarketCapUSD,
		raw,
		now,
		c.AlertPending,
	).Scan(&result.Inserted, &result.WasMigrated, &result.IsMigrated)
	if err != nil {
		if isConstraintError(err) {
			return storage.UpsertResult{}, fmt.Errorf("%w: upsert coin %s: %v", storage.ErrInvalidInput, c.Mint, err)
		}
		return storage.UpsertResult{}, fmt.Errorf("upsert coin %s: %w", c.Mint, err)
	}

	return result, nil
}

// ClearAlertPending marks the coin's alert decision as settled.
func (s *CoinStore) ClearAlertPending(ctx context.Context, mint string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE coins SET alert_pending = FALSE WHERE mint = $1`, mint)
	if err != nil {
		return fmt.Errorf("clear alert pending %s: %w", mint, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CoinExists reports whether the mint is stored.
func (s *CoinStore) CoinExists(ctx context.Context, mint string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM coins WHERE mint = $1)`, mint).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("coin exists: %w", err)
	}
	return exists, nil
}

// GetCoin returns ErrNotFound if the coin does not exist.
func (s *CoinStore) GetCoin(ctx context.Context, mint string) (*domain.Coin, error) {
	query := `SELECT ` + coinColumns + ` FROM coins WHERE mint = $1`

	c, err := scanCoin(s.pool.QueryRow(ctx, query, mint))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get coin: %w", err)
	}
	return c, nil
}

// CoinsByCreator returns all coins attributed to the creator, newest first.
func (s *CoinStore) CoinsByCreator(ctx context.Context, id domain.CreatorIdentity) ([]*domain.Coin, error) {
	query := `
		SELECT ` + coinColumns + `
		FROM coins
		WHERE creator_id = $1
		ORDER BY created_at DESC, mint ASC
	`

	rows, err := s.pool.Query(ctx, query, id.String())
	if err != nil {
		return nil, fmt.Errorf("get coins by creator: %w", err)
	}
	defer rows.Close()

	return scanCoins(rows)
}

// scanCoin scans a single row selected with coinColumns.
func scanCoin(row pgx.Row) (*domain.Coin, error) {
	var c domain.Coin
	var creatorID *string
	var raw []byte

	err := row.Scan(
		&c.Mint,
		&c.Symbol,
		&c.Name,
		&c.Description,
		&c.ImageURI,
		&c.MetadataURI,
		&c.Twitter,
		&c.Telegram,
		&c.Website,
		&c.CreatorWallet,
		&creatorID,
		&c.BondingCurve,
		&c.CreatedAt,
		&c.IsMigrated,
		&c.MigratedAt,
		&c.MarketCapUSD,
		&raw,
		&c.AlertPending,
		&c.FirstSeenAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	creator, err := parseCreatorID(creatorID)
	if err != nil {
		return nil, err
	}
	c.Creator = creator
	c.Raw = raw
	return &c, nil
}

// scanCoins scans multiple rows into a slice of Coin.
func scanCoins(rows pgx.Rows) ([]*domain.Coin, error) {
	var coins []*domain.Coin
	for rows.Next() {
		c, err := scanCoin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coin row: %w", err)
		}
		coins = append(coins, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coin rows: %w", err)
	}
	return coins, nil
}
