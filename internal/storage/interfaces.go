package storage

import (
	"context"

	"github.com/Selopol/padre-pump-backend/internal/domain"
)

// MaxBatchMints bounds CoinsByMints lookups.
const MaxBatchMints = 100

// UpsertResult describes what a coin upsert changed.
type UpsertResult struct {
	Inserted    bool // row did not exist before
	WasMigrated bool // stored migration flag before the upsert
	IsMigrated  bool // stored migration flag after the upsert
}

// NewlyMigrated reports whether this upsert flipped the migration flag.
func (r UpsertResult) NewlyMigrated() bool {
	return r.IsMigrated && !r.WasMigrated
}

// BulkResult summarises a transactional batch upsert.
type BulkResult struct {
	Inserted      int
	Updated       int
	NewlyMigrated []string // mints whose flag flipped in this batch
}

// CreatorStore manages creators.
// Stats are only written through UpdateCreatorStats.
type CreatorStore interface {
	// EnsureCreator inserts a zero-valued creator if absent.
	// Display fields are filled when the stored value is empty.
	EnsureCreator(ctx context.Context, c *domain.Creator) error

	// EnsureCreators applies EnsureCreator to every creator in one transaction.
	EnsureCreators(ctx context.Context, creators []*domain.Creator) error

	// GetCreator returns ErrNotFound if the creator does not exist.
	GetCreator(ctx context.Context, id domain.CreatorIdentity) (*domain.Creator, error)

	// UpdateCreatorStats overwrites aggregates in a single statement.
	// Returns ErrNotFound if the creator does not exist.
	UpdateCreatorStats(ctx context.Context, id domain.CreatorIdentity, stats domain.CreatorStats) error

	// ListMigratorWallets returns launch wallets of creators with at least one migration.
	ListMigratorWallets(ctx context.Context) ([]domain.TrackedWallet, error)
}

// CoinStore manages coins keyed by mint.
type CoinStore interface {
	// UpsertCoin inserts or refreshes a coin. Immutable fields keep their first value,
	// the migration flag only moves from false to true and MigratedAt is set once.
	UpsertCoin(ctx context.Context, c *domain.Coin) (UpsertResult, error)

	// UpsertCoins applies UpsertCoin to every coin in one transaction.
	UpsertCoins(ctx context.Context, coins []*domain.Coin) (BulkResult, error)

	// CoinExists reports whether a coin with this mint is stored.
	CoinExists(ctx context.Context, mint string) (bool, error)

	// GetCoin returns ErrNotFound if the coin does not exist.
	GetCoin(ctx context.Context, mint string) (*domain.Coin, error)

	// CoinsByCreator returns all coins attributed to the creator, newest first.
	CoinsByCreator(ctx context.Context, id domain.CreatorIdentity) ([]*domain.Coin, error)

	// ClearAlertPending marks the coin's alert decision as settled.
	// AlertPending is only written on insert; updates never set it again.
	// Returns ErrNotFound if the coin does not exist.
	ClearAlertPending(ctx context.Context, mint string) error
}

// MigrationStore manages append-only migration events.
type MigrationStore interface {
	// RecordMigration appends an event. Returns false if the mint was already recorded.
	RecordMigration(ctx context.Context, e *domain.MigrationEvent) (bool, error)

	// CountMigrations returns the number of recorded migration events.
	CountMigrations(ctx context.Context) (int, error)
}

// AlertStore manages alerts.
type AlertStore interface {
	// InsertAlert creates an alert. Returns false if one already exists for (mint, creator).
	InsertAlert(ctx context.Context, a *domain.Alert) (bool, error)

	// MarkAlertRead flips the read flag. Returns ErrNotFound for unknown ids.
	MarkAlertRead(ctx context.Context, id string) error

	// ListAlerts returns alerts newest first.
	ListAlerts(ctx context.Context, limit int, unreadOnly bool) ([]*domain.AlertView, error)
}

// CreatorSort selects the ordering of ListCreators.
type CreatorSort string

const (
	SortSuccessRate CreatorSort = "success_rate"
	SortMigrations  CreatorSort = "migrations"
	SortTotalCoins  CreatorSort = "total_coins"
	SortRecent      CreatorSort = "recent"
)

// IsValid checks if the sort is a known value.
func (s CreatorSort) IsValid() bool {
	switch s {
	case SortSuccessRate, SortMigrations, SortTotalCoins, SortRecent:
		return true
	}
	return false
}

// ListCreatorsParams controls creator listing.
type ListCreatorsParams struct {
	Limit  int
	Offset int
	Sort   CreatorSort
}

// Overview is the dataset summary served by the stats endpoint.
type Overview struct {
	Creators         int     `json:"creators"`
	CreatorsMigrated int     `json:"creators_with_migrations"`
	Coins            int     `json:"coins"`
	MigratedCoins    int     `json:"migrated_coins"`
	Migrations       int     `json:"migrations"`
	Alerts           int     `json:"alerts"`
	UnreadAlerts     int     `json:"unread_alerts"`
	MigrationRate    float64 `json:"migration_rate"`
}

// QueryStore provides read-only projections for the API.
type QueryStore interface {
	Ping(ctx context.Context) error
	Overview(ctx context.Context) (*Overview, error)
	ListCreators(ctx context.Context, p ListCreatorsParams) ([]*domain.Creator, error)
	RecentCoins(ctx context.Context, limit int) ([]*domain.Coin, error)
	// CoinsByMints returns ErrInvalidInput for more than MaxBatchMints mints.
	CoinsByMints(ctx context.Context, mints []string) ([]*domain.Coin, error)
	SearchCreators(ctx context.Context, q string, limit int) ([]*domain.Creator, error)
	SearchCoins(ctx context.Context, q string, limit int) ([]*domain.Coin, error)
}

// Store is the full statistics store.
type Store interface {
	CreatorStore
	CoinStore
	MigrationStore
	AlertStore
	QueryStore
	Close()
}

// EventSink receives append-only analytics events. Implementations must not block ingestion.
type EventSink interface {
	RecordAlert(ctx context.Context, a *domain.Alert) error
	RecordMigration(ctx context.Context, e *domain.MigrationEvent) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordAlert(context.Context, *domain.Alert) error              { return nil }
func (NopSink) RecordMigration(context.Context, *domain.MigrationEvent) error { return nil }
