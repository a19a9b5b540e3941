package domain

import "github.com/shopspring/decimal"

// CoinRef points at a coin from a creator's statistics.
type CoinRef struct {
	Mint   string `json:"mint"`
	Symbol string `json:"symbol"`
	At     int64  `json:"at"` // creation or migration timestamp (ms)
}

// CreatorStats are the aggregates derived from the coins attributed to a creator.
// MigratedCoins never exceeds TotalCoins and SuccessRate is always derived from both.
type CreatorStats struct {
	TotalCoins    int      `json:"total_coins"`
	MigratedCoins int      `json:"migrated_coins"`
	SuccessRate   float64  `json:"success_rate"` // percent, 2 decimals
	LastCoin      *CoinRef `json:"last_coin,omitempty"`
	LastMigration *CoinRef `json:"last_migration,omitempty"`
}

// Creator represents a durable coin originator.
// Corresponds to creators table in PostgreSQL.
type Creator struct {
	Identity    CreatorIdentity
	Wallet      *string // last wallet seen launching for this identity (nullable)
	ExternalID  *string // social network numeric id (nullable)
	DisplayName *string // nullable
	ProfileURL  *string // nullable
	Stats       CreatorStats
	FirstSeenAt int64 // ms
	UpdatedAt   int64 // ms
}

// TrackedWallet is a wallet belonging to a creator with migration history.
type TrackedWallet struct {
	Wallet   string
	Creator  CreatorIdentity
	Migrated int
}

// SuccessRate returns migrated/total as a percentage rounded half-up to 2 decimals.
// It is 0 when total is 0.
func SuccessRate(migrated, total int) float64 {
	if total <= 0 {
		return 0
	}
	rate := decimal.NewFromInt(int64(migrated)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(total)), 2)
	f, _ := rate.Float64()
	return f
}
