package domain

// AlertSnapshot captures the creator's statistics when the alert fired.
type AlertSnapshot struct {
	TotalCoins         int     `json:"total_coins"`
	MigrationCount     int     `json:"migration_count"`
	SuccessRate        float64 `json:"success_rate"`
	LastMigratedSymbol *string `json:"last_migrated_symbol,omitempty"`
	LastMigratedAt     *int64  `json:"last_migrated_at,omitempty"`
}

// SnapshotOf builds an AlertSnapshot from current creator statistics.
func SnapshotOf(s CreatorStats) AlertSnapshot {
	snap := AlertSnapshot{
		TotalCoins:     s.TotalCoins,
		MigrationCount: s.MigratedCoins,
		SuccessRate:    s.SuccessRate,
	}
	if s.LastMigration != nil {
		symbol := s.LastMigration.Symbol
		at := s.LastMigration.At
		snap.LastMigratedSymbol = &symbol
		snap.LastMigratedAt = &at
	}
	return snap
}

// Alert notifies that a creator with migration history launched a new coin.
// Unique on (mint, creator). Only Read is mutable.
type Alert struct {
	ID          string
	Mint        string
	Creator     CreatorIdentity
	TriggeredAt int64 // ms
	Read        bool
	Source      AlertSource
	Snapshot    AlertSnapshot
}

// AlertView is an alert joined with coin and creator details.
type AlertView struct {
	Alert
	CoinSymbol  string
	CoinName    string
	CoinImage   string
	DisplayName *string
	ProfileURL  *string
}
