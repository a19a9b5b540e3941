package domain

import "encoding/json"

// Coin represents a single token launch.
// Corresponds to coins table in PostgreSQL.
type Coin struct {
	Mint          string // PK, immutable
	Symbol        string
	Name          string
	Description   string
	ImageURI      string
	MetadataURI   string
	Twitter       string
	Telegram      string
	Website       string
	CreatorWallet string           // wallet that launched the coin
	Creator       *CreatorIdentity // nil when identity resolution failed
	BondingCurve  string
	CreatedAt     int64  // ms
	IsMigrated    bool   // monotonic: never reset once true
	MigratedAt    *int64 // ms, set once at first observed migration
	MarketCapUSD  float64
	Raw           json.RawMessage // verbatim upstream record
	AlertPending  bool            // first observation has not settled its alert decision yet
	FirstSeenAt   int64           // ms
	UpdatedAt     int64           // ms
}

// CreatorID returns the persisted creator key or "" when unattributed.
func (c *Coin) CreatorID() string {
	if c.Creator == nil {
		return ""
	}
	return c.Creator.String()
}

// MigrationEvent is an append-only record of a coin leaving its bonding curve.
// Corresponds to migrations table in PostgreSQL.
type MigrationEvent struct {
	Mint       string
	Creator    *CreatorIdentity
	MigratedAt int64 // ms
	DetectedAt int64 // ms
}
