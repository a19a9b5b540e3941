package domain

// TokenMetadata represents the Metaplex metadata account of a mint.
type TokenMetadata struct {
	Mint      string  // token mint address
	PDA       string  // metadata account address
	Name      *string // token name (nullable)
	Symbol    *string // token symbol (nullable)
	URI       *string // off-chain metadata document URI (nullable)
	FetchedAt int64   // when metadata was fetched (ms)
}
