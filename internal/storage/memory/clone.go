package memory

import "github.com/Selopol/padre-pump-backend/internal/domain"

// Copies keep callers from mutating stored records.

func cloneCoin(c *domain.Coin) *domain.Coin {
	cp := *c
	if c.Creator != nil {
		id := *c.Creator
		cp.Creator = &id
	}
	cp.MigratedAt = copyInt64(c.MigratedAt)
	if c.Raw != nil {
		cp.Raw = append([]byte(nil), c.Raw...)
	}
	return &cp
}

func cloneCreator(c *domain.Creator) *domain.Creator {
	cp := *c
	cp.Wallet = copyString(c.Wallet)
	cp.ExternalID = copyString(c.ExternalID)
	cp.DisplayName = copyString(c.DisplayName)
	cp.ProfileURL = copyString(c.ProfileURL)
	cp.Stats = cloneStats(c.Stats)
	return &cp
}

func cloneStats(s domain.CreatorStats) domain.CreatorStats {
	cp := s
	if s.LastCoin != nil {
		ref := *s.LastCoin
		cp.LastCoin = &ref
	}
	if s.LastMigration != nil {
		ref := *s.LastMigration
		cp.LastMigration = &ref
	}
	return cp
}

func cloneSnapshot(s domain.AlertSnapshot) domain.AlertSnapshot {
	cp := s
	cp.LastMigratedSymbol = copyString(s.LastMigratedSymbol)
	cp.LastMigratedAt = copyInt64(s.LastMigratedAt)
	return cp
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
