package storage

import (
	"fmt"

	"github.com/Selopol/padre-pump-backend/internal/domain"
)

// PrepareCoin validates a coin before it is written and fills derived fields.
// A migrated coin without a migration time gets now.
func PrepareCoin(c *domain.Coin, now int64) error {
	if c == nil || c.Mint == "" {
		return fmt.Errorf("%w: coin without mint", ErrInvalidInput)
	}
	if c.Creator != nil {
		if err := c.Creator.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	if c.IsMigrated && c.MigratedAt == nil {
		at := now
		c.MigratedAt = &at
	}
	if !c.IsMigrated {
		c.MigratedAt = nil
	}
	return nil
}

