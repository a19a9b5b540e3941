package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

// AlertStore implements storage.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

// InsertAlert creates an alert. Returns false if one already exists for (mint, creator).
func (s *AlertStore) InsertAlert(ctx context.Context, a *domain.Alert) (bool, error) {
	if a == nil || a.Mint == "" {
		return false, fmt.Errorf("%w: alert without mint", storage.ErrInvalidInput)
	}
	if _, err := uuid.Parse(a.ID); err != nil {
		return false, fmt.Errorf("%w: alert id %q", storage.ErrInvalidInput, a.ID)
	}

	snapshot, err := json.Marshal(a.Snapshot)
	if err != nil {
		return false, fmt.Errorf("marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO alerts (id, mint, creator_id, triggered_at, read, source, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (mint, creator_id) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		a.ID,
		a.Mint,
		a.Creator.String(),
		a.TriggeredAt,
		a.Read,
		string(a.Source),
		snapshot,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return false, storage.ErrDuplicateKey
		}
		if isConstraintError(err) {
			return false, fmt.Errorf("%w: insert alert: %v", storage.ErrInvalidInput, err)
		}
		return false, fmt.Errorf("insert alert: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkAlertRead flips the read flag. Returns ErrNotFound for unknown ids.
func (s *AlertStore) MarkAlertRead(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return storage.ErrNotFound
	}

	tag, err := s.pool.Exec(ctx, `UPDATE alerts SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListAlerts returns alerts joined with coin and creator details, newest first.
func (s *AlertStore) ListAlerts(ctx context.Context, limit int, unreadOnly bool) ([]*domain.AlertView, error) {
	query := `
		SELECT id::text, mint, creator_id, triggered_at, read, source, snapshot,
		       coin_symbol, coin_name, coin_image, display_name, profile_url
		FROM alert_details
		WHERE NOT $2::boolean OR NOT read
		ORDER BY triggered_at DESC, id
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limitArg(limit), unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var views []*domain.AlertView
	for rows.Next() {
		var v domain.AlertView
		var creatorID, source string
		var snapshot []byte

		err := rows.Scan(
			&v.ID,
			&v.Mint,
			&creatorID,
			&v.TriggeredAt,
			&v.Read,
			&source,
			&snapshot,
			&v.CoinSymbol,
			&v.CoinName,
			&v.CoinImage,
			&v.DisplayName,
			&v.ProfileURL,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}

		id, err := domain.ParseIdentity(creatorID)
		if err != nil {
			return nil, fmt.Errorf("parse alert creator: %w", err)
		}
		v.Creator = id
		v.Source = domain.AlertSource(source)
		if err := json.Unmarshal(snapshot, &v.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshal alert snapshot: %w", err)
		}
		views = append(views, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}
	return views, nil
}
