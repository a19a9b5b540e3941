package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

// EventSink implements storage.EventSink using ClickHouse.
// Tables are ReplacingMergeTree so replays collapse on merge.
type EventSink struct {
	conn *Conn
}

// NewEventSink creates a new EventSink.
func NewEventSink(conn *Conn) *EventSink {
	return &EventSink{conn: conn}
}

// Compile-time interface check.
var _ storage.EventSink = (*EventSink)(nil)

// RecordAlert appends an alert event.
func (s *EventSink) RecordAlert(ctx context.Context, a *domain.Alert) error {
	query := `
		INSERT INTO alert_events (
			alert_id, mint, creator_id, source, total_coins, migration_count, success_rate, triggered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		a.ID,
		a.Mint,
		a.Creator.String(),
		string(a.Source),
		uint32(a.Snapshot.TotalCoins),
		uint32(a.Snapshot.MigrationCount),
		a.Snapshot.SuccessRate,
		time.UnixMilli(a.TriggeredAt).UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert alert event: %w", err)
	}
	return nil
}

// RecordMigration appends a migration event.
func (s *EventSink) RecordMigration(ctx context.Context, e *domain.MigrationEvent) error {
	query := `
		INSERT INTO migration_events (mint, creator_id, migrated_at, detected_at)
		VALUES (?, ?, ?, ?)
	`

	creatorID := ""
	if e.Creator != nil {
		creatorID = e.Creator.String()
	}

	err := s.conn.Exec(ctx, query,
		e.Mint,
		creatorID,
		time.UnixMilli(e.MigratedAt).UTC(),
		time.UnixMilli(e.DetectedAt).UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert migration event: %w", err)
	}
	return nil
}

// AlertCountsBySource returns how many alerts each ingestion path raised.
func (s *EventSink) AlertCountsBySource(ctx context.Context) (map[domain.AlertSource]uint64, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT source, count() FROM alert_events FINAL GROUP BY source
	`)
	if err != nil {
		return nil, fmt.Errorf("query alert counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.AlertSource]uint64)
	for rows.Next() {
		var source string
		var n uint64
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("scan alert count: %w", err)
		}
		counts[domain.AlertSource(source)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert counts: %w", err)
	}
	return counts, nil
}
