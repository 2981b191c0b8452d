package clickhouse

import (
	"context"
	"fmt"
	"time"

	"price-registry/internal/domain"
	"price-registry/internal/observability"
	"price-registry/internal/storage"
)

// PriceHistoryStore implements storage.PriceHistoryStore using ClickHouse.
type PriceHistoryStore struct {
	conn *Conn
}

// NewPriceHistoryStore creates a new PriceHistoryStore.
func NewPriceHistoryStore(conn *Conn) *PriceHistoryStore {
	return &PriceHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// InsertBulk appends points in one batch. Duplicate rows are allowed:
// history is a log, not a keyed table.
func (s *PriceHistoryStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) (err error) {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if p == nil || p.Asset == "" {
			return storage.ErrInvalidInput
		}
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_price_history", time.Since(start).Seconds(), err)
	}()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_history (
			asset, kind, reporter, timestamp, price, recorded_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.Asset, string(p.Kind), p.Reporter,
			p.Timestamp, p.Price, time.UnixMilli(p.RecordedAt).UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves points for an asset within [start, end] (inclusive).
func (s *PriceHistoryStore) GetByTimeRange(ctx context.Context, asset string, start, end uint64) ([]*domain.PricePoint, error) {
	query := `
		SELECT asset, kind, reporter, timestamp, price, recorded_at
		FROM price_history
		WHERE asset = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, recorded_at ASC
	`

	rows, err := s.conn.Query(ctx, query, asset, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

func scanPricePoints(rows chRows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		var kind string
		var recordedAt time.Time

		if err := rows.Scan(&p.Asset, &kind, &p.Reporter, &p.Timestamp, &p.Price, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan price history row: %w", err)
		}

		p.Kind = domain.PriceKind(kind)
		p.RecordedAt = recordedAt.UnixMilli()
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price history rows: %w", err)
	}
	return points, nil
}
