package clickhouse

import (
	"context"
	"fmt"
	"time"

	"pokeball/internal/domain"
	"pokeball/internal/storage"
)

// PriceSampleStore implements storage.PriceSampleStore using ClickHouse.
// Samples are append-only observations; MergeTree does not enforce
// uniqueness and trackers dedupe by market id before inserting.
type PriceSampleStore struct {
	conn *Conn
}

// NewPriceSampleStore creates a new PriceSampleStore.
func NewPriceSampleStore(conn *Conn) *PriceSampleStore {
	return &PriceSampleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceSampleStore = (*PriceSampleStore)(nil)

// InsertSamples adds a batch of samples.
func (s *PriceSampleStore) InsertSamples(ctx context.Context, samples []*domain.PriceSample) error {
	if len(samples) == 0 {
		return nil
	}
	for _, p := range samples {
		if p == nil || p.Name == "" || p.MarketID == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_samples (
			name, market_id, price, shiny, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range samples {
		err = batch.Append(
			p.Name, p.MarketID, uint64(p.Price), p.Shiny, p.ObservedAt,
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

// SamplesByName retrieves samples for a name, ordered by observation time ASC.
func (s *PriceSampleStore) SamplesByName(ctx context.Context, name string) ([]*domain.PriceSample, error) {
	query := `
		SELECT name, market_id, price, shiny, observed_at
		FROM price_samples
		WHERE lowerUTF8(name) = lowerUTF8(?)
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("query samples by name: %w", err)
	}
	defer rows.Close()

	var samples []*domain.PriceSample
	for rows.Next() {
		var (
			p          domain.PriceSample
			price      uint64
			observedAt time.Time
		)
		if err := rows.Scan(&p.Name, &p.MarketID, &price, &p.Shiny, &observedAt); err != nil {
			return nil, fmt.Errorf("scan price sample row: %w", err)
		}
		p.Price = int64(price)
		p.ObservedAt = observedAt
		samples = append(samples, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price sample rows: %w", err)
	}

	return samples, nil
}
