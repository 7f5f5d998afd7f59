package storage

import (
	"context"

	"pokeball/internal/domain"
)

// Query narrows QueryFiltered results. Zero values mean "no constraint"
// except MaxLevel/MaxIV, which are ignored when zero.
type Query struct {
	MinLevel int
	MaxLevel int
	MinIV    float64
	MaxIV    float64

	// OrderBy is a column name, prefixed with '-' for descending.
	OrderBy string
	Limit   int

	// MinDuplicates keeps only names persisted at least this many times.
	MinDuplicates int

	// Filters are exact-match column constraints (name, category, nickname).
	Filters map[string]string
}

// TrashQuery selects low-value records eligible for mass release or sale.
type TrashQuery struct {
	Name        string // optional, restrict to one name
	IVThreshold float64
	MaxKeep     int // per-name keep count, candidates start beyond it
	Exclude     []string
}

// CaughtStore is the durable log of caught entities.
type CaughtStore interface {
	// InsertCaught adds a record. Inserting an existing external id is a
	// no-op, not an error.
	InsertCaught(ctx context.Context, r *domain.CaughtRecord) error

	// BulkInsert adds multiple records, skipping duplicates.
	BulkInsert(ctx context.Context, records []*domain.CaughtRecord) error

	// DeleteByIDs removes records by external id. Missing ids are ignored.
	DeleteByIDs(ctx context.Context, ids []int64) error

	// CountByName returns the persisted count for name, or the total count
	// when name is empty.
	CountByName(ctx context.Context, name string) (int, error)

	// QueryFiltered retrieves records matching q.
	QueryFiltered(ctx context.Context, q Query) ([]*domain.CaughtRecord, error)

	// Duplicates retrieves records of names persisted at least minCount times.
	Duplicates(ctx context.Context, minCount int) ([]*domain.CaughtRecord, error)

	// TrashCandidates retrieves common, unnamed, low-IV records beyond the
	// per-name keep count. External id 1 is reserved and never returned.
	TrashCandidates(ctx context.Context, q TrashQuery) ([]*domain.CaughtRecord, error)
}

// PriceSampleStore archives market price observations from trackers.
type PriceSampleStore interface {
	// InsertSamples adds a batch of samples.
	InsertSamples(ctx context.Context, samples []*domain.PriceSample) error

	// SamplesByName retrieves samples for a name, ordered by observation time ASC.
	SamplesByName(ctx context.Context, name string) ([]*domain.PriceSample, error)
}
