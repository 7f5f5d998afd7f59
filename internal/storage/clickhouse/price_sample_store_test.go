package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pokeball/internal/domain"
	"pokeball/internal/storage"
)

func TestPriceSampleStore_InsertAndQuery(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceSampleStore(conn)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	samples := []*domain.PriceSample{
		{Name: "Arceus", MarketID: "m2", Price: 900, Shiny: true, ObservedAt: base.Add(time.Minute)},
		{Name: "Arceus", MarketID: "m1", Price: 800, ObservedAt: base},
		{Name: "Eevee", MarketID: "m3", Price: 50, ObservedAt: base},
	}
	require.NoError(t, store.InsertSamples(ctx, samples))

	got, err := store.SamplesByName(ctx, "arceus")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by observation time ASC
	require.Equal(t, "m1", got[0].MarketID)
	require.Equal(t, int64(800), got[0].Price)
	require.Equal(t, "m2", got[1].MarketID)
	require.True(t, got[1].Shiny)
}

func TestPriceSampleStore_InvalidInput(t *testing.T) {
	store := NewPriceSampleStore(nil)
	ctx := context.Background()

	err := store.InsertSamples(ctx, []*domain.PriceSample{{Name: "", MarketID: "m1"}})
	require.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestPriceSampleStore_EmptyBatch(t *testing.T) {
	store := NewPriceSampleStore(nil)
	require.NoError(t, store.InsertSamples(context.Background(), nil))
}
