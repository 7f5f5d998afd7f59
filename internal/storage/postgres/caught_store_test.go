package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pokeball/internal/domain"
	"pokeball/internal/storage"
)

func caughtRecord(id int64, name string, level int, iv float64, cat domain.Category) *domain.CaughtRecord {
	return &domain.CaughtRecord{
		CaughtOn:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Name:       name,
		ExternalID: id,
		Level:      level,
		IV:         iv,
		Category:   cat,
	}
}

func TestCaughtStore_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCaughtStore(pool)
	ctx := context.Background()

	t.Run("InsertIdempotent", func(t *testing.T) {
		r := caughtRecord(1001, "Pikachu", 23, 64.5, domain.CategoryCommon)
		require.NoError(t, store.InsertCaught(ctx, r))

		dup := caughtRecord(1001, "Pikachu", 99, 1.0, domain.CategoryShiny)
		require.NoError(t, store.InsertCaught(ctx, dup))

		count, err := store.CountByName(ctx, "pikachu")
		require.NoError(t, err)
		require.Equal(t, 1, count)

		got, err := store.QueryFiltered(ctx, storage.Query{Filters: map[string]string{"name": "Pikachu"}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, 23, got[0].Level)
	})

	t.Run("InvalidInput", func(t *testing.T) {
		require.ErrorIs(t, store.InsertCaught(ctx, nil), storage.ErrInvalidInput)
		require.ErrorIs(t, store.InsertCaught(ctx, &domain.CaughtRecord{Name: "Eevee"}), storage.ErrInvalidInput)
	})

	t.Run("BulkInsertQueryDelete", func(t *testing.T) {
		records := []*domain.CaughtRecord{
			caughtRecord(1, "Eevee", 10, 40, domain.CategoryCommon),
			caughtRecord(2, "Eevee", 30, 80, domain.CategoryCommon),
			caughtRecord(3, "Pidgey", 50, 60, domain.CategoryCommon),
			caughtRecord(4, "Mewtwo", 70, 91, domain.CategoryLegendary),
		}
		records[2].Nickname = ptr("Buddy")
		require.NoError(t, store.BulkInsert(ctx, records))

		got, err := store.QueryFiltered(ctx, storage.Query{MinLevel: 20, MaxLevel: 60, OrderBy: "level"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, int64(2), got[0].ExternalID)
		require.Equal(t, int64(3), got[1].ExternalID)
		require.NotNil(t, got[1].Nickname)
		require.Equal(t, "Buddy", *got[1].Nickname)

		got, err = store.QueryFiltered(ctx, storage.Query{OrderBy: "-iv", Limit: 2})
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, int64(4), got[0].ExternalID)
		require.Equal(t, int64(2), got[1].ExternalID)

		dups, err := store.Duplicates(ctx, 2)
		require.NoError(t, err)
		require.Len(t, dups, 2)

		_, err = store.QueryFiltered(ctx, storage.Query{OrderBy: "name; DROP TABLE caught_records"})
		require.ErrorIs(t, err, storage.ErrInvalidInput)

		require.NoError(t, store.DeleteByIDs(ctx, []int64{1, 2, 3, 4, 999}))
	})

	t.Run("TrashCandidates", func(t *testing.T) {
		records := []*domain.CaughtRecord{
			caughtRecord(1, "Rattata", 5, 10, domain.CategoryCommon), // reserved id
			caughtRecord(12, "Rattata", 6, 20, domain.CategoryCommon),
			caughtRecord(13, "Rattata", 7, 30, domain.CategoryCommon),
			caughtRecord(14, "Rattata", 8, 40, domain.CategoryCommon),
			caughtRecord(15, "Rattata", 9, 95, domain.CategoryCommon), // above threshold
			caughtRecord(16, "Mewtwo", 70, 10, domain.CategoryLegendary),
			caughtRecord(17, "Pidgey", 5, 15, domain.CategoryCommon),
		}
		records[6].Nickname = ptr("Keeper")
		require.NoError(t, store.BulkInsert(ctx, records))

		got, err := store.TrashCandidates(ctx, storage.TrashQuery{IVThreshold: 50, MaxKeep: 1})
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, int64(12), got[0].ExternalID)
		require.Equal(t, int64(13), got[1].ExternalID)

		got, err = store.TrashCandidates(ctx, storage.TrashQuery{
			IVThreshold: 50,
			MaxKeep:     0,
			Exclude:     []string{"rattata", "pidgey"},
		})
		require.NoError(t, err)
		require.Empty(t, got)
	})
}
