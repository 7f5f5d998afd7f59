package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"pokeball/internal/domain"
	"pokeball/internal/storage"
)

func record(id int64, name string, level int, iv float64, cat domain.Category) *domain.CaughtRecord {
	return &domain.CaughtRecord{
		CaughtOn:   time.Now(),
		Name:       name,
		ExternalID: id,
		Level:      level,
		IV:         iv,
		Category:   cat,
	}
}

func TestCaughtStore_InsertIdempotent(t *testing.T) {
	store := NewCaughtStore()
	ctx := context.Background()

	r := record(1001, "Pikachu", 23, 64.5, domain.CategoryCommon)

	if err := store.InsertCaught(ctx, r); err != nil {
		t.Fatalf("InsertCaught failed: %v", err)
	}

	// Second insert of the same external id is a no-op
	dup := record(1001, "Pikachu", 99, 1.0, domain.CategoryShiny)
	if err := store.InsertCaught(ctx, dup); err != nil {
		t.Fatalf("Duplicate insert should be a no-op, got %v", err)
	}

	count, err := store.CountByName(ctx, "Pikachu")
	if err != nil {
		t.Fatalf("CountByName failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 record after duplicate insert, got %d", count)
	}

	// First write wins
	got, err := store.QueryFiltered(ctx, storage.Query{Filters: map[string]string{"name": "Pikachu"}})
	if err != nil {
		t.Fatalf("QueryFiltered failed: %v", err)
	}
	if len(got) != 1 || got[0].Level != 23 {
		t.Errorf("Expected original record to survive, got %+v", got)
	}
}

func TestCaughtStore_InvalidInput(t *testing.T) {
	store := NewCaughtStore()
	ctx := context.Background()

	if err := store.InsertCaught(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.InsertCaught(ctx, &domain.CaughtRecord{Name: "Eevee"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for zero external id, got %v", err)
	}
}

func TestCaughtStore_CountByName(t *testing.T) {
	store := NewCaughtStore()
	ctx := context.Background()

	records := []*domain.CaughtRecord{
		record(1, "Eevee", 10, 50, domain.CategoryCommon),
		record(2, "Eevee", 12, 55, domain.CategoryCommon),
		record(3, "Mewtwo", 70, 91, domain.CategoryLegendary),
	}
	if err := store.BulkInsert(ctx, records); err != nil {
		t.Fatalf("BulkInsert failed: %v", err)
	}

	count, err := store.CountByName(ctx, "eevee")
	if err != nil {
		t.Fatalf("CountByName failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 Eevee, got %d", count)
	}

	total, err := store.CountByName(ctx, "")
	if err != nil {
		t.Fatalf("CountByName total failed: %v", err)
	}
	if total != 3 {
		t.Errorf("Expected 3 total, got %d", total)
	}
}

func TestCaughtStore_DeleteByIDs(t *testing.T) {
	store := NewCaughtStore()
	ctx := context.Background()

	if err := store.BulkInsert(ctx, []*domain.CaughtRecord{
		record(1, "Eevee", 10, 50, domain.CategoryCommon),
		record(2, "Eevee", 12, 55, domain.CategoryCommon),
	}); err != nil {
		t.Fatalf("BulkInsert failed: %v", err)
	}

	// Missing ids are ignored
	if err := store.DeleteByIDs(ctx, []int64{2, 999}); err != nil {
		t.Fatalf("DeleteByIDs failed: %v", err)
	}

	count, _ := store.CountByName(ctx, "")
	if count != 1 {
		t.Errorf("Expected 1 record after delete, got %d", count)
	}
}

func TestCaughtStore_QueryFiltered(t *testing.T) {
	store := NewCaughtStore()
	ctx := context.Background()

	if err := store.BulkInsert(ctx, []*domain.CaughtRecord{
		record(1, "Eevee", 10, 40, domain.CategoryCommon),
		record(2, "Eevee", 30, 80, domain.CategoryCommon),
		record(3, "Pidgey", 50, 60, domain.CategoryCommon),
		record(4, "Mewtwo", 70, 91, domain.CategoryLegendary),
	}); err != nil {
		t.Fatalf("BulkInsert failed: %v", err)
	}

	// Level range
	got, err := store.QueryFiltered(ctx, storage.Query{MinLevel: 20, MaxLevel: 60, OrderBy: "level"})
	if err != nil {
		t.Fatalf("QueryFiltered failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(got))
	}
	if got[0].ExternalID != 2 || got[1].ExternalID != 3 {
		t.Errorf("Order mismatch: got %d, %d", got[0].ExternalID, got[1].ExternalID)
	}

	// Descending order and limit
	got, err = store.QueryFiltered(ctx, storage.Query{OrderBy: "-iv", Limit: 2})
	if err != nil {
		t.Fatalf("QueryFiltered failed: %v", err)
	}
	if len(got) != 2 || got[0].ExternalID != 4 || got[1].ExternalID != 2 {
		t.Errorf("Expected top IVs [4, 2], got %+v", got)
	}

	// Category filter
	got, err = store.QueryFiltered(ctx, storage.Query{Filters: map[string]string{"category": "legendary"}})
	if err != nil {
		t.Fatalf("QueryFiltered failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Mewtwo" {
		t.Errorf("Expected only Mewtwo, got %+v", got)
	}
}

func TestCaughtStore_Duplicates(t *testing.T) {
	store := NewCaughtStore()
	ctx := context.Background()

	if err := store.BulkInsert(ctx, []*domain.CaughtRecord{
		record(1, "Eevee", 10, 40, domain.CategoryCommon),
		record(2, "Eevee", 30, 80, domain.CategoryCommon),
		record(3, "Pidgey", 50, 60, domain.CategoryCommon),
	}); err != nil {
		t.Fatalf("BulkInsert failed: %v", err)
	}

	got, err := store.Duplicates(ctx, 2)
	if err != nil {
		t.Fatalf("Duplicates failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 duplicate records, got %d", len(got))
	}
	for _, r := range got {
		if r.Name != "Eevee" {
			t.Errorf("Unexpected duplicate name %s", r.Name)
		}
	}
}

func TestCaughtStore_TrashCandidates(t *testing.T) {
	store := NewCaughtStore()
	ctx := context.Background()

	nick := "Buddy"
	records := []*domain.CaughtRecord{
		record(1, "Rattata", 5, 10, domain.CategoryCommon), // reserved id, never trash
		record(2, "Rattata", 6, 20, domain.CategoryCommon),
		record(3, "Rattata", 7, 30, domain.CategoryCommon),
		record(4, "Rattata", 8, 40, domain.CategoryCommon),
		record(5, "Rattata", 9, 95, domain.CategoryCommon),  // above IV threshold
		record(6, "Mewtwo", 70, 10, domain.CategoryLegendary), // non-common
		record(7, "Pidgey", 5, 15, domain.CategoryCommon),
	}
	records[6].Nickname = &nick // nicknamed, never trash
	if err := store.BulkInsert(ctx, records); err != nil {
		t.Fatalf("BulkInsert failed: %v", err)
	}

	got, err := store.TrashCandidates(ctx, storage.TrashQuery{IVThreshold: 50, MaxKeep: 1})
	if err != nil {
		t.Fatalf("TrashCandidates failed: %v", err)
	}

	// Rattata group below threshold: ids 2, 3, 4 (id 1 reserved); best kept, trash 2.
	// Pidgey is nicknamed, Mewtwo non-common, id 5 above threshold.
	if len(got) != 2 {
		t.Fatalf("Expected 2 trash candidates, got %d: %+v", len(got), got)
	}
	if got[0].ExternalID != 2 || got[1].ExternalID != 3 {
		t.Errorf("Expected ids [2, 3], got [%d, %d]", got[0].ExternalID, got[1].ExternalID)
	}
}

func TestCaughtStore_TrashCandidatesExclude(t *testing.T) {
	store := NewCaughtStore()
	ctx := context.Background()

	if err := store.BulkInsert(ctx, []*domain.CaughtRecord{
		record(10, "Magikarp", 5, 10, domain.CategoryCommon),
		record(11, "Magikarp", 5, 12, domain.CategoryCommon),
	}); err != nil {
		t.Fatalf("BulkInsert failed: %v", err)
	}

	got, err := store.TrashCandidates(ctx, storage.TrashQuery{
		IVThreshold: 50,
		MaxKeep:     0,
		Exclude:     []string{"magikarp"},
	})
	if err != nil {
		t.Fatalf("TrashCandidates failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Excluded name should yield no candidates, got %d", len(got))
	}
}
