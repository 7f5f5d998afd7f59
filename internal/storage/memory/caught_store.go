package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"pokeball/internal/domain"
	"pokeball/internal/storage"
)

// CaughtStore is an in-memory implementation of storage.CaughtStore.
type CaughtStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.CaughtRecord // keyed by external_id
}

// NewCaughtStore creates a new in-memory caught store.
func NewCaughtStore() *CaughtStore {
	return &CaughtStore{
		data: make(map[int64]*domain.CaughtRecord),
	}
}

// InsertCaught adds a record. Inserting an existing external id is a no-op.
func (s *CaughtStore) InsertCaught(_ context.Context, r *domain.CaughtRecord) error {
	if r == nil || r.ExternalID == 0 || r.Name == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ExternalID]; exists {
		return nil
	}

	// Store a copy to prevent external mutation
	recordCopy := *r
	if recordCopy.Category == "" {
		recordCopy.Category = domain.CategoryCommon
	}
	s.data[r.ExternalID] = &recordCopy
	return nil
}

// BulkInsert adds multiple records, skipping duplicates.
func (s *CaughtStore) BulkInsert(ctx context.Context, records []*domain.CaughtRecord) error {
	for _, r := range records {
		if err := s.InsertCaught(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// DeleteByIDs removes records by external id. Missing ids are ignored.
func (s *CaughtStore) DeleteByIDs(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.data, id)
	}
	return nil
}

// CountByName returns the persisted count for name, or the total when empty.
func (s *CaughtStore) CountByName(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if name == "" {
		return len(s.data), nil
	}

	count := 0
	for _, r := range s.data {
		if strings.EqualFold(r.Name, name) {
			count++
		}
	}
	return count, nil
}

// QueryFiltered retrieves records matching q.
func (s *CaughtStore) QueryFiltered(_ context.Context, q storage.Query) ([]*domain.CaughtRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nameCounts := make(map[string]int)
	if q.MinDuplicates > 0 {
		for _, r := range s.data {
			nameCounts[strings.ToLower(r.Name)]++
		}
	}

	var result []*domain.CaughtRecord
	for _, r := range s.data {
		if !matchesQuery(r, q, nameCounts) {
			continue
		}
		recordCopy := *r
		result = append(result, &recordCopy)
	}

	sortRecords(result, q.OrderBy)

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

// Duplicates retrieves records of names persisted at least minCount times.
func (s *CaughtStore) Duplicates(ctx context.Context, minCount int) ([]*domain.CaughtRecord, error) {
	return s.QueryFiltered(ctx, storage.Query{MinDuplicates: minCount, OrderBy: "name"})
}

// TrashCandidates retrieves common, unnamed, low-IV records beyond the
// per-name keep count. External id 1 is reserved and never returned.
func (s *CaughtStore) TrashCandidates(_ context.Context, q storage.TrashQuery) ([]*domain.CaughtRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	excluded := make(map[string]bool, len(q.Exclude))
	for _, name := range q.Exclude {
		excluded[strings.ToLower(name)] = true
	}

	byName := make(map[string][]*domain.CaughtRecord)
	for _, r := range s.data {
		if r.ExternalID == 1 || r.Category != domain.CategoryCommon || r.Nickname != nil {
			continue
		}
		if r.IV >= q.IVThreshold {
			continue
		}
		key := strings.ToLower(r.Name)
		if excluded[key] {
			continue
		}
		if q.Name != "" && !strings.EqualFold(r.Name, q.Name) {
			continue
		}
		recordCopy := *r
		byName[key] = append(byName[key], &recordCopy)
	}

	var result []*domain.CaughtRecord
	for _, group := range byName {
		// Keep the best MaxKeep per name, trash the rest
		sort.Slice(group, func(i, j int) bool {
			return group[i].IV > group[j].IV
		})
		if len(group) > q.MaxKeep {
			result = append(result, group[q.MaxKeep:]...)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ExternalID < result[j].ExternalID
	})
	return result, nil
}

func matchesQuery(r *domain.CaughtRecord, q storage.Query, nameCounts map[string]int) bool {
	if r.Level < q.MinLevel {
		return false
	}
	if q.MaxLevel > 0 && r.Level > q.MaxLevel {
		return false
	}
	if r.IV < q.MinIV {
		return false
	}
	if q.MaxIV > 0 && r.IV > q.MaxIV {
		return false
	}
	if q.MinDuplicates > 0 && nameCounts[strings.ToLower(r.Name)] < q.MinDuplicates {
		return false
	}
	for col, want := range q.Filters {
		switch col {
		case "name":
			if !strings.EqualFold(r.Name, want) {
				return false
			}
		case "category":
			if string(r.Category) != want {
				return false
			}
		case "nickname":
			if r.Nickname == nil || *r.Nickname != want {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func sortRecords(records []*domain.CaughtRecord, orderBy string) {
	desc := strings.HasPrefix(orderBy, "-")
	col := strings.TrimPrefix(orderBy, "-")

	less := func(i, j int) bool {
		switch col {
		case "level":
			return records[i].Level < records[j].Level
		case "iv":
			return records[i].IV < records[j].IV
		case "name":
			return records[i].Name < records[j].Name
		case "caught_on":
			return records[i].CaughtOn.Before(records[j].CaughtOn)
		default:
			return records[i].ExternalID < records[j].ExternalID
		}
	}

	if desc {
		sort.Slice(records, func(i, j int) bool { return less(j, i) })
	} else {
		sort.Slice(records, less)
	}
}

// Verify interface compliance at compile time.
var _ storage.CaughtStore = (*CaughtStore)(nil)
