package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"pokeball/internal/domain"
	"pokeball/internal/storage"
)

// PriceSampleStore is an in-memory implementation of storage.PriceSampleStore.
type PriceSampleStore struct {
	mu   sync.RWMutex
	data []*domain.PriceSample
}

// NewPriceSampleStore creates a new in-memory price sample store.
func NewPriceSampleStore() *PriceSampleStore {
	return &PriceSampleStore{}
}

// InsertSamples adds a batch of samples.
func (s *PriceSampleStore) InsertSamples(_ context.Context, samples []*domain.PriceSample) error {
	for _, p := range samples {
		if p == nil || p.Name == "" || p.MarketID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range samples {
		sampleCopy := *p
		s.data = append(s.data, &sampleCopy)
	}
	return nil
}

// SamplesByName retrieves samples for a name, ordered by observation time ASC.
func (s *PriceSampleStore) SamplesByName(_ context.Context, name string) ([]*domain.PriceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceSample
	for _, p := range s.data {
		if strings.EqualFold(p.Name, name) {
			sampleCopy := *p
			result = append(result, &sampleCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt.Before(result[j].ObservedAt)
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.PriceSampleStore = (*PriceSampleStore)(nil)
