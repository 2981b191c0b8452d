package memory

import (
	"context"
	"sort"
	"sync"

	"price-registry/internal/domain"
	"price-registry/internal/storage"
)

// PriceHistoryStore is an in-memory implementation of storage.PriceHistoryStore.
type PriceHistoryStore struct {
	mu      sync.RWMutex
	byAsset map[string][]*domain.PricePoint
}

// NewPriceHistoryStore creates a new in-memory price history store.
func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{
		byAsset: make(map[string][]*domain.PricePoint),
	}
}

// InsertBulk appends points. Fails the whole batch on invalid input.
func (s *PriceHistoryStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	for _, p := range points {
		if p == nil || p.Asset == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		pointCopy := *p
		s.byAsset[p.Asset] = append(s.byAsset[p.Asset], &pointCopy)
	}
	return nil
}

// GetByTimeRange retrieves points for an asset within [start, end] (inclusive).
func (s *PriceHistoryStore) GetByTimeRange(_ context.Context, asset string, start, end uint64) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, p := range s.byAsset[asset] {
		if p.Timestamp >= start && p.Timestamp <= end {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}

var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)
