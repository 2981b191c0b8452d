package memory

import (
	"context"
	"errors"
	"testing"

	"price-registry/internal/domain"
	"price-registry/internal/storage"
)

func TestPriceHistoryStore_InsertAndRange(t *testing.T) {
	store := NewPriceHistoryStore()
	ctx := context.Background()

	points := []*domain.PricePoint{
		{Asset: "EURX", Kind: domain.PriceKindFiat, Timestamp: 300, Price: 108},
		{Asset: "EURX", Kind: domain.PriceKindReport, Reporter: "r1", Timestamp: 100, Price: 107},
		{Asset: "EURX", Kind: domain.PriceKindFiat, Timestamp: 200, Price: 109},
		{Asset: "GBPX", Kind: domain.PriceKindFiat, Timestamp: 150, Price: 126},
	}

	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, "EURX", 100, 200)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(result))
	}
	if result[0].Timestamp != 100 || result[1].Timestamp != 200 {
		t.Errorf("points not ordered by timestamp: %d, %d", result[0].Timestamp, result[1].Timestamp)
	}
	if result[0].Reporter != "r1" {
		t.Errorf("Reporter mismatch: got %q", result[0].Reporter)
	}
}

func TestPriceHistoryStore_InvalidInput(t *testing.T) {
	store := NewPriceHistoryStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.PricePoint{{Asset: "EURX"}, nil})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}

	result, _ := store.GetByTimeRange(ctx, "EURX", 0, ^uint64(0))
	if len(result) != 0 {
		t.Error("invalid batch must not be partially stored")
	}
}

func TestPriceHistoryStore_ReturnsCopy(t *testing.T) {
	store := NewPriceHistoryStore()
	ctx := context.Background()

	p := &domain.PricePoint{Asset: "EURX", Timestamp: 1, Price: 100}
	_ = store.InsertBulk(ctx, []*domain.PricePoint{p})
	p.Price = 1

	result, _ := store.GetByTimeRange(ctx, "EURX", 0, 10)
	if result[0].Price != 100 {
		t.Error("Store should return copy, not reference")
	}
}
