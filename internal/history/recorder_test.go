package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-registry/internal/domain"
	"price-registry/internal/storage/memory"
)

func TestPointFromEvent(t *testing.T) {
	p, ok := PointFromEvent(domain.Event{
		Type: domain.EventPriceUpdated, Asset: "EURX", Timestamp: 10, Price: 108, At: 10_500,
	})
	require.True(t, ok)
	assert.Equal(t, &domain.PricePoint{
		Asset: "EURX", Kind: domain.PriceKindFiat, Timestamp: 10, Price: 108, RecordedAt: 10_500,
	}, p)

	p, ok = PointFromEvent(domain.Event{
		Type: domain.EventReportSubmitted, Asset: "EURX", Subject: "r1", Timestamp: 11, Price: 107,
	})
	require.True(t, ok)
	assert.Equal(t, domain.PriceKindReport, p.Kind)
	assert.Equal(t, "r1", p.Reporter)

	_, ok = PointFromEvent(domain.Event{Type: domain.EventSettingsUpdated})
	assert.False(t, ok)
}

func TestRecorder_FlushOnBatchSize(t *testing.T) {
	store := memory.NewPriceHistoryStore()
	r := NewRecorder(RecorderOptions{Store: store, BatchSize: 2, FlushInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	r.Publish(domain.Event{Type: domain.EventPriceUpdated, Asset: "EURX", Timestamp: 1, Price: 1})
	r.Publish(domain.Event{Type: domain.EventSettingsUpdated})
	r.Publish(domain.Event{Type: domain.EventPriceUpdated, Asset: "EURX", Timestamp: 2, Price: 2})

	assert.Eventually(t, func() bool {
		pts, _ := store.GetByTimeRange(context.Background(), "EURX", 0, 10)
		return len(pts) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRecorder_DrainsOnShutdown(t *testing.T) {
	store := memory.NewPriceHistoryStore()
	r := NewRecorder(RecorderOptions{Store: store, BatchSize: 100, FlushInterval: time.Hour})

	for i := uint64(1); i <= 5; i++ {
		r.Publish(domain.Event{Type: domain.EventReportSubmitted, Asset: "GBPX", Subject: "r", Timestamp: i, Price: i})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = r.Run(ctx)

	pts, err := store.GetByTimeRange(context.Background(), "GBPX", 0, 10)
	require.NoError(t, err)
	assert.Len(t, pts, 5)
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	store := memory.NewPriceHistoryStore()
	r := NewRecorder(RecorderOptions{Store: store, QueueSize: 1})

	r.Publish(domain.Event{Type: domain.EventPriceUpdated, Asset: "A", Timestamp: 1})
	r.Publish(domain.Event{Type: domain.EventPriceUpdated, Asset: "A", Timestamp: 2})

	assert.Len(t, r.queue, 1)
}

type failingStore struct {
	mu    sync.Mutex
	calls int
}

func (s *failingStore) InsertBulk(context.Context, []*domain.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return errors.New("connection reset")
}

func (s *failingStore) GetByTimeRange(context.Context, string, uint64, uint64) ([]*domain.PricePoint, error) {
	return nil, nil
}

func TestRecorder_FailedFlushIsDropped(t *testing.T) {
	store := &failingStore{}
	r := NewRecorder(RecorderOptions{Store: store, BatchSize: 1, FlushInterval: time.Hour})

	r.Publish(domain.Event{Type: domain.EventPriceUpdated, Asset: "A", Timestamp: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.calls == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	// The failed point is not retried on shutdown.
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.calls)
}
