// Package history turns committed price events into rows of the price
// history store.
package history

import (
	"context"
	"time"

	"go.uber.org/zap"

	"price-registry/internal/domain"
	"price-registry/internal/observability"
	"price-registry/internal/storage"
)

// Recorder buffers price points and writes them in batches.
// Publish never blocks: when the queue is full the point is dropped.
type Recorder struct {
	store         storage.PriceHistoryStore
	queue         chan *domain.PricePoint
	batchSize     int
	flushInterval time.Duration
	flushTimeout  time.Duration
	logger        *zap.Logger
}

// RecorderOptions contains configuration for creating a Recorder.
type RecorderOptions struct {
	Store         storage.PriceHistoryStore
	QueueSize     int           // Default: 4096
	BatchSize     int           // Default: 256
	FlushInterval time.Duration // Default: 1s
	FlushTimeout  time.Duration // Default: 5s, bound for the final flush on shutdown
	Logger        *zap.Logger
}

// NewRecorder creates a new history recorder.
func NewRecorder(opts RecorderOptions) *Recorder {
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = 4096
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 256
	}
	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	flushTimeout := opts.FlushTimeout
	if flushTimeout <= 0 {
		flushTimeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Recorder{
		store:         opts.Store,
		queue:         make(chan *domain.PricePoint, queueSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		flushTimeout:  flushTimeout,
		logger:        logger.Named("history"),
	}
}

// PointFromEvent maps a price-carrying event to a history point.
func PointFromEvent(e domain.Event) (*domain.PricePoint, bool) {
	switch e.Type {
	case domain.EventPriceUpdated:
		return &domain.PricePoint{
			Asset:      e.Asset,
			Kind:       domain.PriceKindFiat,
			Timestamp:  e.Timestamp,
			Price:      e.Price,
			RecordedAt: e.At,
		}, true
	case domain.EventReportSubmitted:
		return &domain.PricePoint{
			Asset:      e.Asset,
			Kind:       domain.PriceKindReport,
			Reporter:   e.Subject,
			Timestamp:  e.Timestamp,
			Price:      e.Price,
			RecordedAt: e.At,
		}, true
	}
	return nil, false
}

// Publish enqueues the history point of e, if any.
func (r *Recorder) Publish(e domain.Event) {
	p, ok := PointFromEvent(e)
	if !ok {
		return
	}
	select {
	case r.queue <- p:
		observability.UpdateHistoryQueue(len(r.queue))
	default:
		observability.RecordHistoryDropped(1)
		r.logger.Warn("history queue full, dropping point",
			zap.String("asset", p.Asset), zap.String("kind", string(p.Kind)))
	}
}

// Run flushes queued points until ctx is cancelled, then drains the
// queue with a final bounded flush.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]*domain.PricePoint, 0, r.batchSize)

	for {
		select {
		case <-ctx.Done():
			batch = r.drain(batch)
			flushCtx, cancel := context.WithTimeout(context.Background(), r.flushTimeout)
			r.flush(flushCtx, batch)
			cancel()
			return ctx.Err()

		case p := <-r.queue:
			batch = append(batch, p)
			if len(batch) >= r.batchSize {
				batch = r.flush(ctx, batch)
			}

		case <-ticker.C:
			batch = r.flush(ctx, batch)
		}
	}
}

func (r *Recorder) drain(batch []*domain.PricePoint) []*domain.PricePoint {
	for {
		select {
		case p := <-r.queue:
			batch = append(batch, p)
		default:
			return batch
		}
	}
}

// flush writes batch and returns it emptied. A failed batch is dropped:
// history is best effort and never blocks registry operations.
func (r *Recorder) flush(ctx context.Context, batch []*domain.PricePoint) []*domain.PricePoint {
	observability.UpdateHistoryQueue(len(r.queue))
	if len(batch) == 0 {
		return batch
	}

	if err := r.store.InsertBulk(ctx, batch); err != nil {
		observability.RecordHistoryDropped(len(batch))
		r.logger.Error("flush price history", zap.Int("points", len(batch)), zap.Error(err))
	} else {
		observability.RecordHistoryWritten(len(batch))
		r.logger.Debug("flushed price history", zap.Int("points", len(batch)))
	}
	return batch[:0]
}
