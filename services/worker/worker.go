package worker

import (
	"context"
	"time"

	"sjsage522/producttracker/internal/store"
	"sjsage522/producttracker/logger"
	"sjsage522/producttracker/services/publisher"
)

// Cleaner is the part of the product store the worker drives
type Cleaner interface {
	Cleanup(ctx context.Context) (store.CleanupResult, error)
	Count(ctx context.Context) (int, error)
}

// CleanupWorker runs the retention sweep at start and then on every interval
type CleanupWorker struct {
	cleaner   Cleaner
	publisher publisher.Publisher
	interval  time.Duration
	now       func() time.Time
	log       *logger.Logger
}

// NewCleanupWorker creates a new worker. pub may be nil.
func NewCleanupWorker(cleaner Cleaner, pub publisher.Publisher, interval time.Duration) *CleanupWorker {
	return &CleanupWorker{
		cleaner:   cleaner,
		publisher: pub,
		interval:  interval,
		now:       time.Now,
		log:       logger.ForWorker(),
	}
}

// Start sweeps immediately and then once per interval until ctx is cancelled
func (w *CleanupWorker) Start(ctx context.Context) {
	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Cleanup worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. Failures are logged and retried on the
// next tick.
func (w *CleanupWorker) RunOnce(ctx context.Context) store.CleanupResult {
	start := w.now()
	result, err := w.cleaner.Cleanup(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Retention sweep failed")
		return result
	}
	w.log.Debug().Int("removed", result.Removed).Dur("elapsed", w.now().Sub(start)).Msg("Retention sweep finished")

	if result.Removed > 0 {
		w.notify(ctx, result)
	}
	return result
}

func (w *CleanupWorker) notify(ctx context.Context, result store.CleanupResult) {
	if w.publisher == nil {
		return
	}
	count, err := w.cleaner.Count(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("Failed to count products")
		return
	}
	if err := w.publisher.Publish(ctx, publisher.ProductsCleaned(result.Removed, count, w.now())); err != nil {
		w.log.Warn().Err(err).Msg("Failed to publish products_cleaned")
		return
	}
	if err := w.publisher.TrimStreams(ctx); err != nil {
		w.log.Warn().Err(err).Msg("Failed to trim event stream")
	}
}
