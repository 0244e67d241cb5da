package retryqueue

import (
	"context"
	"log/slog"
	"time"

	"github.com/dskow/library-gateway/internal/clients"
	"github.com/dskow/library-gateway/internal/metrics"
)

func recordResolution(outcome string) {
	metrics.RetryResolutions.WithLabelValues(outcome).Inc()
}

// RatingWriter is the slice of the rating service the worker needs.
// Implemented by *clients.RatingClient.
type RatingWriter interface {
	Stars(ctx context.Context, username string) (int, error)
	SetStars(ctx context.Context, username string, stars int) error
}

// Worker is the single long-lived consumer of a Queue. It resolves each task
// by re-reading the user's current score, applying the delta, and writing
// the sum back. A task that cannot be resolved goes back to the tail of the
// queue and the worker cools down before its next attempt, so a dead rating
// service does not produce a hot failure loop.
type Worker struct {
	queue        *Queue
	rating       RatingWriter
	cooldown     time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
	metrics      resolutionCounter
}

// resolutionCounter decouples the worker from the global Prometheus
// registry in tests.
type resolutionCounter func(outcome string)

// NewWorker creates a worker draining queue against the given rating service.
func NewWorker(queue *Queue, rating RatingWriter, cooldown, pollInterval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		queue:        queue,
		rating:       rating,
		cooldown:     cooldown,
		pollInterval: pollInterval,
		logger:       logger,
		metrics:      recordResolution,
	}
}

// Run drains the queue until ctx is cancelled. Intended to be started once,
// as a goroutine, at process start.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("retry worker started",
		"cooldown", w.cooldown,
		"poll_interval", w.pollInterval,
	)

	for {
		if ctx.Err() != nil {
			w.logger.Info("retry worker stopped", "pending", w.queue.Len())
			return
		}

		task, ok := w.queue.Pop(ctx, w.pollInterval)
		if !ok {
			continue
		}

		if err := w.resolve(ctx, task); err != nil {
			w.logger.Warn("rating adjustment failed, requeueing",
				"user", task.UserName,
				"delta", task.Delta,
				"error", err,
			)
			w.queue.Enqueue(task)
			w.metrics("requeued")
			w.sleep(ctx, w.cooldown)
			continue
		}

		w.logger.Info("rating adjustment applied",
			"user", task.UserName,
			"delta", task.Delta,
		)
		w.metrics("resolved")
	}
}

// resolve applies the task's delta on top of the current score. This is a
// read-modify-write without compare-and-swap: a live request updating the
// same user concurrently can lose an update. The rating service would need
// an atomic increment operation to close that window.
func (w *Worker) resolve(ctx context.Context, task Task) error {
	stars, err := w.rating.Stars(ctx, task.UserName)
	if err != nil {
		return err
	}
	return w.rating.SetStars(ctx, task.UserName, clients.ClampStars(stars+task.Delta))
}

// sleep pauses for d unless ctx is cancelled first.
func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
