package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// Worker drains the task queue from a single goroutine. One task is in
// flight at a time; the database order (sequence ascending) is the queue
// order. Run owns all task mutation, so no in-flight flag or lock is needed.
type Worker struct {
	store    TaskStore
	engine   Engine
	interval time.Duration
	progress chan<- ProgressUpdate
	logger   *log.Logger
}

// NewWorker creates a Worker polling the store every interval. progress may
// be nil when no live consumer exists.
func NewWorker(store TaskStore, engine Engine, interval time.Duration, progress chan<- ProgressUpdate, logger *log.Logger) *Worker {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Worker{
		store:    store,
		engine:   engine,
		interval: interval,
		progress: progress,
		logger:   logger,
	}
}

// Run polls for queued tasks until ctx is cancelled. Each poll drains the
// queue completely before sleeping, so a burst of enqueued tasks does not
// pay the poll interval between tasks.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "poll_interval", w.interval)

	for {
		if err := w.drain(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return ctx.Err()
		case <-time.After(w.interval):
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		task, err := w.store.NextQueued()
		if err != nil {
			w.logger.Error("failed to poll queue", "error", err)
			return nil
		}
		if task == nil {
			return nil
		}

		// A picked-up task always runs to a terminal state. Cancellation
		// only stops further pickup; the client timeouts bound the work.
		if err := w.engine.Process(context.WithoutCancel(ctx), task, w.progress); err != nil {
			w.logger.Warn("task did not complete", "task", task.ID(), "error", err)
		}
	}
}
