package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackdock/internal/download"
	"github.com/desertthunder/trackdock/internal/models"
	"github.com/desertthunder/trackdock/internal/quality"
	"github.com/desertthunder/trackdock/internal/services"
)

// TaskStore is the slice of the task repository the engine and worker need.
// This abstraction allows for easier testing and decoupling from the
// concrete sqlite implementation.
type TaskStore interface {
	NextQueued() (*models.DownloadTask, error)
	SetStatus(id string, status models.TaskStatus, errorMessage string) error
	SetProgress(id string, p models.Progress) error
	SetResolution(id, resolvedURL string, tried []string) error
	SetStagingPath(id, path string) error
	SetLibraryPath(id, path string) error
}

// Streamer downloads a resolved URL into staging.
type Streamer interface {
	Stream(ctx context.Context, taskID, rawURL string, onProgress download.ProgressFunc) (*download.Result, error)
}

// Committer moves a staged file into the library.
type Committer interface {
	Commit(stagingPath, artist, title string) (string, error)
}

// Engine processes a single task from pickup to a terminal state.
type Engine interface {
	Process(ctx context.Context, task *models.DownloadTask, progress chan<- ProgressUpdate) error
}

// DownloadEngine implements Engine by chaining resolution, streaming, and
// library commit. Every state transition is persisted before the work for
// that state begins, so a crash leaves an honest record behind.
type DownloadEngine struct {
	store     TaskStore
	resolver  services.URLResolver
	streamer  Streamer
	committer Committer
	logger    *log.Logger
}

// NewDownloadEngine creates a DownloadEngine with the provided dependencies.
func NewDownloadEngine(store TaskStore, resolver services.URLResolver, streamer Streamer, committer Committer, logger *log.Logger) *DownloadEngine {
	return &DownloadEngine{
		store:     store,
		resolver:  resolver,
		streamer:  streamer,
		committer: committer,
		logger:    logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// Process runs one task through the whole pipeline. Any error lands the task
// in failed with the error text preserved; the returned error mirrors what
// was persisted.
func (e *DownloadEngine) Process(ctx context.Context, task *models.DownloadTask, progress chan<- ProgressUpdate) error {
	id := task.ID()

	sendProgress(progress, pickupUpdate(task))
	e.logger.Info("processing task", "task", id, "title", task.Title(), "artist", task.Artist())

	if err := e.store.SetStatus(id, models.StatusDownloading, ""); err != nil {
		return fmt.Errorf("failed to mark task downloading: %w", err)
	}

	url, err := e.resolveURL(ctx, task, progress)
	if err != nil {
		return e.fail(id, progress, err)
	}

	result, err := e.streamer.Stream(ctx, id, url, func(p models.Progress) {
		if err := e.store.SetProgress(id, p); err != nil {
			e.logger.Warn("failed to persist progress", "task", id, "error", err)
		}
		sendProgress(progress, downloadUpdate(id, p))
	})
	if err != nil {
		return e.fail(id, progress, err)
	}

	if err := e.store.SetStagingPath(id, result.StagingPath); err != nil {
		return e.fail(id, progress, err)
	}
	if err := e.store.SetStatus(id, models.StatusOrganizing, ""); err != nil {
		return e.fail(id, progress, err)
	}
	sendProgress(progress, committingUpdate(id))

	libraryPath, err := e.committer.Commit(result.StagingPath, task.Artist(), task.Title())
	if err != nil {
		return e.fail(id, progress, err)
	}
	if err := e.store.SetLibraryPath(id, libraryPath); err != nil {
		return e.fail(id, progress, err)
	}

	if err := e.store.SetStatus(id, models.StatusDone, ""); err != nil {
		return e.fail(id, progress, err)
	}
	sendProgress(progress, finishedUpdate(id, libraryPath))
	e.logger.Info("task complete", "task", id, "path", libraryPath)

	return nil
}

// resolveURL produces the byte-stream URL for a task. A task created with a
// known source URL skips resolution entirely. The tried-quality trail is
// persisted whether resolution succeeds or not.
func (e *DownloadEngine) resolveURL(ctx context.Context, task *models.DownloadTask, progress chan<- ProgressUpdate) (string, error) {
	if url := task.SourceURL(); url != "" {
		return url, nil
	}

	sendProgress(progress, resolvingUpdate(task.ID(), task.PreferredQuality()))

	catalog := quality.ParseCatalog(task.Formats())
	var order []string
	if task.AllowDegrade() {
		order = task.DegradeOrder()
	}
	trials := quality.Plan(task.PreferredQuality(), order, catalog)

	resolution, err := e.resolver.Resolve(ctx, services.ResolveRequest{
		CopyrightID: task.CopyrightID(),
		ContentID:   task.ContentID(),
		Trials:      trials,
	})
	if err != nil {
		var failure *services.ResolveFailure
		if errors.As(err, &failure) {
			if storeErr := e.store.SetResolution(task.ID(), "", failure.Tried); storeErr != nil {
				e.logger.Warn("failed to persist tried qualities", "task", task.ID(), "error", storeErr)
			}
		}
		return "", err
	}

	if err := e.store.SetResolution(task.ID(), resolution.URL, resolution.Tried); err != nil {
		return "", err
	}
	sendProgress(progress, resolvedUpdate(task.ID(), resolution.Label))

	return resolution.URL, nil
}

// fail marks the task failed with the error text and echoes the error back.
func (e *DownloadEngine) fail(id string, progress chan<- ProgressUpdate, cause error) error {
	if err := e.store.SetStatus(id, models.StatusFailed, cause.Error()); err != nil {
		e.logger.Error("failed to mark task failed", "task", id, "error", err)
	}
	sendProgress(progress, failedUpdate(id, cause))
	e.logger.Error("task failed", "task", id, "error", cause)
	return cause
}
