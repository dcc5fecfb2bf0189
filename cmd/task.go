package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/trackdock/internal/formatter"
	"github.com/desertthunder/trackdock/internal/models"
	"github.com/desertthunder/trackdock/internal/quality"
	"github.com/desertthunder/trackdock/internal/repositories"
	"github.com/desertthunder/trackdock/internal/shared"
	"github.com/urfave/cli/v3"
)

// taskView is the JSON shape for show/list output.
type taskView struct {
	ID               string   `json:"id"`
	Status           string   `json:"status"`
	Service          string   `json:"service"`
	Title            string   `json:"title"`
	Artist           string   `json:"artist"`
	Album            string   `json:"album,omitempty"`
	CopyrightID      string   `json:"copyright_id,omitempty"`
	PreferredQuality string   `json:"preferred_quality"`
	TriedQualities   []string `json:"tried_qualities,omitempty"`
	ResolvedURL      string   `json:"resolved_url,omitempty"`
	Percent          float64  `json:"percent"`
	ErrorMessage     string   `json:"error_message,omitempty"`
	StagingPath      string   `json:"staging_path,omitempty"`
	LibraryPath      string   `json:"library_path,omitempty"`
}

func toTaskView(task *models.DownloadTask) taskView {
	return taskView{
		ID:               task.ID(),
		Status:           string(task.Status()),
		Service:          task.Service(),
		Title:            task.Title(),
		Artist:           task.Artist(),
		Album:            task.Album(),
		CopyrightID:      task.CopyrightID(),
		PreferredQuality: task.PreferredQuality(),
		TriedQualities:   task.TriedQualities(),
		ResolvedURL:      task.ResolvedURL(),
		Percent:          task.Progress().Percent,
		ErrorMessage:     task.ErrorMessage(),
		StagingPath:      task.StagingPath(),
		LibraryPath:      task.LibraryPath(),
	}
}

// AddTask enqueues a download task from flags.
func (r *Runner) AddTask(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	preferred := cmd.String("quality")
	if preferred == "" {
		preferred = r.config.Quality.Preferred
	}
	if !quality.Known(preferred) {
		return fmt.Errorf("%w: unknown quality %q", shared.ErrInvalidFlag, preferred)
	}

	sourceURL := cmd.String("url")
	copyrightID := cmd.String("copyright-id")
	if sourceURL == "" && copyrightID == "" {
		return fmt.Errorf("%w: either --url or --copyright-id is required", shared.ErrMissingArgument)
	}

	allowDegrade := r.config.Quality.AllowDegrade
	if cmd.Bool("no-degrade") {
		allowDegrade = false
	}

	task := models.NewDownloadTask(0, models.TrackInfo{
		Service:     "music",
		Title:       cmd.String("title"),
		Artist:      cmd.String("artist"),
		Album:       cmd.String("album"),
		SourceURL:   sourceURL,
		CopyrightID: copyrightID,
		ContentID:   cmd.String("content-id"),
		Formats:     cmd.String("formats"),
	}, preferred, allowDegrade, r.config.Quality.DegradeOrder)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewTaskRepository(db)
	if err := repo.Create(task); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	r.logger.Info("task enqueued", "task", task.ID())
	r.writePlain("Enqueued %s - %s (%s)\n", task.Artist(), task.Title(), task.ID())
	return nil
}

// ListTasks prints tasks in the requested format.
func (r *Runner) ListTasks(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	criteria := map[string]any{}
	if status := cmd.String("status"); status != "" {
		if !models.TaskStatus(status).Valid() {
			return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidFlag, status)
		}
		criteria["status"] = status
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	tasks, err := repositories.NewTaskRepository(db).List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	switch format := cmd.String("format"); format {
	case "json":
		views := make([]taskView, 0, len(tasks))
		for _, task := range tasks {
			views = append(views, toTaskView(task))
		}
		return r.writeJSON(views, true)
	case "csv":
		data, err := formatter.ExportToCSV(tasks)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	case "markdown", "md":
		data, err := formatter.ExportToMarkdown(tasks, "Download Tasks")
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	case "text":
		data, err := formatter.ExportToText(tasks)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
}

// ShowTask prints one task as JSON.
func (r *Runner) ShowTask(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: task id", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	task, err := repositories.NewTaskRepository(db).Get(id)
	if err != nil {
		return err
	}

	return r.writeJSON(toTaskView(task), cmd.Bool("pretty"))
}

// RetryTask clones a failed task back onto the queue. Terminal tasks never
// leave their state, so a retry is a fresh task with the same track and
// quality preferences.
func (r *Runner) RetryTask(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: task id", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewTaskRepository(db)
	failed, err := repo.Get(id)
	if err != nil {
		return err
	}
	if failed.Status() != models.StatusFailed {
		return fmt.Errorf("%w: task %s is %s, only failed tasks can be retried", shared.ErrInvalidStatus, id, failed.Status())
	}

	retry := models.NewDownloadTask(0, failed.Info(), failed.PreferredQuality(), failed.AllowDegrade(), failed.DegradeOrder())
	if err := repo.Create(retry); err != nil {
		return fmt.Errorf("failed to enqueue retry: %w", err)
	}

	r.logger.Info("retry enqueued", "original", id, "task", retry.ID())
	r.writePlain("Re-enqueued %s - %s as %s\n", retry.Artist(), retry.Title(), retry.ID())
	return nil
}
