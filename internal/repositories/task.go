package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/trackdock/internal/models"
	"github.com/desertthunder/trackdock/internal/shared"
)

// TaskRepository implements models.Repository[*models.DownloadTask].
//
// The background worker is the only writer for a task once it leaves the
// queued state; the HTTP surface and CLI only create and read tasks.
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new TaskRepository with the given database connection
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `
	id, sequence, service, title, artist, album, cover_url, source_url,
	copyright_id, content_id, formats, preferred_quality, allow_degrade,
	degrade_order, tried_qualities, status, error_message, staging_path,
	library_path, resolved_url, downloaded_bytes, total_bytes, speed,
	eta_seconds, progress, created_at, updated_at, deleted_at
`

// Create inserts a new [models.DownloadTask] into the database with generated ID and sequence
func (r *TaskRepository) Create(task *models.DownloadTask) error {
	sequence, err := NextSequence(r.db, "tasks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	task.SetSequence(sequence)

	id := shared.GenerateID()
	task.SetID(id)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	degradeOrder, err := marshalLabels(task.DegradeOrder())
	if err != nil {
		return fmt.Errorf("failed to encode degrade order: %w", err)
	}

	tried, err := marshalLabels(task.TriedQualities())
	if err != nil {
		return fmt.Errorf("failed to encode tried qualities: %w", err)
	}

	query := `
		INSERT INTO tasks (
			id, sequence, service, title, artist, album, cover_url, source_url,
			copyright_id, content_id, formats, preferred_quality, allow_degrade,
			degrade_order, tried_qualities, status, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	info := task.Info()

	_, err = r.db.Exec(query,
		id,
		sequence,
		info.Service,
		info.Title,
		info.Artist,
		info.Album,
		info.CoverURL,
		info.SourceURL,
		info.CopyrightID,
		info.ContentID,
		info.Formats,
		task.PreferredQuality(),
		task.AllowDegrade(),
		degradeOrder,
		tried,
		task.Status(),
		task.CreatedAt(),
		task.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

// Get retrieves a task by ID, excluding soft-deleted tasks
func (r *TaskRepository) Get(id string) (*models.DownloadTask, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ? AND deleted_at IS NULL`

	task, err := scanTask(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, id)
	}
	return task, err
}

// NextQueued returns the oldest task still in queued state, or nil when the
// queue is empty.
func (r *TaskRepository) NextQueued() (*models.DownloadTask, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE status = ? AND deleted_at IS NULL
		ORDER BY sequence ASC
		LIMIT 1`

	task, err := scanTask(r.db.QueryRow(query, models.StatusQueued))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return task, err
}

// Update modifies an existing task's mutable fields in the database
func (r *TaskRepository) Update(task *models.DownloadTask) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	task.SetUpdatedAt(now)

	tried, err := marshalLabels(task.TriedQualities())
	if err != nil {
		return fmt.Errorf("failed to encode tried qualities: %w", err)
	}

	query := `
		UPDATE tasks
		SET status = ?, error_message = ?, staging_path = ?, library_path = ?,
			resolved_url = ?, tried_qualities = ?, downloaded_bytes = ?,
			total_bytes = ?, speed = ?, eta_seconds = ?, progress = ?,
			updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	p := task.Progress()
	result, err := r.db.Exec(query,
		task.Status(),
		nullable(task.ErrorMessage()),
		nullable(task.StagingPath()),
		nullable(task.LibraryPath()),
		nullable(task.ResolvedURL()),
		tried,
		p.DownloadedBytes,
		p.TotalBytes,
		p.Speed,
		p.ETASeconds,
		p.Percent,
		now,
		task.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	return requireRow(result, task.ID())
}

// SetStatus transitions a task's persisted status, optionally recording an
// error message. The message is only meaningful for failed tasks.
func (r *TaskRepository) SetStatus(id string, status models.TaskStatus, errorMessage string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", shared.ErrInvalidStatus, status)
	}

	query := `
		UPDATE tasks
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, status, nullable(errorMessage), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set task status: %w", err)
	}

	return requireRow(result, id)
}

// SetProgress persists a progress snapshot for an in-flight task.
func (r *TaskRepository) SetProgress(id string, p models.Progress) error {
	if p.Percent > 100 {
		p.Percent = 100
	}

	query := `
		UPDATE tasks
		SET downloaded_bytes = ?, total_bytes = ?, speed = ?, eta_seconds = ?,
			progress = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		p.DownloadedBytes, p.TotalBytes, p.Speed, p.ETASeconds, p.Percent,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set task progress: %w", err)
	}

	return requireRow(result, id)
}

// SetResolution records the outcome of URL resolution: the resolved URL (may
// be empty on failure) and the quality labels that were attempted.
func (r *TaskRepository) SetResolution(id, resolvedURL string, tried []string) error {
	encoded, err := marshalLabels(tried)
	if err != nil {
		return fmt.Errorf("failed to encode tried qualities: %w", err)
	}

	query := `
		UPDATE tasks
		SET resolved_url = ?, tried_qualities = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, nullable(resolvedURL), encoded, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set task resolution: %w", err)
	}

	return requireRow(result, id)
}

// SetStagingPath records where the in-flight download is being staged.
func (r *TaskRepository) SetStagingPath(id, path string) error {
	return r.setPath(id, "staging_path", path)
}

// SetLibraryPath records the final library destination of a completed task.
func (r *TaskRepository) SetLibraryPath(id, path string) error {
	return r.setPath(id, "library_path", path)
}

func (r *TaskRepository) setPath(id, column, path string) error {
	query := fmt.Sprintf(`UPDATE tasks SET %s = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, column)

	result, err := r.db.Exec(query, nullable(path), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set task %s: %w", column, err)
	}

	return requireRow(result, id)
}

// Delete soft-deletes a task by ID
func (r *TaskRepository) Delete(id string) error {
	query := `
		UPDATE tasks
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return requireRow(result, id)
}

// List retrieves all tasks matching the given criteria, excluding soft-deleted tasks
func (r *TaskRepository) List(criteria map[string]any) ([]*models.DownloadTask, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE deleted_at IS NULL`

	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if service, ok := criteria["service"].(string); ok && service != "" {
		query += " AND service = ?"
		args = append(args, service)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.DownloadTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tasks, nil
}

// scanner abstracts over [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// scanTask scans one row into a [models.DownloadTask]. Returns sql.ErrNoRows
// unwrapped so callers can map it to their own sentinel.
func scanTask(row scanner) (*models.DownloadTask, error) {
	var (
		id               string
		sequence         int
		service          string
		title            string
		artist           string
		album            string
		coverURL         string
		sourceURL        string
		copyrightID      string
		contentID        string
		formats          string
		preferredQuality string
		allowDegrade     bool
		degradeOrder     string
		triedQualities   string
		status           string
		errorMessage     sql.NullString
		stagingPath      sql.NullString
		libraryPath      sql.NullString
		resolvedURL      sql.NullString
		downloadedBytes  int64
		totalBytes       int64
		speed            float64
		etaSeconds       int64
		progress         float64
		createdAt        time.Time
		updatedAt        time.Time
		deletedAt        sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &service, &title, &artist, &album, &coverURL,
		&sourceURL, &copyrightID, &contentID, &formats, &preferredQuality,
		&allowDegrade, &degradeOrder, &triedQualities, &status, &errorMessage,
		&stagingPath, &libraryPath, &resolvedURL, &downloadedBytes,
		&totalBytes, &speed, &etaSeconds, &progress, &createdAt, &updatedAt,
		&deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	order, err := unmarshalLabels(degradeOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to decode degrade order: %w", err)
	}

	tried, err := unmarshalLabels(triedQualities)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tried qualities: %w", err)
	}

	info := models.TrackInfo{
		Service:     service,
		Title:       title,
		Artist:      artist,
		Album:       album,
		CoverURL:    coverURL,
		SourceURL:   sourceURL,
		CopyrightID: copyrightID,
		ContentID:   contentID,
		Formats:     formats,
	}

	task := models.NewDownloadTask(sequence, info, preferredQuality, allowDegrade, order)
	task.SetID(id)
	task.SetCreatedAt(createdAt)
	task.SetUpdatedAt(updatedAt)
	task.SetTriedQualities(tried)

	// Restore persisted state directly; transition checks apply only to live
	// state changes, not rehydration.
	if err := restoreStatus(task, models.TaskStatus(status)); err != nil {
		return nil, err
	}

	if errorMessage.Valid {
		task.SetErrorMessage(errorMessage.String)
	}
	if stagingPath.Valid {
		task.SetStagingPath(stagingPath.String)
	}
	if libraryPath.Valid {
		task.SetLibraryPath(libraryPath.String)
	}
	if resolvedURL.Valid {
		task.SetResolvedURL(resolvedURL.String)
	}
	if deletedAt.Valid {
		task.SetDeletedAt(&deletedAt.Time)
	}

	task.SetProgress(models.Progress{
		DownloadedBytes: downloadedBytes,
		TotalBytes:      totalBytes,
		Speed:           speed,
		ETASeconds:      etaSeconds,
		Percent:         progress,
	})

	return task, nil
}

// restoreStatus walks the task through the legal transition path to reach a
// persisted status, so rehydrated tasks satisfy the same invariants as live
// ones.
func restoreStatus(task *models.DownloadTask, status models.TaskStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", shared.ErrInvalidStatus, status)
	}

	path := map[models.TaskStatus][]models.TaskStatus{
		models.StatusQueued:      {},
		models.StatusDownloading: {models.StatusDownloading},
		models.StatusOrganizing:  {models.StatusDownloading, models.StatusOrganizing},
		models.StatusDone:        {models.StatusDownloading, models.StatusOrganizing, models.StatusDone},
		models.StatusFailed:      {models.StatusFailed},
	}

	for _, step := range path[status] {
		if err := task.SetStatus(step); err != nil {
			return fmt.Errorf("failed to restore task status %q: %w", status, err)
		}
	}

	return nil
}

// requireRow converts a zero-row update into a not-found error.
func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTaskNotFound, id)
	}
	return nil
}

func marshalLabels(labels []string) (string, error) {
	if labels == nil {
		labels = []string{}
	}
	data, err := json.Marshal(labels)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalLabels(encoded string) ([]string, error) {
	if encoded == "" {
		return []string{}, nil
	}
	var labels []string
	if err := json.Unmarshal([]byte(encoded), &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// nullable maps empty strings to NULL for optional columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
