package models

import (
	"fmt"
	"time"
)

// TaskStatus enumerates the lifecycle states of a [DownloadTask].
//
// A task moves queued → downloading → organizing → done; any state except
// done may transition to failed.
type TaskStatus string

const (
	StatusQueued      TaskStatus = "queued"
	StatusDownloading TaskStatus = "downloading"
	StatusOrganizing  TaskStatus = "organizing"
	StatusDone        TaskStatus = "done"
	StatusFailed      TaskStatus = "failed"
)

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusDownloading, StatusOrganizing, StatusDone, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal status.
func (s TaskStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Progress is a point-in-time snapshot of download telemetry for a task.
type Progress struct {
	DownloadedBytes int64   // Bytes written so far
	TotalBytes      int64   // Content length, 0 if unknown
	Speed           float64 // Average bytes/second since the stream started
	ETASeconds      int64   // Estimated seconds remaining, 0 if unknown
	Percent         float64 // 0-100, 0 if total is unknown
}

// TrackInfo carries the display metadata attached to a task at creation.
type TrackInfo struct {
	Service     string // Upstream service name
	Title       string
	Artist      string
	Album       string
	CoverURL    string
	SourceURL   string // Already-known stream URL, empty means "must be resolved"
	CopyrightID string // Primary provider identifier
	ContentID   string // Secondary provider identifier, falls back to CopyrightID
	Formats     string // Raw "available formats" payload, stored verbatim
}

// DownloadTask represents one queued track download.
//
// The background worker owns a task exclusively from pickup until it reaches
// a terminal state; all mutation goes through the task repository.
type DownloadTask struct {
	id       string
	sequence int

	info TrackInfo

	preferredQuality string
	allowDegrade     bool
	degradeOrder     []string
	triedQualities   []string

	status       TaskStatus
	errorMessage string

	stagingPath string
	libraryPath string
	resolvedURL string

	progress Progress

	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewDownloadTask creates a queued task for the given track with the given
// quality preferences.
func NewDownloadTask(sequence int, info TrackInfo, preferred string, allowDegrade bool, degradeOrder []string) *DownloadTask {
	now := time.Now()
	return &DownloadTask{
		sequence:         sequence,
		info:             info,
		preferredQuality: preferred,
		allowDegrade:     allowDegrade,
		degradeOrder:     degradeOrder,
		triedQualities:   []string{},
		status:           StatusQueued,
		createdAt:        now,
		updatedAt:        now,
	}
}

func (t *DownloadTask) ID() string           { return t.id }
func (t *DownloadTask) Sequence() int        { return t.sequence }
func (t *DownloadTask) CreatedAt() time.Time { return t.createdAt }
func (t *DownloadTask) UpdatedAt() time.Time { return t.updatedAt }

func (t *DownloadTask) Info() TrackInfo     { return t.info }
func (t *DownloadTask) Service() string     { return t.info.Service }
func (t *DownloadTask) Title() string       { return t.info.Title }
func (t *DownloadTask) Artist() string      { return t.info.Artist }
func (t *DownloadTask) Album() string       { return t.info.Album }
func (t *DownloadTask) CoverURL() string    { return t.info.CoverURL }
func (t *DownloadTask) SourceURL() string   { return t.info.SourceURL }
func (t *DownloadTask) CopyrightID() string { return t.info.CopyrightID }
func (t *DownloadTask) Formats() string     { return t.info.Formats }

// ContentID returns the secondary provider identifier, falling back to the
// copyright ID when absent.
func (t *DownloadTask) ContentID() string {
	if t.info.ContentID == "" {
		return t.info.CopyrightID
	}
	return t.info.ContentID
}

func (t *DownloadTask) PreferredQuality() string { return t.preferredQuality }
func (t *DownloadTask) AllowDegrade() bool       { return t.allowDegrade }
func (t *DownloadTask) DegradeOrder() []string   { return t.degradeOrder }
func (t *DownloadTask) TriedQualities() []string { return t.triedQualities }

func (t *DownloadTask) Status() TaskStatus   { return t.status }
func (t *DownloadTask) ErrorMessage() string { return t.errorMessage }
func (t *DownloadTask) StagingPath() string  { return t.stagingPath }
func (t *DownloadTask) LibraryPath() string  { return t.libraryPath }
func (t *DownloadTask) ResolvedURL() string  { return t.resolvedURL }
func (t *DownloadTask) Progress() Progress   { return t.progress }
func (t *DownloadTask) DeletedAt() *time.Time {
	return t.deletedAt
}

func (t *DownloadTask) SetID(id string)                  { t.id = id }
func (t *DownloadTask) SetSequence(sequence int)         { t.sequence = sequence }
func (t *DownloadTask) SetUpdatedAt(at time.Time)        { t.updatedAt = at }
func (t *DownloadTask) SetCreatedAt(at time.Time)        { t.createdAt = at }
func (t *DownloadTask) SetDeletedAt(at *time.Time)       { t.deletedAt = at }
func (t *DownloadTask) SetErrorMessage(msg string)       { t.errorMessage = msg }
func (t *DownloadTask) SetStagingPath(path string)       { t.stagingPath = path }
func (t *DownloadTask) SetLibraryPath(path string)       { t.libraryPath = path }
func (t *DownloadTask) SetResolvedURL(url string)        { t.resolvedURL = url }
func (t *DownloadTask) SetTriedQualities(tried []string) { t.triedQualities = tried }

// SetStatus transitions the task to the given status.
//
// Illegal transitions (out of a terminal state, or skipping backwards into
// queued) are rejected so a finished task cannot be silently revived.
func (t *DownloadTask) SetStatus(status TaskStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown task status %q", status)
	}
	if t.status.Terminal() && status != t.status {
		return fmt.Errorf("task %s is %s and cannot move to %s", t.id, t.status, status)
	}
	if status == StatusQueued && t.status != StatusQueued {
		return fmt.Errorf("task %s cannot return to queued from %s", t.id, t.status)
	}
	t.status = status
	return nil
}

// SetProgress replaces the progress snapshot, clamping percent to [0, 100].
func (t *DownloadTask) SetProgress(p Progress) {
	if p.Percent > 100 {
		p.Percent = 100
	}
	if p.Percent < 0 {
		p.Percent = 0
	}
	t.progress = p
}

// Validate checks if the task's data is valid.
func (t *DownloadTask) Validate() error {
	if t.info.Service == "" {
		return fmt.Errorf("task service is required")
	}
	if t.info.Title == "" {
		return fmt.Errorf("task title is required")
	}
	if !t.status.Valid() {
		return fmt.Errorf("unknown task status %q", t.status)
	}
	if t.status == StatusDone && t.libraryPath == "" {
		return fmt.Errorf("done task must have a library path")
	}
	if t.progress.Percent < 0 || t.progress.Percent > 100 {
		return fmt.Errorf("progress percent out of range: %f", t.progress.Percent)
	}
	return nil
}
