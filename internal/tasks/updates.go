package tasks

import (
	"fmt"

	"github.com/desertthunder/trackdock/internal/models"
)

// ProgressUpdate represents a progress event during task processing.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	TaskID   string
	Phase    Phase           // Operation phase
	Message  string          // Human-readable message for display
	Progress models.Progress // Byte-level telemetry, zero outside Download
}

// Operation phase enumeration
type Phase int

const (
	Pickup Phase = iota
	Resolve
	Download
	Commit
	Finished
)

func (p Phase) String() string {
	switch p {
	case Pickup:
		return "pickup"
	case Resolve:
		return "resolve"
	case Download:
		return "download"
	case Commit:
		return "commit"
	case Finished:
		return "finished"
	default:
		return ""
	}
}

func pickupUpdate(task *models.DownloadTask) ProgressUpdate {
	return ProgressUpdate{
		TaskID:  task.ID(),
		Phase:   Pickup,
		Message: fmt.Sprintf("Starting: %s - %s", task.Artist(), task.Title()),
	}
}

func resolvingUpdate(taskID, preferred string) ProgressUpdate {
	return ProgressUpdate{
		TaskID:  taskID,
		Phase:   Resolve,
		Message: fmt.Sprintf("Resolving download URL (preferred quality: %s)...", preferred),
	}
}

func resolvedUpdate(taskID, label string) ProgressUpdate {
	return ProgressUpdate{
		TaskID:  taskID,
		Phase:   Resolve,
		Message: fmt.Sprintf("Resolved at quality: %s", label),
	}
}

func downloadUpdate(taskID string, p models.Progress) ProgressUpdate {
	return ProgressUpdate{
		TaskID:   taskID,
		Phase:    Download,
		Message:  fmt.Sprintf("Downloading... %.1f%%", p.Percent),
		Progress: p,
	}
}

func committingUpdate(taskID string) ProgressUpdate {
	return ProgressUpdate{
		TaskID:  taskID,
		Phase:   Commit,
		Message: "Moving into library...",
	}
}

func finishedUpdate(taskID, libraryPath string) ProgressUpdate {
	return ProgressUpdate{
		TaskID:  taskID,
		Phase:   Finished,
		Message: fmt.Sprintf("Done: %s", libraryPath),
	}
}

func failedUpdate(taskID string, err error) ProgressUpdate {
	return ProgressUpdate{
		TaskID:  taskID,
		Phase:   Finished,
		Message: fmt.Sprintf("Failed: %v", err),
	}
}
