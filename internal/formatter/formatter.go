// package formatter renders task listings in various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/trackdock/internal/models"
)

// FormatBytes renders a byte count for humans.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatSpeed renders a bytes-per-second rate for humans.
func FormatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return "-"
	}
	return FormatBytes(int64(bytesPerSecond)) + "/s"
}

// FormatProgress renders one task's progress as a short status column.
func FormatProgress(task *models.DownloadTask) string {
	switch task.Status() {
	case models.StatusDownloading:
		p := task.Progress()
		if p.TotalBytes > 0 {
			return fmt.Sprintf("%.1f%% (%s)", p.Percent, FormatSpeed(p.Speed))
		}
		return FormatBytes(p.DownloadedBytes)
	case models.StatusDone:
		return task.LibraryPath()
	case models.StatusFailed:
		return task.ErrorMessage()
	default:
		return string(task.Status())
	}
}

// ExportToCSV converts tasks to CSV with columns: ID, Status, Title, Artist, Album, Quality, Progress, Library Path
func ExportToCSV(tasks []*models.DownloadTask) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Status", "Title", "Artist", "Album", "Quality", "Percent", "Library Path"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, task := range tasks {
		record := []string{
			task.ID(),
			string(task.Status()),
			task.Title(),
			task.Artist(),
			task.Album(),
			task.PreferredQuality(),
			strconv.FormatFloat(task.Progress().Percent, 'f', 1, 64),
			task.LibraryPath(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts tasks to a Markdown table grouped under a title
func ExportToMarkdown(tasks []*models.DownloadTask, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Download Tasks"
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	buf.WriteString(fmt.Sprintf("**Tasks**: %d\n\n", len(tasks)))

	buf.WriteString("| Status | Artist | Title | Quality | Progress |\n")
	buf.WriteString("|--------|--------|-------|---------|----------|\n")
	for _, task := range tasks {
		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			task.Status(), task.Artist(), task.Title(), task.PreferredQuality(), FormatProgress(task)))
	}

	return buf.Bytes(), nil
}

// ExportToText converts tasks to plain text, one line per task
func ExportToText(tasks []*models.DownloadTask) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Tasks: %d\n\n", len(tasks)))
	for i, task := range tasks {
		buf.WriteString(fmt.Sprintf("%d. [%s] %s - %s", i+1, task.Status(), task.Artist(), task.Title()))
		if detail := FormatProgress(task); detail != "" && detail != string(task.Status()) {
			buf.WriteString(fmt.Sprintf(" (%s)", detail))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// WriteCSVExport writes a task listing to {base}_tasks.csv.
//
// Defaults the base filename to a timestamp.
func WriteCSVExport(tasks []*models.DownloadTask, baseFilepath string) (string, error) {
	if baseFilepath == "" {
		baseFilepath = time.Now().Format("20060102_150405")
	}

	csvData, err := ExportToCSV(tasks)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	tasksFile := baseFilepath + "_tasks.csv"
	if err := os.WriteFile(tasksFile, csvData, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	return tasksFile, nil
}
