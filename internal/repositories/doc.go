// Package repositories provides the persistence layer for the task queue.
//
// TaskRepository implements models.Repository[*models.DownloadTask] on
// SQLite, handling CRUD operations, soft deletes, sequence generation, and
// the partial field updates the download worker performs mid-flight
// (status, progress telemetry, resolution results, paths).
package repositories
