// Package models defines the data model for the track download service.
//
// Persistent models:
//   - [DownloadTask] : A queued track download tracked across its whole
//     lifecycle, from creation through resolution, streaming, and library
//     commit (or failure).
//
// Transient values:
//   - [Progress] : A point-in-time snapshot of download telemetry.
//
// All persistent models implement the [Model] interface and are stored via
// implementations of [Repository].
package models
