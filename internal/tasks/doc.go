// package tasks drives queued download tasks through their lifecycle.
//
// The core abstraction is Engine, which takes one task from pickup through
// URL resolution, streaming, and library commit, persisting each state
// transition before doing the work behind it. Worker wraps an Engine in a
// single-goroutine polling loop over the task queue.
//
// Operations emit progress updates via channels for non-blocking status
// reporting to CLI/UI layers.
package tasks
