// Package server provides the HTTP surface for submitting and inspecting
// download tasks.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Task API
//
// [TaskHandler] serves the task endpoints:
//
//   - POST /api/tasks enqueues a download task
//   - GET  /api/tasks lists tasks, optionally filtered by status
//   - GET  /api/tasks/{id} returns one task with progress telemetry
//
// The handler never mutates task state beyond creation; the background
// worker owns every transition after queued.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
