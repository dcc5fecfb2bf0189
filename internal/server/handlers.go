package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackdock/internal/models"
	"github.com/desertthunder/trackdock/internal/shared"
)

// TaskStore is the slice of the task repository the HTTP handlers need.
type TaskStore interface {
	Create(task *models.DownloadTask) error
	Get(id string) (*models.DownloadTask, error)
	List(criteria map[string]any) ([]*models.DownloadTask, error)
}

// createTaskRequest is the POST /api/tasks payload. Quality fields are
// optional and fall back to the configured defaults.
type createTaskRequest struct {
	Service     string `json:"service"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	CoverURL    string `json:"cover_url"`
	SourceURL   string `json:"source_url"`
	CopyrightID string `json:"copyright_id"`
	ContentID   string `json:"content_id"`
	Formats     string `json:"formats"`

	PreferredQuality string   `json:"preferred_quality"`
	AllowDegrade     *bool    `json:"allow_degrade"`
	DegradeOrder     []string `json:"degrade_order"`
}

type progressResponse struct {
	DownloadedBytes int64   `json:"downloaded_bytes"`
	TotalBytes      int64   `json:"total_bytes"`
	Speed           float64 `json:"speed"`
	ETASeconds      int64   `json:"eta_seconds"`
	Percent         float64 `json:"percent"`
}

type taskResponse struct {
	ID               string           `json:"id"`
	Status           string           `json:"status"`
	Service          string           `json:"service"`
	Title            string           `json:"title"`
	Artist           string           `json:"artist"`
	Album            string           `json:"album,omitempty"`
	PreferredQuality string           `json:"preferred_quality"`
	TriedQualities   []string         `json:"tried_qualities,omitempty"`
	Progress         progressResponse `json:"progress"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	LibraryPath      string           `json:"library_path,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func toTaskResponse(task *models.DownloadTask) taskResponse {
	p := task.Progress()
	return taskResponse{
		ID:               task.ID(),
		Status:           string(task.Status()),
		Service:          task.Service(),
		Title:            task.Title(),
		Artist:           task.Artist(),
		Album:            task.Album(),
		PreferredQuality: task.PreferredQuality(),
		TriedQualities:   task.TriedQualities(),
		Progress: progressResponse{
			DownloadedBytes: p.DownloadedBytes,
			TotalBytes:      p.TotalBytes,
			Speed:           p.Speed,
			ETASeconds:      p.ETASeconds,
			Percent:         p.Percent,
		},
		ErrorMessage: task.ErrorMessage(),
		LibraryPath:  task.LibraryPath(),
		CreatedAt:    task.CreatedAt(),
		UpdatedAt:    task.UpdatedAt(),
	}
}

// TaskHandler serves the task API endpoints.
type TaskHandler struct {
	store    TaskStore
	defaults shared.QualityConfig
	logger   *log.Logger
}

// NewTaskHandler creates a TaskHandler with quality defaults from config.
func NewTaskHandler(store TaskStore, defaults shared.QualityConfig, logger *log.Logger) *TaskHandler {
	return &TaskHandler{store: store, defaults: defaults, logger: logger}
}

// Routes implements [Handler].
func (h *TaskHandler) Routes() []string {
	return []string{"/api/tasks", "/api/tasks/"}
}

// ServeHTTP dispatches task API requests by method and path.
func (h *TaskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tasks"), "/")

	switch {
	case r.Method == http.MethodPost && id == "":
		h.create(w, r)
	case r.Method == http.MethodGet && id == "":
		h.list(w, r)
	case r.Method == http.MethodGet:
		h.get(w, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *TaskHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	preferred := req.PreferredQuality
	if preferred == "" {
		preferred = h.defaults.Preferred
	}
	allowDegrade := h.defaults.AllowDegrade
	if req.AllowDegrade != nil {
		allowDegrade = *req.AllowDegrade
	}
	order := req.DegradeOrder
	if len(order) == 0 {
		order = h.defaults.DegradeOrder
	}

	task := models.NewDownloadTask(0, models.TrackInfo{
		Service:     req.Service,
		Title:       req.Title,
		Artist:      req.Artist,
		Album:       req.Album,
		CoverURL:    req.CoverURL,
		SourceURL:   req.SourceURL,
		CopyrightID: req.CopyrightID,
		ContentID:   req.ContentID,
		Formats:     req.Formats,
	}, preferred, allowDegrade, order)

	if err := task.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if task.SourceURL() == "" && task.CopyrightID() == "" {
		writeError(w, http.StatusBadRequest, "either source_url or copyright_id is required")
		return
	}

	if err := h.store.Create(task); err != nil {
		h.logger.Error("failed to create task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	h.logger.Info("task enqueued", "task", task.ID(), "title", task.Title())
	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

func (h *TaskHandler) list(w http.ResponseWriter, r *http.Request) {
	criteria := map[string]any{}
	if status := r.URL.Query().Get("status"); status != "" {
		if !models.TaskStatus(status).Valid() {
			writeError(w, http.StatusBadRequest, "unknown status filter")
			return
		}
		criteria["status"] = status
	}

	tasks, err := h.store.List(criteria)
	if err != nil {
		h.logger.Error("failed to list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	responses := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, toTaskResponse(task))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": responses})
}

func (h *TaskHandler) get(w http.ResponseWriter, id string) {
	task, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, shared.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		h.logger.Error("failed to load task", "task", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

// HealthHandler answers liveness checks.
type HealthHandler struct{}

// Routes implements [Handler].
func (h *HealthHandler) Routes() []string {
	return []string{"/health"}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
