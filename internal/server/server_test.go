package server

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackdock/internal/models"
	"github.com/desertthunder/trackdock/internal/repositories"
	"github.com/desertthunder/trackdock/internal/shared"
)

func setupHandler(t *testing.T) (*TaskHandler, *repositories.TaskRepository, *sql.DB) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	repo := repositories.NewTaskRepository(db)
	defaults := shared.QualityConfig{
		Preferred:    "high",
		AllowDegrade: true,
		DegradeOrder: []string{"high", "mid", "low"},
	}

	return NewTaskHandler(repo, defaults, log.New(io.Discard)), repo, db
}

func newRouter(handler *TaskHandler) *BasicRouter {
	router := NewBasicRouter()
	router.Handler(handler)
	router.Handler(&HealthHandler{})
	return router
}

func decodeTask(t *testing.T, body io.Reader) taskResponse {
	t.Helper()

	var resp taskResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestTaskHandler(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		handler, _, _ := setupHandler(t)
		router := newRouter(handler)

		body := `{
			"service": "music",
			"title": "No Surprises",
			"artist": "Radiohead",
			"copyright_id": "600902000007",
			"formats": "[{\"quality\":\"high\",\"android\":\"020010\"}]"
		}`

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(body)))

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		resp := decodeTask(t, rec.Body)
		if resp.ID == "" {
			t.Error("expected task ID assigned")
		}
		if resp.Status != string(models.StatusQueued) {
			t.Errorf("expected queued, got %s", resp.Status)
		}
		if resp.PreferredQuality != "high" {
			t.Errorf("expected default quality applied, got %s", resp.PreferredQuality)
		}
	})

	t.Run("Create Validates Input", func(t *testing.T) {
		handler, _, _ := setupHandler(t)
		router := newRouter(handler)

		tc := []struct {
			name string
			body string
		}{
			{name: "not json", body: `{{{`},
			{name: "missing title", body: `{"service":"music","artist":"X","copyright_id":"1"}`},
			{name: "no identifiers", body: `{"service":"music","title":"T","artist":"X"}`},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(tt.body)))

				if rec.Code != http.StatusBadRequest {
					t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
				}
			})
		}
	})

	t.Run("Get", func(t *testing.T) {
		handler, repo, _ := setupHandler(t)
		router := newRouter(handler)

		task := models.NewDownloadTask(0, models.TrackInfo{
			Service: "music", Title: "Track", Artist: "Artist", CopyrightID: "600902000007",
		}, "high", true, []string{"high", "mid", "low"})
		if err := repo.Create(task); err != nil {
			t.Fatalf("failed to seed task: %v", err)
		}

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/"+task.ID(), nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if resp := decodeTask(t, rec.Body); resp.ID != task.ID() {
			t.Errorf("expected task %s, got %s", task.ID(), resp.ID)
		}
	})

	t.Run("Get Unknown Returns 404", func(t *testing.T) {
		handler, _, _ := setupHandler(t)
		router := newRouter(handler)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/no-such-task", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("List With Status Filter", func(t *testing.T) {
		handler, repo, _ := setupHandler(t)
		router := newRouter(handler)

		for _, title := range []string{"One", "Two"} {
			task := models.NewDownloadTask(0, models.TrackInfo{
				Service: "music", Title: title, Artist: "Artist", CopyrightID: "600902000007",
			}, "high", true, nil)
			if err := repo.Create(task); err != nil {
				t.Fatalf("failed to seed task: %v", err)
			}
		}

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks?status=queued", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var resp struct {
			Tasks []taskResponse `json:"tasks"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(resp.Tasks) != 2 {
			t.Errorf("expected 2 queued tasks, got %d", len(resp.Tasks))
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks?status=bogus", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for unknown status, got %d", rec.Code)
		}
	})
}

func TestHealthHandler(t *testing.T) {
	router := NewBasicRouter()
	router.Handler(&HealthHandler{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("expected ok body, got %s", rec.Body.String())
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf strings.Builder
	logger := log.New(&buf)

	router := NewBasicRouter()
	router.Use(LoggingMiddleware(logger))
	router.Handler(&HealthHandler{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	logged := buf.String()
	for _, fragment := range []string{"GET", "/health", "200"} {
		if !strings.Contains(logged, fragment) {
			t.Errorf("expected log to contain %q, got %s", fragment, logged)
		}
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	router := NewBasicRouter()
	router.Use(RecoveryMiddleware(log.New(io.Discard)))
	router.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 after panic, got %d", rec.Code)
	}
}
