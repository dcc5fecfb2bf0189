package repositories

import (
	"errors"
	"testing"

	"github.com/desertthunder/trackdock/internal/models"
	"github.com/desertthunder/trackdock/internal/shared"
)

func TestTaskRepositoryErrors(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		t.Run("ValidationError", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewTaskRepository(db)
			task := models.NewDownloadTask(0, models.TrackInfo{Service: "music"}, "high", true, nil)

			if err := repo.Create(task); err == nil {
				t.Fatal("expected validation error for missing title")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewTaskRepository(db)

			_, err := repo.Get("nonexistent-id")
			if !errors.Is(err, shared.ErrTaskNotFound) {
				t.Fatalf("expected ErrTaskNotFound, got %v", err)
			}
		})
	})

	t.Run("SetStatus", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewTaskRepository(db)

			err := repo.SetStatus("nonexistent-id", models.StatusFailed, "boom")
			if !errors.Is(err, shared.ErrTaskNotFound) {
				t.Fatalf("expected ErrTaskNotFound, got %v", err)
			}
		})

		t.Run("InvalidStatus", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewTaskRepository(db)

			err := repo.SetStatus("any-id", models.TaskStatus("exploded"), "")
			if !errors.Is(err, shared.ErrInvalidStatus) {
				t.Fatalf("expected ErrInvalidStatus, got %v", err)
			}
		})
	})

	t.Run("Update", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewTaskRepository(db)
			task := newQueuedTask("Ghost")
			task.SetID("nonexistent-id")

			if err := repo.Update(task); !errors.Is(err, shared.ErrTaskNotFound) {
				t.Fatalf("expected ErrTaskNotFound, got %v", err)
			}
		})

		t.Run("Deleted", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewTaskRepository(db)
			task := newQueuedTask("Gone")

			if err := repo.Create(task); err != nil {
				t.Fatalf("failed to create task: %v", err)
			}
			if err := repo.Delete(task.ID()); err != nil {
				t.Fatalf("failed to delete task: %v", err)
			}

			if err := repo.SetProgress(task.ID(), models.Progress{Percent: 10}); !errors.Is(err, shared.ErrTaskNotFound) {
				t.Fatalf("expected ErrTaskNotFound for deleted task, got %v", err)
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("Twice", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewTaskRepository(db)
			task := newQueuedTask("Twice Deleted")

			if err := repo.Create(task); err != nil {
				t.Fatalf("failed to create task: %v", err)
			}
			if err := repo.Delete(task.ID()); err != nil {
				t.Fatalf("failed to delete task: %v", err)
			}
			if err := repo.Delete(task.ID()); !errors.Is(err, shared.ErrTaskNotFound) {
				t.Fatalf("expected ErrTaskNotFound on second delete, got %v", err)
			}
		})
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	first, err := NextSequence(db, "tasks")
	if err != nil {
		t.Fatalf("failed to get sequence: %v", err)
	}

	second, err := NextSequence(db, "tasks")
	if err != nil {
		t.Fatalf("failed to get sequence: %v", err)
	}

	if second != first+1 {
		t.Errorf("expected monotonically increasing sequence, got %d then %d", first, second)
	}
}
