package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackdock/internal/shared"
	th "github.com/desertthunder/trackdock/internal/testing"
	"github.com/urfave/cli/v3"
)

func testConfig(t *testing.T) *shared.Config {
	t.Helper()

	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(dir, "tasks.db")
	config.Paths.StagingDir = filepath.Join(dir, "staging")
	config.Paths.LibraryDir = filepath.Join(dir, "library")
	return config
}

func migratedRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()

	config := testConfig(t)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	db.Close()

	var output bytes.Buffer
	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: log.New(io.Discard),
		Output: &output,
	})
	return runner, &output
}

func runCommand(t *testing.T, runner *Runner, args ...string) error {
	t.Helper()

	app := &cli.Command{
		Name:     "trackdock",
		Commands: runner.register(),
	}
	return app.Run(context.Background(), append([]string{"trackdock"}, args...))
}

func TestNewRunner(t *testing.T) {
	t.Run("Applies Defaults", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})

		if runner.config == nil {
			t.Error("expected default config")
		}
		if runner.logger == nil {
			t.Error("expected default logger")
		}
		if runner.output == nil {
			t.Error("expected default output writer")
		}
	})
}

func TestAddTask(t *testing.T) {
	t.Run("Enqueues Task", func(t *testing.T) {
		runner, output := migratedRunner(t)

		err := runCommand(t, runner, "add",
			"--title", "No Surprises",
			"--artist", "Radiohead",
			"--copyright-id", "600902000007",
			"--quality", "high",
		)
		if err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if !strings.Contains(output.String(), "Enqueued Radiohead - No Surprises") {
			t.Errorf("expected confirmation, got: %s", output.String())
		}
	})

	t.Run("Requires An Identifier", func(t *testing.T) {
		runner, _ := migratedRunner(t)

		err := runCommand(t, runner, "add", "--title", "Orphan Track")
		if err == nil {
			t.Fatal("expected error without url or copyright id")
		}
	})

	t.Run("Rejects Unknown Quality", func(t *testing.T) {
		runner, _ := migratedRunner(t)

		err := runCommand(t, runner, "add",
			"--title", "Track", "--copyright-id", "1", "--quality", "ultra")
		if err == nil {
			t.Fatal("expected error for unknown quality")
		}
	})
}

func TestListAndShow(t *testing.T) {
	seed := func(t *testing.T, runner *Runner, title string) {
		t.Helper()
		if err := runCommand(t, runner, "add",
			"--title", title, "--artist", "Artist", "--copyright-id", "600902000007"); err != nil {
			t.Fatalf("failed to seed task: %v", err)
		}
	}

	t.Run("List JSON", func(t *testing.T) {
		runner, output := migratedRunner(t)
		seed(t, runner, "First")
		seed(t, runner, "Second")
		output.Reset()

		if err := runCommand(t, runner, "list", "--format", "json"); err != nil {
			t.Fatalf("list failed: %v", err)
		}

		var views []taskView
		if err := json.Unmarshal(output.Bytes(), &views); err != nil {
			t.Fatalf("failed to decode list output: %v", err)
		}
		if len(views) != 2 {
			t.Fatalf("expected 2 tasks, got %d", len(views))
		}
		if views[0].Title != "First" || views[1].Title != "Second" {
			t.Errorf("expected queue order, got %s then %s", views[0].Title, views[1].Title)
		}
	})

	t.Run("List Text", func(t *testing.T) {
		runner, output := migratedRunner(t)
		seed(t, runner, "Only Track")
		output.Reset()

		if err := runCommand(t, runner, "list"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(output.String(), "[queued] Artist - Only Track") {
			t.Errorf("expected text listing, got: %s", output.String())
		}
	})

	t.Run("List Rejects Bad Status", func(t *testing.T) {
		runner, _ := migratedRunner(t)
		if err := runCommand(t, runner, "list", "--status", "bogus"); err == nil {
			t.Fatal("expected error for unknown status")
		}
	})

	t.Run("Show", func(t *testing.T) {
		runner, output := migratedRunner(t)
		seed(t, runner, "Shown Track")

		var views []taskView
		output.Reset()
		if err := runCommand(t, runner, "list", "--format", "json"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if err := json.Unmarshal(output.Bytes(), &views); err != nil || len(views) != 1 {
			t.Fatalf("failed to find seeded task: %v", err)
		}

		output.Reset()
		if err := runCommand(t, runner, "show", views[0].ID); err != nil {
			t.Fatalf("show failed: %v", err)
		}
		if !strings.Contains(output.String(), "Shown Track") {
			t.Errorf("expected task detail, got: %s", output.String())
		}
	})

	t.Run("Show Unknown Task", func(t *testing.T) {
		runner, _ := migratedRunner(t)
		if err := runCommand(t, runner, "show", "no-such-task"); err == nil {
			t.Fatal("expected error for unknown task")
		}
	})
}

func TestOutputFailures(t *testing.T) {
	seed := func(t *testing.T, runner *Runner) {
		t.Helper()
		if err := runCommand(t, runner, "add",
			"--title", "Track", "--artist", "Artist", "--copyright-id", "600902000007"); err != nil {
			t.Fatalf("failed to seed task: %v", err)
		}
	}

	t.Run("Write Error Surfaces", func(t *testing.T) {
		runner, _ := migratedRunner(t)
		seed(t, runner)

		runner.output = &th.FWriter{}
		if err := runCommand(t, runner, "list", "--format", "json"); err == nil {
			t.Fatal("expected write failure to surface")
		}
	})

	t.Run("Truncated Output Surfaces", func(t *testing.T) {
		runner, _ := migratedRunner(t)
		seed(t, runner)

		limited := th.NewLimitedWriter(1, 0, io.Discard)
		runner.output = &limited
		if err := runCommand(t, runner, "list", "--format", "json"); err == nil {
			t.Fatal("expected truncated output to surface")
		}
	})
}

func TestRetryTask(t *testing.T) {
	t.Run("Only Failed Tasks Can Retry", func(t *testing.T) {
		runner, output := migratedRunner(t)

		if err := runCommand(t, runner, "add",
			"--title", "Track", "--copyright-id", "600902000007"); err != nil {
			t.Fatalf("failed to seed task: %v", err)
		}

		var views []taskView
		output.Reset()
		if err := runCommand(t, runner, "list", "--format", "json"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if err := json.Unmarshal(output.Bytes(), &views); err != nil || len(views) != 1 {
			t.Fatalf("failed to find seeded task: %v", err)
		}

		// Still queued, so retry must refuse.
		if err := runCommand(t, runner, "retry", views[0].ID); err == nil {
			t.Fatal("expected retry of queued task to fail")
		}
	})
}

func TestSetupHeaders(t *testing.T) {
	curl := `curl 'https://music.example.com/search' -H 'User-Agent: Mozilla/5.0' -H 'Referer: https://music.example.com/'`

	t.Run("Saves Capture", func(t *testing.T) {
		runner, output := migratedRunner(t)
		capturePath := filepath.Join(t.TempDir(), "headers.curl")

		err := runCommand(t, runner, "headers", "--curl", curl, "--output", capturePath)
		if err != nil {
			t.Fatalf("headers failed: %v", err)
		}

		th.AssertFileExists(t, capturePath)
		if saved := th.MustReadFile(t, capturePath); !strings.Contains(saved, "User-Agent: Mozilla/5.0") {
			t.Errorf("expected capture saved verbatim, got: %s", saved)
		}
		if !strings.Contains(output.String(), "Provider headers configured") {
			t.Errorf("expected confirmation, got: %s", output.String())
		}
	})

	t.Run("Requires Exactly One Source", func(t *testing.T) {
		runner, _ := migratedRunner(t)

		if err := runCommand(t, runner, "headers"); err == nil {
			t.Fatal("expected error with neither --curl nor --curl-file")
		}
		if err := runCommand(t, runner, "headers", "--curl", curl, "--curl-file", "x"); err == nil {
			t.Fatal("expected error with both sources")
		}
	})
}

func TestSetupDatabase(t *testing.T) {
	wd := th.MustGetwd(t)
	th.MustChdir(t, t.TempDir())
	defer th.MustChdir(t, wd)

	var output bytes.Buffer
	runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: &output})

	if err := runCommand(t, runner, "setup"); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	th.AssertFileExists(t, "config.toml")
	th.AssertFileExists(t, runner.config.Database.Path)
}
