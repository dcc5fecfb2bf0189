package download

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackdock/internal/models"
	"github.com/desertthunder/trackdock/internal/shared"
	th "github.com/desertthunder/trackdock/internal/testing"
)

func TestInferExtension(t *testing.T) {
	tc := []struct {
		name   string
		url    string
		header http.Header
		want   string
	}{
		{
			name: "url path extension wins",
			url:  "https://files.example.com/public/track.flac",
			want: ".flac",
		},
		{
			name: "uppercase path extension normalized",
			url:  "https://files.example.com/public/TRACK.FLAC",
			want: ".flac",
		},
		{
			name:   "script placeholder ignored",
			url:    "https://app.example.com/app/v3/listen.do?toneFlag=020010",
			header: http.Header{"Content-Type": []string{"audio/mpeg"}},
			want:   ".mp3",
		},
		{
			name:   "content disposition over content type",
			url:    "https://app.example.com/app/v3/listen.do",
			header: http.Header{"Content-Disposition": []string{`attachment; filename="song title.m4a"`}, "Content-Type": []string{"audio/mpeg"}},
			want:   ".m4a",
		},
		{
			name:   "content type with charset parameter",
			url:    "https://app.example.com/play.action",
			header: http.Header{"Content-Type": []string{"audio/flac; charset=binary"}},
			want:   ".flac",
		},
		{
			name: "nothing known defaults to mp3",
			url:  "https://app.example.com/stream",
			want: DefaultExt,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.header
			if header == nil {
				header = http.Header{}
			}
			if got := InferExtension(tt.url, header); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func newTestStreamer(t *testing.T, throttle time.Duration) (*Streamer, string) {
	t.Helper()

	stagingDir := t.TempDir()
	streamer := NewStreamer(StreamerOpts{
		StagingDir: stagingDir,
		Throttle:   throttle,
	}, log.New(io.Discard))

	return streamer, stagingDir
}

func stagedFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read staging dir: %v", err)
	}

	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestStream(t *testing.T) {
	payload := bytes.Repeat([]byte("trackdock"), 4096)

	t.Run("Downloads To Staging", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "audio/mpeg")
			w.Write(payload)
		}))
		defer server.Close()

		streamer, stagingDir := newTestStreamer(t, 0)

		result, err := streamer.Stream(context.Background(), "task-123", server.URL+"/listen.do", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Bytes != int64(len(payload)) {
			t.Errorf("expected %d bytes, got %d", len(payload), result.Bytes)
		}
		if result.Ext != ".mp3" {
			t.Errorf("expected .mp3 from content type, got %s", result.Ext)
		}
		if !strings.HasPrefix(filepath.Base(result.StagingPath), "task-123-") {
			t.Errorf("expected staging name keyed by task id, got %s", result.StagingPath)
		}

		content, err := os.ReadFile(result.StagingPath)
		if err != nil {
			t.Fatalf("failed to read staged file: %v", err)
		}
		if !bytes.Equal(content, payload) {
			t.Error("staged content does not match payload")
		}

		if files := stagedFiles(t, stagingDir); len(files) != 1 {
			t.Errorf("expected exactly the staged file, got %v", files)
		}
	})

	t.Run("Progress Is Monotonic And Completes", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			w.Write(payload)
		}))
		defer server.Close()

		streamer, _ := newTestStreamer(t, time.Nanosecond)

		var snapshots []models.Progress
		_, err := streamer.Stream(context.Background(), "task-456", server.URL+"/track.mp3", func(p models.Progress) {
			snapshots = append(snapshots, p)
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(snapshots) == 0 {
			t.Fatal("expected at least one progress snapshot")
		}

		var last int64
		for i, p := range snapshots {
			if p.DownloadedBytes < last {
				t.Errorf("snapshot %d: downloaded went backwards (%d < %d)", i, p.DownloadedBytes, last)
			}
			last = p.DownloadedBytes
		}

		final := snapshots[len(snapshots)-1]
		if final.DownloadedBytes != int64(len(payload)) {
			t.Errorf("expected final snapshot at %d bytes, got %d", len(payload), final.DownloadedBytes)
		}
		if final.TotalBytes != int64(len(payload)) {
			t.Errorf("expected content length in snapshots, got %d", final.TotalBytes)
		}
		if final.Percent != 100 {
			t.Errorf("expected 100 percent, got %f", final.Percent)
		}
	})

	t.Run("No Partial Left After Truncated Stream", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Length", "100000")
			w.Write(payload[:64])
		}))
		defer server.Close()

		streamer, stagingDir := newTestStreamer(t, 0)

		_, err := streamer.Stream(context.Background(), "task-789", server.URL+"/track.mp3", nil)
		if !errors.Is(err, shared.ErrStreamFailed) {
			t.Fatalf("expected ErrStreamFailed, got %v", err)
		}

		if files := stagedFiles(t, stagingDir); len(files) != 0 {
			t.Errorf("expected staging dir cleaned up, found %v", files)
		}
	})

	t.Run("Rejects Non-200 Status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		streamer, stagingDir := newTestStreamer(t, 0)

		_, err := streamer.Stream(context.Background(), "task-999", server.URL+"/track.mp3", nil)
		if !errors.Is(err, shared.ErrStreamFailed) {
			t.Fatalf("expected ErrStreamFailed, got %v", err)
		}
		if files := stagedFiles(t, stagingDir); len(files) != 0 {
			t.Errorf("expected no files created, found %v", files)
		}
	})

	t.Run("Transport Error Fails The Stream", func(t *testing.T) {
		stagingDir := t.TempDir()
		streamer := NewStreamer(StreamerOpts{
			StagingDir: stagingDir,
			Transport:  th.NewMockRoundTripper(nil, errors.New("connection reset")),
		}, log.New(io.Discard))

		_, err := streamer.Stream(context.Background(), "task-rst", "http://files.invalid/track.mp3", nil)
		if !errors.Is(err, shared.ErrStreamFailed) {
			t.Fatalf("expected ErrStreamFailed, got %v", err)
		}
		if files := stagedFiles(t, stagingDir); len(files) != 0 {
			t.Errorf("expected no files created, found %v", files)
		}
	})

	t.Run("Replays Captured Headers", func(t *testing.T) {
		var seen string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = r.Header.Get("User-Agent")
			w.Write(payload[:64])
		}))
		defer server.Close()

		header := http.Header{}
		header.Set("User-Agent", "Mozilla/5.0")

		streamer := NewStreamer(StreamerOpts{
			StagingDir: t.TempDir(),
			Header:     header,
		}, log.New(io.Discard))

		if _, err := streamer.Stream(context.Background(), "task-hdr", server.URL+"/track.mp3", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen != "Mozilla/5.0" {
			t.Errorf("expected captured user agent replayed, got %s", seen)
		}
	})
}
