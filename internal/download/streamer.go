// Package download streams resolved URLs into the staging directory and
// reports progress while doing so.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackdock/internal/models"
	"github.com/desertthunder/trackdock/internal/shared"
	"github.com/google/uuid"
)

// ProgressFunc receives throttled progress snapshots during a stream. It
// must not block; slow persistence belongs on the callee's side.
type ProgressFunc func(models.Progress)

// Result describes a completed stream.
type Result struct {
	StagingPath string // Final staged file, extension already applied
	Bytes       int64
	Ext         string
}

// Streamer downloads a URL into the staging directory. Partial files use a
// unique name per attempt so a crashed or failed run never collides with a
// retry.
type Streamer struct {
	client     *http.Client
	header     http.Header
	stagingDir string
	throttle   time.Duration
	logger     *log.Logger
}

// StreamerOpts configures a Streamer.
type StreamerOpts struct {
	StagingDir string
	// Header is replayed on stream requests, matching what resolution sent.
	Header        http.Header
	StreamTimeout time.Duration
	// Throttle caps how often progress snapshots are emitted. Zero means
	// every 500ms.
	Throttle  time.Duration
	Transport http.RoundTripper
}

// NewStreamer creates a Streamer.
func NewStreamer(opts StreamerOpts, logger *log.Logger) *Streamer {
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = 60 * time.Second
	}
	if opts.Throttle <= 0 {
		opts.Throttle = 500 * time.Millisecond
	}

	return &Streamer{
		client: &http.Client{
			Timeout:   opts.StreamTimeout,
			Transport: opts.Transport,
		},
		header:     opts.Header,
		stagingDir: opts.StagingDir,
		throttle:   opts.Throttle,
		logger:     logger,
	}
}

// Stream downloads rawURL into a fresh staging file for taskID, emitting
// progress through onProgress as bytes arrive. On any failure the partial
// file is removed before returning.
func (s *Streamer) Stream(ctx context.Context, taskID, rawURL string, onProgress ProgressFunc) (*Result, error) {
	if err := os.MkdirAll(s.stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range s.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStreamFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: upstream returned status %d", shared.ErrStreamFailed, resp.StatusCode)
	}

	partial := filepath.Join(s.stagingDir, fmt.Sprintf("%s-%s.part", taskID, uuid.New().String()))
	file, err := os.Create(partial)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	downloaded, err := s.copy(ctx, file, resp.Body, total, onProgress)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(partial)
		return nil, fmt.Errorf("%w: %v", shared.ErrStreamFailed, err)
	}

	ext := InferExtension(rawURL, resp.Header)
	staged := strings.TrimSuffix(partial, ".part") + ext
	if err := os.Rename(partial, staged); err != nil {
		os.Remove(partial)
		return nil, fmt.Errorf("failed to finalize staging file: %w", err)
	}

	s.logger.Debug("stream complete", "task", taskID, "bytes", downloaded, "path", staged)

	return &Result{StagingPath: staged, Bytes: downloaded, Ext: ext}, nil
}

func (s *Streamer) copy(ctx context.Context, dst io.Writer, src io.Reader, total int64, onProgress ProgressFunc) (int64, error) {
	buf := make([]byte, 32*1024)
	start := time.Now()
	lastEmit := start

	var downloaded int64
	for {
		if err := ctx.Err(); err != nil {
			return downloaded, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return downloaded, writeErr
			}
			downloaded += int64(n)
		}

		now := time.Now()
		done := readErr == io.EOF
		if onProgress != nil && (done || now.Sub(lastEmit) >= s.throttle) {
			lastEmit = now
			onProgress(snapshot(downloaded, total, now.Sub(start)))
		}

		if readErr != nil {
			if readErr == io.EOF {
				return downloaded, nil
			}
			return downloaded, readErr
		}
	}
}

// snapshot derives the telemetry fields from raw byte counts. Speed is the
// average since the stream started, not an instantaneous rate.
func snapshot(downloaded, total int64, elapsed time.Duration) models.Progress {
	p := models.Progress{
		DownloadedBytes: downloaded,
		TotalBytes:      total,
	}

	if elapsed > 0 {
		p.Speed = float64(downloaded) / elapsed.Seconds()
	}
	if total > 0 {
		p.Percent = float64(downloaded) / float64(total) * 100
		if p.Percent > 100 {
			p.Percent = 100
		}
		if p.Speed > 0 && downloaded < total {
			p.ETASeconds = int64(float64(total-downloaded) / p.Speed)
		}
	}

	return p
}
