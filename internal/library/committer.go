// Package library moves staged downloads into their final place in the
// music library.
//
// The layout is fixed: <library>/<artist>/Singles/<title><ext>. Artist and
// title come from untrusted upstream metadata, so both are sanitized into
// safe single path segments before any filesystem work happens.
package library

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackdock/internal/shared"
	"github.com/google/uuid"
)

// Fallback segment names for metadata that sanitizes down to nothing.
const (
	UnknownArtist = "Unknown Artist"
	Untitled      = "Untitled"
)

// maxSegmentBytes caps a single path segment. Most filesystems allow 255
// bytes per name; 120 leaves room for extensions and copy suffixes.
const maxSegmentBytes = 120

// Committer places staged files into the library layout.
type Committer struct {
	libraryDir string
	logger     *log.Logger
}

// NewCommitter creates a Committer rooted at libraryDir.
func NewCommitter(libraryDir string, logger *log.Logger) *Committer {
	return &Committer{libraryDir: libraryDir, logger: logger}
}

// Commit moves the staged file into <library>/<artist>/Singles/<title><ext>
// and removes the staged copy. The move is done as a copy to a temporary
// name inside the destination directory followed by a rename, so a partially
// written file is never visible under its final name and the operation works
// across filesystems.
func (c *Committer) Commit(stagingPath, artist, title string) (string, error) {
	if _, err := os.Stat(stagingPath); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrStagingMissing, err)
	}

	ext := filepath.Ext(stagingPath)
	destDir := filepath.Join(c.libraryDir, SanitizeSegment(artist, UnknownArtist), "Singles")
	destPath := filepath.Join(destDir, SanitizeSegment(title, Untitled)+ext)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create library directory: %v", shared.ErrCommitFailed, err)
	}

	tempPath := filepath.Join(destDir, "."+uuid.New().String()+".tmp")
	if err := copyFile(stagingPath, tempPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("%w: %v", shared.ErrCommitFailed, err)
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("%w: %v", shared.ErrCommitFailed, err)
	}

	// The library copy is already complete at this point; a staged file
	// that cannot be removed is left behind and the commit still counts.
	if err := os.Remove(stagingPath); err != nil {
		c.logger.Warn("failed to remove staged file after commit", "path", stagingPath, "error", err)
	}

	c.logger.Debug("committed to library", "path", destPath)

	return destPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open staged file: %v", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create library file: %v", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy staged file: %v", err)
	}

	return out.Close()
}

// illegalChars are characters rejected by at least one common filesystem.
const illegalChars = `<>:"/\|?*`

// SanitizeSegment turns raw metadata into a safe single path segment.
// Separators and illegal characters become spaces, control characters are
// dropped, whitespace collapses, and the result is capped at a byte budget
// without splitting a UTF-8 rune. Empty or dot-only results yield fallback.
func SanitizeSegment(raw, fallback string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r < 0x20 || r == 0x7f:
			// drop control characters
		case strings.ContainsRune(illegalChars, r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}

	cleaned := strings.Join(strings.Fields(b.String()), " ")
	cleaned = strings.Trim(cleaned, ". ")
	if cleaned == "" {
		return fallback
	}

	for len(cleaned) > maxSegmentBytes {
		_, size := utf8.DecodeLastRuneInString(cleaned)
		cleaned = strings.TrimRight(cleaned[:len(cleaned)-size], ". ")
		if cleaned == "" {
			return fallback
		}
	}

	return cleaned
}
