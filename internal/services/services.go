// Package services talks to the upstream content provider.
//
// The provider is undocumented and unreliable: the same endpoint may answer
// with a redirect, a JSON error, a JSON envelope holding a URL, or raw audio
// bytes. Resolution therefore works through a trail of recorded attempts
// rather than a single request/response. Every failure becomes an [Attempt]
// in the trail instead of ending the run.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/trackdock/internal/quality"
)

// Strategy identifies one of the resolution approaches in the attempt trail.
type Strategy string

const (
	// StrategyDirectStream probes the listen endpoint with a format code.
	StrategyDirectStream Strategy = "direct-stream"
	// StrategyResourceInfo derives a download URL from resource metadata.
	StrategyResourceInfo Strategy = "resource-info"
	// StrategyMapping marks quality-catalog events (misses and literal
	// label fallbacks), which never reach the network.
	StrategyMapping Strategy = "quality-mapping"
)

// Attempt records one strategy execution against the upstream.
type Attempt struct {
	Strategy Strategy
	Label    quality.Label
	Code     string // Format code, or resource type for resource-info attempts
	Status   int    // HTTP status, 0 if the request never completed
	AppCode  string // Application-level error code from a JSON body, if any
	Message  string
}

// String renders one attempt for the task's error message.
func (a Attempt) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s", a.Strategy)
	if a.Label != "" {
		fmt.Fprintf(&b, " %s", a.Label)
	}
	if a.Code != "" {
		fmt.Fprintf(&b, "/%s", a.Code)
	}
	b.WriteString("]")
	if a.Status != 0 {
		fmt.Fprintf(&b, " status=%d", a.Status)
	}
	if a.AppCode != "" {
		fmt.Fprintf(&b, " code=%s", a.AppCode)
	}
	if a.Message != "" {
		fmt.Fprintf(&b, " %s", a.Message)
	}
	return b.String()
}

// ResolveRequest carries everything a resolution run needs.
type ResolveRequest struct {
	CopyrightID string
	ContentID   string // Falls back to CopyrightID when empty
	Trials      []quality.Trial
}

// Resolution is a successful resolution outcome.
type Resolution struct {
	URL      string // The verified byte-stream URL
	Label    quality.Label
	Code     string
	Attempts []Attempt       // Everything tried before (and including) success
	Tried    []quality.Label // Quality labels considered, in order
}

// ResolveFailure is returned when every strategy and trial is exhausted.
// It carries the full attempt trail so the orchestrator can synthesize a
// self-contained error message.
type ResolveFailure struct {
	CopyrightID string
	ContentID   string
	Attempts    []Attempt
	Tried       []quality.Label
}

// Error renders the whole trail: tried labels, every attempt, and the
// identifiers used. The task's error message is the only diagnostic surface,
// so nothing is elided.
func (e *ResolveFailure) Error() string {
	var b strings.Builder
	b.WriteString("unable to resolve download URL")

	if len(e.Tried) > 0 {
		fmt.Fprintf(&b, "; tried qualities: %s", strings.Join(e.Tried, ", "))
	}

	for _, attempt := range e.Attempts {
		fmt.Fprintf(&b, "; %s", attempt.String())
	}

	fmt.Fprintf(&b, "; copyright_id=%s", e.CopyrightID)
	if e.ContentID != "" && e.ContentID != e.CopyrightID {
		fmt.Fprintf(&b, " content_id=%s", e.ContentID)
	}

	return b.String()
}

// URLResolver resolves provider identifiers into a working byte-stream URL.
type URLResolver interface {
	Resolve(ctx context.Context, req ResolveRequest) (*Resolution, error)
}
