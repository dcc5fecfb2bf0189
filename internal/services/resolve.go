package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackdock/internal/quality"
	"github.com/desertthunder/trackdock/internal/shared"
)

// appSuccessCode is the application-level code the provider returns inside
// JSON envelopes when a request actually succeeded.
const appSuccessCode = "000000"

// resourceTypes lists the resourceType values worth querying on the
// resource-info endpoint. Type "1" exists upstream but never carries
// downloadable URLs, so it is skipped.
var resourceTypes = []string{"2", "E"}

// resourceURLFields is the priority order for pulling a URL out of a
// resource record.
var resourceURLFields = []string{"ftpUrl", "downloadUrl", "playUrl", "listenUrl"}

// bodyURLFields is the priority order for pulling a URL out of a JSON body
// returned by the listen endpoint.
var bodyURLFields = []string{"url", "playUrl", "downloadUrl", "fileUrl"}

// Resolver turns provider identifiers plus a quality trial plan into a
// verified download URL. It implements [URLResolver].
type Resolver struct {
	client *Client
	logger *log.Logger
}

// NewResolver creates a Resolver backed by the given provider client.
func NewResolver(client *Client, logger *log.Logger) *Resolver {
	return &Resolver{client: client, logger: logger}
}

// Resolve walks the trial plan through the direct-stream strategy, then falls
// back to the resource-info strategy once if no trial produced a URL.
//
// A missing copyright ID is the only fatal input error; everything else is
// recorded in the attempt trail and surfaces as a [ResolveFailure].
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (*Resolution, error) {
	if req.CopyrightID == "" {
		return nil, fmt.Errorf("%w: cannot resolve download URL", shared.ErrMissingCopyrightID)
	}

	contentID := req.ContentID
	if contentID == "" {
		contentID = req.CopyrightID
	}

	var attempts []Attempt
	var tried []quality.Label

	for _, trial := range req.Trials {
		tried = append(tried, trial.Label)

		if trial.Missing {
			attempts = append(attempts, Attempt{
				Strategy: StrategyMapping,
				Label:    trial.Label,
				Message:  "no format code in quality catalog",
			})
			continue
		}
		if trial.Fallback {
			r.logger.Warn("no catalog entries resolved, using quality label as format code", "label", trial.Label)
		}

		url, attempt := r.tryDirectStream(ctx, trial, req.CopyrightID, contentID)
		if trial.Fallback {
			attempt.Message = "label used as format code; " + attempt.Message
		}
		attempts = append(attempts, attempt)
		if url != "" {
			r.logger.Info("resolved download URL", "strategy", StrategyDirectStream, "quality", trial.Label)
			return &Resolution{
				URL:      url,
				Label:    trial.Label,
				Code:     trial.Code,
				Attempts: attempts,
				Tried:    tried,
			}, nil
		}
	}

	// The resource-info endpoint is keyed by copyright ID only, so one pass
	// covers every quality trial.
	url, label, infoAttempts := r.tryResourceInfo(ctx, req.CopyrightID, tried)
	attempts = append(attempts, infoAttempts...)
	if url != "" {
		r.logger.Info("resolved download URL", "strategy", StrategyResourceInfo)
		return &Resolution{
			URL:      url,
			Label:    label,
			Attempts: attempts,
			Tried:    tried,
		}, nil
	}

	return nil, &ResolveFailure{
		CopyrightID: req.CopyrightID,
		ContentID:   req.ContentID,
		Attempts:    attempts,
		Tried:       tried,
	}
}

// tryDirectStream probes the listen endpoint for one trial. It returns the
// resolved URL (empty on failure) and the attempt record either way.
func (r *Resolver) tryDirectStream(ctx context.Context, trial quality.Trial, copyrightID, contentID string) (string, Attempt) {
	attempt := Attempt{
		Strategy: StrategyDirectStream,
		Label:    trial.Label,
		Code:     trial.Code,
	}

	listenURL := r.client.ListenURL(trial.Code, copyrightID, contentID)

	resp, err := r.client.Probe(ctx, listenURL)
	if err != nil {
		attempt.Message = err.Error()
		return "", attempt
	}
	attempt.Status = resp.StatusCode

	if IsRedirect(resp.StatusCode) {
		// Location may be relative; resolve it against the probed URL.
		if location, err := resp.Location(); err == nil {
			attempt.Message = "redirected to stream"
			return location.String(), attempt
		}
		attempt.Message = "redirect without location header"
		return "", attempt
	}

	if resp.StatusCode >= http.StatusBadRequest {
		if IsJSONContent(resp) {
			// Re-fetch with a body to pull the application error out.
			if body, _, err := r.client.GetJSON(ctx, listenURL); err == nil {
				attempt.AppCode, attempt.Message = appError(body)
			}
		}
		if attempt.Message == "" {
			attempt.Message = "rejected by upstream"
		}
		return "", attempt
	}

	if resp.StatusCode == http.StatusOK {
		if IsAudioContent(resp) {
			attempt.Message = "endpoint streams directly"
			return listenURL, attempt
		}
		if IsJSONContent(resp) {
			return r.directStreamBody(ctx, listenURL, &attempt)
		}

		// Some upstream pools only redirect full GET requests; a HEAD comes
		// back 200 with an empty body. Retry once without following.
		return r.directStreamGet(ctx, listenURL, &attempt)
	}

	attempt.Message = "unable to resolve"
	return "", attempt
}

// directStreamBody handles a 200 JSON answer from the listen endpoint: the
// envelope may carry the stream URL in one of several fields.
func (r *Resolver) directStreamBody(ctx context.Context, listenURL string, attempt *Attempt) (string, Attempt) {
	body, status, err := r.client.GetJSON(ctx, listenURL)
	if err != nil {
		attempt.Message = err.Error()
		return "", *attempt
	}
	attempt.Status = status

	if url := urlField(body, bodyURLFields); url != "" {
		attempt.Message = "url extracted from response body"
		return url, *attempt
	}

	attempt.AppCode, attempt.Message = appError(body)
	if attempt.Message == "" {
		attempt.Message = "no url in response body"
	}
	return "", *attempt
}

// directStreamGet retries a listen probe as a full GET, looking only for a
// redirect.
func (r *Resolver) directStreamGet(ctx context.Context, listenURL string, attempt *Attempt) (string, Attempt) {
	resp, err := r.client.GetNoRedirect(ctx, listenURL)
	if err != nil {
		attempt.Message = err.Error()
		return "", *attempt
	}
	defer resp.Body.Close()
	attempt.Status = resp.StatusCode

	if IsRedirect(resp.StatusCode) {
		if location, err := resp.Location(); err == nil {
			attempt.Message = "redirected to stream"
			return location.String(), *attempt
		}
	}

	attempt.Message = "unable to resolve"
	return "", *attempt
}

// tryResourceInfo asks the resource-info endpoint for download URLs, trying
// each useful resource type in order. Extracted URLs keep only their path and
// are re-homed under the canonical download host before verification.
func (r *Resolver) tryResourceInfo(ctx context.Context, copyrightID string, tried []quality.Label) (string, quality.Label, []Attempt) {
	var label quality.Label
	if len(tried) > 0 {
		label = tried[len(tried)-1]
	}

	var attempts []Attempt
	for _, resourceType := range resourceTypes {
		attempt := Attempt{Strategy: StrategyResourceInfo, Code: resourceType}

		body, status, err := r.client.GetJSON(ctx, r.client.resourceInfoURL(copyrightID, resourceType))
		if err != nil {
			attempt.Message = err.Error()
			attempts = append(attempts, attempt)
			continue
		}
		attempt.Status = status

		if code, msg := appError(body); code != "" && code != appSuccessCode {
			attempt.AppCode, attempt.Message = code, msg
			attempts = append(attempts, attempt)
			continue
		}

		resource := firstResource(body)
		if resource == nil {
			attempt.Message = "no resource records"
			attempts = append(attempts, attempt)
			continue
		}

		raw := urlField(resource, resourceURLFields)
		if raw == "" {
			attempt.Message = "resource record has no url fields"
			attempts = append(attempts, attempt)
			continue
		}

		rehosted, err := r.client.RehostDownloadURL(raw)
		if err != nil {
			attempt.Message = err.Error()
			attempts = append(attempts, attempt)
			continue
		}

		verify, err := r.client.Probe(ctx, rehosted)
		if err != nil {
			attempt.Message = fmt.Sprintf("verification failed: %v", err)
			attempts = append(attempts, attempt)
			continue
		}
		if verify.StatusCode != http.StatusOK {
			attempt.Message = fmt.Sprintf("verification returned status %d", verify.StatusCode)
			attempts = append(attempts, attempt)
			continue
		}

		attempt.Message = "verified rehosted resource url"
		attempts = append(attempts, attempt)
		return rehosted, label, attempts
	}

	return "", "", attempts
}

// firstResource pulls the first record out of a resource-info envelope.
func firstResource(body map[string]any) map[string]any {
	list, ok := body["resource"].([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	record, ok := list[0].(map[string]any)
	if !ok {
		return nil
	}
	return record
}

// urlField scans obj (and its "data" sub-object, if any) for the first
// non-empty string among fields.
func urlField(obj map[string]any, fields []string) string {
	for _, field := range fields {
		if value, ok := obj[field].(string); ok && value != "" {
			return value
		}
	}
	if data, ok := obj["data"].(map[string]any); ok {
		for _, field := range fields {
			if value, ok := data[field].(string); ok && value != "" {
				return value
			}
		}
	}
	return ""
}

// appError extracts the application-level error code and message from a JSON
// envelope. The provider is inconsistent about field names.
func appError(body map[string]any) (string, string) {
	var code, msg string
	for _, field := range []string{"code", "returnCode", "resCode"} {
		if value, ok := body[field].(string); ok && value != "" {
			code = value
			break
		}
	}
	for _, field := range []string{"info", "msg", "message"} {
		if value, ok := body[field].(string); ok && value != "" {
			msg = value
			break
		}
	}
	return code, msg
}
