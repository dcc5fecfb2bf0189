package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client wraps raw HTTP access to the content provider.
//
// Every outbound request waits on a shared rate limiter; the upstream
// rate-limits aggressively and resolution walks its fallbacks in sequence
// rather than fanning out.
type Client struct {
	baseURL      string
	downloadHost string
	header       http.Header
	limiter      *rate.Limiter

	// probeClient never follows redirects; the redirect target IS the answer.
	probeClient *http.Client
	// fetchClient follows redirects normally, used to read JSON bodies.
	fetchClient *http.Client
}

// ClientOpts contains configuration options for creating a Client.
type ClientOpts struct {
	BaseURL      string
	DownloadHost string
	// Header is replayed on every request (captured from a real browser
	// session, see shared.ParseCurlFile).
	Header       http.Header
	ProbeTimeout time.Duration
	RateLimit    float64
	// Transport overrides the HTTP transport, used by tests.
	Transport http.RoundTripper
}

// NewClient creates a provider client.
func NewClient(opts ClientOpts) *Client {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 10 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 4.0
	}

	probe := &http.Client{
		Timeout:   opts.ProbeTimeout,
		Transport: opts.Transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	fetch := &http.Client{
		Timeout:   opts.ProbeTimeout,
		Transport: opts.Transport,
	}

	return &Client{
		baseURL:      strings.TrimSuffix(opts.BaseURL, "/"),
		downloadHost: strings.TrimSuffix(opts.DownloadHost, "/"),
		header:       opts.Header,
		limiter:      rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		probeClient:  probe,
		fetchClient:  fetch,
	}
}

// ListenURL builds the direct-stream endpoint URL for a format code and
// identifier pair.
func (c *Client) ListenURL(code, copyrightID, contentID string) string {
	if contentID == "" {
		contentID = copyrightID
	}

	values := url.Values{}
	values.Set("toneFlag", code)
	values.Set("copyrightId", copyrightID)
	values.Set("contentId", contentID)

	return fmt.Sprintf("%s/app/v3/listen.do?%s", c.baseURL, values.Encode())
}

// resourceInfoURL builds the resource-info endpoint URL.
func (c *Client) resourceInfoURL(copyrightID, resourceType string) string {
	values := url.Values{}
	values.Set("copyrightId", copyrightID)
	values.Set("resourceType", resourceType)

	return fmt.Sprintf("%s/resource/info.do?%s", c.baseURL, values.Encode())
}

func (c *Client) do(ctx context.Context, client *http.Client, method, rawURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range c.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// Probe issues a header-only request without following redirects.
func (c *Client) Probe(ctx context.Context, rawURL string) (*http.Response, error) {
	resp, err := c.do(ctx, c.probeClient, http.MethodHead, rawURL)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return resp, nil
}

// GetNoRedirect issues a full GET with redirects disabled. The caller owns
// the response body.
func (c *Client) GetNoRedirect(ctx context.Context, rawURL string) (*http.Response, error) {
	return c.do(ctx, c.probeClient, http.MethodGet, rawURL)
}

// GetJSON fetches a URL and decodes its body into a generic JSON value.
func (c *Client) GetJSON(ctx context.Context, rawURL string) (map[string]any, int, error) {
	resp, err := c.do(ctx, c.fetchClient, http.MethodGet, rawURL)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}

	return decoded, resp.StatusCode, nil
}

// RehostDownloadURL keeps only the path component of a URL pulled out of a
// resource record and re-homes it under the canonical download host. The
// provider hands out URLs pointing at hosts that reject plain download
// requests; the canonical host serves the same paths directly.
func (c *Client) RehostDownloadURL(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse resource URL: %w", err)
	}
	if parsed.Path == "" || parsed.Path == "/" {
		return "", fmt.Errorf("resource URL has no path: %q", raw)
	}

	path := parsed.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return c.downloadHost + path, nil
}

// IsJSONContent reports whether a response declares a JSON content type.
func IsJSONContent(resp *http.Response) bool {
	ct := resp.Header.Get("Content-Type")
	return strings.Contains(ct, "json")
}

// IsAudioContent reports whether a response declares an audio or opaque
// binary content type.
func IsAudioContent(resp *http.Response) bool {
	ct := resp.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "audio/") || strings.HasPrefix(ct, "application/octet-stream")
}

// IsRedirect reports whether status is in the redirect class the provider
// uses to hand over stream URLs.
func IsRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}
