// internal/infra/pnrapi/client.go
package pnrapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pnr_tracker/internal/domain/pnr"
)

const (
	DefaultBaseURL = "https://irctc-indian-railway-pnr-status.p.rapidapi.com"
	DefaultTimeout = 10 * time.Second

	statusPath      = "/getPNRStatus/"
	maxResponseSize = 1 << 20
)

// Client calls the external PNR status provider.
// It implements pnr.Fetcher and performs exactly one request per call.
type Client struct {
	baseURL    string
	apiHost    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiHost, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiHost: apiHost,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchStatus returns the normalized status of number. Every failure is a
// *pnr.FetchError wrapping pnr.ErrUpstreamUnavailable.
func (c *Client) FetchStatus(ctx context.Context, number string) (pnr.StatusSnapshot, error) {
	fail := func(format string, args ...interface{}) (pnr.StatusSnapshot, error) {
		return pnr.StatusSnapshot{}, &pnr.FetchError{PNR: number, Cause: fmt.Sprintf(format, args...)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statusPath+url.PathEscape(number), nil)
	if err != nil {
		return fail("creating request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiHost != "" {
		req.Header.Set("x-rapidapi-host", c.apiHost)
	}
	if c.apiKey != "" {
		req.Header.Set("x-rapidapi-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return fail("request timed out")
		}
		return fail("executing request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fail("reading response body: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail("unexpected status %d", resp.StatusCode)
	}

	return parseResponse(number, body)
}

// parseResponse validates and normalizes a provider response body.
func parseResponse(number string, body []byte) (pnr.StatusSnapshot, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return pnr.StatusSnapshot{}, &pnr.FetchError{PNR: number, Cause: "invalid response from PNR API"}
	}

	var raw rawPayload
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return pnr.StatusSnapshot{}, &pnr.FetchError{PNR: number, Cause: fmt.Sprintf("decoding response: %v", err)}
	}
	if msg, ok := raw.embeddedError(); ok {
		return pnr.StatusSnapshot{}, &pnr.FetchError{PNR: number, Cause: msg}
	}
	return normalize(raw), nil
}
