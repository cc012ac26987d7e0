package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nurturehq/nurture/pkg/analytics"
	"github.com/nurturehq/nurture/pkg/api"
	"github.com/nurturehq/nurture/pkg/httputil"
)

// APIError is a non-2xx reply from the analytics API
type APIError struct {
	Status    int
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

// Client calls the analytics HTTP API
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	target := c.BaseURL + "/api/v1/analytics" + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var body httputil.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error != "" {
			apiErr.Message = body.Error
			apiErr.RequestID = body.RequestID
		}
		return nil, apiErr
	}
	return resp, nil
}

func windowQuery(w analytics.Window, refresh bool) url.Values {
	q := url.Values{"window": {string(w)}}
	if refresh {
		q.Set("refresh", strconv.FormatBool(refresh))
	}
	return q
}

func decodeSnapshot(resp *http.Response) (*analytics.Snapshot, error) {
	defer resp.Body.Close()
	var snap analytics.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// Windows lists the selectors the server supports
func (c *Client) Windows(ctx context.Context) ([]analytics.Window, error) {
	resp, err := c.do(ctx, http.MethodGet, "/windows", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out api.WindowsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode windows: %w", err)
	}
	return out.Windows, nil
}

// Snapshot fetches the current snapshot for w
func (c *Client) Snapshot(ctx context.Context, w analytics.Window, refresh bool) (*analytics.Snapshot, error) {
	resp, err := c.do(ctx, http.MethodGet, "/snapshot", windowQuery(w, refresh))
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(resp)
}

// Refresh forces a recomputation of w
func (c *Client) Refresh(ctx context.Context, w analytics.Window) (*analytics.Snapshot, error) {
	resp, err := c.do(ctx, http.MethodPost, "/refresh", windowQuery(w, false))
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(resp)
}

// Export downloads the CSV export for w and returns its file name and body
func (c *Client) Export(ctx context.Context, w analytics.Window, refresh bool) (string, []byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/export", windowQuery(w, refresh))
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read export: %w", err)
	}

	filename := analytics.ExportFilename(w, time.Now())
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return filename, body, nil
}
