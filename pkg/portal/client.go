// Package portal is the HTTP client for the on-device accessibility relay.
// It is a thin transport: state identifiers, hierarchy snapshots, frame
// captures, and input passthroughs. Retry policy for flaky endpoints lives
// here, not in the resolution layers above.
package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/devicelab-dev/uiscout/pkg/core"
	"github.com/devicelab-dev/uiscout/pkg/logger"
)

// DefaultBaseURL is where the relay listens once its port is forwarded.
const DefaultBaseURL = "http://127.0.0.1:8200/v1"

// Hierarchy snapshot formats.
const (
	FormatXML  = "xml"
	FormatJSON = "json"
)

const (
	requestTimeout = 3 * time.Second
	pingAttempts   = 5
	pingInterval   = time.Second
	inputAttempts  = 3
	inputInterval  = 500 * time.Millisecond
)

// Client communicates with the device portal.
type Client struct {
	http    *http.Client
	baseURL string
}

// New creates a portal client. An empty baseURL selects DefaultBaseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		baseURL: baseURL,
	}
}

// BaseURL returns the portal endpoint this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// response is the portal's JSON envelope.
type response struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Message string          `json:"message"`
}

// request makes an enveloped HTTP request to the portal.
func (c *Client) request(ctx context.Context, method, path string, query url.Values) (json.RawMessage, error) {
	start := time.Now()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		logger.Debug("%s %s [%v] ERROR: %v", method, path, elapsed, err)
		return nil, core.ErrPortalUnreachable.WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.ErrInvalidResponse.WithCause(err)
	}

	status := "OK"
	if resp.StatusCode >= 400 {
		status = fmt.Sprintf("ERR:%d", resp.StatusCode)
	}
	logger.Debug("%s %s [%v] %s", method, path, elapsed, status)

	var envelope response
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, core.ErrInvalidResponse.
			WithMessagef("portal returned a non-envelope response for %s", path).
			WithCause(err)
	}
	if !envelope.Success {
		return nil, core.ErrInvalidResponse.
			WithMessagef("portal request %s failed: %s", path, envelope.Message)
	}
	return envelope.Result, nil
}

// rawGet fetches a non-enveloped binary endpoint.
func (c *Client) rawGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, core.ErrPortalUnreachable.WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, core.ErrInvalidResponse.
			WithMessagef("portal returned status %d for %s", resp.StatusCode, path)
	}
	return io.ReadAll(resp.Body)
}

// Ping checks relay health, retrying while the relay is still coming up.
func (c *Client) Ping(ctx context.Context) error {
	op := func() error {
		_, err := c.request(ctx, http.MethodGet, "/health", nil)
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(pingInterval), pingAttempts-1),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return core.ErrPortalUnreachable.WithCause(err)
	}
	return nil
}

// StateID fetches the surface's current state identifier.
func (c *Client) StateID(ctx context.Context) (int, error) {
	result, err := c.request(ctx, http.MethodGet, "/stateId", nil)
	if err != nil {
		return 0, err
	}
	var id int
	if err := json.Unmarshal(result, &id); err != nil {
		return 0, core.ErrInvalidResponse.
			WithMessage("portal returned a non-numeric state id").
			WithCause(err)
	}
	return id, nil
}

// DisplayInfo describes one display surface the relay exposes.
type DisplayInfo struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Displays lists the relay's display surfaces.
func (c *Client) Displays(ctx context.Context) ([]DisplayInfo, error) {
	result, err := c.request(ctx, http.MethodGet, "/displays", nil)
	if err != nil {
		return nil, err
	}
	var displays []DisplayInfo
	if err := json.Unmarshal(result, &displays); err != nil {
		return nil, core.ErrInvalidResponse.WithCause(err)
	}
	return displays, nil
}

// Display fetches one display surface's info.
func (c *Client) Display(ctx context.Context, displayID int) (DisplayInfo, error) {
	result, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/displays/%d", displayID), nil)
	if err != nil {
		return DisplayInfo{}, err
	}
	var display DisplayInfo
	if err := json.Unmarshal(result, &display); err != nil {
		return DisplayInfo{}, core.ErrInvalidResponse.WithCause(err)
	}
	return display, nil
}

// Hierarchy fetches a hierarchy snapshot for a display in the requested
// format. XML snapshots arrive as a string inside the envelope; JSON
// snapshots are the envelope result itself.
func (c *Client) Hierarchy(ctx context.Context, displayID int, format string) ([]byte, error) {
	query := url.Values{"format": []string{format}}
	result, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/displays/%d/hierarchy", displayID), query)
	if err != nil {
		return nil, err
	}
	if format == FormatXML {
		var doc string
		if err := json.Unmarshal(result, &doc); err != nil {
			return nil, core.ErrInvalidResponse.
				WithMessage("portal returned a non-string xml hierarchy").
				WithCause(err)
		}
		return []byte(doc), nil
	}
	return []byte(result), nil
}

// Capture grabs the display's current frame as PNG bytes.
func (c *Client) Capture(ctx context.Context, displayID int) ([]byte, error) {
	return c.rawGet(ctx, fmt.Sprintf("/displays/%d/capture", displayID))
}

// SaveCapture grabs the current frame and writes it to dir under a fresh
// name, returning the file path.
func (c *Client) SaveCapture(ctx context.Context, displayID int, dir string) (string, error) {
	data, err := c.Capture(ctx, displayID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create capture dir: %w", err)
	}
	path := filepath.Join(dir, uuid.New().String()+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write capture: %w", err)
	}
	logger.Info("saved capture %s", path)
	return path, nil
}
