package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agrisa/satellite-data-service/internal/apperr"
	"github.com/rs/zerolog/log"
)

const (
	// defaultBaseURL is the Earth Engine REST API base URL.
	defaultBaseURL = "https://earthengine.googleapis.com/v1"

	// defaultTimeout is the HTTP client timeout for API calls. Compute
	// requests over a whole collection can take most of a minute.
	defaultTimeout = 90 * time.Second
)

// Format is an output file format for rendered images.
type Format string

const (
	FormatPNG     Format = "PNG"
	FormatJPEG    Format = "JPEG"
	FormatGeoTIFF Format = "GEO_TIFF"
)

// Platform is the subset of the remote platform the service depends on.
type Platform interface {
	// Compute evaluates an expression and returns its JSON result.
	Compute(ctx context.Context, expr *Value) (json.RawMessage, error)
	// Thumbnail registers an expression for rendering and returns a
	// time-limited URL serving it in the given format.
	Thumbnail(ctx context.Context, expr *Value, format Format) (string, error)
}

// Client is the REST implementation of Platform.
type Client struct {
	httpClient *http.Client
	project    string
	baseURL    string
}

var _ Platform = (*Client)(nil)

// NewClient creates a client for the given Cloud project. httpClient must
// attach credentials; see NewServiceAccountClient.
func NewClient(httpClient *http.Client, project string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		httpClient: httpClient,
		project:    project,
		baseURL:    defaultBaseURL,
	}
}

// Project returns the Cloud project the client bills against.
func (c *Client) Project() string { return c.project }

type computeResponse struct {
	Result json.RawMessage `json:"result"`
}

type thumbnailResponse struct {
	Name string `json:"name"`
}

type apiError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Compute evaluates expr with projects.value.compute.
func (c *Client) Compute(ctx context.Context, expr *Value) (json.RawMessage, error) {
	var resp computeResponse
	if err := c.post(ctx, "/value:compute", map[string]any{"expression": Encode(expr)}, &resp); err != nil {
		return nil, apperr.Wrap(apperr.KindRemotePlatform, "Earth Engine compute failed", err)
	}
	return resp.Result, nil
}

// Thumbnail creates a thumbnail or download id and returns its pixel URL.
func (c *Client) Thumbnail(ctx context.Context, expr *Value, format Format) (string, error) {
	body := map[string]any{
		"expression": Encode(expr),
		"fileFormat": string(format),
	}
	var resp thumbnailResponse
	if err := c.post(ctx, "/thumbnails", body, &resp); err != nil {
		return "", apperr.Wrap(apperr.KindRemotePlatform, "Earth Engine thumbnail request failed", err)
	}
	if resp.Name == "" {
		return "", apperr.New(apperr.KindRemotePlatform, "Earth Engine returned no thumbnail name")
	}
	return fmt.Sprintf("%s/%s:getPixels", c.baseURL, resp.Name), nil
}

// Fetch downloads a previously issued pixel URL with the client's
// credentials.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch pixels: status %d (body: %s)", resp.StatusCode, truncate(string(data), 200))
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) post(ctx context.Context, method string, payload any, out any) error {
	startTime := time.Now()
	endpoint := fmt.Sprintf("%s/projects/%s%s", c.baseURL, c.project, method)

	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	log.Debug().Str("method", http.MethodPost).Str("path", method).Int("bytes", len(buf)).Msg("Earth Engine request")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("Earth Engine response")
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("Earth Engine response")

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != nil {
			log.Error().
				Str("errorMessage", apiErr.Error.Message).
				Str("errorStatus", apiErr.Error.Status).
				Int("errorCode", apiErr.Error.Code).
				Msg("Earth Engine API error")
			return fmt.Errorf("Earth Engine API error: %s (status: %s, code: %d)",
				apiErr.Error.Message, apiErr.Error.Status, apiErr.Error.Code)
		}
		return fmt.Errorf("unexpected status %d (body: %s)", httpResp.StatusCode, truncate(string(body), 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200))
	}
	return nil
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
