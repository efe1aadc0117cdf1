// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package remote is the HTTP client for the external document-processing
// service: PDF upload-and-extract, spreadsheet export, and health.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/pdiddy/insurance-extract/internal/httputil"
	"github.com/pdiddy/insurance-extract/pkg/types"
)

const (
	// DefaultBaseURL is where the service listens when run locally.
	DefaultBaseURL = "http://localhost:5001"

	// DefaultTimeout bounds a single request. OCR of a scanned PDF is slow.
	DefaultTimeout = 120 * time.Second

	// DefaultUserAgent is sent when the config leaves UserAgent empty.
	DefaultUserAgent = "insurance-extract/0.1"

	uploadPath   = "/upload"
	downloadPath = "/download-excel"
	healthPath   = "/health"

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 << 10

	spreadsheetMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ErrMalformedResponse is returned when a 2xx upload reply is not the
// expected JSON object.
var ErrMalformedResponse = errors.New("malformed service response")

// ServiceError is a non-2xx response from the service. Message is the
// service-provided "error" field, empty when the body carried none.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("service returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("service returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Client talks to the extraction service.
type Client struct {
	baseURL    string
	userAgent  string
	token      string
	maxRetries int
	httpClient *http.Client
}

// NewClient creates a client from cfg, filling defaults for empty values.
func NewClient(cfg types.ServiceConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Client{
		baseURL:    baseURL,
		userAgent:  ua,
		token:      cfg.APIToken,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the service root the client sends requests to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upload sends a document as multipart form data (field "file") and decodes
// the service's JSON reply. A 2xx reply is returned as-is even when its
// Success flag is false; non-2xx replies become a *ServiceError.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*types.UploadResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating form part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, uploadPath, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("sending upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, readServiceError(resp)
	}

	var out types.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding upload response: %w: %w", ErrMalformedResponse, err)
	}
	return &out, nil
}

// Download posts an extraction result as JSON and returns the spreadsheet
// the service generates from it. The filename comes from the
// Content-Disposition header, falling back to DefaultSpreadsheetName.
func (c *Client) Download(ctx context.Context, result types.ExtractionResult) (*types.Spreadsheet, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, downloadPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", spreadsheetMIME+", application/octet-stream")

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("sending download request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, readServiceError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading spreadsheet: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = spreadsheetMIME
	}
	return &types.Spreadsheet{
		Filename:    FilenameFromDisposition(resp.Header.Get("Content-Disposition")),
		ContentType: ct,
		Data:        data,
	}, nil
}

// Health queries the service's liveness endpoint.
func (c *Client) Health(ctx context.Context) (*types.HealthStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, healthPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readServiceError(resp)
	}

	var hs types.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return nil, fmt.Errorf("decoding health response: %w", err)
	}
	return &hs, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// readServiceError builds a *ServiceError from a failed response, picking
// up the service's {"error": "..."} message when the body is JSON.
func readServiceError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &ServiceError{StatusCode: resp.StatusCode}

	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		se.Message = body.Error
	}
	return se
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
