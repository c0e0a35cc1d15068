package feedbackapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
)

// Ensure Client implements AnnotationAPI
var _ driven.AnnotationAPI = (*Client)(nil)

// maxErrorBody caps how much of an error response is read for its message
const maxErrorBody = 4 << 10

// Client calls the feedback REST API on behalf of a viewer
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// Config holds client configuration
type Config struct {
	// BaseURL is the server root, e.g. https://feedback.example.com
	BaseURL string

	// Token is sent as the bearer credential (JWT or service key)
	Token string

	// Timeout bounds each request
	Timeout time.Duration
}

// NewClient creates a new API client
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("feedback API base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid feedback API base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + "/api/v1",
		token:   cfg.Token,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// apiError is the error body written by the server
type apiError struct {
	Error string `json:"error"`
}

// GetSession fetches session metadata and all annotations.
// Errors wrap domain.ErrLoad.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*domain.SessionWithAnnotations, error) {
	var snapshot domain.SessionWithAnnotations
	err := c.do(ctx, http.MethodGet, "/feedback-sessions/"+url.PathEscape(sessionID), nil, http.StatusOK, &snapshot)
	if err != nil {
		return nil, fmt.Errorf("%w: session %s: %w", domain.ErrLoad, sessionID, err)
	}
	if snapshot.Session == nil {
		return nil, fmt.Errorf("%w: session %s: empty response", domain.ErrLoad, sessionID)
	}
	return &snapshot, nil
}

// CreateAnnotation persists a draft and returns the server's record
func (c *Client) CreateAnnotation(ctx context.Context, sessionID string, draft domain.AnnotationDraft) (*domain.Annotation, error) {
	var created domain.Annotation
	path := "/feedback-sessions/" + url.PathEscape(sessionID) + "/annotations"
	if err := c.do(ctx, http.MethodPost, path, draft, http.StatusCreated, &created); err != nil {
		return nil, fmt.Errorf("%w: create annotation: %w", domain.ErrPersist, err)
	}
	return &created, nil
}

// DeleteAnnotation removes an annotation; the server enforces authorship
func (c *Client) DeleteAnnotation(ctx context.Context, annotationID string) error {
	if err := c.do(ctx, http.MethodDelete, "/annotations/"+url.PathEscape(annotationID), nil, http.StatusNoContent, nil); err != nil {
		return fmt.Errorf("%w: delete annotation %s: %w", domain.ErrPersist, annotationID, err)
	}
	return nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// do sends a JSON request and decodes a JSON response when out is non-nil.
// Status errors map 401/403/404/400 to domain sentinels.
func (c *Client) do(ctx context.Context, method, path string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	message := http.StatusText(resp.StatusCode)
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var apiErr apiError
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
		message = apiErr.Error
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		sentinel = domain.ErrUnauthorized
	case http.StatusForbidden:
		sentinel = domain.ErrForbidden
	case http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case http.StatusBadRequest:
		sentinel = domain.ErrValidation
	default:
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, message)
	}
	return fmt.Errorf("%w: %s", sentinel, message)
}

