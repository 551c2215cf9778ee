package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/soundlink/internal/shared"
)

// DefaultBackendURL is the base URL of a locally running backend.
const DefaultBackendURL = "http://localhost:3001/api"

const (
	userAgent        = "soundlink/0.1"
	maxResponseBytes = 4 << 20
)

// RequestOption decorates an outgoing backend request.
type RequestOption func(*http.Request)

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// WithBearer authenticates the request with token. An empty token adds nothing.
func WithBearer(token string) RequestOption {
	return func(r *http.Request) {
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// APIService sends JSON requests to the onboarding backend.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a service rooted at baseURL. Empty values fall back to
// [DefaultBackendURL] and [http.DefaultClient].
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = DefaultBackendURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &APIService{baseURL: strings.TrimRight(baseURL, "/"), httpClient: client}
}

// APIResponse is a buffered backend response.
type APIResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON reports whether the body is a JSON document. Proxies in front of the
// backend answer errors with HTML.
func (r *APIResponse) JSON() bool {
	return len(bytes.TrimSpace(r.Body)) > 0 && json.Valid(r.Body)
}

// Decode unmarshals the body into v.
func (r *APIResponse) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Err describes a non-2xx response to op, including the backend's message when it sent one.
func (r *APIResponse) Err(op string) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if r.JSON() {
		_ = json.Unmarshal(r.Body, &body)
	}

	msg := body.Error
	if msg == "" {
		msg = body.Message
	}
	if msg == "" {
		return fmt.Errorf("%w: %s returned status %d", shared.ErrAPIRequest, op, r.StatusCode)
	}
	return fmt.Errorf("%w: %s returned status %d: %s", shared.ErrAPIRequest, op, r.StatusCode, msg)
}

// Get sends a GET request to path.
func (a *APIService) Get(ctx context.Context, path string, opts ...RequestOption) (*APIResponse, error) {
	return a.Do(ctx, http.MethodGet, path, nil, opts...)
}

// PostJSON encodes payload and posts it to path.
func (a *APIService) PostJSON(ctx context.Context, path string, payload any, opts ...RequestOption) (*APIResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	opts = append([]RequestOption{WithHeader("Content-Type", "application/json")}, opts...)
	return a.Do(ctx, http.MethodPost, path, bytes.NewReader(data), opts...)
}

// Do sends a request and buffers at most 4 MiB of the response body.
func (a *APIService) Do(ctx context.Context, method, path string, body io.Reader, opts ...RequestOption) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for _, opt := range opts {
		opt(req)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &APIResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
