package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eternisai/maintenance-tracker/internal/analytics"
	"github.com/eternisai/maintenance-tracker/internal/logger"
	"github.com/eternisai/maintenance-tracker/internal/metrics"
	"github.com/eternisai/maintenance-tracker/internal/requests"
)

const (
	requestsPath = "/api/requests"
	statsPath    = "/api/analytics/stats"

	// RequestIDHeader carries the correlation id of every call.
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes = 1 << 20
)

// ErrLegacyListShape is returned when the list endpoint answers with a bare
// JSON array instead of the paginated envelope.
var ErrLegacyListShape = errors.New("list endpoint returned a plain array, expected {items, total, page, pages}")

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(c *Client) {
		if recorder != nil {
			c.recorder = recorder
		}
	}
}

// Client talks to the maintenance request backend. It satisfies both
// requests.Transport and analytics.Transport.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
	recorder   metrics.Recorder
}

var (
	_ requests.Transport  = (*Client)(nil)
	_ analytics.Transport = (*Client)(nil)
)

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithComponent("api_client"),
		recorder:   metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListRequests fetches one page of requests, newest first.
func (c *Client) ListRequests(ctx context.Context, skip, limit int) (*requests.Page, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))

	status, body, err := c.do(ctx, http.MethodGet, requestsPath, q, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, newTransportError(status, body)
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, ErrLegacyListShape
	}

	var envelope struct {
		Items *[]requests.MaintenanceRequest `json:"items"`
		Total *int                           `json:"total"`
		Page  int                            `json:"page"`
		Pages int                            `json:"pages"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	if envelope.Items == nil || envelope.Total == nil {
		return nil, errors.New("decode page: response is missing items or total")
	}

	return &requests.Page{
		Items: *envelope.Items,
		Total: *envelope.Total,
		Page:  envelope.Page,
		Pages: envelope.Pages,
	}, nil
}

// CreateRequest submits a new request. A 400 or 422 response is returned as
// a *ValidationError; any other failure as a *TransportError.
func (c *Client) CreateRequest(ctx context.Context, payload requests.CreateRequest) (*requests.MaintenanceRequest, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	status, body, err := c.do(ctx, http.MethodPost, requestsPath, nil, raw)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		message, fields := decodeErrorBody(body)
		return nil, &ValidationError{StatusCode: status, Message: message, Fields: fields}
	case status != http.StatusOK && status != http.StatusCreated:
		return nil, newTransportError(status, body)
	}

	var created requests.MaintenanceRequest
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("decode created request: %w", err)
	}
	return &created, nil
}

// GetStats fetches the aggregate statistics.
func (c *Client) GetStats(ctx context.Context) (*analytics.Stats, error) {
	status, body, err := c.do(ctx, http.MethodGet, statsPath, nil, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, newTransportError(status, body)
	}

	var stats analytics.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &stats, nil
}

// do performs a single call and returns the status and body. Only network
// failures are returned as errors.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte) (int, []byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	requestID, ok := logger.RequestIDFrom(ctx)
	if !ok {
		requestID = logger.GenerateRequestID()
		ctx = logger.WithRequestID(ctx, requestID)
	}
	httpReq.Header.Set(RequestIDHeader, requestID)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	log := c.logger.WithContext(ctx).With(
		slog.String("method", method),
		slog.String("path", path))

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recorder.ObserveTransport(method, path, 0, time.Since(start))
		log.Debug("backend call failed", slog.String("error", err.Error()))
		return 0, nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	c.recorder.ObserveTransport(method, path, resp.StatusCode, elapsed)
	if err != nil {
		return 0, nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	log.Debug("backend call completed",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", elapsed))

	return resp.StatusCode, body, nil
}

func newTransportError(status int, body []byte) error {
	message, _ := decodeErrorBody(body)
	return &TransportError{StatusCode: status, Message: message}
}
