package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lamim/salonforge/internal/config"
	"github.com/lamim/salonforge/pkg/models"
)

const (
	// DefaultHTTPTimeout is the outer bound for HTTP requests; callers apply tighter contexts
	DefaultHTTPTimeout = 120 * time.Second
	// maxErrorBodyInMessage caps how much of an unexpected body ends up in an error
	maxErrorBodyInMessage = 256
)

// Endpoint labels used for rate limiting, logs and metrics
const (
	EndpointGenerate = "generate"
	EndpointFeatured = "featured_keywords"
)

// RequestObserver receives the result of every HTTP round trip
type RequestObserver interface {
	RecordAPIRequest(endpoint string, statusCode int, duration time.Duration)
}

// Client talks to the salon template generation service over HTTP.
// It performs exactly one attempt per call; retries are a caller decision.
type Client struct {
	httpClient      *http.Client
	rateLimiterPool *RateLimiterPool
	logger          *slog.Logger
	observer        RequestObserver

	baseURL           string
	generatePath      string
	featuredPath      string
	requestsPerMinute int
	apiKey            string
}

// NewClient creates a new API client
func NewClient(cfg config.ServerConfig, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: DefaultHTTPTimeout,
		},
		rateLimiterPool:   NewRateLimiterPool(logger),
		logger:            logger,
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		generatePath:      cfg.GeneratePath,
		featuredPath:      cfg.FeaturedPath,
		requestsPerMinute: cfg.RequestsPerMinute,
		apiKey:            apiKey,
	}
}

// SetObserver attaches a request observer such as the metrics collector
func (c *Client) SetObserver(o RequestObserver) {
	c.observer = o
}

// Generate submits one generation request. A 4xx response carrying a
// well-formed error envelope is returned as a response, not an error, so that
// callers can act on the logical error code.
func (c *Client) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	status, respBody, err := c.do(ctx, EndpointGenerate, http.MethodPost, c.baseURL+c.generatePath, body)
	if err != nil {
		return nil, err
	}

	if status >= 200 && status < 300 {
		var resp models.GenerateResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, &Error{Kind: KindInvalidResponse, StatusCode: status, Message: "malformed generate response", Err: err}
		}
		return &resp, nil
	}

	if status >= 400 && status < 500 {
		var envelope models.GenerateResponse
		if err := json.Unmarshal(respBody, &envelope); err == nil && envelope.Error != nil && envelope.Error.Code != "" {
			if envelope.Success == nil {
				envelope.Success = models.Bool(false)
			}
			if envelope.Status == 0 {
				envelope.Status = status
			}
			c.logger.Debug("Generate returned error envelope", "status", status, "code", envelope.Error.Code)
			return &envelope, nil
		}
	}

	return nil, statusError(status, respBody)
}

// FetchFeaturedKeywords retrieves the featured keywords for one gender.
// Every non-2xx status is a server error.
func (c *Client) FetchFeaturedKeywords(ctx context.Context, gender models.Gender) (*models.FeaturedKeywordsResponse, error) {
	endpoint := c.baseURL + c.featuredPath + "?" + url.Values{"gender": {string(gender)}}.Encode()

	status, respBody, err := c.do(ctx, EndpointFeatured, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, statusError(status, respBody)
	}

	var resp *models.FeaturedKeywordsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &Error{Kind: KindInvalidResponse, StatusCode: status, Message: "malformed featured keywords response", Err: err}
	}
	if resp == nil {
		return nil, &Error{Kind: KindInvalidResponse, StatusCode: status, Message: "featured keywords response is not an object"}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, name, method, endpoint string, body []byte) (int, []byte, error) {
	// Wait for rate limiter
	if err := c.rateLimiterPool.Wait(ctx, name, c.requestsPerMinute); err != nil {
		return 0, nil, limiterWaitError(ctx, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(name, 0, time.Since(start))
		apiErr := classifyRequestError(ctx, err)
		c.logger.Debug("API request failed", "endpoint", name, "kind", apiErr.Kind, "error", err)
		return 0, nil, apiErr
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	// Read response body
	respBody, err := io.ReadAll(httpResp.Body)
	c.observe(name, httpResp.StatusCode, time.Since(start))
	if err != nil {
		return 0, nil, classifyRequestError(ctx, fmt.Errorf("failed to read response: %w", err))
	}

	c.logger.Debug("API request complete",
		"endpoint", name,
		"status", httpResp.StatusCode,
		"duration", time.Since(start),
		"bytes", len(respBody))

	return httpResp.StatusCode, respBody, nil
}

func (c *Client) observe(name string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.RecordAPIRequest(name, status, d)
	}
}

func statusError(status int, body []byte) *Error {
	var envelope struct {
		Error *models.ErrorBody `json:"error"`
	}
	msg := "status " + strconv.Itoa(status)
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
	} else if text := strings.TrimSpace(string(body)); text != "" {
		if len(text) > maxErrorBodyInMessage {
			text = text[:maxErrorBodyInMessage] + "..."
		}
		msg = fmt.Sprintf("API request failed with status %d: %s", status, text)
	}
	return &Error{Kind: KindServer, StatusCode: status, Message: msg}
}
