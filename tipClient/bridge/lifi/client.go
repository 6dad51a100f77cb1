package lifi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/megavibe/megavibe-node/tipClient/config"
	"github.com/megavibe/megavibe-node/tipClient/errors"
)

const (
	apiKeyHeader    = "x-lifi-api-key"
	maxResponseBody = 8 << 20
	chainLabel      = "lifi"
)

// APIError is a non-retryable error answered by the LI.FI API
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("lifi api error %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("lifi api error %d: %s", e.StatusCode, e.Message)
}

// Client talks to the LI.FI REST API
type Client struct {
	baseURL    string
	apiKey     string
	integrator string
	slippage   float64
	http       *http.Client
	retry      *errors.RetryConfig
	logger     zerolog.Logger
}

// NewClient creates a LI.FI client from config
func NewClient(cfg config.LiFiConfig, logger zerolog.Logger) *Client {
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		integrator: cfg.Integrator,
		slippage:   cfg.Slippage,
		http:       &http.Client{Timeout: timeout},
		retry: &errors.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     4 * time.Second,
			Multiplier:   2,
		},
		logger: logger.With().Str("component", "lifi_client").Logger(),
	}
}

// Routes requests routes. Integrator and slippage are filled from config
// when unset.
func (c *Client) Routes(ctx context.Context, req RoutesRequest) (*RoutesResponse, error) {
	if req.Options.Integrator == "" {
		req.Options.Integrator = c.integrator
	}
	if req.Options.Slippage == 0 {
		req.Options.Slippage = c.slippage
	}
	var resp RoutesResponse
	if err := c.do(ctx, http.MethodPost, "/advanced/routes", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StepTransaction populates the transaction request of a step
func (c *Client) StepTransaction(ctx context.Context, step Step) (*Step, error) {
	var resp Step
	if err := c.do(ctx, http.MethodPost, "/advanced/stepTransaction", nil, step, &resp); err != nil {
		return nil, err
	}
	if resp.TransactionRequest == nil {
		return nil, fmt.Errorf("lifi returned no transaction for step %s", step.ID)
	}
	return &resp, nil
}

// Status reports the settlement of a cross-chain transfer. A transfer the
// API has not indexed yet reports NOT_FOUND rather than an error.
func (c *Client) Status(ctx context.Context, req StatusRequest) (*StatusResponse, error) {
	query := url.Values{}
	query.Set("txHash", req.TxHash)
	if req.Bridge != "" {
		query.Set("bridge", req.Bridge)
	}
	if req.FromChain != 0 {
		query.Set("fromChain", strconv.FormatInt(req.FromChain, 10))
	}
	if req.ToChain != 0 {
		query.Set("toChain", strconv.FormatInt(req.ToChain, 10))
	}

	var resp StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", query, nil, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return &StatusResponse{Status: "NOT_FOUND", SubstatusMessage: apiErr.Message}, nil
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", path, err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	return errors.RetryWithConfig(ctx, func() error {
		return c.attempt(ctx, method, endpoint, path, payload, out)
	}, c.retry)
}

func (c *Client) attempt(ctx context.Context, method, endpoint, path string, payload []byte, out interface{}) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set(apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return errors.NewNetworkError(chainLabel, fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return errors.NewNetworkError(chainLabel, fmt.Sprintf("failed to read %s response", path), err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("lifi request")

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return errors.NewNetworkError(chainLabel, fmt.Sprintf("%s returned %d", path, resp.StatusCode), decodeAPIError(resp.StatusCode, data))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Message != "" {
		apiErr.Code = er.Code
		apiErr.Message = er.Message
	}
	return apiErr
}
