package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/config"
)

// APIError is a non-2xx response from an upstream API
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Body)
}

// transportError wraps a failure to get any response at all
type transportError struct {
	err error
}

func (e *transportError) Error() string { return fmt.Sprintf("failed to send request: %v", e.err) }
func (e *transportError) Unwrap() error { return e.err }

// RetryPolicy bounds how often a call is repeated
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

func retryPolicyFromConfig(cfg *config.HTTPClientConfig) RetryPolicy {
	return RetryPolicy{
		Attempts: cfg.RetryAttempts,
		Backoff:  time.Duration(cfg.RetryBackoffMs) * time.Millisecond,
	}
}

// IsRetryable reports whether err is a transport failure or a 5xx/429 response.
// Context cancellation and deadlines are never retried.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	var tErr *transportError
	return errors.As(err, &tErr)
}

// Retry calls fn until it succeeds, fails permanently or runs out of attempts.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		if serr := sleepCtx(ctx, policy.Backoff); serr != nil {
			return serr
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// apiClient is the JSON-over-HTTP plumbing shared by the provider clients.
type apiClient struct {
	service    string
	httpClient *http.Client
	baseURL    string
	retry      RetryPolicy
	logger     *zap.Logger
	authorize  func(req *http.Request)
}

func newAPIClient(service, baseURL string, httpCfg *config.HTTPClientConfig, logger *zap.Logger, authorize func(req *http.Request)) apiClient {
	timeout := time.Duration(httpCfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return apiClient{
		service: service,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   baseURL,
		retry:     retryPolicyFromConfig(httpCfg),
		logger:    logger.With(zap.String("service", service)),
		authorize: authorize,
	}
}

// post sends a POST request with JSON body
func (c *apiClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	return Retry(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		return c.doRequest(req, result)
	})
}

// get sends a GET request and parses JSON response
func (c *apiClient) get(ctx context.Context, endpoint string, result interface{}) error {
	return Retry(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		return c.doRequest(req, result)
	})
}

// upload streams a body from open, reopening it on every attempt
func (c *apiClient) upload(ctx context.Context, endpoint string, open Opener, result interface{}) error {
	return Retry(ctx, c.retry, func() error {
		body, err := open()
		if err != nil {
			return fmt.Errorf("failed to open media: %w", err)
		}
		defer body.Close()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		return c.doRequest(req, result)
	})
}

// doRequest executes an HTTP request and parses the response
func (c *apiClient) doRequest(req *http.Request, result interface{}) error {
	if c.authorize != nil {
		c.authorize(req)
	}

	c.logger.Debug("request", zap.String("method", req.Method), zap.String("url", req.URL.String()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("method", req.Method), zap.String("url", req.URL.String()), zap.Error(err))
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transportError{err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug("response",
		zap.Int("status", resp.StatusCode),
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Service: c.service, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		c.logger.Warn("unmarshal error", zap.String("url", req.URL.String()), zap.Error(err), zap.ByteString("body", respBody))
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
