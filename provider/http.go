package provider

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/MikeDominic92/okta-sso-hub/config"
	"github.com/MikeDominic92/okta-sso-hub/errors"
	"github.com/MikeDominic92/okta-sso-hub/metric"
	"github.com/MikeDominic92/okta-sso-hub/pkg/retry"
)

const (
	// apiPrefix is the Workflows invocation API root under the org URL.
	apiPrefix = "/api/flo/v1"

	// maxResponseSize caps how much of a response body is read. Flow
	// catalogs and execution histories fit comfortably under this.
	maxResponseSize = 4 << 20

	// errorBodySample is how much response text a status error carries.
	errorBodySample = 256

	defaultTimeout    = 30 * time.Second
	defaultRateLimit  = 10
	defaultRateBurst  = 20
	defaultHistoryMax = 50
)

// HTTPClient talks to a real Okta Workflows org. Every request is rate
// limited, authenticated with the org API token, and retried with
// exponential backoff on 429 and transient 5xx responses.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryCfg   retry.Config
	logger     *slog.Logger
	metrics    *metric.Metrics
}

// NewHTTPClient builds a client for cfg.BaseURL. BaseURL and Token are
// required; zero values for the remaining fields fall back to defaults.
func NewHTTPClient(cfg config.ProviderConfig, opts ...Option) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: provider base_url", errors.ErrMissingConfig),
			"provider", "NewHTTPClient", "validate configuration")
	}
	if cfg.Token == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: provider token", errors.ErrMissingConfig),
			"provider", "NewHTTPClient", "validate configuration")
	}

	o := applyOptions(opts...)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = defaultRateBurst
	}

	retryCfg := retry.HTTP()
	if cfg.MaxRetries >= 0 {
		retryCfg.MaxAttempts = cfg.MaxRetries + 1
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	var metrics *metric.Metrics
	if o.registry != nil {
		metrics = o.registry.CoreMetrics()
	}

	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(limit), burst),
		retryCfg:   retryCfg,
		logger:     o.logger,
		metrics:    metrics,
	}, nil
}

// Invoke starts a flow and returns the execution handle from the
// provider response.
func (c *HTTPClient) Invoke(ctx context.Context, flowID string, input map[string]any) (*Invocation, error) {
	if flowID == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "provider", "invoke", "flow id cannot be empty")
	}
	if input == nil {
		input = map[string]any{}
	}

	var raw map[string]any
	path := "/flows/" + url.PathEscape(flowID) + "/invoke"
	if err := c.doJSON(ctx, "invoke", http.MethodPost, path, nil, input, &raw); err != nil {
		return nil, c.classify(err, "invoke", "invoke flow "+flowID, errors.ErrFlowNotFound)
	}

	inv := &Invocation{Raw: raw}
	if id, ok := raw["execution_id"].(string); ok {
		inv.ExecutionID = id
	}
	if status, ok := raw["status"].(string); ok {
		inv.Status = status
	}
	c.logger.Info("flow invoked", "flow_id", flowID, "execution_id", inv.ExecutionID)
	return inv, nil
}

// Status fetches the state of an execution. A 404 maps to
// errors.ErrExecutionNotFound.
func (c *HTTPClient) Status(ctx context.Context, executionID string) (*Execution, error) {
	if executionID == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "provider", "status", "execution id cannot be empty")
	}

	var exec Execution
	path := "/executions/" + url.PathEscape(executionID)
	if err := c.doJSON(ctx, "status", http.MethodGet, path, nil, nil, &exec); err != nil {
		return nil, c.classify(err, "status", "fetch execution "+executionID, errors.ErrExecutionNotFound)
	}
	if exec.ExecutionID == "" {
		exec.ExecutionID = executionID
	}
	return &exec, nil
}

// ListFlows returns the flow catalog, optionally filtered by type.
func (c *HTTPClient) ListFlows(ctx context.Context, flowType string) ([]Flow, error) {
	var query url.Values
	if flowType != "" {
		query = url.Values{"type": {flowType}}
	}

	var envelope struct {
		Flows []Flow `json:"flows"`
	}
	if err := c.doJSON(ctx, "list_flows", http.MethodGet, "/flows", query, nil, &envelope); err != nil {
		return nil, c.classify(err, "list_flows", "list flows", nil)
	}
	return envelope.Flows, nil
}

// ExecutionHistory returns past executions of a flow, most recent first.
func (c *HTTPClient) ExecutionHistory(ctx context.Context, flowID string, limit int) ([]Execution, error) {
	if flowID == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "provider", "execution_history", "flow id cannot be empty")
	}
	if limit <= 0 {
		limit = defaultHistoryMax
	}

	query := url.Values{"limit": {strconv.Itoa(limit)}}
	path := "/flows/" + url.PathEscape(flowID) + "/executions"

	var envelope struct {
		Executions []Execution `json:"executions"`
	}
	if err := c.doJSON(ctx, "execution_history", http.MethodGet, path, query, nil, &envelope); err != nil {
		return nil, c.classify(err, "execution_history", "fetch history for flow "+flowID, errors.ErrFlowNotFound)
	}
	return envelope.Executions, nil
}

// Cancel asks the provider to stop an in-flight execution.
func (c *HTTPClient) Cancel(ctx context.Context, executionID string) error {
	if executionID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "provider", "cancel", "execution id cannot be empty")
	}

	path := "/executions/" + url.PathEscape(executionID) + "/cancel"
	if err := c.doJSON(ctx, "cancel", http.MethodPost, path, nil, nil, nil); err != nil {
		return c.classify(err, "cancel", "cancel execution "+executionID, errors.ErrExecutionNotFound)
	}
	return nil
}

// Healthy probes the flows endpoint once, without retries, so health
// checks fail fast when the org is unreachable.
func (c *HTTPClient) Healthy(ctx context.Context) error {
	if _, err := c.roundTrip(ctx, "health", http.MethodGet, c.endpoint("/flows", nil), nil); err != nil {
		return c.classify(err, "health", "reach workflows api", nil)
	}
	return nil
}

func (c *HTTPClient) endpoint(path string, query url.Values) string {
	endpoint := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

// doJSON runs one API operation through the retry loop and decodes the
// response into out when out is non-nil.
func (c *HTTPClient) doJSON(ctx context.Context, operation, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errors.WrapInvalid(err, "provider", operation, "encode request body")
		}
	}

	endpoint := c.endpoint(path, query)
	data, err := retry.DoWithResult(ctx, c.retryCfg, func() ([]byte, error) {
		return c.roundTrip(ctx, operation, method, endpoint, payload)
	})
	if err != nil {
		return err
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.WrapInvalid(err, "provider", operation, "decode response")
		}
	}
	return nil
}

// roundTrip performs a single authenticated request. It waits on the
// rate limiter first, caps how much of the body is read, and returns a
// retry.StatusError for non-2xx responses so the retry predicate can
// key off the code.
func (c *HTTPClient) roundTrip(ctx context.Context, operation, method, endpoint string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, retry.NonRetryable(err)
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, retry.NonRetryable(err)
	}
	req.Header.Set("Authorization", "SSWS "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordProviderRequest(operation, 0)
		}
		return nil, fmt.Errorf("%s %s: %w", method, operation, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	elapsed := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordProviderRequest(operation, resp.StatusCode)
		c.metrics.RecordProviderRequestDuration(operation, elapsed)
	}
	c.logger.Debug("provider request",
		"operation", operation,
		"status", resp.StatusCode,
		"duration_ms", elapsed.Milliseconds())

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", operation, err)
	}
	if len(data) > maxResponseSize {
		return nil, retry.NonRetryable(fmt.Errorf("%s response exceeds %d byte limit", operation, maxResponseSize))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.StatusError{Code: resp.StatusCode, Body: truncate(string(data), errorBodySample)}
	}
	return data, nil
}

// classify maps an operation failure to a classified error. Status codes
// decide the class: 429 and transient 5xx are retryable provider
// trouble, other 4xx are caller mistakes, and a 404 maps to the
// operation's not-found sentinel. Transport failures count as transient.
// Errors already classified by doJSON pass through unchanged.
func (c *HTTPClient) classify(err error, operation, action string, notFound error) error {
	if errors.IsTransient(err) || errors.IsInvalid(err) || errors.IsFatal(err) {
		return err
	}

	var statusErr *retry.StatusError
	if stderrors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusNotFound && notFound != nil:
			return errors.WrapInvalid(
				fmt.Errorf("%w: %s", notFound, statusErr.Error()),
				"provider", operation, action)
		case statusErr.Code == http.StatusTooManyRequests:
			return errors.WrapTransient(
				fmt.Errorf("%w: %s", errors.ErrRateLimited, statusErr.Error()),
				"provider", operation, action)
		case retry.RetryableStatus(statusErr.Code):
			return errors.WrapTransient(err, "provider", operation, action)
		case statusErr.Code >= 400 && statusErr.Code < 500:
			return errors.WrapInvalid(err, "provider", operation, action)
		}
	}
	return errors.WrapTransient(err, "provider", operation, action)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
