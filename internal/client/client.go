package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"carewatch/internal/types"
)

const defaultTimeout = 10 * time.Second

// Config holds the settings for creating a Client.
type Config struct {
	// BaseURL is the root of the prediction service, e.g.
	// "http://carewatch-api:8080". Required.
	BaseURL string
	// HTTPClient overrides the underlying http client. Optional.
	HTTPClient *http.Client
	// Retry overrides the default retry policy. Optional.
	Retry *RetryPolicy
	Logger *slog.Logger
}

// HealthStatus is the liveness endpoint payload.
type HealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// BatchResult carries batch classification results in input order.
type BatchResult struct {
	Predictions []types.BatchPredictionItem `json:"predictions"`
	Count       int                         `json:"count"`
}

// errorEnvelope mirrors the service's error response shape.
type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

// Client calls the CareWatch prediction API.
type Client struct {
	transport *Transport
	baseURL   string
	logger    *slog.Logger
}

// New creates a Client for the service at cfg.BaseURL.
func New(cfg Config, opts ...TransportOption) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	policy := DefaultRetryPolicy()
	if cfg.Retry != nil {
		policy = *cfg.Retry
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		transport: NewTransport(httpClient, "carewatch-api", policy, opts...),
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:    logger,
	}
}

// Health calls GET /healthz. The call bypasses the retry loop and the
// circuit breaker: a liveness check wants the instantaneous answer, and a
// 503 with a decoded body is an answer, not a failure.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build health request", err)
	}
	req.Header.Set("User-Agent", c.transport.userAgent)

	resp, err := c.transport.client.Do(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable, "health check request failed", err)
	}
	defer resp.Body.Close()

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamPrediction,
			"failed to decode health response",
			err,
		)
	}
	return &status, nil
}

// ModelInfo calls GET /v1/model/info.
func (c *Client) ModelInfo(ctx context.Context) (*types.ModelInfo, error) {
	var info types.ModelInfo
	if err := c.get(ctx, "/v1/model/info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Predict calls POST /v1/predict with a partial feature map.
func (c *Client) Predict(ctx context.Context, features types.FeatureMap) (*types.Prediction, error) {
	var pred types.Prediction
	if err := c.post(ctx, "/v1/predict", features, &pred); err != nil {
		return nil, err
	}
	return &pred, nil
}

// PredictBatch calls POST /v1/predict/batch. The batch size cap is
// enforced server-side; callers chunk larger workloads themselves.
func (c *Client) PredictBatch(ctx context.Context, readings []types.FeatureMap) (*BatchResult, error) {
	body := map[string][]types.FeatureMap{"readings": readings}
	var result BatchResult
	if err := c.post(ctx, "/v1/predict/batch", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Classify calls POST /v1/classify.
func (c *Client) Classify(ctx context.Context, req *types.ClassifyRequest) (*types.ClassificationResult, error) {
	var result types.ClassificationResult
	if err := c.post(ctx, "/v1/classify", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// IngestReading calls POST /v1/readings, available when the service runs
// with a readings store.
func (c *Client) IngestReading(ctx context.Context, req *types.ClassifyRequest) (*types.ClassificationResult, error) {
	var result types.ClassificationResult
	if err := c.post(ctx, "/v1/readings", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build request", err)
	}
	return c.roundTrip(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode request body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.roundTrip(req, out)
}

// roundTrip sends the request and decodes a 2xx body into out. Non-2xx
// responses are decoded as the service's error envelope and surfaced as
// an AppError carrying the remote code, so callers can distinguish, say,
// a validation rejection from an unready model.
func (c *Client) roundTrip(req *http.Request, out any) error {
	resp, err := c.transport.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.remoteError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamPrediction,
			fmt.Sprintf("failed to decode %s response", req.URL.Path),
			err,
		)
	}
	return nil
}

func (c *Client) remoteError(resp *http.Response) error {
	remote := decodeRemoteError(resp.Body)
	if remote == nil {
		return types.NewAppError(
			types.ErrCodeUpstreamPrediction,
			fmt.Sprintf("prediction service returned %d", resp.StatusCode),
			nil,
		)
	}
	c.logger.Debug("prediction service rejected request",
		"status", resp.StatusCode,
		"code", string(remote.Code),
	)
	return remote
}
