// Package client provides a Go client for the CareWatch prediction API.
// Facility gateways and operational tooling use it instead of raw HTTP so
// every call gets the same resilience treatment: circuit breaking, retries
// with exponential backoff, request ID propagation, and typed error mapping.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"carewatch/internal/types"
)

// RetryPolicy configures retry behavior for the Transport.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns the retry defaults for prediction API calls.
// Predictions are cheap to repeat, so waits stay short.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		MinWait:    250 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// Transport wraps an *http.Client with a circuit breaker and retry loop.
// Only 429 and 5xx responses count as failures; 4xx responses pass through
// to the caller untouched.
type Transport struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	policy    RetryPolicy
	userAgent string
	sleep     func(time.Duration)
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithSleep overrides the sleep between retries. Tests use it to avoid
// real delays.
func WithSleep(fn func(time.Duration)) TransportOption {
	return func(t *Transport) {
		t.sleep = fn
	}
}

// WithBreaker supplies a caller-owned circuit breaker, for sharing one
// breaker across clients or for asserting breaker state in tests.
func WithBreaker(cb *gobreaker.CircuitBreaker[*http.Response]) TransportOption {
	return func(t *Transport) {
		t.breaker = cb
	}
}

// NewTransport creates a Transport around the given http client. The
// breaker opens after five consecutive failures and probes again after
// thirty seconds.
func NewTransport(httpClient *http.Client, name string, policy RetryPolicy, opts ...TransportOption) *Transport {
	t := &Transport{
		client:    httpClient,
		policy:    policy,
		userAgent: "carewatch-client/1.0",
		sleep:     time.Sleep,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.breaker == nil {
		t.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		})
	}
	return t
}

// Do executes the request with request ID propagation, circuit breaking,
// and retries on 429/5xx with Retry-After support. On success the caller
// owns the response body. On exhausted retries or an open breaker, Do
// returns a typed upstream error and no response.
func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	if reqID := types.GetRequestID(req.Context()); reqID != "" {
		req.Header.Set("X-Request-Id", reqID)
	}
	req.Header.Set("User-Agent", t.userAgent)

	// Snapshot the body so each attempt can replay it.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, types.NewAppError(
				types.ErrCodeInternalUnexpected,
				"failed to buffer request body for retries",
				err,
			)
		}
		req.Body.Close()
	}

	var lastResp *http.Response
	var lastErr error

	maxAttempts := 1 + t.policy.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := t.breaker.Execute(func() (*http.Response, error) {
			r, doErr := t.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})

		if err == nil {
			return resp, nil
		}

		lastErr = err
		if resp != nil {
			if attempt < maxAttempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		// An open breaker will not close within one request's lifetime.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}

		if attempt < maxAttempts-1 {
			t.sleep(t.backoff(attempt, resp))
		}
	}

	return nil, t.mapError(lastResp, lastErr)
}

// backoff picks the wait before the next attempt: the Retry-After header
// when the server sent one, otherwise exponential backoff with full jitter
// clamped to [MinWait, MaxWait].
func (t *Transport) backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				return min(time.Duration(seconds)*time.Second, t.policy.MaxWait)
			}
			if at, err := http.ParseTime(retryAfter); err == nil {
				wait := time.Until(at)
				if wait <= 0 {
					return t.policy.MinWait
				}
				return min(wait, t.policy.MaxWait)
			}
		}
	}

	base := float64(t.policy.MinWait) * math.Pow(2, float64(attempt))
	base = math.Min(base, float64(t.policy.MaxWait))
	minWait := float64(t.policy.MinWait)
	if base <= minWait {
		return t.policy.MinWait
	}
	return time.Duration(minWait + rand.Float64()*(base-minWait))
}

// mapError translates the final failure into an AppError. When the last
// response carried the service's error envelope, its code wins: a 503 from
// an unready model should reach the caller as service_model_not_ready, not
// as a generic upstream failure.
func (t *Transport) mapError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"circuit breaker is open; prediction service unavailable",
			err,
		)
	}
	if resp != nil {
		defer resp.Body.Close()
		if remote := decodeRemoteError(resp.Body); remote != nil {
			return remote
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(
				types.ErrCodeUpstreamRateLimited,
				"prediction service rate limit exceeded",
				err,
			)
		case resp.StatusCode >= 500:
			return types.NewAppError(
				types.ErrCodeUpstreamPrediction,
				fmt.Sprintf("prediction service returned %d after retries", resp.StatusCode),
				err,
			)
		}
	}
	return types.NewAppError(
		types.ErrCodeUpstreamUnavailable,
		"prediction service request failed",
		err,
	)
}

// decodeRemoteError reads the service's error envelope out of a response
// body. Returns nil when the body does not carry one.
func decodeRemoteError(body io.Reader) *types.AppError {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return nil
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code == "" {
		return nil
	}
	return types.NewAppErrorWithDetails(
		types.ErrorCode(envelope.Error.Code),
		envelope.Error.Message,
		nil,
		envelope.Error.Details,
	)
}
