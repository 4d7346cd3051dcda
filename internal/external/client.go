// Package external is the anti-corruption layer between the AirSight engine
// and the Azure-hosted services it optionally delegates to. All outbound HTTP
// calls are routed through the BaseClient, which enforces consistent
// resilience patterns: circuit breaking, trace propagation, and error mapping.
//
// Note that the BaseClient performs no retries. The engine's design prefers
// an immediate fallback to the local simulator over retrying a flaky remote
// call, so a single failed attempt is final.
package external

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"airsight/internal/types"
)

// defaultUserAgent identifies AirSight in outbound requests.
const defaultUserAgent = "AirSight/1.0"

// BaseClient wraps an *http.Client and a circuit breaker to enforce
// consistent behavior on all outbound HTTP calls. Provider clients (token
// exchange, model invocation) embed BaseClient to inherit it.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// NewBaseClient creates a BaseClient with the given http client and circuit
// breaker name. The breaker opens after 5 consecutive failures and probes
// again after 30 seconds; while open, calls fail immediately without
// touching the network, which keeps the fallback path fast when the remote
// side is down.
func NewBaseClient(httpClient *http.Client, breakerName string) *BaseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &BaseClient{
		client:    httpClient,
		breaker:   cb,
		userAgent: defaultUserAgent,
	}
}

// Do executes the HTTP request with:
//  1. Trace ID injection (X-Request-Id from context)
//  2. User-Agent header injection
//  3. Circuit breaker wrapping
//  4. Error mapping to types.AppError
//
// On a 2xx-4xx response, Do returns the response as-is; the caller is
// responsible for closing the body and interpreting the status. 5xx
// responses and transport errors count as breaker failures and are mapped
// to remote_failed.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-Request-Id", traceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		// 5xx counts as a breaker failure but the response is still
		// returned to the caller for logging.
		if r.StatusCode >= 500 {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})

	if err == nil {
		return resp, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, types.NewAppError(
			types.ErrCodeRemoteFailed,
			"circuit breaker is open; remote service unavailable",
			err,
		)
	}

	if resp != nil {
		// 5xx path: hand the response back alongside the mapped error so
		// callers can log the body, then close it.
		resp.Body.Close()
		return nil, types.NewAppError(
			types.ErrCodeRemoteFailed,
			fmt.Sprintf("remote endpoint returned %d", resp.StatusCode),
			err,
		)
	}

	// Transport-level failure: DNS, connect, TLS, or context deadline.
	return nil, types.NewAppError(
		types.ErrCodeRemoteFailed,
		"remote request failed",
		err,
	)
}
