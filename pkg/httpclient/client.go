// Package httpclient wraps net/http with the resilience policies used on the
// engine's read paths.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"trade_engine/pkg/telemetry"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// APIError is a non-2xx response surfaced to the caller.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, string(e.Body))
}

// Client is an HTTP client guarded by a retry policy and a circuit breaker.
// Only read-path endpoints (market data, balances) go through it: retrying a
// write could duplicate an order.
type Client struct {
	httpClient *http.Client
	baseURL    string
	guard      failsafe.Executor[*http.Response]

	tracer   trace.Tracer
	requests metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewClient builds a client for baseURL. Transient failures (network errors,
// 5xx, 429) are retried with backoff; sustained failure opens the breaker for
// ten seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	transient := func(resp *http.Response, err error) bool {
		if err != nil {
			return true
		}
		return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
	}

	retry := retrypolicy.NewBuilder[*http.Response]().
		HandleIf(transient).
		WithBackoff(100*time.Millisecond, 2*time.Second).
		WithMaxRetries(3).
		Build()
	breaker := circuitbreaker.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			return err != nil || resp.StatusCode >= 500
		}).
		WithFailureThresholdRatio(5, 10).
		WithDelay(10 * time.Second).
		Build()

	meter := telemetry.GetMeter("http-client")
	requests, _ := meter.Int64Counter("http_requests_total",
		metric.WithDescription("Outbound HTTP requests"))
	failures, _ := meter.Int64Counter("http_errors_total",
		metric.WithDescription("Outbound HTTP failures"))
	latency, _ := meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("Outbound HTTP request latency in seconds"))

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		guard:      failsafe.With[*http.Response](retry, breaker),
		tracer:     telemetry.GetTracer("http-client"),
		requests:   requests,
		failures:   failures,
		latency:    latency,
	}
}

// Get issues a GET against path with optional query parameters and returns
// the raw body.
func (c *Client) Get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}
	return c.do(req)
}

// GetJSON issues a GET and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, params map[string]string, out interface{}) error {
	body, err := c.Get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	start := time.Now()

	ctx, span := c.tracer.Start(req.Context(),
		fmt.Sprintf("%s %s", req.Method, req.URL.Path),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
		),
	)
	defer span.End()
	req = req.WithContext(ctx)

	routeAttrs := metric.WithAttributes(
		attribute.String("method", req.Method),
		attribute.String("path", req.URL.Path),
	)

	resp, err := c.guard.GetWithExecution(func(_ failsafe.Execution[*http.Response]) (*http.Response, error) {
		return c.httpClient.Do(req)
	})
	c.requests.Add(ctx, 1, routeAttrs)
	c.latency.Record(ctx, time.Since(start).Seconds(), routeAttrs)

	if err != nil {
		span.RecordError(err)
		c.failures.Add(ctx, 1, routeAttrs)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		c.failures.Add(ctx, 1, routeAttrs)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}
