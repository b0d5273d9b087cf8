// Package resilience provides the HTTP transport used for Port API
// calls: per-request timeout, exponential-backoff retries on transient
// failures, and a circuit breaker. The enrichment core itself never
// retries; all such policy lives here, behind an injectable interface.
package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a request.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies this client for circuit breaker naming.
	Name string

	// Timeout is the per-attempt HTTP timeout. Default: 10s.
	Timeout time.Duration

	// MaxRetries is the number of retry attempts after the first try. Default: 3.
	MaxRetries uint64

	// InitialInterval is the first retry backoff interval. Default: 100ms.
	InitialInterval time.Duration

	// MaxInterval caps the retry backoff interval. Default: 5s.
	MaxInterval time.Duration
}

// DefaultClientConfig returns sensible defaults for the given upstream name.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Client is an HTTP client with retry and circuit breaker protection.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	config     ClientConfig
}

// NewClient creates a new resilient HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{ //nolint:bodyclose // type param, not a response
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		config:     cfg,
	}
}

// Do executes the request, retrying network errors and 5xx responses
// with exponential backoff. Returns ErrCircuitOpen immediately while
// the breaker is open. Callers own closing the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // retries bounded via WithMaxRetries

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var lastResp *http.Response

	operation := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			// 5xx counts as a failure so the breaker sees upstream outages.
			if r.StatusCode >= 500 {
				return r, &upstreamError{status: r.StatusCode}
			}
			return r, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				lastResp = resp
			}
			return err
		}
		lastResp = resp
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		// A 5xx that exhausted retries is still a response; let the
		// caller turn it into a status error with the real body.
		if lastResp != nil {
			return lastResp, nil
		}
		return nil, err
	}

	return lastResp, nil
}

// CircuitState returns the current circuit breaker state.
func (c *Client) CircuitState() gobreaker.State {
	return c.breaker.State()
}

// CircuitCounts returns the current circuit breaker counters.
func (c *Client) CircuitCounts() gobreaker.Counts {
	return c.breaker.Counts()
}

type upstreamError struct {
	status int
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.status)
}
