package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned without calling the provider while its breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ClientConfig configures a provider HTTP client.
type ClientConfig struct {
	// Name identifies the provider in the registry and breaker (e.g. "tomtom-traffic").
	Name string

	// Timeout bounds each HTTP attempt. Default: 5s
	Timeout time.Duration

	// MaxRetries after the first attempt. Default: 2
	MaxRetries uint64

	// InitialInterval is the first backoff delay. Default: 100ms
	InitialInterval time.Duration

	// MaxInterval caps the backoff delay. Default: 2s
	MaxInterval time.Duration

	// Breaker overrides DefaultBreakerConfig(Name).
	Breaker *BreakerConfig

	// Registry, when set, receives the client and every call outcome.
	Registry *Registry

	// Recorder, when set, receives the duration of every call.
	Recorder RequestRecorder

	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// RequestRecorder observes provider call latency.
type RequestRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
}

// DefaultClientConfig returns the defaults used for signal providers.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         5 * time.Second,
		MaxRetries:      2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Breaker:         &breaker,
	}
}

// Client executes provider requests with retry and circuit breaking.
// 5xx responses and transport errors count as failures; 4xx responses are
// returned to the caller untouched and never retried.
type Client struct {
	name     string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	registry *Registry
	recorder RequestRecorder

	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewClient creates a Client and registers it when cfg.Registry is set.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	breakerCfg := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
		if breakerCfg.Name == "" {
			breakerCfg.Name = cfg.Name
		}
	}

	c := &Client{
		name:            cfg.Name,
		http:            &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		breaker:         newBreaker[*http.Response](breakerCfg), //nolint:bodyclose // type parameter
		registry:        cfg.Registry,
		recorder:        cfg.Recorder,
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.InitialInterval,
		maxInterval:     cfg.MaxInterval,
	}

	if c.registry != nil {
		c.registry.Register(c.name, c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// Do executes req using its own context.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext executes req under ctx. When retries are exhausted on a 5xx,
// the last response is returned with a nil error so callers can map the status.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	bo.MaxInterval = c.maxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)

	var last *http.Response
	attempt := func() error {
		//nolint:bodyclose // returned to caller
		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, err := c.http.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				if last != nil && last != resp {
					last.Body.Close()
				}
				last = resp
			}
			return err
		}
		if last != nil && last != resp {
			last.Body.Close()
		}
		last = resp
		return nil
	}

	err := backoff.Retry(attempt, policy)
	if c.recorder != nil {
		c.recorder.RecordRequest(c.name, req.URL.Path, time.Since(start), err)
	}
	if err != nil {
		c.recordFailure(err)
		if last != nil {
			if !errors.Is(err, ErrCircuitOpen) {
				return last, nil
			}
			last.Body.Close()
		}
		return nil, err
	}

	c.recordSuccess()
	return last, nil
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(c.name)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(c.name, err)
	}
}

// ServerError is a 5xx response from a provider.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// State returns the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the breaker counters.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}
