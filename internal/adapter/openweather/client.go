package openweather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	"github.com/couchcryptid/clima-ingest-service/internal/observability"
	"github.com/sony/gobreaker"
)

// Responses larger than this are treated as a transport failure.
const maxBodyBytes = 1 << 20

// Client fetches current conditions for one city from the OpenWeatherMap API.
// It never retries and never caches.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBreaker fails fast once maxFailures consecutive transport failures have
// been seen, for openTimeout before letting a trial request through.
func WithBreaker(maxFailures uint32, openTimeout time.Duration) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openweather",
			MaxRequests: 1,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
				if to == gobreaker.StateOpen {
					c.metrics.BreakerOpen.Set(1)
				} else {
					c.metrics.BreakerOpen.Set(0)
				}
			},
		})
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates an OpenWeatherMap client. A zero timeout leaves requests
// bounded only by the caller's context.
func NewClient(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the provider payload for city. Any response whose body is
// JSON is returned as-is, whatever its status, so provider error payloads
// reach validation. Network failures, non-JSON bodies and an open breaker
// yield a *domain.FetchError.
func (c *Client) Fetch(ctx context.Context, city string) (domain.RawWeatherResponse, error) {
	start := time.Now()
	defer func() { c.metrics.FetchDuration.Observe(time.Since(start).Seconds()) }()

	var (
		raw domain.RawWeatherResponse
		err error
	)
	if c.breaker == nil {
		raw, err = c.do(ctx, city)
	} else {
		var out any
		out, err = c.breaker.Execute(func() (any, error) { return c.do(ctx, city) })
		if out != nil {
			raw = out.(domain.RawWeatherResponse)
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("weather provider unavailable: %w", err)
		}
	}
	if err != nil {
		return domain.RawWeatherResponse{}, &domain.FetchError{City: city, Err: err}
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, city string) (domain.RawWeatherResponse, error) {
	params := url.Values{
		"q":     {city},
		"appid": {c.apiKey},
		"units": {"metric"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.RawWeatherResponse{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RawWeatherResponse{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return domain.RawWeatherResponse{}, fmt.Errorf("read response: %w", err)
	}
	if len(body) > maxBodyBytes {
		return domain.RawWeatherResponse{}, fmt.Errorf("weather response exceeds %d bytes", maxBodyBytes)
	}

	raw, err := domain.NewRawWeatherResponse(resp.StatusCode, body)
	if err != nil {
		return domain.RawWeatherResponse{}, fmt.Errorf("openweather API error: status %d: malformed body: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("weather provider returned non-200", "city", city, "status", resp.StatusCode)
	}
	return raw, nil
}
