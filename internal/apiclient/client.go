package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/jwalitptl/meditrack/pkg/errors"
	"github.com/jwalitptl/meditrack/pkg/metrics"
)

const maxBodySize = 10 << 20

type Config struct {
	BaseURL          string
	Timeout          time.Duration
	BreakerFailures  uint32
	BreakerOpenTime  time.Duration
	BreakerHalfOpens uint32
}

// Client talks to the upstream patient REST API. Calls carry the bearer
// token found in the request context, if any.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func New(cfg Config, m *metrics.Metrics, logger zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid upstream base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}

	logger = logger.With().Str("component", "apiclient").Logger()

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: cfg.BreakerHalfOpens,
		Timeout:     cfg.BreakerOpenTime,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// Client errors say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.IsFetch(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})

	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: cfg.Timeout},
		cb:      cb,
		metrics: m,
		logger:  logger,
	}, nil
}

// BreakerState reports the upstream circuit breaker state for readiness.
func (c *Client) BreakerState() gobreaker.State {
	return c.cb.State()
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, "", out)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Internal(fmt.Errorf("failed to encode request: %w", err))
	}
	return c.do(ctx, http.MethodPost, path, nil, payload, "application/json", out)
}

// PostForm sends an urlencoded form, as the upstream login endpoint expects.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, []byte(form.Encode()), "application/x-www-form-urlencoded", out)
}

func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Internal(fmt.Errorf("failed to encode request: %w", err))
	}
	return c.do(ctx, http.MethodPut, path, nil, payload, "application/json", out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, "", nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, contentType string, out interface{}) error {
	start := time.Now()
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, query, body, contentType, out)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		err = errors.Fetch("patient service unavailable", err)
	}

	if c.metrics != nil {
		c.metrics.UpstreamLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
		c.metrics.UpstreamRequests.WithLabelValues(method, outcome(err)).Inc()
	}
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("upstream request failed")
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body []byte, contentType string, out interface{}) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return errors.Internal(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Fetch("failed to reach patient service", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return errors.Fetch("failed to read patient service response", err)
	}

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, data)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Fetch("malformed response from patient service", err)
	}
	return nil
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return errors.KindOf(err).String()
}
