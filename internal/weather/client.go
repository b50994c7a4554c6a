package weather

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yegors/co-wx/internal/observability"
	"github.com/yegors/co-wx/pkg/logger"
)

// maxBodyBytes caps upstream response bodies
const maxBodyBytes = 16 << 20

// Upstream fetches raw feed payloads
type Upstream interface {
	FetchText(ctx context.Context, feed, url string) (string, error)
	FetchJSON(ctx context.Context, feed, url string, headers map[string]string) ([]byte, error)
}

// ClientConfig controls the upstream HTTP client
type ClientConfig struct {
	Timeout    time.Duration
	MaxRetries int
	// BaseBackoff is the delay before the first retry, doubled on each subsequent one
	BaseBackoff time.Duration
}

// Client handles HTTP requests to weather APIs
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *logger.Logger
}

var _ Upstream = (*Client)(nil)

// NewClient creates a new weather API client
func NewClient(config ClientConfig, metrics *observability.Metrics, log *logger.Logger) *Client {
	if config.BaseBackoff <= 0 {
		config.BaseBackoff = 500 * time.Millisecond
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		metrics: metrics,
		logger:  log.Named("weather-client"),
	}
}

// FetchText fetches a plain-text product
func (c *Client) FetchText(ctx context.Context, feed, url string) (string, error) {
	body, err := c.fetchWithRetry(ctx, feed, url, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchJSON fetches a JSON document and returns its raw bytes
func (c *Client) FetchJSON(ctx context.Context, feed, url string, headers map[string]string) ([]byte, error) {
	merged := map[string]string{"Accept": "application/json"}
	for k, v := range headers {
		merged[k] = v
	}
	return c.fetchWithRetry(ctx, feed, url, merged)
}

// fetchWithRetry performs HTTP request with retry logic and exponential backoff.
// Every failure is returned wrapped in ErrUpstreamUnavailable.
func (c *Client) fetchWithRetry(ctx context.Context, feed, url string, headers map[string]string) (body []byte, err error) {
	started := time.Now()
	defer func() { c.metrics.ObserveUpstream(feed, started, err) }()

	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff between retries
			backoffDuration := c.config.BaseBackoff * time.Duration(1<<uint(attempt-1))
			c.logger.Info("Retrying upstream fetch",
				logger.String("feed", feed),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", backoffDuration))

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, feed, ctx.Err())
			case <-time.After(backoffDuration):
			}
		}

		body, lastErr = c.fetchOnce(ctx, url, headers)
		if lastErr == nil {
			if attempt > 0 {
				c.logger.Info("Successfully fetched upstream data after retries",
					logger.String("feed", feed),
					logger.Int("attempts_needed", attempt+1))
			}
			return body, nil
		}

		c.logger.Warn("Upstream request failed, may retry",
			logger.String("feed", feed),
			logger.Error(lastErr),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.config.MaxRetries+1))

		if ctx.Err() != nil {
			break
		}
	}

	c.logger.Error("All attempts to fetch upstream data failed",
		logger.String("feed", feed),
		logger.Error(lastErr),
		logger.Int("max_attempts", c.config.MaxRetries+1))
	return nil, fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, feed, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	return body, nil
}
