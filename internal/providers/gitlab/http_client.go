package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/reviewcheck/internal/retry"
)

const (
	defaultPoolSize   = 32
	defaultMaxRetries = 3
	defaultRetryDelay = 5 * time.Second
	defaultTimeout    = 30 * time.Second
)

// ErrUnexpectedPayload is returned when GitLab answers with something other
// than a JSON array where a list was expected, typically an error object.
var ErrUnexpectedPayload = errors.New("gitlab: malformed data returned from GitLab")

// StatusError is a non-200 response that survived all retries.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d [%s]: %s", e.StatusCode, e.URL, e.Body)
}

// GitLabConfig contains configuration for the GitLab client
type GitLabConfig struct {
	// URL is the API base, for example https://gitlab.example.com/api/v4.
	URL               string
	Token             string
	PoolSize          int
	MaxRetries        int
	RetryDelay        time.Duration
	// RetryBackoff multiplies the delay after every retry, 1 keeps it fixed.
	RetryBackoff  float64
	RetryMaxDelay time.Duration
	RetryJitter   bool

	RequestsPerSecond float64
	Timeout           time.Duration
}

func (c GitLabConfig) withDefaults() GitLabConfig {
	c.URL = strings.TrimSuffix(c.URL, "/")
	if c.PoolSize <= 0 {
		c.PoolSize = defaultPoolSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.RetryBackoff < 1 {
		c.RetryBackoff = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// GitLabHTTPClient is a small REST client for the list endpoints the report
// needs. It is safe for concurrent use; the connection pool and the rate
// limiter are shared by every worker.
type GitLabHTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	retry   retry.RetryConfig
}

// NewHTTPClient creates a new GitLab HTTP client
func NewHTTPClient(config GitLabConfig) *GitLabHTTPClient {
	config = config.withDefaults()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = config.PoolSize
	transport.MaxIdleConnsPerHost = config.PoolSize
	transport.MaxConnsPerHost = config.PoolSize

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &GitLabHTTPClient{
		baseURL: config.URL,
		token:   config.Token,
		client:  &http.Client{Transport: transport, Timeout: config.Timeout},
		limiter: rate.NewLimiter(limit, config.PoolSize),
		retry: retry.RetryConfig{
			MaxRetries: config.MaxRetries,
			BaseDelay:  config.RetryDelay,
			MaxDelay:   config.RetryMaxDelay,
			Multiplier: config.RetryBackoff,
			Jitter:     config.RetryJitter,
		},
	}
}

// BaseURL returns the API base URL requests are made against.
func (c *GitLabHTTPClient) BaseURL() string { return c.baseURL }

// get performs one GET with retries. Transport errors and 5xx responses are
// retried with the configured backoff; any other non-200 status fails at once.
func (c *GitLabHTTPClient) get(ctx context.Context, requestURL string) ([]byte, http.Header, error) {
	var (
		body   []byte
		header http.Header
	)
	result := retry.RetryWithBackoff(ctx, c.retry, requestURL, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(fmt.Errorf("rate limiter: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Add("PRIVATE-TOKEN", c.token)

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(ctx.Err())
			}
			return fmt.Errorf("failed to execute request: %w", err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()

		log.Info().
			Dur("elapsed", time.Since(start)).
			Int("status", resp.StatusCode).
			Str("url", requestURL).
			Msg("request was completed")

		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode == http.StatusOK {
			body, header = data, resp.Header
			return nil
		}

		log.Error().Int("status", resp.StatusCode).Str("url", requestURL).Msg("request failed")
		statusErr := &StatusError{StatusCode: resp.StatusCode, URL: requestURL, Body: string(data)}
		if resp.StatusCode >= 500 && resp.StatusCode < 600 {
			// server is overloaded? give it a break
			return statusErr
		}
		return retry.Permanent(statusErr)
	})
	if err := result.Err(); err != nil {
		return nil, nil, err
	}
	return body, header, nil
}

// getAllPages fetches every page of a list endpoint sequentially and
// concatenates the elements. requestURL must already carry a query string.
func (c *GitLabHTTPClient) getAllPages(ctx context.Context, requestURL string) ([]json.RawMessage, error) {
	body, header, err := c.get(ctx, requestURL)
	if err != nil {
		return nil, err
	}
	items, err := decodePage(requestURL, body)
	if err != nil {
		return nil, err
	}

	if total, ok := headerInt(header, "X-Total-Pages"); ok {
		for page := 2; page <= total; page++ {
			more, _, err := c.getPage(ctx, requestURL, page)
			if err != nil {
				return nil, err
			}
			items = append(items, more...)
		}
		return items, nil
	}

	// GitLab leaves out X-Total-Pages for very large collections; follow
	// X-Next-Page instead.
	next, ok := headerInt(header, "X-Next-Page")
	for ok {
		var more []json.RawMessage
		more, header, err = c.getPage(ctx, requestURL, next)
		if err != nil {
			return nil, err
		}
		items = append(items, more...)
		next, ok = headerInt(header, "X-Next-Page")
	}
	return items, nil
}

func (c *GitLabHTTPClient) getPage(ctx context.Context, requestURL string, page int) ([]json.RawMessage, http.Header, error) {
	pageURL := fmt.Sprintf("%s&page=%d", requestURL, page)
	body, header, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}
	items, err := decodePage(pageURL, body)
	if err != nil {
		return nil, nil, err
	}
	return items, header, nil
}

// getList returns all pages of a list endpoint as one JSON array.
func (c *GitLabHTTPClient) getList(ctx context.Context, requestURL string) (json.RawMessage, error) {
	items, err := c.getAllPages(ctx, requestURL)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to join pages: %w", err)
	}
	return raw, nil
}

func decodePage(requestURL string, body []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w [%s]: %v", ErrUnexpectedPayload, requestURL, err)
	}
	return items, nil
}

func headerInt(header http.Header, key string) (int, bool) {
	v := strings.TrimSpace(header.Get(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
