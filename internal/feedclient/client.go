// Package feedclient fetches indicator batches from the feed server's
// GET /iocs endpoint.
package feedclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"iocviewer/internal/threat"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrDecodeResponse   = errors.New("decoding response")
	ErrBaseURLNotValid  = errors.New("base URL is not valid")
)

// maxBodySize bounds how much of an error body is kept for the message.
const maxBodySize = 512

type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRetry sets the number of attempts for transient failures and the base
// delay, which grows linearly with each attempt.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(cl *Client) {
		cl.maxAttempts = maxAttempts
		cl.backoff = backoff
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBaseURLNotValid, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBaseURLNotValid, baseURL)
	}

	c := &Client{
		baseURL:     u,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxAttempts: 3,
		backoff:     500 * time.Millisecond,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c, nil
}

// Fetch returns the current batch of source.
func (c *Client) Fetch(ctx context.Context, source threat.SourceID) (*threat.IndicatorBatch, error) {
	if err := threat.ValidateSource(source); err != nil {
		return nil, err
	}
	return retryWithBackoff(ctx, c.logger, string(source), c.maxAttempts, c.backoff, func() (*threat.IndicatorBatch, error) {
		return c.fetchOnce(ctx, source)
	})
}

func (c *Client) endpoint(source threat.SourceID) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/iocs"
	q := url.Values{}
	q.Set("source", string(source))
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) fetchOnce(ctx context.Context, source threat.SourceID) (*threat.IndicatorBatch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(source), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("doing request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		err := fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return nil, &transientError{err: err}
		}
		return nil, err
	}

	var doc threat.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeResponse, err)
	}
	return doc.Batch()
}
