// Package fetch downloads image bytes over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	errs "gmapsimages/pkg/errors"
	"gmapsimages/pkg/logger"
	"gmapsimages/pkg/retry"
)

// Options configures a Client
type Options struct {
	Timeout       time.Duration
	UserAgent     string
	Referer       string
	RetryAttempts int
	RetryDelay    time.Duration
}

// Client fetches image bytes. It is safe for concurrent use; the underlying
// transport owns per-connection state.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	policy     retry.Policy
	logger     logger.Logger
}

// NewClient creates a new byte-fetch client
func NewClient(opts Options, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "fetch")

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	headers := map[string]string{
		"Accept":          "image/avif,image/webp,image/apng,image/*,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}
	if opts.UserAgent != "" {
		headers["User-Agent"] = opts.UserAgent
	}
	if opts.Referer != "" {
		headers["Referer"] = opts.Referer
	}

	policy := retry.Constant("fetch", max(opts.RetryAttempts, 1), opts.RetryDelay).
		WithRetryIf(func(err error) bool {
			// client timeouts are transport failures; caller cancellation is
			// checked by retry.Do before every attempt
			return errs.Is(err, errs.ErrorTypeTransport)
		}).
		WithLogger(log)

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		headers: headers,
		policy:  policy,
		logger:  log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Fetch performs one GET. Transport failures are transport errors and any
// non-2xx status is an http_status error carrying the code.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "build request")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, errs.Wrap(errs.ErrorTypeTransport, err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		c.logger.WarnWithFields("unexpected response status", map[string]interface{}{
			"url":    url,
			"status": resp.StatusCode,
		})
		return nil, errs.HTTPStatus(resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeTransport, err, "read body")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      url,
		"status":   resp.StatusCode,
		"bytes":    len(data),
		"duration": time.Since(start),
	})
	return data, nil
}

// FetchWithRetry retries transport failures under the client's policy. A
// status error ends the attempts immediately.
func (c *Client) FetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	data, err := retry.DoWithResult(ctx, c.policy, func(ctx context.Context, attempt int) ([]byte, error) {
		return c.Fetch(ctx, url)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return data, nil
}
