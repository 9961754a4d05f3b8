package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/ppiankov/subfeed/internal/feed"
	"github.com/ppiankov/subfeed/internal/logger"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (compatible; subfeed/1.0; +https://github.com/ppiankov/subfeed)"
	DefaultRetries   = 3

	maxBodyBytes = 10 << 20
)

// Fetcher retrieves the raw posts of a single subscription.
type Fetcher struct {
	client  *http.Client
	retries int
}

// Option configures a Fetcher.
type Option func(*fetcherOptions)

type fetcherOptions struct {
	timeout   time.Duration
	userAgent string
	retries   int
	client    *http.Client
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(o *fetcherOptions) { o.timeout = d }
}

// WithUserAgent overrides the User-Agent header sent to providers.
func WithUserAgent(ua string) Option {
	return func(o *fetcherOptions) { o.userAgent = ua }
}

// WithRetries sets the maximum number of attempts per subscription.
func WithRetries(n int) Option {
	return func(o *fetcherOptions) { o.retries = n }
}

// WithHTTPClient replaces the underlying client. Timeout and User-Agent
// options are ignored when a client is supplied.
func WithHTTPClient(c *http.Client) Option {
	return func(o *fetcherOptions) { o.client = c }
}

// NewFetcher creates a Fetcher with the given options.
func NewFetcher(opts ...Option) *Fetcher {
	o := fetcherOptions{
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
		retries:   DefaultRetries,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.retries < 1 {
		o.retries = 1
	}

	client := o.client
	if client == nil {
		client = &http.Client{
			Timeout:   o.timeout,
			Transport: &uaTransport{base: http.DefaultTransport, userAgent: o.userAgent},
		}
	}
	return &Fetcher{client: client, retries: o.retries}
}

// RequestPosts retrieves sub's posts in provider order. Every failure is a
// *feed.FeedUnavailableError.
func (f *Fetcher) RequestPosts(ctx context.Context, sub feed.Subscription) ([]RawPost, error) {
	p, err := Lookup(sub.Type)
	if err != nil {
		return nil, &feed.FeedUnavailableError{Subscription: sub, Err: err}
	}

	var lastErr error
	for attempt := range f.retries {
		posts, err := p.Request(ctx, f.client, sub)
		if err == nil {
			logger.L.Debugw("fetched subscription",
				"subscription", sub.Label(), "type", sub.Type, "posts", len(posts), "attempt", attempt+1)
			return posts, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == f.retries-1 {
			break
		}
		backoff := time.Duration(1<<uint(attempt)) * time.Second // 1s, 2s, 4s
		logger.L.Warnw("retrying subscription", "subscription", sub.Label(), "error", err, "backoff", backoff)
		if err := sleepFunc(ctx, backoff); err != nil {
			lastErr = err
			break
		}
	}

	var unavailable *feed.FeedUnavailableError
	if errors.As(lastErr, &unavailable) {
		return nil, unavailable
	}
	return nil, &feed.FeedUnavailableError{Subscription: sub, Err: lastErr}
}

// sleepFunc waits between attempts. Tests replace it.
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var unavailable *feed.FeedUnavailableError
	if errors.As(err, &unavailable) && unavailable.Status != 0 {
		return unavailable.Status >= 500 || unavailable.Status == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

// get performs one GET and returns the body of a 2xx response.
func get(ctx context.Context, client *http.Client, sub feed.Subscription, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &feed.FeedUnavailableError{Subscription: sub, Err: fmt.Errorf("create request: %w", err)}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &feed.FeedUnavailableError{Subscription: sub, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &feed.FeedUnavailableError{Subscription: sub, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &feed.FeedUnavailableError{Subscription: sub, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// uaTransport injects a User-Agent header into every request.
type uaTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}
