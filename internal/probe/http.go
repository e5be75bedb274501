package probe

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rileyhilliard/rterm/internal/errors"
)

// PreviewLimit caps how much of a fetched body is shown.
const PreviewLimit = 512

// FetchResult summarizes one HTTP GET.
type FetchResult struct {
	URL         string
	Status      int
	StatusText  string
	ContentType string
	Size        int
	Duration    time.Duration
	Preview     string
}

// Fetcher performs HTTP GETs for the fetch command.
type Fetcher struct {
	client *resty.Client
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*fetcherConfig)

type fetcherConfig struct {
	timeout    time.Duration
	retries    int
	minWait    time.Duration
	maxWait    time.Duration
	userAgent  string
	httpClient *http.Client
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) FetcherOption {
	return func(c *fetcherConfig) { c.timeout = d }
}

// WithRetries sets how many times a failed request is retried.
func WithRetries(n int, minWait, maxWait time.Duration) FetcherOption {
	return func(c *fetcherConfig) {
		c.retries = n
		c.minWait = minWait
		c.maxWait = maxWait
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(c *fetcherConfig) { c.userAgent = ua }
}

// NewFetcher builds a resty client on top of a retryablehttp transport.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	cfg := fetcherConfig{
		timeout:   30 * time.Second,
		retries:   2,
		minWait:   500 * time.Millisecond,
		maxWait:   5 * time.Second,
		userAgent: "rterm",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.retries
	retryClient.RetryWaitMin = cfg.minWait
	retryClient.RetryWaitMax = cfg.maxWait
	retryClient.Logger = nil

	client := resty.New().
		SetTimeout(cfg.timeout).
		SetRetryCount(cfg.retries).
		SetRetryWaitTime(cfg.minWait).
		SetRetryMaxWaitTime(cfg.maxWait).
		SetHeader("User-Agent", cfg.userAgent).
		SetTransport(retryClient.HTTPClient.Transport)

	return &Fetcher{client: client}
}

// NormalizeURL adds http:// when no scheme is given.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New(errors.ErrUsage, "fetch: missing URL", "Use: fetch <url>")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "", errors.New(errors.ErrUsage, "fetch: only http and https URLs are supported", "")
	}
	return raw, nil
}

// Get fetches url. Any HTTP status is a successful fetch; only transport
// failures return an error.
func (f *Fetcher) Get(ctx context.Context, url string) (FetchResult, error) {
	start := time.Now()
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return FetchResult{URL: url}, errors.WrapWithCode(err, errors.ErrExec,
			"fetch: request to "+url+" failed",
			"Check the URL and your network connection")
	}

	body := resp.Body()
	return FetchResult{
		URL:         url,
		Status:      resp.StatusCode(),
		StatusText:  resp.Status(),
		ContentType: resp.Header().Get("Content-Type"),
		Size:        len(body),
		Duration:    time.Since(start),
		Preview:     preview(body, PreviewLimit),
	}, nil
}

// preview returns at most limit bytes of body, cut on a rune boundary.
func preview(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	cut := body[:limit]
	for len(cut) > 0 && !utf8.Valid(cut) {
		cut = cut[:len(cut)-1]
	}
	return string(cut) + "…"
}
