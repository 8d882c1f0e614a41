// Package fetcher downloads and parses queue disclosures from HTTP sources.
package fetcher

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gridhound/gridhound/internal/resilience"
)

// Options configures the HTTP client.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
}

// Request describes one fetch. InsecureTLS relaxes certificate verification
// for sources that serve broken chains; it applies to this request only.
type Request struct {
	URL         string
	Accept      string
	InsecureTLS bool
}

// Client fetches URLs with per-host rate limiting and bounded retries on
// transient transport failures. Parse failures never reach the retry loop.
type Client struct {
	client   *http.Client
	insecure *http.Client
	opts     Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient creates a Client with the given options.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "gridhound/1.0"
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	insecureTransport := transport.Clone()
	insecureTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in per source
	return &Client{
		client:   &http.Client{Timeout: opts.Timeout, Transport: transport},
		insecure: &http.Client{Timeout: opts.Timeout, Transport: insecureTransport},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (c *Client) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(5, 5)
		c.limiters[host] = lim
	}
	return lim
}

// Get fetches the URL and returns the full response body.
func (c *Client) Get(ctx context.Context, req Request) ([]byte, error) {
	cfg := resilience.RetryConfig{MaxAttempts: c.opts.MaxRetries}

	return resilience.Do(ctx, cfg, "fetch "+req.URL, func(ctx context.Context) ([]byte, error) {
		if err := c.limiterFor(req.URL).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create request")
		}
		httpReq.Header.Set("User-Agent", c.opts.UserAgent)
		if req.Accept != "" {
			httpReq.Header.Set("Accept", req.Accept)
		}

		client := c.client
		if req.InsecureTLS {
			client = c.insecure
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: do request")
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("fetcher: http %d from %s", resp.StatusCode, req.URL)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				zap.L().Warn("transient http status",
					zap.String("url", req.URL),
					zap.Int("status", resp.StatusCode),
				)
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "fetcher: read body"), 0)
		}
		return body, nil
	})
}
