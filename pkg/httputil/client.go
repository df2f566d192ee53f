package httputil

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/dnscache"

	"github.com/matzehuels/deploader/pkg/buildinfo"
	"github.com/matzehuels/deploader/pkg/errors"
	"github.com/matzehuels/deploader/pkg/observability"
)

const (
	DefaultConnectTimeout = 3500 * time.Millisecond
	DefaultReadTimeout    = 5 * time.Second

	dnsRefreshInterval = 5 * time.Minute
)

var (
	// ErrNotFound is returned when the repository does not have the resource.
	ErrNotFound = errors.New(errors.ErrCodeNotFound, "not found")

	// ErrUpstreamDown is returned for network failures, 5xx responses and
	// repositories whose breaker is open.
	ErrUpstreamDown = errors.New(errors.ErrCodeNetwork, "upstream unavailable")

	// ErrBreakerOpen is returned, together with ErrUpstreamDown, when a
	// request was not attempted because the host's breaker is open.
	ErrBreakerOpen = stderrors.New("circuit breaker open")
)

// Response is a successful GET. The caller must close Body.
type Response struct {
	Body io.ReadCloser
	Size int64 // -1 if unknown
}

// Client issues GET requests against repositories.
type Client struct {
	http      *http.Client
	userAgent string
	breakers  *Breakers

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithUserAgent overrides the User-Agent header, which defaults to
// [buildinfo.UserAgent].
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// WithBreakers sets the circuit breaker set. Pass nil to disable breaking.
func WithBreakers(b *Breakers) Option {
	return func(cl *Client) {
		cl.breakers = b
	}
}

// NewClient creates a client with DNS caching and the default timeouts.
// Call Close to stop the DNS refresh loop.
func NewClient(opts ...Option) *Client {
	c := &Client{
		userAgent: buildinfo.UserAgent(),
		breakers:  NewBreakers(DefaultTripThreshold),
		stop:      make(chan struct{}),
	}

	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(dnsRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				resolver.Refresh(true)
			case <-c.stop:
				return
			}
		}
	}()

	dialer := &net.Dialer{
		Timeout:   DefaultConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	c.http = &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := resolver.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				var lastErr error
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return &readTimeoutConn{Conn: conn, timeout: DefaultReadTimeout}, nil
					}
					lastErr = err
				}
				if lastErr == nil {
					lastErr = fmt.Errorf("no addresses for %s", host)
				}
				return nil, lastErr
			},
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   DefaultConnectTimeout,
			ResponseHeaderTimeout: DefaultReadTimeout,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close stops background DNS refreshing.
func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

// Breakers returns the client's breaker set, or nil.
func (c *Client) Breakers() *Breakers {
	return c.breakers
}

// Get fetches rawURL. See the package documentation for error mapping.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %s: %w", rawURL, err)
	}

	if c.breakers == nil {
		return c.do(ctx, u)
	}

	breaker := c.breakers.For(u.Host)
	if !breaker.Ready() {
		return nil, fmt.Errorf("%s: %w: %w", u.Host, ErrBreakerOpen, ErrUpstreamDown)
	}

	var resp *Response
	var softErr error
	err = breaker.Call(func() error {
		r, err := c.do(ctx, u)
		if err != nil && !stderrors.Is(err, ErrUpstreamDown) {
			// Not the host's fault; keep the breaker closed.
			softErr = err
			return nil
		}
		resp = r
		return err
	}, 0)
	if softErr != nil {
		return nil, softErr
	}
	if err != nil && !stderrors.Is(err, ErrUpstreamDown) {
		err = fmt.Errorf("%s: %w: %v", u.Host, ErrUpstreamDown, err)
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, u *url.URL) (*Response, error) {
	hooks := observability.HTTP()
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")

	hooks.OnRequest(ctx, http.MethodGet, u.Host, u.Path)
	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, http.MethodGet, u.Host, u.Path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamDown, err)
	}
	hooks.OnResponse(ctx, http.MethodGet, u.Host, u.Path, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
		return &Response{Body: resp.Body, Size: resp.ContentLength}, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", u, ErrNotFound)
	case resp.StatusCode >= 500:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: status %d: %w", u, resp.StatusCode, ErrUpstreamDown)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: unexpected status %d", u, resp.StatusCode)
	}
}

// readTimeoutConn bounds the time a single Read may block.
type readTimeoutConn struct {
	net.Conn
	timeout time.Duration
}

func (c *readTimeoutConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}
