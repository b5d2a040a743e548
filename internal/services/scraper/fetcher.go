package scraper

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the quote page endpoint
	DefaultBaseURL = "https://finviz.com/quote.ashx"

	// DefaultTimeout bounds each page request
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent is sent with every request
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

	maxPageBytes = 8 << 20
)

// HTTPStatusError is returned for non-2xx quote page responses
type HTTPStatusError struct {
	StatusCode int
	Ticker     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("quote page for %s returned status %d", e.Ticker, e.StatusCode)
}

// HTTPFetcher fetches quote pages over HTTP
type HTTPFetcher struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

// FetcherOption configures the HTTPFetcher
type FetcherOption func(*HTTPFetcher)

// WithBaseURL sets the quote page endpoint
func WithBaseURL(baseURL string) FetcherOption {
	return func(f *HTTPFetcher) {
		if baseURL != "" {
			f.baseURL = baseURL
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(userAgent string) FetcherOption {
	return func(f *HTTPFetcher) {
		if userAgent != "" {
			f.userAgent = userAgent
		}
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(httpClient *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		if timeout > 0 {
			f.httpClient.Timeout = timeout
		}
	}
}

// WithRateLimit caps requests per second. Zero disables the cap.
func WithRateLimit(requestsPerSecond float64) FetcherOption {
	return func(f *HTTPFetcher) {
		if requestsPerSecond <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}

// WithLogger sets a logger
func WithLogger(logger arbor.ILogger) FetcherOption {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// NewHTTPFetcher creates a quote page fetcher
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// NewProxyClient builds an HTTP client that dials through a SOCKS5 proxy
// given as "host:port" or "host:port:user:password"
func NewProxyClient(proxyAddr string, timeout time.Duration) (*http.Client, error) {
	parts := strings.Split(proxyAddr, ":")

	var auth *proxy.Auth
	switch len(parts) {
	case 2:
	case 4:
		auth = &proxy.Auth{User: parts[2], Password: parts[3]}
	default:
		return nil, fmt.Errorf("failed to parse proxy address %q", proxyAddr)
	}

	dialer, err := proxy.SOCKS5("tcp", net.JoinHostPort(parts[0], parts[1]), auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	transport := &http.Transport{}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
	} else {
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// PageURL returns the quote page URL for a ticker
func (f *HTTPFetcher) PageURL(ticker string) string {
	return f.baseURL + "?t=" + url.QueryEscape(ticker)
}

// Fetch retrieves the quote page body for a ticker
func (f *HTTPFetcher) Fetch(ctx context.Context, ticker string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.PageURL(ticker), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	if f.logger != nil {
		f.logger.Debug().Str("ticker", ticker).Msg("Fetching quote page")
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageBytes))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Ticker: ticker}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
