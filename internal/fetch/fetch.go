// Package fetch downloads catalogs, archives, signatures, and keys
// over HTTP with retry, per-host circuit breaking, and DNS caching.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
	circuit "github.com/rubyist/circuitbreaker"
)

// Sentinel errors by upstream HTTP class.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrRateLimited  = errors.New("rate limited by upstream")
	ErrUpstreamDown = errors.New("upstream repository unavailable")
)

const (
	defaultUserAgent  = "Starpack/1.0"
	connectTimeout    = 15 * time.Second
	totalTimeout      = 300 * time.Second
	maxConcurrent     = 10
	defaultMaxRetries = 3
	defaultBaseDelay  = 500 * time.Millisecond
)

// Recorder receives a notification for every completed download so a
// cache index can be kept. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RecordFetch(url, dest string, size int64)
}

// Fetcher downloads files from repositories.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	recorder   Recorder

	mu       sync.Mutex
	breakers map[string]*circuit.Breaker
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxRetries sets the maximum retry attempts per transfer.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseDelay = d
	}
}

// WithRecorder sets the cache index recorder.
func WithRecorder(r Recorder) Option {
	return func(f *Fetcher) {
		f.recorder = r
	}
}

// New creates a Fetcher with the given options.
func New(opts ...Option) *Fetcher {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()

	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}

	f := &Fetcher{
		client: &http.Client{
			Timeout: totalTimeout,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					host, port, err := net.SplitHostPort(addr)
					if err != nil {
						return nil, err
					}
					ips, err := resolver.LookupHost(ctx, host)
					if err != nil {
						return nil, err
					}
					for _, ip := range ips {
						conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
						if err == nil {
							return conn, nil
						}
					}
					return nil, fmt.Errorf("failed to dial any resolved address for %s", host)
				},
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   maxConcurrent,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		userAgent:  defaultUserAgent,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		breakers:   make(map[string]*circuit.Breaker),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// breaker returns or creates the circuit breaker for a URL's host.
// A breaker trips once it has counted five failures so a dead
// repository stops consuming retries for the rest of the batch.
func (f *Fetcher) breaker(rawURL string) *circuit.Breaker {
	host := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Host != "" {
		host = parsed.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if b, ok := f.breakers[host]; ok {
		return b
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Reset()

	b := circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	})
	f.breakers[host] = b
	return b
}

// Download fetches url into dest. A pre-existing dest is treated as
// success. Parent directories are created; partial files are removed
// on any failure.
func (f *Fetcher) Download(ctx context.Context, rawURL, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	b := f.breaker(rawURL)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.baseDelay
	policy.Reset()

	attempt := func() error {
		if !b.Ready() {
			return backoff.Permanent(fmt.Errorf("circuit open for %s: %w", rawURL, ErrUpstreamDown))
		}
		err := b.Call(func() error {
			return f.downloadOnce(ctx, rawURL, dest)
		}, 0)
		if err == nil {
			return nil
		}
		// Retry only rate limiting and server-side failures.
		if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamDown) {
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(f.maxRetries)), ctx))
	if err != nil {
		return fmt.Errorf("download of %s failed: %w", rawURL, err)
	}
	return nil
}

func (f *Fetcher) downloadOnce(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", rawURL, ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", rawURL, ErrRateLimited)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%s returned HTTP %d: %w", rawURL, resp.StatusCode, ErrUpstreamDown)
	default:
		return fmt.Errorf("%s returned HTTP %d", rawURL, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	written, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}

	if f.recorder != nil {
		f.recorder.RecordFetch(rawURL, dest, written)
	}
	return nil
}
