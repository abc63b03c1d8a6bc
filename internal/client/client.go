package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dm/search-insights/internal/config"
	"github.com/dm/search-insights/internal/errors"
)

// CacheBuster is appended to every request as "_=<CacheBuster>" so
// intermediary caches never answer for a node.
const CacheBuster = "searchscale"

const maxResponseBytes = 64 * 1024 * 1024

// NodeClient fetches a diagnostic endpoint from a search node.
type NodeClient interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// ClientConfig holds configuration for DefaultClient.
type ClientConfig struct {
	Auth               config.Auth
	InsecureSkipVerify bool
	// RequestTimeout bounds each request; zero leaves only the transport defaults.
	RequestTimeout time.Duration
	// MaxRPS caps the request rate across all goroutines; zero is unlimited.
	MaxRPS float64
}

// DefaultClient implements NodeClient using net/http.
type DefaultClient struct {
	http    *http.Client
	config  ClientConfig
	limiter *rate.Limiter
}

// NewDefaultClient constructs a DefaultClient from the given config.
func NewDefaultClient(cfg ClientConfig) (*DefaultClient, error) {
	if cfg.RequestTimeout < 0 {
		return nil, fmt.Errorf("RequestTimeout must not be negative")
	}
	if cfg.MaxRPS < 0 {
		return nil, fmt.Errorf("MaxRPS must not be negative")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
	}

	c := &DefaultClient{
		http: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		config: cfg,
	}
	if cfg.MaxRPS > 0 {
		burst := int(cfg.MaxRPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), burst)
	}
	return c, nil
}

// Get performs a GET of endpoint with the cache-busting parameter appended.
// It sets Accept: application/json and Basic auth when credentials are
// configured. Any non-2xx status is a CONNECTIVITY error.
func (c *DefaultClient) Get(ctx context.Context, endpoint string) ([]byte, error) {
	target := WithCacheBuster(endpoint)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, connectivity("wait for rate limiter", target, 0, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, connectivity("create request", target, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.Auth.Enabled() {
		req.SetBasicAuth(c.config.Auth.Username, c.config.Auth.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, connectivity("do request", target, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, connectivity("read body", target, resp.StatusCode, err)
	}
	if len(body) > maxResponseBytes {
		return nil, connectivity(fmt.Sprintf("response body exceeds %d MB limit", maxResponseBytes/(1024*1024)), target, resp.StatusCode, nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, connectivity("unexpected status", target, resp.StatusCode,
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200)))
	}

	return body, nil
}

// WithCacheBuster appends the cache-busting query parameter.
func WithCacheBuster(endpoint string) string {
	if strings.Contains(endpoint, "?") {
		return endpoint + "&_=" + CacheBuster
	}
	return endpoint + "?_=" + CacheBuster
}

func connectivity(msg, url string, status int, cause error) error {
	ctx := map[string]any{"url": url}
	if status != 0 {
		ctx["status"] = status
	}
	return errors.WrapWithContext(errors.KindConnectivity, msg, cause, ctx)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
