package remote

import (
	"errors"
	"fmt"
	"time"

	"github.com/marketplace/backend/internal/infrastructure/config"
	"golang.org/x/time/rate"
)

// AccessTokenHeader carries the tenant access token on every admin API call
const AccessTokenHeader = "X-Shopify-Access-Token"

const (
	defaultAPIVersion       = "2025-01"
	defaultTimeout          = 15 * time.Second
	defaultMaxResponseBytes = 4 << 20
)

// Errors for gateway configuration
var (
	ErrMissingDomain      = errors.New("remote: tenant domain is required")
	ErrMissingAccessToken = errors.New("remote: access token is required")
)

// Config holds the storefront admin API client settings
type Config struct {
	Scheme     string
	APIVersion string
	// Timeout bounds each HTTP attempt, retries get a fresh budget
	Timeout              time.Duration
	MaxRetries           int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	MaxResponseBytes     int64
	// RatePerSecond bounds HTTP attempts per store; zero disables the limit
	RatePerSecond float64
	Burst         int
}

// ConfigFromSettings builds a Config from the application configuration
func ConfigFromSettings(cfg config.RemoteConfig) Config {
	c := Config{
		Scheme:               cfg.Scheme,
		APIVersion:           cfg.APIVersion,
		Timeout:              cfg.Timeout,
		MaxRetries:           cfg.MaxRetries,
		RetryInitialInterval: cfg.RetryInitialInterval,
		RetryMaxInterval:     cfg.RetryMaxInterval,
		MaxResponseBytes:     cfg.MaxResponseBytes,
		RatePerSecond:        cfg.RatePerSecond,
		Burst:                cfg.RateBurst,
	}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Scheme == "" {
		c.Scheme = "https"
	}
	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = 500 * time.Millisecond
	}
	if c.RetryMaxInterval < c.RetryInitialInterval {
		c.RetryMaxInterval = c.RetryInitialInterval
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = defaultMaxResponseBytes
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
}

// newLimiter returns the request limiter for one store, nil when unlimited
func (c Config) newLimiter() *rate.Limiter {
	if c.RatePerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.RatePerSecond), c.Burst)
}

// Endpoint returns the GraphQL admin endpoint of a store
func (c Config) Endpoint(tenantDomain string) string {
	return fmt.Sprintf("%s://%s/admin/api/%s/graphql.json", c.Scheme, tenantDomain, c.APIVersion)
}
