package remote

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/marketplace/backend/internal/domain/integration"
	"github.com/marketplace/backend/internal/domain/shared"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// CredentialSource resolves decrypted credentials for a store
type CredentialSource interface {
	Resolve(ctx context.Context, tenantDomain string) (*integration.Credentials, error)
}

// GatewayFactory builds a StorefrontGateway per call from resolved
// credentials. Gateways share the factory's HTTP transport, which emits a
// client span per storefront request, and one request limiter per store.
type GatewayFactory struct {
	cfg      Config
	source   CredentialSource
	client   *http.Client
	observer CallObserver
	logger   *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// FactoryOption configures a GatewayFactory
type FactoryOption func(*GatewayFactory)

// WithHTTPClient overrides the HTTP client used by all gateways
func WithHTTPClient(client *http.Client) FactoryOption {
	return func(f *GatewayFactory) {
		if client != nil {
			f.client = client
		}
	}
}

// WithFactoryObserver reports every gateway call to o
func WithFactoryObserver(o CallObserver) FactoryOption {
	return func(f *GatewayFactory) {
		f.observer = o
	}
}

// WithFactoryLogger sets the logger handed to executors
func WithFactoryLogger(logger *zap.Logger) FactoryOption {
	return func(f *GatewayFactory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewGatewayFactory creates a new GatewayFactory
func NewGatewayFactory(cfg Config, source CredentialSource, opts ...FactoryOption) *GatewayFactory {
	cfg.applyDefaults()
	f := &GatewayFactory{
		cfg:    cfg,
		source: source,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "storefront " + r.Method
				}),
			),
		},
		logger:   zap.NewNop(),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ForTenant returns a gateway for tenantDomain. An empty domain selects the
// base tenant or the configured default store.
func (f *GatewayFactory) ForTenant(ctx context.Context, tenantDomain string) (integration.CatalogGateway, error) {
	creds, err := f.source.Resolve(ctx, tenantDomain)
	if err != nil {
		return nil, err
	}
	domain := integration.NormalizeDomain(creds.TenantDomain)
	if domain == "" {
		domain = integration.NormalizeDomain(tenantDomain)
	}
	if domain == "" {
		return nil, shared.Wrap(shared.ErrConfiguration, ErrMissingDomain)
	}
	if creds.AccessToken == "" {
		return nil, shared.Wrap(shared.ErrConfiguration, fmt.Errorf("%w for %s", ErrMissingAccessToken, domain))
	}

	exec := NewExecutor(f.cfg, f.cfg.Endpoint(domain), creds.AccessToken, f.client,
		WithLogger(f.logger.With(zap.String("tenant_domain", domain))),
		WithCallObserver(f.observer),
		WithRateLimiter(f.limiterFor(domain)),
	)
	return NewStorefrontGateway(domain, exec), nil
}

func (f *GatewayFactory) limiterFor(domain string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[domain]
	if !ok {
		l = f.cfg.newLimiter()
		f.limiters[domain] = l
	}
	return l
}

var _ integration.GatewayFactory = (*GatewayFactory)(nil)
