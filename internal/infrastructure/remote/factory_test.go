package remote

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/marketplace/backend/internal/domain/integration"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/time/rate"
)

type mockCredentialSource struct {
	mock.Mock
}

func (m *mockCredentialSource) Resolve(ctx context.Context, tenantDomain string) (*integration.Credentials, error) {
	args := m.Called(ctx, tenantDomain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Credentials), args.Error(1)
}

func TestConfig_Endpoint(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	assert.Equal(t, "https://shop.example.com/admin/api/2025-01/graphql.json", cfg.Endpoint("shop.example.com"))
}

func TestGatewayFactory_ForTenant(t *testing.T) {
	api, srv := newFakeAdminAPI(t)
	api.reply("locations", http.StatusOK, `{"data":{"locations":{"nodes":[]}}}`)
	host := mustHost(t, srv.URL)

	source := new(mockCredentialSource)
	source.On("Resolve", mock.Anything, host).Return(&integration.Credentials{
		TenantDomain: host,
		AccessToken:  "tenant-token",
	}, nil)

	factory := NewGatewayFactory(testConfig(), source)
	gw, err := factory.ForTenant(context.Background(), host)
	require.NoError(t, err)
	assert.Equal(t, host, gw.TenantDomain())

	_, err = gw.ListLocations(context.Background())
	require.NoError(t, err)

	calls := api.calls("locations")
	require.Len(t, calls, 1)
	assert.Equal(t, "tenant-token", calls[0].Token)
	source.AssertExpectations(t)
}

func TestGatewayFactory_ForTenant_DefaultStore(t *testing.T) {
	source := new(mockCredentialSource)
	source.On("Resolve", mock.Anything, "").Return(&integration.Credentials{
		TenantDomain: "Default.Example.com",
		AccessToken:  "t",
	}, nil)

	gw, err := NewGatewayFactory(testConfig(), source).ForTenant(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "default.example.com", gw.TenantDomain())
}

func TestGatewayFactory_ForTenant_Errors(t *testing.T) {
	t.Run("resolver error is returned unchanged", func(t *testing.T) {
		source := new(mockCredentialSource)
		source.On("Resolve", mock.Anything, "unknown.example.com").Return(nil, shared.ErrConfiguration)

		_, err := NewGatewayFactory(testConfig(), source).ForTenant(context.Background(), "unknown.example.com")
		assert.ErrorIs(t, err, shared.ErrConfiguration)
	})

	t.Run("missing access token", func(t *testing.T) {
		source := new(mockCredentialSource)
		source.On("Resolve", mock.Anything, "shop.example.com").Return(&integration.Credentials{
			TenantDomain: "shop.example.com",
			APISecret:    "secret-only",
		}, nil)

		_, err := NewGatewayFactory(testConfig(), source).ForTenant(context.Background(), "shop.example.com")
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindConfiguration))
		assert.ErrorIs(t, err, ErrMissingAccessToken)
	})

	t.Run("no domain anywhere", func(t *testing.T) {
		source := new(mockCredentialSource)
		source.On("Resolve", mock.Anything, "").Return(&integration.Credentials{AccessToken: "t"}, nil)

		_, err := NewGatewayFactory(testConfig(), source).ForTenant(context.Background(), "")
		assert.ErrorIs(t, err, ErrMissingDomain)
	})
}

func mustHost(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Host
}

func TestGatewayFactory_TracesStorefrontRequests(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})

	api, srv := newFakeAdminAPI(t)
	api.reply("locations", http.StatusOK, `{"data":{"locations":{"nodes":[]}}}`)
	host := mustHost(t, srv.URL)

	source := new(mockCredentialSource)
	source.On("Resolve", mock.Anything, host).Return(&integration.Credentials{
		TenantDomain: host,
		AccessToken:  "tenant-token",
	}, nil)

	gw, err := NewGatewayFactory(testConfig(), source).ForTenant(context.Background(), host)
	require.NoError(t, err)
	_, err = gw.ListLocations(context.Background())
	require.NoError(t, err)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Contains(t, names, "storefront POST")
}

func TestGatewayFactory_LimiterPerStore(t *testing.T) {
	cfg := testConfig()
	cfg.RatePerSecond = 2
	cfg.Burst = 4
	factory := NewGatewayFactory(cfg, new(mockCredentialSource))

	a := factory.limiterFor("a.example.com")
	require.NotNil(t, a)
	assert.Same(t, a, factory.limiterFor("a.example.com"))
	assert.NotSame(t, a, factory.limiterFor("b.example.com"))
	assert.Equal(t, rate.Limit(2), a.Limit())
	assert.Equal(t, 4, a.Burst())

	unlimited := NewGatewayFactory(testConfig(), new(mockCredentialSource))
	assert.Nil(t, unlimited.limiterFor("a.example.com"))
}
