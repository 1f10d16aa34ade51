package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/application/fulfillment"
	syncapp "github.com/marketplace/backend/internal/application/integration"
	"github.com/marketplace/backend/internal/application/webhook"
	"github.com/marketplace/backend/internal/domain/integration"
	"github.com/marketplace/backend/internal/interfaces/http/dto"
	"github.com/marketplace/backend/internal/interfaces/http/middleware"
	"github.com/marketplace/backend/internal/interfaces/http/router"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// testResponse mirrors dto.Response with a raw payload
type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) testResponse {
	t.Helper()
	var resp testResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) testResponse {
	t.Helper()
	resp := decodeResponse(t, w)
	require.NoError(t, json.Unmarshal(resp.Data, out))
	return resp
}

// newTestEngine mounts groups under /api/v1 the way the server does
func newTestEngine(groups ...*router.DomainGroup) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestID())
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	for _, g := range groups {
		r.Register(g)
	}
	r.Setup()
	return engine
}

func doJSON(engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) Sync(ctx context.Context, productID uuid.UUID, tenantDomain string) (*integration.SyncResult, error) {
	args := m.Called(ctx, productID, tenantDomain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SyncResult), args.Error(1)
}

type mockLifecycle struct {
	mock.Mock
}

func (m *mockLifecycle) SellLocally(ctx context.Context, productID uuid.UUID) (*fulfillment.TransitionResult, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.TransitionResult), args.Error(1)
}

func (m *mockLifecycle) Archive(ctx context.Context, productID uuid.UUID) (*fulfillment.TransitionResult, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.TransitionResult), args.Error(1)
}

type mockBacklog struct {
	mock.Mock
}

func (m *mockBacklog) SyncOwnerBacklog(ctx context.Context, ownerID uuid.UUID, tenantDomain string) (*syncapp.BulkSyncResult, error) {
	args := m.Called(ctx, ownerID, tenantDomain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncapp.BulkSyncResult), args.Error(1)
}

type mockPreferences struct {
	mock.Mock
}

func (m *mockPreferences) SetSoldNotifications(ctx context.Context, ownerID uuid.UUID, enabled bool) error {
	return m.Called(ctx, ownerID, enabled).Error(0)
}

type mockCredentialAdmin struct {
	mock.Mock
}

func (m *mockCredentialAdmin) Upsert(ctx context.Context, in syncapp.UpsertCredentialInput) (*syncapp.CredentialSummary, bool, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*syncapp.CredentialSummary), args.Bool(1), args.Error(2)
}

func (m *mockCredentialAdmin) List(ctx context.Context) ([]syncapp.CredentialSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]syncapp.CredentialSummary), args.Error(1)
}

type mockIngestor struct {
	mock.Mock
}

func (m *mockIngestor) Ingest(ctx context.Context, d webhook.Delivery) (*webhook.IngestResult, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*webhook.IngestResult), args.Error(1)
}

type recordingObserver struct {
	outcomes []string
}

func (o *recordingObserver) ObserveWebhook(_ context.Context, topic, outcome string) {
	o.outcomes = append(o.outcomes, topic+":"+outcome)
}

type stubCheck struct {
	err error
}

func (s stubCheck) Ping(context.Context) error {
	return s.err
}

