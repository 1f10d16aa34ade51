package handler

import (
	"net/http"
	"testing"
	"time"

	syncapp "github.com/marketplace/backend/internal/application/integration"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTenantCredentialHandler_Upsert(t *testing.T) {
	request := map[string]any{
		"tenant_domain":  "acme.example.com",
		"access_token":   "shpat_secret_token",
		"api_secret":     "whsec_value",
		"is_base_tenant": true,
	}

	t.Run("creates a credential", func(t *testing.T) {
		admin := new(mockCredentialAdmin)
		engine := newTestEngine(TenantCredentialRoutes(NewTenantCredentialHandler(admin)))
		admin.On("Upsert", mock.Anything, mock.MatchedBy(func(in syncapp.UpsertCredentialInput) bool {
			return in.TenantDomain == "acme.example.com" &&
				in.AccessToken == "shpat_secret_token" &&
				in.APISecret == "whsec_value" &&
				in.IsBaseTenant != nil && *in.IsBaseTenant &&
				in.IsActive == nil
		})).Return(&syncapp.CredentialSummary{
			TenantDomain: "acme.example.com",
			IsBaseTenant: true,
			IsActive:     true,
			Version:      1,
			UpdatedAt:    time.Now(),
		}, true, nil)

		w := doJSON(engine, http.MethodPost, "/api/v1/tenant-credentials", request)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NotContains(t, w.Body.String(), "shpat_secret_token")
		assert.NotContains(t, w.Body.String(), "whsec_value")
		var summary syncapp.CredentialSummary
		decodeData(t, w, &summary)
		assert.Equal(t, "acme.example.com", summary.TenantDomain)
		assert.True(t, summary.IsBaseTenant)
		admin.AssertExpectations(t)
	})

	t.Run("rotates an existing credential", func(t *testing.T) {
		admin := new(mockCredentialAdmin)
		engine := newTestEngine(TenantCredentialRoutes(NewTenantCredentialHandler(admin)))
		admin.On("Upsert", mock.Anything, mock.Anything).Return(&syncapp.CredentialSummary{
			TenantDomain: "acme.example.com",
			IsActive:     true,
			Version:      3,
		}, false, nil)

		w := doJSON(engine, http.MethodPost, "/api/v1/tenant-credentials", request)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("validates input", func(t *testing.T) {
		admin := new(mockCredentialAdmin)
		engine := newTestEngine(TenantCredentialRoutes(NewTenantCredentialHandler(admin)))

		w := doJSON(engine, http.MethodPost, "/api/v1/tenant-credentials", map[string]any{
			"tenant_domain": "acme.example.com",
			"access_token":  "shpat_secret_token",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "api_secret", resp.Error.Details[0].Field)
		admin.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("maps service errors", func(t *testing.T) {
		admin := new(mockCredentialAdmin)
		engine := newTestEngine(TenantCredentialRoutes(NewTenantCredentialHandler(admin)))
		admin.On("Upsert", mock.Anything, mock.Anything).Return(nil, false,
			shared.WithMessage(shared.ErrInvalidInput, "access token must not be blank"))

		w := doJSON(engine, http.MethodPost, "/api/v1/tenant-credentials", request)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeInvalidInput, resp.Error.Code)
		assert.Equal(t, "access token must not be blank", resp.Error.Message)
	})
}

func TestTenantCredentialHandler_List(t *testing.T) {
	admin := new(mockCredentialAdmin)
	engine := newTestEngine(TenantCredentialRoutes(NewTenantCredentialHandler(admin)))
	admin.On("List", mock.Anything).Return([]syncapp.CredentialSummary{
		{TenantDomain: "acme.example.com", IsBaseTenant: true, IsActive: true, Version: 2},
		{TenantDomain: "outlet.example.com", IsActive: false, Version: 1},
	}, nil)

	w := doJSON(engine, http.MethodGet, "/api/v1/tenant-credentials", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var summaries []syncapp.CredentialSummary
	decodeData(t, w, &summaries)
	require.Len(t, summaries, 2)
	assert.Equal(t, "outlet.example.com", summaries[1].TenantDomain)
	assert.False(t, summaries[1].IsActive)
}
