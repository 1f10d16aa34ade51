package dto

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeConfiguration, http.StatusInternalServerError},
		{ErrCodeInvalidSignature, http.StatusUnauthorized},
		{ErrCodeMalformedPayload, http.StatusBadRequest},
		{ErrCodeRemoteValidation, http.StatusUnprocessableEntity},
		{ErrCodeRemoteTransient, http.StatusServiceUnavailable},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestCodeForKind(t *testing.T) {
	kinds := []shared.ErrorKind{
		shared.KindInvalidInput,
		shared.KindNotFound,
		shared.KindConflict,
		shared.KindInvalidState,
		shared.KindConfiguration,
		shared.KindInvalidSignature,
		shared.KindMalformedPayload,
		shared.KindRemoteValidation,
		shared.KindRemoteTransient,
	}
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			code := CodeForKind(kind)
			assert.True(t, strings.HasPrefix(code, "ERR_"))
			_, mapped := ErrorCodeHTTPStatus[code]
			assert.True(t, mapped, "code %s has no HTTP status", code)
		})
	}

	assert.Equal(t, ErrCodeInternal, CodeForKind(""))
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "Product not found", "req-123")

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "req-123", resp.Error.RequestID)

	body, err := json.Marshal(NewErrorResponse(ErrCodeInternal, "boom"))
	require.NoError(t, err)
	assert.NotContains(t, string(body), "request_id")
	assert.NotContains(t, string(body), "data")
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{{Field: "tenant_domain", Message: "This field is required"}}
	resp := NewValidationErrorResponse("Request validation failed", "req-1", details)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, details, resp.Error.Details)
}
