package dto

import (
	"net/http"

	"github.com/marketplace/backend/internal/domain/shared"
)

// Error codes returned in ErrorInfo.Code.
// Format: ERR_<CATEGORY>_<DESCRIPTION>
const (
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeTooLarge     = "ERR_PAYLOAD_TOO_LARGE"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"

	ErrCodeNotFound     = "ERR_NOT_FOUND"
	ErrCodeConflict     = "ERR_CONFLICT"
	ErrCodeInvalidState = "ERR_INVALID_STATE"

	ErrCodeConfiguration    = "ERR_CONFIGURATION"
	ErrCodeInvalidSignature = "ERR_INVALID_SIGNATURE"
	ErrCodeMalformedPayload = "ERR_MALFORMED_PAYLOAD"

	ErrCodeRemoteValidation = "ERR_REMOTE_VALIDATION"
	ErrCodeRemoteTransient  = "ERR_REMOTE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized: http.StatusUnauthorized,

	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeConflict:     http.StatusConflict,
	ErrCodeInvalidState: http.StatusUnprocessableEntity,

	// A missing store credential is a server-side setup problem
	ErrCodeConfiguration:    http.StatusInternalServerError,
	ErrCodeInvalidSignature: http.StatusUnauthorized,
	ErrCodeMalformedPayload: http.StatusBadRequest,

	ErrCodeRemoteValidation: http.StatusUnprocessableEntity,
	ErrCodeRemoteTransient:  http.StatusServiceUnavailable,
}

// kindErrorCode maps domain error kinds to API error codes
var kindErrorCode = map[shared.ErrorKind]string{
	shared.KindInvalidInput:     ErrCodeInvalidInput,
	shared.KindNotFound:         ErrCodeNotFound,
	shared.KindConflict:         ErrCodeConflict,
	shared.KindInvalidState:     ErrCodeInvalidState,
	shared.KindConfiguration:    ErrCodeConfiguration,
	shared.KindInvalidSignature: ErrCodeInvalidSignature,
	shared.KindMalformedPayload: ErrCodeMalformedPayload,
	shared.KindRemoteValidation: ErrCodeRemoteValidation,
	shared.KindRemoteTransient:  ErrCodeRemoteTransient,
}

// GetHTTPStatus returns the HTTP status for an error code, 500 if unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// CodeForKind returns the API error code for a domain error kind
func CodeForKind(kind shared.ErrorKind) string {
	if code, ok := kindErrorCode[kind]; ok {
		return code
	}
	return ErrCodeInternal
}
