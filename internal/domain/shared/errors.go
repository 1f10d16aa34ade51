package shared

import "errors"

// ErrorKind groups domain errors by how callers must react to them.
type ErrorKind string

const (
	KindInvalidInput     ErrorKind = "INVALID_INPUT"
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindConflict         ErrorKind = "CONFLICT"
	KindInvalidState     ErrorKind = "INVALID_STATE"
	KindConfiguration    ErrorKind = "CONFIGURATION"
	KindInvalidSignature ErrorKind = "INVALID_SIGNATURE"
	KindMalformedPayload ErrorKind = "MALFORMED_PAYLOAD"
	KindRemoteValidation ErrorKind = "REMOTE_VALIDATION"
	KindRemoteTransient  ErrorKind = "REMOTE_TRANSIENT"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code.
// Wrapped copies of a sentinel therefore still match it via errors.Is.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error of kind INVALID_INPUT
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    KindInvalidInput,
	}
}

// NewKindError creates a domain error with an explicit kind
func NewKindError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    kind,
	}
}

// Wrap returns a copy of base carrying cause
func Wrap(base *DomainError, cause error) *DomainError {
	return &DomainError{
		Code:    base.Code,
		Message: base.Message,
		Kind:    base.Kind,
		cause:   cause,
	}
}

// WithMessage returns a copy of base with a more specific message
func WithMessage(base *DomainError, message string) *DomainError {
	return &DomainError{
		Code:    base.Code,
		Message: message,
		Kind:    base.Kind,
	}
}

// KindOf returns the kind of the first DomainError in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// Common domain errors
var (
	ErrNotFound            = NewKindError(KindNotFound, "NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewKindError(KindConflict, "ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewKindError(KindInvalidInput, "INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewKindError(KindConflict, "CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewKindError(KindInvalidState, "INVALID_STATE", "Operation not allowed in current state")

	ErrConfiguration    = NewKindError(KindConfiguration, "CONFIGURATION_ERROR", "No credential configured for tenant")
	ErrInvalidSignature = NewKindError(KindInvalidSignature, "INVALID_SIGNATURE", "Webhook signature verification failed")
	ErrMalformedPayload = NewKindError(KindMalformedPayload, "MALFORMED_PAYLOAD", "Webhook payload could not be parsed")
	ErrRemoteValidation = NewKindError(KindRemoteValidation, "REMOTE_VALIDATION", "Remote platform rejected the request")
	ErrRemoteTransient  = NewKindError(KindRemoteTransient, "REMOTE_TRANSIENT", "Remote platform temporarily unavailable")
)
