// Package errors defines the structured error types of the auth core and the
// single place where error kinds map to HTTP status codes. Every failure that
// can cross the authorization boundary is one of the kinds below; transport
// handlers translate them to 400/401/403/429/503 and nothing else.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a recoverable-at-the-boundary failure class.
type Kind string

const (
	KindInvalidRequest         Kind = "invalid_request"
	KindInvalidToken           Kind = "invalid_token"
	KindWrongTokenType         Kind = "wrong_token_type"
	KindInvalidIssuerAudience  Kind = "invalid_issuer_audience"
	KindRevokedToken           Kind = "revoked_token"
	KindMissingServiceHeaders  Kind = "missing_service_headers"
	KindStaleTimestamp         Kind = "stale_timestamp"
	KindInvalidServiceSig      Kind = "invalid_service_signature"
	KindServiceNotAuthorized   Kind = "service_not_authorized"
	KindInvalidUserContext     Kind = "invalid_user_context"
	KindRateLimitExceeded      Kind = "rate_limit_exceeded"
	KindInsufficientRole       Kind = "insufficient_role"
	KindInsufficientPermission Kind = "insufficient_permission"
	KindStoreUnavailable       Kind = "store_unavailable"
	KindInternal               Kind = "internal_error"
)

// AppError is the structured application error carried through the auth core.
// Message is safe to return to external callers; the cause chain is not and
// stays in server-side logs.
type AppError struct {
	Kind       Kind
	HTTPStatus int
	Message    string
	RetryAfter int64 // milliseconds, set only for rate-limit errors
	cause      error
	metadata   map[string]any
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches two AppErrors by kind so sentinel comparison works across
// instances carrying different causes.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// WithCause attaches an underlying error and returns a copy, keeping the
// predefined sentinels immutable.
func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.cause = cause
	return &clone
}

// WithMessage overrides the public message on a copy.
func (e *AppError) WithMessage(msg string) *AppError {
	clone := *e
	clone.Message = msg
	return &clone
}

// WithMetadata attaches key/value context on a copy. Metadata feeds logs and
// internal responses, never the public error body.
func (e *AppError) WithMetadata(key string, value any) *AppError {
	clone := *e
	clone.metadata = make(map[string]any, len(e.metadata)+1)
	for k, v := range e.metadata {
		clone.metadata[k] = v
	}
	clone.metadata[key] = value
	return &clone
}

// Metadata returns the attached context, possibly nil.
func (e *AppError) Metadata() map[string]any {
	return e.metadata
}

// New creates an AppError with an explicit kind, status and message.
func New(kind Kind, httpStatus int, message string) *AppError {
	return &AppError{Kind: kind, HTTPStatus: httpStatus, Message: message}
}

// ================================================================================
// Predefined errors
// ================================================================================

// ErrInvalidToken collapses malformed, bad-signature and expired failures into
// one external message so callers cannot distinguish tampering from expiry.
// The specific cause is attached via WithCause for server-side logs only.
var ErrInvalidToken = New(KindInvalidToken, http.StatusUnauthorized, "invalid or expired token")

var (
	ErrInvalidRequest        = New(KindInvalidRequest, http.StatusBadRequest, "the request is missing a required parameter or is otherwise malformed")
	ErrWrongTokenType        = New(KindWrongTokenType, http.StatusUnauthorized, "token type does not match the expected type")
	ErrInvalidIssuerAudience = New(KindInvalidIssuerAudience, http.StatusUnauthorized, "token issuer or audience is not accepted here")
	ErrRevokedToken          = New(KindRevokedToken, http.StatusUnauthorized, "token has been revoked")
	ErrMissingServiceHeaders = New(KindMissingServiceHeaders, http.StatusUnauthorized, "missing service authentication headers")
	ErrStaleTimestamp        = New(KindStaleTimestamp, http.StatusUnauthorized, "request timestamp is outside the accepted window")
	ErrInvalidServiceSig     = New(KindInvalidServiceSig, http.StatusUnauthorized, "invalid service signature")
	ErrServiceNotAuthorized  = New(KindServiceNotAuthorized, http.StatusForbidden, "service is not authorized for this endpoint")
	ErrInvalidUserContext    = New(KindInvalidUserContext, http.StatusUnauthorized, "invalid user context format")
	ErrInsufficientRole      = New(KindInsufficientRole, http.StatusForbidden, "insufficient role")
	ErrInsufficientPerm      = New(KindInsufficientPermission, http.StatusForbidden, "insufficient permissions")
	ErrStoreUnavailable      = New(KindStoreUnavailable, http.StatusServiceUnavailable, "shared store is unavailable")
	ErrInternal              = New(KindInternal, http.StatusInternalServerError, "an unexpected error occurred")
)

// ErrRateLimitExceeded builds a throttle error carrying the backoff hint.
func ErrRateLimitExceeded(retryAfterMs int64) *AppError {
	e := New(KindRateLimitExceeded, http.StatusTooManyRequests, "too many requests, please try again later")
	e.RetryAfter = retryAfterMs
	return e
}

// ================================================================================
// Inspection helpers
// ================================================================================

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatusOf returns the status an error maps to at the boundary.
func HTTPStatusOf(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsAuthFailure reports whether err is one of the 401-class verification
// failures, as opposed to an authorization (403) or availability (503) one.
func IsAuthFailure(err error) bool {
	switch KindOf(err) {
	case KindInvalidToken, KindWrongTokenType, KindInvalidIssuerAudience, KindRevokedToken:
		return true
	}
	return false
}

// ShouldLog reports whether an error warrants server-side logging beyond the
// access log: server errors always, throttle hits for visibility, plain client
// auth failures are left to the audit trail.
func ShouldLog(err error) bool {
	status := HTTPStatusOf(err)
	return status >= 500 || status == http.StatusTooManyRequests
}

// Is re-exports errors.Is so callers need a single errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

// As re-exports errors.As.
func As(err error, target any) bool { return errors.As(err, target) }
