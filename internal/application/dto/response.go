// Package dto defines the request and response shapes of the HTTP surface.
package dto

import (
	"time"

	apperrors "github.com/soybean-admin/uniauth/pkg/errors"
)

// APIResponse is the envelope shared by every endpoint.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorDTO   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ErrorDTO carries a machine-readable error kind and a human message.
type ErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SuccessResponse wraps data in the standard envelope.
func SuccessResponse(data interface{}, requestID string) *APIResponse {
	return &APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}

// ErrorResponse wraps an error in the standard envelope. Authentication
// failures all surface as a single code and message, so callers cannot probe
// which verification step rejected them.
func ErrorResponse(err error, requestID string) *APIResponse {
	code := apperrors.KindOf(err)
	message := "internal server error"

	if apperrors.IsAuthFailure(err) {
		code = apperrors.KindInvalidToken
		message = "invalid or expired token"
	} else if appErr, ok := apperrors.AsAppError(err); ok {
		message = appErr.Message
	}

	return &APIResponse{
		Success:   false,
		Error:     &ErrorDTO{Code: string(code), Message: message},
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
