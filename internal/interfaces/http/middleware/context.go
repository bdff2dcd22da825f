// Package middleware implements the gin middleware chain: request identity,
// authentication, cross-service trust, rate limiting and observability.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/soybean-admin/uniauth/internal/application/dto"
	"github.com/soybean-admin/uniauth/internal/domain/models"
	"github.com/soybean-admin/uniauth/pkg/constants"
	apperrors "github.com/soybean-admin/uniauth/pkg/errors"
)

const (
	ctxKeyIdentity       = string(constants.ContextKeyIdentity)
	ctxKeyServiceContext = string(constants.ContextKeyServiceContext)
	ctxKeyRequestID      = string(constants.ContextKeyRequestID)
	ctxKeyTokenID        = "token_id"
)

// IdentityFrom returns the authenticated identity, or nil on public and
// optional-auth routes where no valid token was presented.
func IdentityFrom(c *gin.Context) *models.Identity {
	if v, ok := c.Get(ctxKeyIdentity); ok {
		if identity, ok := v.(*models.Identity); ok {
			return identity
		}
	}
	return nil
}

// TokenIDFrom returns the jti of the presented access token, or "".
func TokenIDFrom(c *gin.Context) string {
	return c.GetString(ctxKeyTokenID)
}

// ServiceContextFrom returns the verified cross-service context, or nil.
func ServiceContextFrom(c *gin.Context) *models.ServiceContext {
	if v, ok := c.Get(ctxKeyServiceContext); ok {
		if sc, ok := v.(*models.ServiceContext); ok {
			return sc
		}
	}
	return nil
}

// RequestIDFrom returns the request id assigned by the RequestID middleware.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(ctxKeyRequestID)
}

// AbortWithError terminates the request with the envelope and status an error
// maps to.
func AbortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperrors.HTTPStatusOf(err), dto.ErrorResponse(err, RequestIDFrom(c)))
}

// withRequestValue threads a key/value into the request context so non-gin
// code (loggers, stores) can read it.
func withRequestValue(c *gin.Context, key constants.ContextKey, value string) {
	ctx := context.WithValue(c.Request.Context(), key, value)
	c.Request = c.Request.WithContext(ctx)
}
