package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appservice "github.com/soybean-admin/uniauth/internal/application/service"
	"github.com/soybean-admin/uniauth/internal/domain/models"
	domainservice "github.com/soybean-admin/uniauth/internal/domain/service"
	"github.com/soybean-admin/uniauth/pkg/constants"
	apperrors "github.com/soybean-admin/uniauth/pkg/errors"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

// ExtractToken pulls the token out of an Authorization header value. The
// "Bearer" and "Token" schemes are accepted, as is a bare token.
func ExtractToken(authHeader string) string {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return ""
	}
	parts := strings.Fields(authHeader)
	if len(parts) == 2 && (strings.EqualFold(parts[0], "bearer") || strings.EqualFold(parts[0], "token")) {
		return parts[1]
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return ""
}

// Auth guards a route according to its requirement. Public routes pass
// untouched; optional routes authenticate when a token is present but never
// reject; everything else demands a valid access token and the declared
// roles/permissions.
func Auth(auth appservice.AuthAppService, policy *domainservice.AccessPolicy, req *models.RouteRequirement, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if req != nil && req.Public {
			c.Next()
			return
		}

		token := ExtractToken(c.GetHeader("Authorization"))
		if token == "" {
			if req != nil && req.Optional {
				c.Next()
				return
			}
			AbortWithError(c, apperrors.ErrInvalidToken)
			return
		}

		claims, err := auth.VerifyAccess(c.Request.Context(), token)
		if err != nil {
			if req != nil && req.Optional && apperrors.IsAuthFailure(err) {
				// Optional routes degrade to anonymous on a bad token.
				c.Next()
				return
			}
			if apperrors.ShouldLog(err) {
				log.Error(c.Request.Context(), "token verification failed", err)
			}
			AbortWithError(c, err)
			return
		}

		identity := claims.Identity()
		if err := policy.Authorize(identity, req); err != nil {
			log.Warn(c.Request.Context(), "authorization denied",
				logger.String("uid", identity.ID),
				logger.String("path", c.FullPath()),
				logger.String("reason", string(apperrors.KindOf(err))),
			)
			AbortWithError(c, err)
			return
		}

		c.Set(ctxKeyIdentity, identity)
		c.Set(ctxKeyTokenID, claims.TokenID())
		withRequestValue(c, constants.ContextKeyIdentity, identity.ID)
		c.Next()
	}
}
