// Package handlers implements the HTTP endpoints of the auth service.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soybean-admin/uniauth/internal/application/dto"
	appservice "github.com/soybean-admin/uniauth/internal/application/service"
	"github.com/soybean-admin/uniauth/internal/interfaces/http/middleware"
	apperrors "github.com/soybean-admin/uniauth/pkg/errors"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

// AuthHandler serves the token lifecycle endpoints.
type AuthHandler struct {
	auth appservice.AuthAppService
	log  logger.Logger
}

// NewAuthHandler creates the auth endpoint handler.
func NewAuthHandler(auth appservice.AuthAppService, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		auth: auth,
		log:  log.WithComponent("auth_handler"),
	}
}

// Refresh rotates a refresh token into a new pair.
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.ErrInvalidRequest.WithMessage("refreshToken is required"))
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse(dto.NewTokenPairResponse(pair), middleware.RequestIDFrom(c)))
}

// Revoke ends the pair a presented token belongs to. With no body, the
// caller's own access token is revoked.
// POST /api/v1/auth/revoke
func (h *AuthHandler) Revoke(c *gin.Context) {
	var req dto.RevokeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		req.Token = middleware.ExtractToken(c.GetHeader("Authorization"))
	}
	if req.Token == "" {
		middleware.AbortWithError(c, apperrors.ErrInvalidRequest.WithMessage("token is required"))
		return
	}

	if err := h.auth.Revoke(c.Request.Context(), req.Token); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse(gin.H{"revoked": true}, middleware.RequestIDFrom(c)))
}

// RevokeAll ends every live session of an identity.
// POST /api/v1/auth/revoke-all
func (h *AuthHandler) RevokeAll(c *gin.Context) {
	var req dto.RevokeAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.ErrInvalidRequest.WithMessage("identityId is required"))
		return
	}

	count, err := h.auth.RevokeAll(c.Request.Context(), req.IdentityID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse(&dto.RevokeAllResponse{
		IdentityID: req.IdentityID,
		Revoked:    count,
	}, middleware.RequestIDFrom(c)))
}

// Verify reports the identity behind the presented access token. The auth
// middleware has already validated it by the time this runs.
// GET /api/v1/auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	identity := middleware.IdentityFrom(c)
	if identity == nil {
		middleware.AbortWithError(c, apperrors.ErrInvalidToken)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse(&dto.VerifyResponse{
		Valid:    true,
		Identity: identity,
		TokenID:  middleware.TokenIDFrom(c),
	}, middleware.RequestIDFrom(c)))
}

// Sessions enumerates the live sessions of an identity.
// GET /api/v1/auth/sessions/:id
func (h *AuthHandler) Sessions(c *gin.Context) {
	identityID := c.Param("id")

	resp, err := h.auth.Sessions(c.Request.Context(), identityID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse(resp, middleware.RequestIDFrom(c)))
}

// Echo answers internal service-to-service calls with the verified caller
// context. It doubles as the connectivity probe for the trust protocol.
// GET /api/v1/internal/echo
func (h *AuthHandler) Echo(c *gin.Context) {
	sc := middleware.ServiceContextFrom(c)
	if sc == nil {
		middleware.AbortWithError(c, apperrors.ErrMissingServiceHeaders)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse(sc, middleware.RequestIDFrom(c)))
}
