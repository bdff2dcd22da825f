package dto

import (
	"github.com/soybean-admin/uniauth/internal/domain/models"
)

// RefreshTokenRequest rotates a refresh token into a fresh pair.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RevokeTokenRequest revokes the pair the presented token belongs to. The
// token does not need to be valid, only parseable.
type RevokeTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// RevokeAllRequest revokes every live session of an identity.
type RevokeAllRequest struct {
	IdentityID string `json:"identityId" binding:"required"`
}

// TokenPairResponse mirrors the issued pair on the wire. Field names follow
// the client SDK's camelCase convention.
type TokenPairResponse struct {
	AccessToken           string `json:"accessToken"`
	RefreshToken          string `json:"refreshToken"`
	TokenType             string `json:"tokenType"`
	AccessTokenExpiresIn  int64  `json:"accessTokenExpiresIn"`
	RefreshTokenExpiresIn int64  `json:"refreshTokenExpiresIn"`
}

// NewTokenPairResponse converts the domain pair to its wire shape.
func NewTokenPairResponse(pair *models.TokenPair) *TokenPairResponse {
	return &TokenPairResponse{
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		TokenType:             pair.TokenType,
		AccessTokenExpiresIn:  pair.AccessTokenExpiresIn,
		RefreshTokenExpiresIn: pair.RefreshTokenExpiresIn,
	}
}

// VerifyResponse reports the identity behind a valid access token.
type VerifyResponse struct {
	Valid    bool             `json:"valid"`
	Identity *models.Identity `json:"identity,omitempty"`
	TokenID  string           `json:"tokenId,omitempty"`
}

// SessionDTO is one live session of an identity. Token hashes are digests,
// never the tokens themselves.
type SessionDTO struct {
	JTI        string `json:"jti"`
	CreatedAt  int64  `json:"createdAt"`
	LastUsedAt int64  `json:"lastUsedAt"`
}

// SessionsResponse enumerates the live sessions of an identity.
type SessionsResponse struct {
	IdentityID string       `json:"identityId"`
	Count      int          `json:"count"`
	Sessions   []SessionDTO `json:"sessions"`
}

// RevokeAllResponse reports how many sessions a bulk revocation ended.
type RevokeAllResponse struct {
	IdentityID string `json:"identityId"`
	Revoked    int    `json:"revoked"`
}
