package models

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/soybean-admin/uniauth/pkg/constants"
)

// TokenClaims is the JWT payload for both token classes. It embeds the
// standard registered claims and adds the identity fields plus the kind
// discriminator, so an access token can never pass where a refresh token is
// expected and vice versa.
type TokenClaims struct {
	jwt.RegisteredClaims

	// Kind discriminates access from refresh tokens.
	Kind constants.TokenKind `json:"type"`

	// UID is the identity's stable identifier.
	UID string `json:"uid"`

	// Username is the identity's display name.
	Username string `json:"username"`

	// Domain is the tenant or realm of the identity.
	Domain string `json:"domain"`

	// Roles and Permissions are carried only on access tokens; refresh tokens
	// stay minimal, matching what rotation needs to rebuild the identity.
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`

	// Email is optional contact information.
	Email string `json:"email,omitempty"`

	// Extra carries caller-defined identity attributes.
	Extra map[string]any `json:"extra,omitempty"`
}

// Identity reconstructs the identity value embedded in the claims.
func (c *TokenClaims) Identity() *Identity {
	return &Identity{
		ID:          c.UID,
		Username:    c.Username,
		Domain:      c.Domain,
		Roles:       c.Roles,
		Permissions: c.Permissions,
		Email:       c.Email,
		Extra:       c.Extra,
	}
}

// TokenID returns the jti of this token.
func (c *TokenClaims) TokenID() string { return c.RegisteredClaims.ID }
