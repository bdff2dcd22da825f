// Package crypto implements the HMAC-signed token issuance and verification
// engine backing the authentication core.
package crypto

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/soybean-admin/uniauth/internal/domain/models"
	"github.com/soybean-admin/uniauth/internal/domain/service"
	"github.com/soybean-admin/uniauth/pkg/constants"
	apperrors "github.com/soybean-admin/uniauth/pkg/errors"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

// Config carries the signing material and claim policy for the token engine.
// Access and refresh tokens are signed with distinct secrets so a leaked
// access secret cannot forge refresh tokens.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Algorithm     string
}

type jwtManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	audience      string
	method        jwt.SigningMethod
	log           logger.Logger
}

// NewJWTManager creates the token engine. Secrets must already be validated
// for length and distinctness by the configuration layer.
func NewJWTManager(cfg Config, log logger.Logger) (service.TokenService, error) {
	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	return &jwtManager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		method:        method,
		log:           log.WithComponent("jwt_manager"),
	}, nil
}

// IssuePair mints a correlated access/refresh token pair. The refresh jti is
// the access jti plus a fixed suffix, so revoking one side can locate the
// other.
func (m *jwtManager) IssuePair(ctx context.Context, identity *models.Identity) (*models.TokenPair, error) {
	if identity == nil || identity.ID == "" {
		return nil, apperrors.ErrInvalidRequest.WithMessage("identity id is required")
	}

	now := time.Now()
	jti := uuid.NewString()

	accessToken, err := m.sign(m.claims(identity, jti, constants.TokenKindAccess, now, m.accessTTL), m.accessSecret)
	if err != nil {
		m.log.Error(ctx, "failed to sign access token", err, logger.String("uid", identity.ID))
		return nil, apperrors.ErrInternal.WithCause(err)
	}

	refreshJTI := jti + constants.RefreshJTISuffix
	refreshToken, err := m.sign(m.claims(identity, refreshJTI, constants.TokenKindRefresh, now, m.refreshTTL), m.refreshSecret)
	if err != nil {
		m.log.Error(ctx, "failed to sign refresh token", err, logger.String("uid", identity.ID))
		return nil, apperrors.ErrInternal.WithCause(err)
	}

	return &models.TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		AccessTokenExpiresIn:  int64(m.accessTTL.Seconds()),
		RefreshTokenExpiresIn: int64(m.refreshTTL.Seconds()),
		TokenType:             "Bearer",
		Identity:              identity,
	}, nil
}

func (m *jwtManager) claims(identity *models.Identity, jti string, kind constants.TokenKind, now time.Time, ttl time.Duration) *models.TokenClaims {
	return &models.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   identity.ID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind:        kind,
		UID:         identity.ID,
		Username:    identity.Username,
		Domain:      identity.Domain,
		Roles:       identity.Roles,
		Permissions: identity.Permissions,
		Email:       identity.Email,
		Extra:       identity.Extra,
	}
}

func (m *jwtManager) sign(claims *models.TokenClaims, secret []byte) (string, error) {
	return jwt.NewWithClaims(m.method, claims).SignedString(secret)
}

// Verify parses and validates a token of the expected kind. The signature is
// checked with the secret belonging to that kind before any claim is trusted.
func (m *jwtManager) Verify(ctx context.Context, tokenString string, kind constants.TokenKind) (*models.TokenClaims, error) {
	if !kind.Valid() {
		return nil, apperrors.ErrInternal.WithMessage("unknown token kind")
	}

	secret := m.accessSecret
	if kind == constants.TokenKindRefresh {
		secret = m.refreshSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{},
		func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case apperrors.Is(err, jwt.ErrTokenInvalidIssuer), apperrors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, apperrors.ErrInvalidIssuerAudience.WithCause(err)
		default:
			return nil, apperrors.ErrInvalidToken.WithCause(err)
		}
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, apperrors.ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, apperrors.ErrWrongTokenType
	}
	return claims, nil
}

// Decode parses a token without validating its signature or expiry. It is
// used on revocation paths where the caller proves nothing by holding the
// token and expired tokens must still be addressable.
func (m *jwtManager) Decode(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, apperrors.ErrInvalidToken.WithCause(err)
	}
	return claims, nil
}
