// Package service orchestrates the domain services behind the HTTP surface.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/soybean-admin/uniauth/internal/application/dto"
	"github.com/soybean-admin/uniauth/internal/config"
	"github.com/soybean-admin/uniauth/internal/domain/models"
	domainservice "github.com/soybean-admin/uniauth/internal/domain/service"
	"github.com/soybean-admin/uniauth/internal/infrastructure/monitoring"
	"github.com/soybean-admin/uniauth/pkg/constants"
	apperrors "github.com/soybean-admin/uniauth/pkg/errors"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

// AuthAppService is the application-level facade over issuance, verification,
// rotation and revocation.
type AuthAppService interface {
	// Issue mints a pair for an authenticated identity. Credential checking
	// happens upstream; this service starts where the identity is trusted.
	Issue(ctx context.Context, identity *models.Identity) (*models.TokenPair, error)

	// VerifyAccess validates an access token end to end, including the
	// revocation check.
	VerifyAccess(ctx context.Context, token string) (*models.TokenClaims, error)

	// Refresh rotates a refresh token into a new pair. The old pair is dead
	// before the new one exists.
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)

	// Revoke ends the pair the presented token belongs to.
	Revoke(ctx context.Context, token string) error

	// RevokeAll ends every live session of an identity.
	RevokeAll(ctx context.Context, identityID string) (int, error)

	// Sessions enumerates the live sessions of an identity.
	Sessions(ctx context.Context, identityID string) (*dto.SessionsResponse, error)
}

type authAppService struct {
	tokens    domainservice.TokenService
	blacklist domainservice.BlacklistStore
	sessions  domainservice.SessionStore
	audit     domainservice.AuditPublisher
	metrics   *monitoring.Metrics
	cfg       *config.AuthConfig
	log       logger.Logger
}

// NewAuthAppService wires the authentication orchestrator.
func NewAuthAppService(
	tokens domainservice.TokenService,
	blacklist domainservice.BlacklistStore,
	sessions domainservice.SessionStore,
	audit domainservice.AuditPublisher,
	metrics *monitoring.Metrics,
	cfg *config.AuthConfig,
	log logger.Logger,
) AuthAppService {
	return &authAppService{
		tokens:    tokens,
		blacklist: blacklist,
		sessions:  sessions,
		audit:     audit,
		metrics:   metrics,
		cfg:       cfg,
		log:       log.WithComponent("auth_app_service"),
	}
}

func (s *authAppService) Issue(ctx context.Context, identity *models.Identity) (*models.TokenPair, error) {
	pair, err := s.tokens.IssuePair(ctx, identity)
	if err != nil {
		return nil, err
	}

	s.recordSession(ctx, pair)
	s.metrics.RecordTokenIssue("issue")
	s.audit.Publish(ctx, &models.AuditEvent{
		Type:       constants.AuditEventTokenIssued,
		IdentityID: identity.ID,
	})

	s.log.Info(ctx, "token pair issued", logger.String("uid", identity.ID))
	return pair, nil
}

func (s *authAppService) VerifyAccess(ctx context.Context, token string) (*models.TokenClaims, error) {
	start := time.Now()
	claims, err := s.verify(ctx, token, constants.TokenKindAccess)

	result := "success"
	if err != nil {
		result = "failure"
		s.audit.Publish(ctx, &models.AuditEvent{
			Type:   constants.AuditEventAuthFailed,
			Detail: string(apperrors.KindOf(err)),
		})
	}
	s.metrics.RecordTokenVerification(string(constants.TokenKindAccess), result, time.Since(start))

	if err != nil {
		return nil, err
	}

	if s.cfg.EnableSessions {
		// Best effort; a failed touch never fails the request.
		storeCtx, cancel := context.WithTimeout(ctx, constants.StoreOpTimeout)
		defer cancel()
		if touchErr := s.sessions.Touch(storeCtx, claims.UID, claims.TokenID()); touchErr != nil {
			s.log.Warn(ctx, "failed to touch session", logger.String("uid", claims.UID), logger.Err(touchErr))
		}
	}
	return claims, nil
}

// verify runs the full validation pipeline for one token: signature and
// registered claims first, then the revocation check against the shared
// store.
func (s *authAppService) verify(ctx context.Context, token string, kind constants.TokenKind) (*models.TokenClaims, error) {
	claims, err := s.tokens.Verify(ctx, token, kind)
	if err != nil {
		return nil, err
	}

	if !s.cfg.EnableBlacklist {
		return claims, nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, constants.StoreOpTimeout)
	defer cancel()

	revoked, err := s.blacklist.IsRevoked(storeCtx, claims.TokenID())
	if err != nil {
		if s.cfg.FailOpen {
			s.log.Warn(ctx, "revocation store unavailable, admitting token unchecked",
				logger.String("jti", claims.TokenID()),
				logger.Err(err),
			)
			return claims, nil
		}
		return nil, err
	}
	if revoked {
		return nil, apperrors.ErrRevokedToken
	}
	return claims, nil
}

func (s *authAppService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	claims, err := s.verify(ctx, refreshToken, constants.TokenKindRefresh)
	if err != nil {
		return nil, err
	}

	// The old pair must be dead before a new one exists. If revocation cannot
	// be recorded, rotation aborts rather than leaving two live pairs. The
	// claim is atomic: of two racing rotations only one gets a new pair.
	if s.cfg.EnableBlacklist {
		storeCtx, cancel := context.WithTimeout(ctx, constants.StoreOpTimeout)
		defer cancel()

		fresh, err := s.blacklist.RevokeOnce(storeCtx, claims.TokenID(), claims.ExpiresAt.Time)
		if err != nil {
			s.log.Error(ctx, "aborting rotation, failed to revoke old refresh token", err,
				logger.String("uid", claims.UID),
			)
			return nil, err
		}
		if !fresh {
			return nil, apperrors.ErrRevokedToken
		}
		baseJTI := strings.TrimSuffix(claims.TokenID(), constants.RefreshJTISuffix)
		if baseJTI != claims.TokenID() {
			if err := s.blacklist.RevokeFor(storeCtx, baseJTI, s.cfg.AccessTTL()); err != nil {
				return nil, err
			}
		}
	}

	identity := claims.Identity()
	pair, err := s.tokens.IssuePair(ctx, identity)
	if err != nil {
		return nil, err
	}

	if s.cfg.EnableSessions {
		storeCtx, cancel := context.WithTimeout(ctx, constants.StoreOpTimeout)
		baseJTI := strings.TrimSuffix(claims.TokenID(), constants.RefreshJTISuffix)
		if err := s.sessions.Remove(storeCtx, identity.ID, baseJTI); err != nil {
			s.log.Warn(ctx, "failed to remove rotated session", logger.String("uid", identity.ID), logger.Err(err))
		}
		cancel()
	}

	s.recordSession(ctx, pair)
	s.metrics.RecordTokenIssue("refresh")
	s.audit.Publish(ctx, &models.AuditEvent{
		Type:       constants.AuditEventTokenRefreshed,
		IdentityID: identity.ID,
		TokenID:    claims.TokenID(),
	})

	s.log.Info(ctx, "token pair rotated", logger.String("uid", identity.ID))
	return pair, nil
}

func (s *authAppService) Revoke(ctx context.Context, token string) error {
	// The token only has to be parseable. Revoking an expired or even
	// tampered token is harmless; the blacklist is keyed by jti.
	claims, err := s.tokens.Decode(token)
	if err != nil {
		return err
	}
	jti := claims.TokenID()
	if jti == "" {
		return apperrors.ErrInvalidToken
	}

	storeCtx, cancel := context.WithTimeout(ctx, constants.StoreOpTimeout)
	defer cancel()

	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	if err := s.blacklist.Revoke(storeCtx, jti, exp); err != nil {
		return err
	}

	// End the counterpart of the pair as well. Its exact expiry is unknown
	// here, so the refresh lifetime serves as the upper bound.
	baseJTI := strings.TrimSuffix(jti, constants.RefreshJTISuffix)
	counterpart := baseJTI + constants.RefreshJTISuffix
	if jti == counterpart {
		counterpart = baseJTI
	}
	if err := s.blacklist.RevokeFor(storeCtx, counterpart, s.cfg.RefreshTTL()); err != nil {
		return err
	}

	if s.cfg.EnableSessions && claims.UID != "" {
		if err := s.sessions.Remove(storeCtx, claims.UID, baseJTI); err != nil {
			s.log.Warn(ctx, "failed to remove revoked session", logger.String("uid", claims.UID), logger.Err(err))
		}
	}

	s.metrics.RecordTokenRevocation("single")
	s.audit.Publish(ctx, &models.AuditEvent{
		Type:       constants.AuditEventTokenRevoked,
		IdentityID: claims.UID,
		TokenID:    jti,
	})

	s.log.Info(ctx, "token revoked", logger.String("uid", claims.UID), logger.String("jti", jti))
	return nil
}

func (s *authAppService) RevokeAll(ctx context.Context, identityID string) (int, error) {
	if identityID == "" {
		return 0, apperrors.ErrInvalidRequest.WithMessage("identity id is required")
	}

	storeCtx, cancel := context.WithTimeout(ctx, constants.StoreOpTimeout)
	defer cancel()

	jtis, err := s.sessions.RemoveAll(storeCtx, identityID)
	if err != nil {
		return 0, err
	}

	// Per-token expiries are gone with the session records, so each jti gets
	// a fixed conservative blacklist lifetime.
	for _, jti := range jtis {
		if err := s.blacklist.RevokeFor(storeCtx, jti, constants.RevokeAllBlacklistTTL); err != nil {
			return 0, err
		}
		if err := s.blacklist.RevokeFor(storeCtx, jti+constants.RefreshJTISuffix, constants.RevokeAllBlacklistTTL); err != nil {
			return 0, err
		}
	}

	s.metrics.RecordTokenRevocation("all")
	s.audit.Publish(ctx, &models.AuditEvent{
		Type:       constants.AuditEventSessionsRevoked,
		IdentityID: identityID,
	})

	s.log.Info(ctx, "all sessions revoked",
		logger.String("uid", identityID),
		logger.Int("count", len(jtis)),
	)
	return len(jtis), nil
}

func (s *authAppService) Sessions(ctx context.Context, identityID string) (*dto.SessionsResponse, error) {
	if identityID == "" {
		return nil, apperrors.ErrInvalidRequest.WithMessage("identity id is required")
	}

	storeCtx, cancel := context.WithTimeout(ctx, constants.StoreOpTimeout)
	defer cancel()

	records, err := s.sessions.List(storeCtx, identityID)
	if err != nil {
		return nil, err
	}

	resp := &dto.SessionsResponse{
		IdentityID: identityID,
		Count:      len(records),
		Sessions:   make([]dto.SessionDTO, 0, len(records)),
	}
	for _, rec := range records {
		resp.Sessions = append(resp.Sessions, dto.SessionDTO{
			JTI:        rec.JTI,
			CreatedAt:  rec.CreatedAt.UnixMilli(),
			LastUsedAt: rec.LastUsedAt.UnixMilli(),
		})
	}
	return resp, nil
}

// recordSession stores digests of a fresh pair. Session tracking is advisory
// and never fails issuance.
func (s *authAppService) recordSession(ctx context.Context, pair *models.TokenPair) {
	if !s.cfg.EnableSessions {
		return
	}

	claims, err := s.tokens.Decode(pair.AccessToken)
	if err != nil {
		s.log.Warn(ctx, "failed to decode freshly issued token for session tracking", logger.Err(err))
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, constants.StoreOpTimeout)
	defer cancel()

	now := time.Now()
	rec := &models.SessionRecord{
		JTI:              claims.TokenID(),
		AccessTokenHash:  hashToken(pair.AccessToken),
		RefreshTokenHash: hashToken(pair.RefreshToken),
		CreatedAt:        now,
		LastUsedAt:       now,
	}
	if err := s.sessions.Record(storeCtx, pair.Identity.ID, rec, s.cfg.RefreshTTL()); err != nil {
		s.log.Warn(ctx, "failed to record session",
			logger.String("uid", pair.Identity.ID),
			logger.Err(err),
		)
	}
}

// hashToken digests a token for storage. Raw tokens never hit the store.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
