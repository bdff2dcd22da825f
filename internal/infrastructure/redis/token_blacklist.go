package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soybean-admin/uniauth/internal/domain/service"
	"github.com/soybean-admin/uniauth/pkg/constants"
	apperrors "github.com/soybean-admin/uniauth/pkg/errors"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

var _ service.BlacklistStore = (*BlacklistStore)(nil)

// BlacklistStore keeps revoked jtis in Redis until their natural expiry.
// Entries self-delete via TTL, so the set never needs sweeping.
type BlacklistStore struct {
	client redis.UniversalClient
	log    logger.Logger
}

// NewBlacklistStore creates the Redis-backed revocation list.
func NewBlacklistStore(client redis.UniversalClient, log logger.Logger) *BlacklistStore {
	return &BlacklistStore{
		client: client,
		log:    log.WithComponent("blacklist_store"),
	}
}

// Revoke blacklists a jti for the remaining lifetime of its token. A token
// that has already expired needs no entry; verification rejects it anyway.
func (s *BlacklistStore) Revoke(ctx context.Context, jti string, exp time.Time) error {
	ttl := time.Until(exp)
	if ttl <= 0 {
		s.log.Debug(ctx, "skipping blacklist for expired token", logger.String("jti", jti))
		return nil
	}
	return s.RevokeFor(ctx, jti, ttl)
}

// RevokeOnce claims a jti with SET NX so concurrent revocations resolve to a
// single winner. Rotation uses this to keep a refresh token single-use even
// when two rotations race.
func (s *BlacklistStore) RevokeOnce(ctx context.Context, jti string, exp time.Time) (bool, error) {
	ttl := time.Until(exp)
	if ttl <= 0 {
		return true, nil
	}
	key := constants.KeyPrefixBlacklist + jti
	fresh, err := s.client.SetNX(ctx, key, "revoked", ttl).Result()
	if err != nil {
		s.log.Error(ctx, "failed to claim token revocation", err, logger.String("jti", jti))
		return false, apperrors.ErrStoreUnavailable.WithCause(err)
	}
	if fresh {
		s.log.Info(ctx, "token revoked",
			logger.String("jti", jti),
			logger.Duration("ttl", ttl),
		)
	}
	return fresh, nil
}

// RevokeFor blacklists a jti for a fixed duration, used on bulk revocation
// where per-token expiries are no longer known.
func (s *BlacklistStore) RevokeFor(ctx context.Context, jti string, ttl time.Duration) error {
	key := constants.KeyPrefixBlacklist + jti
	if err := s.client.Set(ctx, key, "revoked", ttl).Err(); err != nil {
		s.log.Error(ctx, "failed to blacklist token", err, logger.String("jti", jti))
		return apperrors.ErrStoreUnavailable.WithCause(err)
	}
	s.log.Info(ctx, "token revoked",
		logger.String("jti", jti),
		logger.Duration("ttl", ttl),
	)
	return nil
}

// IsRevoked reports whether a jti is on the blacklist.
func (s *BlacklistStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, constants.KeyPrefixBlacklist+jti).Result()
	if err != nil {
		s.log.Error(ctx, "blacklist lookup failed", err, logger.String("jti", jti))
		return false, apperrors.ErrStoreUnavailable.WithCause(err)
	}
	return n > 0, nil
}
