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

var _ service.NonceStore = (*NonceStore)(nil)

// NonceStore is the replay guard for signed service-to-service requests.
// SETNX makes the check-and-mark atomic; the entry only needs to outlive the
// clock-skew window within which the signature is still acceptable.
type NonceStore struct {
	client redis.UniversalClient
	log    logger.Logger
}

// NewNonceStore creates the Redis-backed nonce guard.
func NewNonceStore(client redis.UniversalClient, log logger.Logger) *NonceStore {
	return &NonceStore{
		client: client,
		log:    log.WithComponent("nonce_store"),
	}
}

// CheckAndSet marks a nonce as seen and reports whether it was fresh.
func (s *NonceStore) CheckAndSet(ctx context.Context, serviceID, nonce string, ttl time.Duration) (bool, error) {
	key := constants.KeyPrefixNonce + serviceID + ":" + nonce
	fresh, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		s.log.Error(ctx, "nonce guard check failed", err, logger.String("service_id", serviceID))
		return false, apperrors.ErrStoreUnavailable.WithCause(err)
	}
	if !fresh {
		s.log.Warn(ctx, "replayed service nonce rejected",
			logger.String("service_id", serviceID),
			logger.String("nonce", nonce),
		)
	}
	return fresh, nil
}
