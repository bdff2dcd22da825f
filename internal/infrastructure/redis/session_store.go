package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soybean-admin/uniauth/internal/domain/models"
	"github.com/soybean-admin/uniauth/internal/domain/service"
	"github.com/soybean-admin/uniauth/pkg/constants"
	apperrors "github.com/soybean-admin/uniauth/pkg/errors"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

var _ service.SessionStore = (*SessionStore)(nil)

// SessionStore tracks live issuances per identity. Each session is a hash
// keyed jwt:tokens:<uid>:<jti> holding token digests and timestamps, a
// per-identity set jwt:sessions:<uid> indexes the live jtis so enumeration
// never scans the keyspace, and jwt:session:<uid> keeps a last-issuance
// summary per identity.
type SessionStore struct {
	client redis.UniversalClient
	log    logger.Logger
}

// NewSessionStore creates the Redis-backed session tracker.
func NewSessionStore(client redis.UniversalClient, log logger.Logger) *SessionStore {
	return &SessionStore{
		client: client,
		log:    log.WithComponent("session_store"),
	}
}

func recordKey(identityID, jti string) string {
	return constants.KeyPrefixTokens + identityID + ":" + jti
}

func indexKey(identityID string) string {
	return constants.KeyPrefixSessionIndex + identityID
}

func sessionKey(identityID string) string {
	return constants.KeyPrefixSession + identityID
}

// Record stores a freshly issued session under the identity. The record and
// the index entry expire with the refresh token, so abandoned sessions age
// out on their own.
func (s *SessionStore) Record(ctx context.Context, identityID string, rec *models.SessionRecord, ttl time.Duration) error {
	key := recordKey(identityID, rec.JTI)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"access_hash":  rec.AccessTokenHash,
		"refresh_hash": rec.RefreshTokenHash,
		"created_at":   strconv.FormatInt(rec.CreatedAt.UnixMilli(), 10),
		"last_used_at": strconv.FormatInt(rec.LastUsedAt.UnixMilli(), 10),
	})
	pipe.Expire(ctx, key, ttl)
	pipe.SAdd(ctx, indexKey(identityID), rec.JTI)
	pipe.Expire(ctx, indexKey(identityID), ttl)
	// Identity-level summary hash, refreshed on every issuance.
	pipe.HSet(ctx, sessionKey(identityID), map[string]interface{}{
		"last_jti":   rec.JTI,
		"updated_at": strconv.FormatInt(rec.CreatedAt.UnixMilli(), 10),
	})
	pipe.Expire(ctx, sessionKey(identityID), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Error(ctx, "failed to record session", err,
			logger.String("uid", identityID),
			logger.String("jti", rec.JTI),
		)
		return apperrors.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}

// Touch refreshes the last-used timestamp. Missing records are ignored; the
// session may have expired between verification and the touch.
func (s *SessionStore) Touch(ctx context.Context, identityID, jti string) error {
	key := recordKey(identityID, jti)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return apperrors.ErrStoreUnavailable.WithCause(err)
	}
	if exists == 0 {
		return nil
	}
	if err := s.client.HSet(ctx, key, "last_used_at", strconv.FormatInt(time.Now().UnixMilli(), 10)).Err(); err != nil {
		return apperrors.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}

// List returns all live session records for an identity. Index entries whose
// record has expired are pruned as a side effect.
func (s *SessionStore) List(ctx context.Context, identityID string) ([]*models.SessionRecord, error) {
	jtis, err := s.client.SMembers(ctx, indexKey(identityID)).Result()
	if err != nil {
		s.log.Error(ctx, "failed to list sessions", err, logger.String("uid", identityID))
		return nil, apperrors.ErrStoreUnavailable.WithCause(err)
	}

	records := make([]*models.SessionRecord, 0, len(jtis))
	var stale []interface{}
	for _, jti := range jtis {
		fields, err := s.client.HGetAll(ctx, recordKey(identityID, jti)).Result()
		if err != nil {
			return nil, apperrors.ErrStoreUnavailable.WithCause(err)
		}
		if len(fields) == 0 {
			stale = append(stale, jti)
			continue
		}
		records = append(records, &models.SessionRecord{
			JTI:              jti,
			AccessTokenHash:  fields["access_hash"],
			RefreshTokenHash: fields["refresh_hash"],
			CreatedAt:        parseMilli(fields["created_at"]),
			LastUsedAt:       parseMilli(fields["last_used_at"]),
		})
	}

	if len(stale) > 0 {
		if err := s.client.SRem(ctx, indexKey(identityID), stale...).Err(); err != nil {
			s.log.Warn(ctx, "failed to prune stale session index entries",
				logger.String("uid", identityID),
				logger.Int("count", len(stale)),
			)
		}
	}
	return records, nil
}

// Remove deletes a single session record and its index entry.
func (s *SessionStore) Remove(ctx context.Context, identityID, jti string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, recordKey(identityID, jti))
	pipe.SRem(ctx, indexKey(identityID), jti)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Error(ctx, "failed to remove session", err,
			logger.String("uid", identityID),
			logger.String("jti", jti),
		)
		return apperrors.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}

// RemoveAll deletes every session of an identity and returns the jtis that
// were live so the caller can blacklist them.
func (s *SessionStore) RemoveAll(ctx context.Context, identityID string) ([]string, error) {
	jtis, err := s.client.SMembers(ctx, indexKey(identityID)).Result()
	if err != nil {
		s.log.Error(ctx, "failed to enumerate sessions for bulk revoke", err, logger.String("uid", identityID))
		return nil, apperrors.ErrStoreUnavailable.WithCause(err)
	}

	pipe := s.client.TxPipeline()
	for _, jti := range jtis {
		pipe.Del(ctx, recordKey(identityID, jti))
	}
	pipe.Del(ctx, indexKey(identityID))
	pipe.Del(ctx, sessionKey(identityID))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Error(ctx, "failed to remove sessions", err, logger.String("uid", identityID))
		return nil, apperrors.ErrStoreUnavailable.WithCause(err)
	}

	s.log.Info(ctx, "all sessions removed",
		logger.String("uid", identityID),
		logger.Int("count", len(jtis)),
	)
	return jtis, nil
}

func parseMilli(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
