package service

import (
	"context"
	"time"

	"github.com/soybean-admin/uniauth/internal/domain/models"
	"github.com/soybean-admin/uniauth/pkg/constants"
)

//go:generate mockery --name TokenService --output mocks --outpkg mocks
// TokenService defines the core issuance and verification engine for the
// access/refresh token pair.
type TokenService interface {
	// IssuePair mints a new access/refresh token pair for the identity. The
	// refresh token's jti is derived from the access token's jti so the pair
	// stays correlated through its whole lifecycle.
	IssuePair(ctx context.Context, identity *models.Identity) (*models.TokenPair, error)

	// Verify parses and validates a token of the expected kind. It returns the
	// validated claims or an authentication failure that never discloses which
	// check rejected the token.
	Verify(ctx context.Context, tokenString string, kind constants.TokenKind) (*models.TokenClaims, error)

	// Decode parses a token without any validation. Used on revocation paths
	// where the token may already be expired.
	Decode(tokenString string) (*models.TokenClaims, error)
}

// BlacklistStore records revoked token ids until their natural expiry.
type BlacklistStore interface {
	// Revoke adds a jti to the blacklist for the remaining token lifetime.
	// Revoking an already-expired token is a no-op.
	Revoke(ctx context.Context, jti string, exp time.Time) error

	// RevokeOnce atomically claims a jti for revocation. It returns false when
	// the jti is already blacklisted, so exactly one concurrent caller wins.
	RevokeOnce(ctx context.Context, jti string, exp time.Time) (bool, error)

	// RevokeFor adds a jti to the blacklist for a fixed duration, used when the
	// original expiry is no longer known.
	RevokeFor(ctx context.Context, jti string, ttl time.Duration) error

	// IsRevoked reports whether a jti is currently blacklisted.
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// SessionStore tracks live token issuances per identity so sessions can be
// enumerated and bulk-revoked.
type SessionStore interface {
	// Record stores the hashes of a freshly issued pair under the identity.
	Record(ctx context.Context, identityID string, rec *models.SessionRecord, ttl time.Duration) error

	// Touch updates the last-used timestamp of a session.
	Touch(ctx context.Context, identityID, jti string) error

	// List returns all live session records for an identity.
	List(ctx context.Context, identityID string) ([]*models.SessionRecord, error)

	// Remove deletes a single session record.
	Remove(ctx context.Context, identityID, jti string) error

	// RemoveAll deletes every session record for an identity and returns the
	// jtis that were live, so they can be blacklisted.
	RemoveAll(ctx context.Context, identityID string) ([]string, error)
}

// NonceStore is the replay guard for the cross-service trust protocol. A nonce
// is accepted exactly once within the clock-skew window.
type NonceStore interface {
	// CheckAndSet atomically marks a nonce as seen. It returns false when the
	// nonce was already used.
	CheckAndSet(ctx context.Context, serviceID, nonce string, ttl time.Duration) (bool, error)
}

//go:generate mockery --name RateLimiter --output mocks --outpkg mocks
// RateLimiter implements a sliding-window request counter over a shared store.
type RateLimiter interface {
	// Allow records one request against the key and reports whether it fits in
	// the window. When it does not, retryAfter is the wait until the oldest
	// in-window entry falls out.
	Allow(ctx context.Context, key string, max int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult carries the window state after an Allow call.
type RateLimitResult struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// AuditPublisher emits security-relevant events to the audit trail. Publishing
// is best-effort and must never block or fail the request path.
type AuditPublisher interface {
	Publish(ctx context.Context, event *models.AuditEvent)
	Close() error
}

// SecretSource resolves signing secrets at startup, either from static
// configuration or an external secret manager.
type SecretSource interface {
	// SigningSecrets returns the access and refresh signing secrets.
	SigningSecrets(ctx context.Context) (access, refresh string, err error)
}
