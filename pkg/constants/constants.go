// Package constants defines system-wide constants for the unified auth service.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Token Kind Constants
// ================================================================================

// TokenKind discriminates the two token classes minted by the issuance engine.
type TokenKind string

const (
	// TokenKindAccess represents a short-lived access token.
	TokenKindAccess TokenKind = "access"

	// TokenKindRefresh represents a long-lived refresh token.
	TokenKindRefresh TokenKind = "refresh"
)

// Valid reports whether the kind is one of the two known token classes.
func (k TokenKind) Valid() bool {
	return k == TokenKindAccess || k == TokenKindRefresh
}

// RefreshJTISuffix correlates the refresh token of a pair with its access token:
// refresh jti = access jti + RefreshJTISuffix.
const RefreshJTISuffix = "_refresh"

// ================================================================================
// Defaults
// ================================================================================

const (
	// DefaultAccessTokenTTL is the default access token lifetime spelled the way
	// the configuration expects it.
	DefaultAccessTokenTTL = "2h"

	// DefaultRefreshTokenTTL is the default refresh token lifetime.
	DefaultRefreshTokenTTL = "7d"

	// DefaultIssuer is the default JWT issuer claim.
	DefaultIssuer = "soybean-admin"

	// DefaultAudience is the default JWT audience claim.
	DefaultAudience = "soybean-admin-client"

	// MinSecretLength is the minimum accepted length for any signing secret.
	// Startup fails when a configured secret is shorter.
	MinSecretLength = 32

	// RevokeAllBlacklistTTL is the conservative upper-bound blacklist TTL used by
	// revoke-all, where the original per-token expiry is no longer known.
	RevokeAllBlacklistTTL = 24 * time.Hour

	// DefaultServiceClockSkew bounds the |now - timestamp| window accepted by the
	// cross-service trust protocol.
	DefaultServiceClockSkew = 5 * time.Minute

	// StoreOpTimeout caps a single round-trip against the shared store on the
	// verification path.
	StoreOpTimeout = 2 * time.Second
)

// ================================================================================
// Shared Store Key Prefixes
// ================================================================================

const (
	// KeyPrefixBlacklist prefixes revoked-token entries: jwt:blacklist:<jti>.
	KeyPrefixBlacklist = "jwt:blacklist:"

	// KeyPrefixSession prefixes identity-level session hashes: jwt:session:<uid>.
	KeyPrefixSession = "jwt:session:"

	// KeyPrefixTokens prefixes per-issuance token records: jwt:tokens:<uid>:<jti>.
	KeyPrefixTokens = "jwt:tokens:"

	// KeyPrefixSessionIndex prefixes the per-identity set of live jtis.
	KeyPrefixSessionIndex = "jwt:sessions:"

	// KeyPrefixRateLimit prefixes sliding-window members: rate_limit:<id>:<route>.
	KeyPrefixRateLimit = "rate_limit:"

	// KeyPrefixNonce prefixes the service-trust nonce-seen guard entries.
	KeyPrefixNonce = "svc:nonce:"
)

// ================================================================================
// HTTP Headers
// ================================================================================

const (
	// HeaderServiceID carries the calling service's instance identifier.
	HeaderServiceID = "x-service-id"

	// HeaderServiceName carries the calling service's logical name.
	HeaderServiceName = "x-service-name"

	// HeaderServiceSignature carries the HMAC over the trust tuple.
	HeaderServiceSignature = "x-service-signature"

	// HeaderServiceTimestamp carries the request timestamp in epoch milliseconds.
	HeaderServiceTimestamp = "x-service-timestamp"

	// HeaderServiceNonce carries the per-request nonce included in the signature.
	HeaderServiceNonce = "x-service-nonce"

	// HeaderUserContext optionally carries a base64-encoded JSON Identity acting
	// on behalf of the calling service.
	HeaderUserContext = "x-user-context"

	// HeaderRateLimitLimit, HeaderRateLimitRemaining and HeaderRateLimitReset
	// expose sliding-window state to clients.
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"

	// HeaderRetryAfter is set (seconds) when a request is throttled.
	HeaderRetryAfter = "Retry-After"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey represents keys used in context.Context and gin contexts.
type ContextKey string

const (
	// ContextKeyRequestID is the key for the per-request id.
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyIdentity is the key for the authenticated identity claims.
	ContextKeyIdentity ContextKey = "identity"

	// ContextKeyServiceContext is the key for a verified service-trust context.
	ContextKeyServiceContext ContextKey = "service_context"

	// ContextKeyTraceID is the key for the distributed trace id.
	ContextKeyTraceID ContextKey = "trace_id"
)

// ================================================================================
// Audit Event Types
// ================================================================================

// AuditEventType classifies security-relevant events emitted by the auth core.
type AuditEventType string

const (
	AuditEventTokenIssued       AuditEventType = "token_issued"
	AuditEventTokenRefreshed    AuditEventType = "token_refreshed"
	AuditEventTokenRevoked      AuditEventType = "token_revoked"
	AuditEventSessionsRevoked   AuditEventType = "sessions_revoked"
	AuditEventAuthFailed        AuditEventType = "authentication_failed"
	AuditEventTrustFailed       AuditEventType = "service_trust_failed"
	AuditEventRateLimitExceeded AuditEventType = "rate_limit_exceeded"
)
