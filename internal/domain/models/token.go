package models

import "time"

// TokenPair is the result of one issuance event: two signed tokens sharing a
// correlated jti plus their lifetimes in seconds. Created only by the
// issuance engine and never mutated; rotation always mints a new pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`

	// AccessTokenExpiresIn and RefreshTokenExpiresIn are lifetimes in seconds,
	// computed at issuance.
	AccessTokenExpiresIn  int64 `json:"access_token_expires_in"`
	RefreshTokenExpiresIn int64 `json:"refresh_token_expires_in"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// Identity is the principal the pair was issued to.
	Identity *Identity `json:"user,omitempty"`
}

// SessionRecord is the per-issuance entry kept in the shared store while
// session management is enabled. Tokens are stored as sha256 hashes, never
// raw; the record's TTL is aligned to the refresh token lifetime.
type SessionRecord struct {
	JTI              string    `json:"jti"`
	AccessTokenHash  string    `json:"access_token_hash"`
	RefreshTokenHash string    `json:"refresh_token_hash"`
	CreatedAt        time.Time `json:"created_at"`
	LastUsedAt       time.Time `json:"last_used_at"`
}
