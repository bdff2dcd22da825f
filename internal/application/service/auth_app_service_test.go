package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soybean-admin/uniauth/internal/config"
	"github.com/soybean-admin/uniauth/internal/domain/models"
	"github.com/soybean-admin/uniauth/internal/infrastructure/audit"
	"github.com/soybean-admin/uniauth/internal/infrastructure/crypto"
	redisinfra "github.com/soybean-admin/uniauth/internal/infrastructure/redis"
	"github.com/soybean-admin/uniauth/internal/infrastructure/monitoring"
	apperrors "github.com/soybean-admin/uniauth/pkg/errors"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

// Prometheus collectors register globally, so the package shares one set.
var testMetrics = monitoring.NewMetrics()

type testEnv struct {
	svc AuthAppService
	mr  *miniredis.Miniredis
	cfg *config.Config
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Auth: config.AuthConfig{
			AccessTokenSecret:  "test-access-secret-0123456789abcdef",
			RefreshTokenSecret: "test-refresh-secret-0123456789abcdef",
			AccessTokenTTL:     "2h",
			RefreshTokenTTL:    "7d",
			Issuer:             "soybean-admin",
			Audience:           "soybean-admin-client",
			Algorithm:          "HS256",
			EnableBlacklist:    true,
			EnableSessions:     true,
		},
		ServiceTrust: config.ServiceTrustConfig{
			Secret: "service-trust-secret-0123456789abcdef",
		},
	}
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := logger.NewNoopLogger()
	tokens, err := crypto.NewJWTManager(crypto.Config{
		AccessSecret:  cfg.Auth.AccessTokenSecret,
		RefreshSecret: cfg.Auth.RefreshTokenSecret,
		AccessTTL:     cfg.Auth.AccessTTL(),
		RefreshTTL:    cfg.Auth.RefreshTTL(),
		Issuer:        cfg.Auth.Issuer,
		Audience:      cfg.Auth.Audience,
		Algorithm:     cfg.Auth.Algorithm,
	}, log)
	require.NoError(t, err)

	svc := NewAuthAppService(
		tokens,
		redisinfra.NewBlacklistStore(client, log),
		redisinfra.NewSessionStore(client, log),
		audit.NewLogSink(log),
		testMetrics,
		&cfg.Auth,
		log,
	)
	return &testEnv{svc: svc, mr: mr, cfg: cfg}
}

func issueTestPair(t *testing.T, env *testEnv, uid string) *models.TokenPair {
	t.Helper()
	pair, err := env.svc.Issue(context.Background(), &models.Identity{
		ID:       uid,
		Username: "alice",
		Roles:    []string{"admin"},
	})
	require.NoError(t, err)
	return pair
}

func TestAuthAppService_IssueAndVerify(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	pair := issueTestPair(t, env, "u-1")

	claims, err := env.svc.VerifyAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UID)
	assert.Equal(t, []string{"admin"}, claims.Roles)

	// Issuance records a session.
	sessions, err := env.svc.Sessions(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sessions.Count)
}

func TestAuthAppService_VerifyRejectsGarbage(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.svc.VerifyAccess(context.Background(), "not-a-token")
	assert.True(t, apperrors.IsAuthFailure(err))

	// A refresh token is not accepted where an access token is expected.
	pair := issueTestPair(t, env, "u-1")
	_, err = env.svc.VerifyAccess(context.Background(), pair.RefreshToken)
	assert.True(t, apperrors.IsAuthFailure(err))
}

func TestAuthAppService_Refresh(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	pair := issueTestPair(t, env, "u-1")

	rotated, err := env.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, rotated.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The new pair is live.
	_, err = env.svc.VerifyAccess(ctx, rotated.AccessToken)
	require.NoError(t, err)

	// The consumed refresh token is dead.
	_, err = env.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrRevokedToken)

	// The old access token is dead too.
	_, err = env.svc.VerifyAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrRevokedToken)

	// Rotation replaces the session rather than stacking a second one.
	sessions, err := env.svc.Sessions(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sessions.Count)
}

func TestAuthAppService_Refresh_RejectsAccessToken(t *testing.T) {
	env := newTestEnv(t, nil)

	pair := issueTestPair(t, env, "u-1")
	_, err := env.svc.Refresh(context.Background(), pair.AccessToken)
	assert.True(t, apperrors.IsAuthFailure(err))
}

func TestAuthAppService_Revoke(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	pair := issueTestPair(t, env, "u-1")

	require.NoError(t, env.svc.Revoke(ctx, pair.AccessToken))

	_, err := env.svc.VerifyAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrRevokedToken)

	// Revoking the access token ends its refresh counterpart as well.
	_, err = env.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrRevokedToken)

	sessions, err := env.svc.Sessions(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 0, sessions.Count)
}

func TestAuthAppService_RevokeByRefreshToken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	pair := issueTestPair(t, env, "u-1")

	require.NoError(t, env.svc.Revoke(ctx, pair.RefreshToken))

	_, err := env.svc.VerifyAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrRevokedToken)
	_, err = env.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrRevokedToken)
}

func TestAuthAppService_Revoke_UnparseableToken(t *testing.T) {
	env := newTestEnv(t, nil)
	err := env.svc.Revoke(context.Background(), "garbage")
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestAuthAppService_RevokeAll(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	first := issueTestPair(t, env, "u-1")
	second := issueTestPair(t, env, "u-1")
	other := issueTestPair(t, env, "u-2")

	revoked, err := env.svc.RevokeAll(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 2, revoked)

	_, err = env.svc.VerifyAccess(ctx, first.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrRevokedToken)
	_, err = env.svc.VerifyAccess(ctx, second.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrRevokedToken)
	_, err = env.svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrRevokedToken)

	// Another identity's sessions are untouched.
	_, err = env.svc.VerifyAccess(ctx, other.AccessToken)
	assert.NoError(t, err)

	sessions, err := env.svc.Sessions(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 0, sessions.Count)
}

func TestAuthAppService_RevokeAll_RequiresIdentity(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.svc.RevokeAll(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestAuthAppService_FailClosedByDefault(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	pair := issueTestPair(t, env, "u-1")

	// With the store down, verification rejects rather than admitting a
	// possibly revoked token.
	env.mr.SetError("connection refused")
	defer env.mr.SetError("")

	_, err := env.svc.VerifyAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)

	// Rotation aborts as well; the old pair must not outlive a failed revoke.
	_, err = env.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}

func TestAuthAppService_FailOpenOptIn(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Auth.FailOpen = true
	})
	ctx := context.Background()

	pair := issueTestPair(t, env, "u-1")

	env.mr.SetError("connection refused")
	defer env.mr.SetError("")

	claims, err := env.svc.VerifyAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UID)
}

func TestAuthAppService_BlacklistDisabled(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Auth.EnableBlacklist = false
		cfg.Auth.EnableSessions = false
	})
	ctx := context.Background()

	pair := issueTestPair(t, env, "u-1")

	// Without a blacklist, verification is purely cryptographic.
	env.mr.SetError("connection refused")
	defer env.mr.SetError("")

	_, err := env.svc.VerifyAccess(ctx, pair.AccessToken)
	assert.NoError(t, err)
}

func TestAuthAppService_SessionsExpireWithRefreshTTL(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	issueTestPair(t, env, "u-1")
	env.mr.FastForward(8 * 24 * time.Hour)

	sessions, err := env.svc.Sessions(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 0, sessions.Count)
}
