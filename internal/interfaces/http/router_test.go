package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appservice "github.com/soybean-admin/uniauth/internal/application/service"
	"github.com/soybean-admin/uniauth/internal/config"
	"github.com/soybean-admin/uniauth/internal/domain/models"
	domainservice "github.com/soybean-admin/uniauth/internal/domain/service"
	"github.com/soybean-admin/uniauth/internal/infrastructure/audit"
	"github.com/soybean-admin/uniauth/internal/infrastructure/crypto"
	"github.com/soybean-admin/uniauth/internal/infrastructure/monitoring"
	"github.com/soybean-admin/uniauth/internal/infrastructure/ratelimit"
	redisinfra "github.com/soybean-admin/uniauth/internal/infrastructure/redis"
	"github.com/soybean-admin/uniauth/internal/interfaces/http/handlers"
	"github.com/soybean-admin/uniauth/pkg/constants"
	"github.com/soybean-admin/uniauth/pkg/logger"
	"github.com/soybean-admin/uniauth/pkg/servicetrust"
)

var testMetrics = monitoring.NewMetrics()

// captureAudit records published events so tests can assert on the trail.
type captureAudit struct {
	mu     sync.Mutex
	events []*models.AuditEvent
}

func (a *captureAudit) Publish(_ context.Context, event *models.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *captureAudit) Close() error { return nil }

func (a *captureAudit) byType(eventType constants.AuditEventType) []*models.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	var matched []*models.AuditEvent
	for _, event := range a.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

type routerEnv struct {
	engine  *gin.Engine
	authSvc appservice.AuthAppService
	cfg     *config.Config
	mr      *miniredis.Miniredis
	audit   *captureAudit
}

func newRouterEnv(t *testing.T, mutate func(*config.Config)) *routerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server: config.ServerConfig{Environment: "test"},
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
			Secret:     "service-trust-secret-0123456789abcdef",
			MaxSkewMs:  300000,
			NonceGuard: true,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:     true,
			MaxRequests: 100,
			WindowMs:    60000,
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

	authSvc := appservice.NewAuthAppService(
		tokens,
		redisinfra.NewBlacklistStore(client, log),
		redisinfra.NewSessionStore(client, log),
		audit.NewLogSink(log),
		testMetrics,
		&cfg.Auth,
		log,
	)

	tracing, err := monitoring.NewTracingManager(&cfg.Tracing, log)
	require.NoError(t, err)

	auditRec := &captureAudit{}
	router := NewRouter(
		cfg,
		log,
		authSvc,
		domainservice.NewAccessPolicy(),
		ratelimit.NewSlidingWindowLimiter(client, log),
		redisinfra.NewNonceStore(client, log),
		auditRec,
		testMetrics,
		tracing,
		handlers.NewAuthHandler(authSvc, log),
		handlers.NewHealthHandler(client),
	)
	router.SetupRoutes()

	return &routerEnv{engine: router.Engine(), authSvc: authSvc, cfg: cfg, mr: mr, audit: auditRec}
}

func (env *routerEnv) issue(t *testing.T, identity *models.Identity) *models.TokenPair {
	t.Helper()
	pair, err := env.authSvc.Issue(context.Background(), identity)
	require.NoError(t, err)
	return pair
}

func (env *routerEnv) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	return w
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func adminIdentity() *models.Identity {
	return &models.Identity{ID: "admin-1", Username: "root", Roles: []string{"admin"}}
}

func userIdentity() *models.Identity {
	return &models.Identity{ID: "user-1", Username: "alice", Roles: []string{"viewer"}}
}

func TestRouter_Health(t *testing.T) {
	env := newRouterEnv(t, nil)

	w := env.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"up"`)
}

func TestRouter_CORS(t *testing.T) {
	t.Run("no configured origins defaults to wildcard", func(t *testing.T) {
		env := newRouterEnv(t, nil)

		w := env.do(http.MethodGet, "/health", nil, map[string]string{"Origin": "https://anywhere.example.com"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("pinned origins are enforced and get credentials", func(t *testing.T) {
		env := newRouterEnv(t, func(cfg *config.Config) {
			cfg.Server.AllowedOrigins = []string{"https://admin.example.com"}
		})

		w := env.do(http.MethodGet, "/health", nil, map[string]string{"Origin": "https://admin.example.com"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://admin.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

		w = env.do(http.MethodGet, "/health", nil, map[string]string{"Origin": "https://evil.example.com"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestRouter_PprofOutsideProductionOnly(t *testing.T) {
	env := newRouterEnv(t, nil)
	w := env.do(http.MethodGet, "/debug/pprof/", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	prod := newRouterEnv(t, func(cfg *config.Config) {
		cfg.Server.Environment = "production"
	})
	w = prod.do(http.MethodGet, "/debug/pprof/", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_VerifyEndpoint(t *testing.T) {
	env := newRouterEnv(t, nil)
	pair := env.issue(t, userIdentity())

	t.Run("valid token", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/auth/verify", nil, bearer(pair.AccessToken))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"valid":true`)
		assert.Contains(t, w.Body.String(), `"user-1"`)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("missing token", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/auth/verify", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/auth/verify", nil, bearer(pair.RefreshToken))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("auth failures are indistinguishable", func(t *testing.T) {
		garbage := env.do(http.MethodGet, "/api/v1/auth/verify", nil, bearer("garbage"))
		wrongKind := env.do(http.MethodGet, "/api/v1/auth/verify", nil, bearer(pair.RefreshToken))

		require.Equal(t, garbage.Code, wrongKind.Code)

		var a, b map[string]interface{}
		require.NoError(t, json.Unmarshal(garbage.Body.Bytes(), &a))
		require.NoError(t, json.Unmarshal(wrongKind.Body.Bytes(), &b))
		assert.Equal(t, a["error"], b["error"])
	})
}

func TestRouter_RefreshEndpoint(t *testing.T) {
	env := newRouterEnv(t, nil)
	pair := env.issue(t, userIdentity())

	w := env.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{
		"refreshToken": pair.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, resp.Data.RefreshToken)

	// The consumed refresh token is rejected on reuse.
	w = env.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{
		"refreshToken": pair.RefreshToken,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// The rotated access token works.
	w = env.do(http.MethodGet, "/api/v1/auth/verify", nil, bearer(resp.Data.AccessToken))
	assert.Equal(t, http.StatusOK, w.Code)

	// The pre-rotation access token is dead.
	w = env.do(http.MethodGet, "/api/v1/auth/verify", nil, bearer(pair.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_Refresh_BadRequest(t *testing.T) {
	env := newRouterEnv(t, nil)

	w := env.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_RevokeEndpoint(t *testing.T) {
	env := newRouterEnv(t, nil)
	pair := env.issue(t, userIdentity())

	// With no body the caller's own token is revoked.
	w := env.do(http.MethodPost, "/api/v1/auth/revoke", nil, bearer(pair.AccessToken))
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/v1/auth/verify", nil, bearer(pair.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_RevokeAllEndpoint(t *testing.T) {
	env := newRouterEnv(t, nil)
	admin := env.issue(t, adminIdentity())
	victim := env.issue(t, userIdentity())

	t.Run("requires admin role", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/v1/auth/revoke-all", map[string]string{
			"identityId": "user-1",
		}, bearer(victim.AccessToken))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin revokes all sessions", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/v1/auth/revoke-all", map[string]string{
			"identityId": "user-1",
		}, bearer(admin.AccessToken))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"revoked":1`)

		w = env.do(http.MethodGet, "/api/v1/auth/verify", nil, bearer(victim.AccessToken))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRouter_SessionsEndpoint(t *testing.T) {
	env := newRouterEnv(t, nil)
	admin := env.issue(t, adminIdentity())
	env.issue(t, userIdentity())
	env.issue(t, userIdentity())

	w := env.do(http.MethodGet, "/api/v1/auth/sessions/user-1", nil, bearer(admin.AccessToken))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":2`)
}

func TestRouter_RateLimit(t *testing.T) {
	env := newRouterEnv(t, func(cfg *config.Config) {
		cfg.RateLimit.MaxRequests = 3
	})

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = env.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{
			"refreshToken": "x",
		}, nil)
		// 401 because the token is garbage, but the request was admitted.
		require.Equal(t, http.StatusUnauthorized, last.Code)
		assert.Equal(t, "3", last.Header().Get(constants.HeaderRateLimitLimit))
	}
	assert.Equal(t, "0", last.Header().Get(constants.HeaderRateLimitRemaining))

	w := env.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{
		"refreshToken": "x",
	}, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get(constants.HeaderRetryAfter))
	assert.NotEmpty(t, w.Header().Get(constants.HeaderRateLimitReset))

	// The throttle hit lands on the audit trail.
	events := env.audit.byType(constants.AuditEventRateLimitExceeded)
	require.NotEmpty(t, events)
	assert.Equal(t, "/api/v1/auth/refresh", events[0].Detail)
}

func TestRouter_ServiceTrust(t *testing.T) {
	env := newRouterEnv(t, nil)
	secret := env.cfg.ServiceTrust.Secret

	t.Run("signed request passes", func(t *testing.T) {
		headers := servicetrust.SignHeaders(secret, "svc-1", "billing")
		w := env.do(http.MethodGet, "/api/v1/internal/echo", nil, headers)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"billing"`)
	})

	t.Run("missing headers rejected", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/internal/echo", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		events := env.audit.byType(constants.AuditEventTrustFailed)
		require.NotEmpty(t, events)
		assert.Equal(t, "missing_service_headers", events[len(events)-1].Detail)
	})

	t.Run("tampered field invalidates signature", func(t *testing.T) {
		headers := servicetrust.SignHeaders(secret, "svc-1", "billing")
		headers[constants.HeaderServiceName] = "payments"
		w := env.do(http.MethodGet, "/api/v1/internal/echo", nil, headers)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		headers := servicetrust.SignHeaders("another-shared-secret-0123456789abcd", "svc-1", "billing")
		w := env.do(http.MethodGet, "/api/v1/internal/echo", nil, headers)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("stale timestamp rejected", func(t *testing.T) {
		ts := strconv.FormatInt(time.Now().Add(-10*time.Minute).UnixMilli(), 10)
		nonce := servicetrust.NewNonce()
		headers := map[string]string{
			constants.HeaderServiceID:        "svc-1",
			constants.HeaderServiceName:      "billing",
			constants.HeaderServiceTimestamp: ts,
			constants.HeaderServiceNonce:     nonce,
			constants.HeaderServiceSignature: servicetrust.Sign(secret, "svc-1", "billing", ts, nonce),
		}
		w := env.do(http.MethodGet, "/api/v1/internal/echo", nil, headers)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("replayed nonce rejected", func(t *testing.T) {
		headers := servicetrust.SignHeaders(secret, "svc-1", "billing")
		w := env.do(http.MethodGet, "/api/v1/internal/echo", nil, headers)
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(http.MethodGet, "/api/v1/internal/echo", nil, headers)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("forwarded user context", func(t *testing.T) {
		raw, err := json.Marshal(&models.Identity{ID: "user-9", Username: "bob"})
		require.NoError(t, err)

		headers := servicetrust.SignHeaders(secret, "svc-1", "billing")
		headers[constants.HeaderUserContext] = base64.StdEncoding.EncodeToString(raw)
		w := env.do(http.MethodGet, "/api/v1/internal/echo", nil, headers)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user-9"`)
	})

	t.Run("malformed user context rejected", func(t *testing.T) {
		headers := servicetrust.SignHeaders(secret, "svc-1", "billing")
		headers[constants.HeaderUserContext] = "!!not-base64!!"
		w := env.do(http.MethodGet, "/api/v1/internal/echo", nil, headers)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRouter_ServiceTrust_AllowList(t *testing.T) {
	env := newRouterEnv(t, func(cfg *config.Config) {
		cfg.ServiceTrust.AllowedServices = []string{"billing"}
	})
	secret := env.cfg.ServiceTrust.Secret

	headers := servicetrust.SignHeaders(secret, "svc-1", "billing")
	w := env.do(http.MethodGet, "/api/v1/internal/echo", nil, headers)
	assert.Equal(t, http.StatusOK, w.Code)

	// A validly signed request from a service outside the list is refused.
	headers = servicetrust.SignHeaders(secret, "svc-2", "shipping")
	w = env.do(http.MethodGet, "/api/v1/internal/echo", nil, headers)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
