package middleware

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soybean-admin/uniauth/internal/config"
	"github.com/soybean-admin/uniauth/internal/domain/models"
	domainservice "github.com/soybean-admin/uniauth/internal/domain/service"
	"github.com/soybean-admin/uniauth/internal/infrastructure/monitoring"
	"github.com/soybean-admin/uniauth/pkg/constants"
	apperrors "github.com/soybean-admin/uniauth/pkg/errors"
	"github.com/soybean-admin/uniauth/pkg/logger"
	"github.com/soybean-admin/uniauth/pkg/servicetrust"
)

// ServiceTrust verifies the signed-header protocol on internal routes. The
// caller proves possession of the shared secret over a timestamped, nonced
// tuple; anything less than a full valid header set is rejected.
func ServiceTrust(
	cfg *config.ServiceTrustConfig,
	req *models.ServiceRequirement,
	nonces domainservice.NonceStore,
	audit domainservice.AuditPublisher,
	metrics *monitoring.Metrics,
	log logger.Logger,
) gin.HandlerFunc {
	allowed := make(map[string]bool, len(req.AllowedServices))
	for _, name := range req.AllowedServices {
		allowed[name] = true
	}

	return func(c *gin.Context) {
		serviceID := c.GetHeader(constants.HeaderServiceID)
		serviceName := c.GetHeader(constants.HeaderServiceName)
		signature := c.GetHeader(constants.HeaderServiceSignature)
		timestamp := c.GetHeader(constants.HeaderServiceTimestamp)
		nonce := c.GetHeader(constants.HeaderServiceNonce)

		if serviceID == "" || serviceName == "" || signature == "" || timestamp == "" || nonce == "" {
			reject(c, audit, metrics, log, serviceName, apperrors.ErrMissingServiceHeaders)
			return
		}

		if !servicetrust.CheckSkew(timestamp, time.Now(), cfg.MaxSkew()) {
			reject(c, audit, metrics, log, serviceName, apperrors.ErrStaleTimestamp)
			return
		}

		if !servicetrust.VerifySignature(cfg.Secret, serviceID, serviceName, timestamp, nonce, signature) {
			reject(c, audit, metrics, log, serviceName, apperrors.ErrInvalidServiceSig)
			return
		}

		if len(allowed) > 0 && !allowed[serviceName] {
			reject(c, audit, metrics, log, serviceName, apperrors.ErrServiceNotAuthorized)
			return
		}

		if cfg.NonceGuard && nonces != nil {
			// The nonce entry outlives the skew window on both sides, so a
			// captured request cannot be replayed while its timestamp is
			// still acceptable.
			fresh, err := nonces.CheckAndSet(c.Request.Context(), serviceID, nonce, 2*cfg.MaxSkew())
			if err != nil {
				reject(c, audit, metrics, log, serviceName, err)
				return
			}
			if !fresh {
				reject(c, audit, metrics, log, serviceName, apperrors.ErrInvalidServiceSig)
				return
			}
		}

		sc := &models.ServiceContext{
			ServiceID:   serviceID,
			ServiceName: serviceName,
		}
		if ms, err := strconv.ParseInt(timestamp, 10, 64); err == nil {
			sc.Timestamp = ms
		}

		if userHeader := c.GetHeader(constants.HeaderUserContext); userHeader != "" {
			user, err := decodeUserContext(userHeader)
			if err != nil {
				reject(c, audit, metrics, log, serviceName, apperrors.ErrInvalidUserContext)
				return
			}
			sc.User = user
		} else if req.RequireUserContext {
			reject(c, audit, metrics, log, serviceName, apperrors.ErrInvalidUserContext)
			return
		}

		metrics.RecordServiceTrustCheck(serviceName, "success")
		c.Set(ctxKeyServiceContext, sc)
		c.Next()
	}
}

func reject(c *gin.Context, audit domainservice.AuditPublisher, metrics *monitoring.Metrics, log logger.Logger, serviceName string, err error) {
	if serviceName == "" {
		serviceName = "unknown"
	}
	metrics.RecordServiceTrustCheck(serviceName, "failure")
	audit.Publish(c.Request.Context(), &models.AuditEvent{
		Type:        constants.AuditEventTrustFailed,
		ServiceName: serviceName,
		ClientIP:    c.ClientIP(),
		RequestID:   RequestIDFrom(c),
		Detail:      string(apperrors.KindOf(err)),
	})
	log.Warn(c.Request.Context(), "cross-service trust check failed",
		logger.String("service", serviceName),
		logger.String("reason", string(apperrors.KindOf(err))),
		logger.String("client_ip", c.ClientIP()),
	)
	AbortWithError(c, err)
}

// decodeUserContext parses the base64 JSON identity a calling service
// forwards on behalf of a user.
func decodeUserContext(header string) (*models.Identity, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, err
	}
	var identity models.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil, err
	}
	if identity.ID == "" {
		return nil, apperrors.ErrInvalidUserContext
	}
	return &identity, nil
}
