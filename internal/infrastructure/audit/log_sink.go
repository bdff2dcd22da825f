package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/soybean-admin/uniauth/internal/domain/models"
	"github.com/soybean-admin/uniauth/internal/domain/service"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

var _ service.AuditPublisher = (*LogSink)(nil)

// LogSink writes audit events to the structured log. It is the default
// publisher when no Kafka brokers are configured.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates the log-backed audit publisher.
func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log: log.WithComponent("audit")}
}

// Publish records the event as a structured log line.
func (s *LogSink) Publish(ctx context.Context, event *models.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.log.Info(ctx, "audit event",
		logger.String("event_id", event.ID),
		logger.String("event_type", string(event.Type)),
		logger.String("identity_id", event.IdentityID),
		logger.String("token_id", event.TokenID),
		logger.String("service_name", event.ServiceName),
		logger.String("client_ip", event.ClientIP),
		logger.String("detail", event.Detail),
	)
}

// Close is a no-op.
func (s *LogSink) Close() error { return nil }
