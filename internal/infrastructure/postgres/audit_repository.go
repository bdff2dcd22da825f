// Package postgres provides the durable audit trail backend.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soybean-admin/uniauth/internal/domain/models"
	"github.com/soybean-admin/uniauth/internal/domain/service"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

var _ service.AuditPublisher = (*AuditRepository)(nil)

// AuditRepository persists audit events to Postgres. Inserts are best-effort
// like every other publisher; a failed write is logged, not propagated.
type AuditRepository struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

// NewAuditRepository connects a pgx pool and verifies it with a ping.
func NewAuditRepository(ctx context.Context, dsn string, log logger.Logger) (*AuditRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return &AuditRepository{
		pool: pool,
		log:  log.WithComponent("audit_postgres"),
	}, nil
}

// Publish inserts the event into the audit_events table.
func (r *AuditRepository) Publish(ctx context.Context, event *models.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	const query = `
		INSERT INTO audit_events (id, event_type, identity_id, token_id, service_name, client_ip, request_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := r.pool.Exec(ctx, query,
		event.ID, string(event.Type), event.IdentityID, event.TokenID,
		event.ServiceName, event.ClientIP, event.RequestID, event.Detail, event.Timestamp,
	); err != nil {
		r.log.Error(ctx, "failed to persist audit event", err, logger.String("type", string(event.Type)))
	}
}

// Close releases the connection pool.
func (r *AuditRepository) Close() error {
	r.pool.Close()
	return nil
}
