package audit

import (
	"context"

	"github.com/soybean-admin/uniauth/internal/domain/models"
	"github.com/soybean-admin/uniauth/internal/domain/service"
)

var _ service.AuditPublisher = (Multi)(nil)

// Multi fans one event out to several publishers.
type Multi []service.AuditPublisher

// Publish forwards the event to every publisher.
func (m Multi) Publish(ctx context.Context, event *models.AuditEvent) {
	for _, p := range m {
		p.Publish(ctx, event)
	}
}

// Close closes every publisher, returning the first error seen.
func (m Multi) Close() error {
	var firstErr error
	for _, p := range m {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
