// Package audit emits security-relevant events to the async audit trail.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/soybean-admin/uniauth/internal/domain/models"
	"github.com/soybean-admin/uniauth/internal/domain/service"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

var _ service.AuditPublisher = (*KafkaProducer)(nil)

// KafkaProducer ships audit events to a Kafka topic. Writes are asynchronous
// so the request path never waits on the broker; delivery failures are logged
// and dropped.
type KafkaProducer struct {
	writer *kafka.Writer
	log    logger.Logger
}

// NewKafkaProducer creates the Kafka-backed audit publisher.
func NewKafkaProducer(brokers []string, topic string, log logger.Logger) *KafkaProducer {
	componentLog := log.WithComponent("audit_kafka")
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 100 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				componentLog.Error(context.Background(), "failed to deliver audit events", err,
					logger.Int("count", len(messages)),
				)
			}
		},
	}
	return &KafkaProducer{writer: writer, log: componentLog}
}

// Publish enqueues an audit event. Identity ids key the messages so events
// for one principal stay ordered within a partition.
func (p *KafkaProducer) Publish(ctx context.Context, event *models.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error(ctx, "failed to marshal audit event", err, logger.String("type", string(event.Type)))
		return
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.IdentityID),
		Value: payload,
	}); err != nil {
		p.log.Error(ctx, "failed to enqueue audit event", err, logger.String("type", string(event.Type)))
	}
}

// Close flushes and closes the underlying writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
