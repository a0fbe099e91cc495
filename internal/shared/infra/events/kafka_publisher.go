package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
	"github.com/davicafu/passport-notifier/internal/shared/infra/observability"
	sharedBus "github.com/davicafu/passport-notifier/internal/shared/infra/platform/bus"
)

const DefaultPublishTimeout = 5 * time.Second

// MessageWriter es la parte de *kafka.Writer que usa el publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	writer  MessageWriter
	timeout time.Duration
	metrics *observability.Metrics
	log     *zap.Logger
}

func NewKafkaPublisher(writer MessageWriter, timeout time.Duration, metrics *observability.Metrics, log *zap.Logger) *KafkaPublisher {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{writer: writer, timeout: timeout, metrics: metrics, log: log}
}

// Publish codifica el evento y lo escribe en el topic. Un topic vacío usa el tipo del evento.
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, evt sharedEvents.DomainEvent) error {
	msg, err := sharedEvents.Encode(evt)
	if err != nil {
		return err
	}
	if topic != "" {
		msg.Topic = topic
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		p.metrics.EventPublished(msg.Topic, observability.OutcomeError)
		p.log.Error("Error publishing to Kafka",
			zap.String("topic", msg.Topic),
			zap.Error(err))
		return fmt.Errorf("%w: %w", sharedEvents.ErrTransport, err)
	}

	p.metrics.EventPublished(msg.Topic, observability.OutcomeOK)
	p.log.Debug("Event published successfully",
		zap.String("topic", msg.Topic),
		zap.String("key", string(msg.Key)))
	return nil
}

// Verificación estática
var _ sharedBus.EventPublisher = (*KafkaPublisher)(nil)
