package events

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
	infraEvents "github.com/davicafu/passport-notifier/internal/shared/infra/events"
	"github.com/davicafu/passport-notifier/internal/shared/infra/observability"
)

// EventHandler procesa un evento ya decodificado.
type EventHandler interface {
	Handle(ctx context.Context, evt sharedEvents.DomainEvent) error
}

type EventHandlerFunc func(ctx context.Context, evt sharedEvents.DomainEvent) error

func (f EventHandlerFunc) Handle(ctx context.Context, evt sharedEvents.DomainEvent) error {
	return f(ctx, evt)
}

// Dispatcher enruta cada mensaje a un único handler según su tipo de evento.
// Nada de lo que ocurre aquí llega al transporte: el mensaje se confirma siempre.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[sharedEvents.EventType]EventHandler
	metrics  *observability.Metrics
	log      *zap.Logger
}

// Verificación estática
var _ infraEvents.MessageHandler = (*Dispatcher)(nil)

func NewDispatcher(metrics *observability.Metrics, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		handlers: make(map[sharedEvents.EventType]EventHandler),
		metrics:  metrics,
		log:      log,
	}
}

// Register sustituye el handler previo del mismo tipo, si lo hubiera.
func (d *Dispatcher) Register(t sharedEvents.EventType, h EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = h
}

func (d *Dispatcher) Handles(t sharedEvents.EventType) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[t]
	return ok
}

func (d *Dispatcher) HandleMessage(ctx context.Context, msg kafka.Message) error {
	evt, err := sharedEvents.Decode(msg)
	if err != nil {
		d.log.Warn("Dropping undecodable message",
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		d.metrics.EventConsumed(msg.Topic, observability.OutcomeDropped)
		return nil
	}

	d.mu.RLock()
	h, ok := d.handlers[evt.Type]
	d.mu.RUnlock()
	if !ok {
		d.log.Warn("Unknown event type, dropping", zap.String("event_type", string(evt.Type)), zap.String("topic", msg.Topic))
		d.metrics.EventConsumed(msg.Topic, observability.OutcomeDropped)
		return nil
	}

	if err := h.Handle(ctx, evt); err != nil {
		d.log.Error("Failed to process event",
			zap.String("event_type", string(evt.Type)),
			zap.String("key", string(msg.Key)),
			zap.Error(err))
		d.metrics.EventConsumed(msg.Topic, observability.OutcomeError)
		return nil
	}

	d.log.Info("Handled event", zap.String("event_type", string(evt.Type)), zap.String("key", string(msg.Key)))
	d.metrics.EventConsumed(msg.Topic, observability.OutcomeOK)
	return nil
}
