package bus

import (
	"context"

	"github.com/davicafu/passport-notifier/internal/shared/events"
)

type Keyer interface {
	PartitionKey() string
}

// Verificación estática
var _ Keyer = events.DomainEvent{}

// EventPublisher publica un evento de dominio en un topic.
// El formato en el cable lo decide el codec de events; el transporte lo decide el adapter.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, evt events.DomainEvent) error
}

// Emitter es la variante "dispara y olvida": nunca devuelve error al llamador.
type Emitter interface {
	Emit(topic string, evt events.DomainEvent)
}
