package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
	sharedBus "github.com/davicafu/passport-notifier/internal/shared/infra/platform/bus"
)

// BestEffortPublisher publica en segundo plano. La operación de dominio que emite
// nunca ve el error: se registra en el log y ahí termina.
type BestEffortPublisher struct {
	next    sharedBus.EventPublisher
	timeout time.Duration
	log     *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewBestEffortPublisher(next sharedBus.EventPublisher, timeout time.Duration, log *zap.Logger) *BestEffortPublisher {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BestEffortPublisher{next: next, timeout: timeout, log: log}
}

// Emit vuelve inmediatamente.
func (p *BestEffortPublisher) Emit(topic string, evt sharedEvents.DomainEvent) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.log.Warn("Emit after close, event discarded", zap.String("event_type", evt.Type.String()))
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := p.next.Publish(ctx, topic, evt); err != nil {
			p.log.Error("❌ Error publishing event (best effort)",
				zap.String("event_type", evt.Type.String()),
				zap.String("topic", topic),
				zap.Error(err))
		}
	}()
}

// Close deja de aceptar eventos y espera a los envíos en curso hasta que ctx expire.
func (p *BestEffortPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Verificación estática
var _ sharedBus.Emitter = (*BestEffortPublisher)(nil)
