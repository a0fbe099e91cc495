package events

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
	sharedBus "github.com/davicafu/passport-notifier/internal/shared/infra/platform/bus"
)

// InMemoryEventBus sustituye a Kafka dentro de un único proceso. Los mensajes
// pasan por el mismo codec, así que el consumidor no distingue el transporte.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	subscribers []*ChannelSource
	offsets     map[string]int64
}

// Verificación estática
var _ sharedBus.EventPublisher = (*InMemoryEventBus)(nil)

func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{offsets: make(map[string]int64)}
}

// Publish bloquea hasta que cada suscriptor interesado acepta el mensaje o ctx expira.
func (b *InMemoryEventBus) Publish(ctx context.Context, topic string, evt sharedEvents.DomainEvent) error {
	msg, err := sharedEvents.Encode(evt)
	if err != nil {
		return err
	}
	if topic != "" {
		msg.Topic = topic
	}

	b.mu.Lock()
	msg.Offset = b.offsets[msg.Topic]
	b.offsets[msg.Topic]++
	subs := slices.Clone(b.subscribers)
	b.mu.Unlock()

	for _, sub := range subs {
		if !sub.wants(msg.Topic) {
			continue
		}
		if err := sub.deliver(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe crea una fuente para el consumidor. Sin topics recibe todos.
func (b *InMemoryEventBus) Subscribe(bufferSize int, topics ...string) *ChannelSource {
	src := &ChannelSource{
		topics: topics,
		ch:     make(chan kafka.Message, bufferSize),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, src)
	return src
}

// ChannelSource implementa MessageSource sobre un canal de Go.
type ChannelSource struct {
	topics []string
	ch     chan kafka.Message
	done   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	committed []kafka.Message
}

// Verificación estática
var _ MessageSource = (*ChannelSource)(nil)

func (s *ChannelSource) wants(topic string) bool {
	return len(s.topics) == 0 || slices.Contains(s.topics, topic)
}

func (s *ChannelSource) deliver(ctx context.Context, msg kafka.Message) error {
	select {
	case <-s.done:
		return nil
	default:
	}

	select {
	case s.ch <- msg:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChannelSource) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-s.ch:
		if msg.Time.IsZero() {
			msg.Time = time.Now().UTC()
		}
		return msg, nil
	case <-s.done:
		return kafka.Message{}, ErrSourceClosed
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (s *ChannelSource) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, msgs...)
	return nil
}

// Committed devuelve una copia de los mensajes confirmados.
func (s *ChannelSource) Committed() []kafka.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.committed)
}

func (s *ChannelSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
