package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType  = "event-type"
	HeaderProducedAt = "produced-at"
)

var (
	// ErrDecode indica un mensaje que no se puede convertir en DomainEvent (o al revés).
	ErrDecode = errors.New("malformed event message")
	// ErrTransport envuelve los fallos del broker al publicar.
	ErrTransport = errors.New("event transport failure")
)

// Encode serializa el evento al formato de cable: el payload plano en JSON,
// un topic por tipo de evento y los metadatos del sobre en cabeceras.
func Encode(evt DomainEvent) (kafka.Message, error) {
	if evt.Type == "" {
		return kafka.Message{}, fmt.Errorf("%w: empty event type", ErrDecode)
	}

	payload := evt.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	producedAt := evt.ProducedAt
	if producedAt.IsZero() {
		producedAt = time.Now().UTC()
	}

	msg := kafka.Message{
		Topic: string(evt.Type),
		Value: value,
		Time:  producedAt,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(evt.Type)},
			{Key: HeaderProducedAt, Value: []byte(producedAt.Format(time.RFC3339Nano))},
		},
	}
	if key := evt.PartitionKey(); key != "" {
		msg.Key = []byte(key)
	}
	return msg, nil
}

// Decode reconstruye el evento. Los tipos desconocidos se decodifican igualmente;
// decidir qué hacer con ellos es cosa del dispatcher.
func Decode(msg kafka.Message) (DomainEvent, error) {
	eventType := EventType(header(msg, HeaderEventType))
	if eventType == "" {
		eventType = EventType(msg.Topic)
	}
	if eventType == "" {
		return DomainEvent{}, fmt.Errorf("%w: no event type in headers or topic", ErrDecode)
	}

	trimmed := bytes.TrimSpace(msg.Value)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return DomainEvent{}, fmt.Errorf("%w: payload is not a JSON object", ErrDecode)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return DomainEvent{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return DomainEvent{
		Type:       eventType,
		Payload:    payload,
		ProducedAt: producedAt(msg, payload),
	}, nil
}

func producedAt(msg kafka.Message, payload map[string]interface{}) time.Time {
	if raw := header(msg, HeaderProducedAt); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t.UTC()
		}
	}
	if !msg.Time.IsZero() {
		return msg.Time.UTC()
	}
	for _, key := range []string{"createdAt", "updatedAt", "deletedAt"} {
		if t := timeField(payload, key); !t.IsZero() {
			return t.UTC()
		}
	}
	return time.Time{}
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
