package events

import (
	"fmt"
	"time"
)

// EventType identifica la familia de un evento de dominio. Es un conjunto cerrado.
type EventType string

const (
	PassportCreated  EventType = "passport.created"
	PassportUpdated  EventType = "passport.updated"
	PassportDeleted  EventType = "passport.deleted"
	DocumentUploaded EventType = "document.uploaded"
	DocumentDeleted  EventType = "document.deleted"
	UserRegistered   EventType = "user.registered"
	UserLogin        EventType = "user.login"
	SystemAlert      EventType = "system.alert"
	GeneralInfo      EventType = "general.info"
)

// AllEventTypes en el orden en que se documentan.
var AllEventTypes = []EventType{
	PassportCreated, PassportUpdated, PassportDeleted,
	DocumentUploaded, DocumentDeleted,
	UserRegistered, UserLogin,
	SystemAlert, GeneralInfo,
}

// PassportTopics son los topics a los que se suscribe el pipeline de notificaciones.
var PassportTopics = []string{
	string(PassportCreated),
	string(PassportUpdated),
	string(PassportDeleted),
}

func (t EventType) String() string { return string(t) }

func (t EventType) IsValid() bool {
	for _, known := range AllEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseEventType valida un tipo recibido desde fuera (HTTP, flags).
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown event type %q", s)
	}
	return t, nil
}

// DomainEvent es un hecho inmutable publicado cuando cambia el estado de un servicio.
// El payload es un mapa sin esquema; sólo los templates leen campos concretos.
type DomainEvent struct {
	Type       EventType              `json:"eventType"`
	Payload    map[string]interface{} `json:"payload"`
	ProducedAt time.Time              `json:"producedAt"`
}

// NewDomainEvent copia el payload para que el llamador no pueda mutar el evento publicado.
func NewDomainEvent(t EventType, payload map[string]interface{}, producedAt time.Time) DomainEvent {
	return DomainEvent{
		Type:       t,
		Payload:    copyPayload(payload),
		ProducedAt: producedAt.UTC(),
	}
}

// PartitionKey agrupa los eventos del mismo pasaporte en la misma partición.
func (e DomainEvent) PartitionKey() string {
	if id := stringField(e.Payload, "passportId"); id != "" {
		return id
	}
	return stringField(e.Payload, "documentId")
}

// Typed devuelve la variante tipada del payload según el tipo del evento.
func (e DomainEvent) Typed() Payload {
	return PayloadFor(e.Type, e.Payload)
}

func copyPayload(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Actor devuelve quién provocó el evento según los campos habituales del payload.
func (e DomainEvent) Actor() (userID, email string) {
	for _, key := range []string{"createdBy", "updatedBy", "deletedBy", "uploadedBy", "userId"} {
		if userID = stringField(e.Payload, key); userID != "" {
			break
		}
	}
	for _, key := range []string{"actorEmail", "userEmail", "email"} {
		if email = stringField(e.Payload, key); email != "" {
			break
		}
	}
	return userID, email
}
