package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
)

type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelSystem  Channel = "system"
	ChannelAlert   Channel = "alert"
	ChannelInfo    Channel = "info"
	ChannelWarning Channel = "warning"
	ChannelError   Channel = "error"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSystem, ChannelAlert, ChannelInfo, ChannelWarning, ChannelError:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusRead    Status = "read"
)

var AllStatuses = []Status{StatusPending, StatusSent, StatusFailed, StatusRead}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed, StatusRead:
		return true
	}
	return false
}

const (
	DefaultMaxRetries = 3
	RoleAdmin         = "admin"
)

// Viewer es quien consulta: decide qué notificaciones son visibles.
type Viewer struct {
	UserID string
	Role   string
}

func (v Viewer) IsAdmin() bool { return v.Role == RoleAdmin }

// Notification es un mensaje dirigido con su máquina de estados de entrega.
type Notification struct {
	ID              uuid.UUID              `json:"id"`
	Channel         Channel                `json:"type"`
	EventType       sharedEvents.EventType `json:"eventType"`
	Title           string                 `json:"title"`
	Body            string                 `json:"message"`
	RecipientUserID string                 `json:"recipientId,omitempty"`
	RecipientEmail  string                 `json:"recipientEmail,omitempty"`
	Priority        Priority               `json:"priority"`
	Status          Status                 `json:"status"`
	Metadata        map[string]interface{} `json:"metadata"`
	RetryCount      int                    `json:"retryCount"`
	MaxRetries      int                    `json:"maxRetries"`
	SentAt          *time.Time             `json:"sentAt,omitempty"`
	ReadAt          *time.Time             `json:"readAt,omitempty"`
	IsActive        bool                   `json:"isActive"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

type NewNotificationParams struct {
	Channel         Channel
	EventType       sharedEvents.EventType
	Title           string
	Body            string
	RecipientUserID string
	RecipientEmail  string
	Priority        Priority
	Metadata        map[string]interface{}
	MaxRetries      *int
	Now             time.Time
}

// NewNotification valida y construye el registro. Email nace pending; el resto
// de canales no tiene entrega externa y nace sent.
func NewNotification(p NewNotificationParams) (*Notification, error) {
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	priority := p.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	maxRetries := DefaultMaxRetries
	if p.MaxRetries != nil {
		maxRetries = *p.MaxRetries
	}
	eventType := p.EventType
	if eventType == "" {
		eventType = sharedEvents.GeneralInfo
	}

	n := &Notification{
		ID:              uuid.New(),
		Channel:         p.Channel,
		EventType:       eventType,
		Title:           strings.TrimSpace(p.Title),
		Body:            strings.TrimSpace(p.Body),
		RecipientUserID: strings.TrimSpace(p.RecipientUserID),
		RecipientEmail:  strings.TrimSpace(p.RecipientEmail),
		Priority:        priority,
		Status:          StatusPending,
		Metadata:        copyMetadata(p.Metadata),
		MaxRetries:      maxRetries,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}

	if n.Channel != ChannelEmail {
		n.MarkSent(now)
	}
	return n, nil
}

func (n *Notification) Validate() error {
	switch {
	case !n.Channel.IsValid():
		return fmt.Errorf("%w: unknown notification type %q", ErrValidation, n.Channel)
	case n.Title == "" || n.Body == "":
		return fmt.Errorf("%w: title and message are required", ErrValidation)
	case !n.Priority.IsValid():
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, n.Priority)
	case n.MaxRetries < 0:
		return fmt.Errorf("%w: maxRetries cannot be negative", ErrValidation)
	case n.Channel == ChannelEmail && n.RecipientUserID == "" && n.RecipientEmail == "":
		return fmt.Errorf("%w: email notifications require a recipient", ErrValidation)
	}
	return nil
}

// --- Métodos de dominio ---

func (n *Notification) MarkSent(now time.Time) {
	now = now.UTC()
	n.Status = StatusSent
	n.SentAt = &now
	n.UpdatedAt = now
}

// MarkFailed registra un intento fallido. Devuelve false si el registro ya había
// agotado sus reintentos: queda en failed sin incrementar el contador.
func (n *Notification) MarkFailed(now time.Time) bool {
	n.Status = StatusFailed
	n.UpdatedAt = now.UTC()
	if n.IsFrozen() {
		return false
	}
	n.RetryCount++
	return true
}

// MarkRead es idempotente: una segunda lectura conserva ReadAt.
func (n *Notification) MarkRead(now time.Time) {
	if n.Status == StatusRead && n.ReadAt != nil {
		return
	}
	now = now.UTC()
	n.Status = StatusRead
	n.ReadAt = &now
	n.UpdatedAt = now
}

func (n *Notification) SoftDelete(now time.Time) {
	n.IsActive = false
	n.UpdatedAt = now.UTC()
}

// IsFrozen indica que no quedan reintentos.
func (n *Notification) IsFrozen() bool {
	return n.RetryCount >= n.MaxRetries
}

func (n *Notification) CanRetry() bool {
	return n.Status == StatusFailed && !n.IsFrozen()
}

func (n *Notification) IsUnread() bool {
	return n.Status != StatusRead
}

// VisibleTo: activa y (destinatario, canal no email o admin).
func (n *Notification) VisibleTo(v Viewer) bool {
	if !n.IsActive {
		return false
	}
	if v.IsAdmin() || n.Channel != ChannelEmail {
		return true
	}
	return v.UserID != "" && n.RecipientUserID == v.UserID
}

func (n *Notification) SetMeta(key string, value interface{}) {
	if n.Metadata == nil {
		n.Metadata = make(map[string]interface{})
	}
	n.Metadata[key] = value
}

func (n *Notification) DeleteMeta(keys ...string) {
	for _, k := range keys {
		delete(n.Metadata, k)
	}
}

// Clone devuelve una copia independiente (metadata y punteros de fecha incluidos).
func (n *Notification) Clone() *Notification {
	if n == nil {
		return nil
	}
	c := *n
	c.Metadata = copyMetadata(n.Metadata)
	if n.SentAt != nil {
		t := *n.SentAt
		c.SentAt = &t
	}
	if n.ReadAt != nil {
		t := *n.ReadAt
		c.ReadAt = &t
	}
	return &c
}

func copyMetadata(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
