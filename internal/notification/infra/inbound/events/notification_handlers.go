package events

import (
	"context"

	"go.uber.org/zap"

	notificationApp "github.com/davicafu/passport-notifier/internal/notification/application"
	notificationDomain "github.com/davicafu/passport-notifier/internal/notification/domain"
	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
	sharedUtils "github.com/davicafu/passport-notifier/internal/shared/infra/utils"
)

// EventNotifier es lo que los handlers necesitan del servicio.
type EventNotifier interface {
	NotifyEvent(ctx context.Context, in notificationApp.EventNotification) (*notificationDomain.Notification, error)
}

// HandlerOptions ajusta a quién se dirigen los eventos de actor.
type HandlerOptions struct {
	// FallbackEmail recibe los eventos cuyo payload no trae email del actor.
	FallbackEmail string
	// MailEnabled indica si hay transporte SMTP. Sin él, un email sólo con userId
	// acaba en el log de ficheros.
	MailEnabled bool
}

// NotificationHandlers traduce cada evento de dominio en una notificación.
type NotificationHandlers struct {
	service EventNotifier
	opts    HandlerOptions
	log     *zap.Logger
}

func NewNotificationHandlers(service EventNotifier, opts HandlerOptions, log *zap.Logger) *NotificationHandlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotificationHandlers{service: service, opts: opts, log: log}
}

// RegisterAll registra un handler por cada tipo de evento conocido.
func (h *NotificationHandlers) RegisterAll(d *Dispatcher) {
	d.Register(sharedEvents.PassportCreated, EventHandlerFunc(h.handlePassport("createdBy")))
	d.Register(sharedEvents.PassportUpdated, EventHandlerFunc(h.handlePassport("updatedBy")))
	d.Register(sharedEvents.PassportDeleted, EventHandlerFunc(h.handlePassport("deletedBy")))
	d.Register(sharedEvents.DocumentUploaded, EventHandlerFunc(h.handleDocument("uploadedBy")))
	d.Register(sharedEvents.DocumentDeleted, EventHandlerFunc(h.handleDocument("deletedBy")))
	d.Register(sharedEvents.UserRegistered, EventHandlerFunc(h.handleUser))
	d.Register(sharedEvents.UserLogin, EventHandlerFunc(h.handleUser))
	d.Register(sharedEvents.SystemAlert, EventHandlerFunc(h.handleSystemAlert))
	d.Register(sharedEvents.GeneralInfo, EventHandlerFunc(h.handleGeneralInfo))
}

// ---------------- Handlers ----------------

func (h *NotificationHandlers) handlePassport(actorKey string) EventHandlerFunc {
	return func(ctx context.Context, evt sharedEvents.DomainEvent) error {
		meta := map[string]interface{}{
			"passportId": evt.Payload["passportId"],
			actorKey:     evt.Payload[actorKey],
			"eventData":  evt.Payload,
		}
		return h.notify(ctx, h.addressed(evt, meta))
	}
}

func (h *NotificationHandlers) handleDocument(actorKey string) EventHandlerFunc {
	return func(ctx context.Context, evt sharedEvents.DomainEvent) error {
		meta := map[string]interface{}{
			"documentId": evt.Payload["documentId"],
			actorKey:     evt.Payload[actorKey],
			"eventData":  evt.Payload,
		}
		return h.notify(ctx, h.addressed(evt, meta))
	}
}

func (h *NotificationHandlers) handleUser(ctx context.Context, evt sharedEvents.DomainEvent) error {
	meta := map[string]interface{}{
		"userId":    evt.Payload["userId"],
		"eventData": evt.Payload,
	}
	return h.notify(ctx, h.addressed(evt, meta))
}

func (h *NotificationHandlers) handleSystemAlert(ctx context.Context, evt sharedEvents.DomainEvent) error {
	return h.notify(ctx, notificationApp.EventNotification{
		Event:    evt,
		Channel:  notificationDomain.ChannelAlert,
		Priority: notificationDomain.PriorityHigh,
		Metadata: map[string]interface{}{"eventData": evt.Payload},
	})
}

func (h *NotificationHandlers) handleGeneralInfo(ctx context.Context, evt sharedEvents.DomainEvent) error {
	return h.notify(ctx, notificationApp.EventNotification{
		Event:    evt,
		Channel:  notificationDomain.ChannelInfo,
		Metadata: map[string]interface{}{"eventData": evt.Payload},
	})
}

// ---------------- Helpers ----------------

// addressed dirige el evento por email al actor. Sin email del actor se usa el buzón
// configurado. Sin ninguno de los dos sigue siendo email si hay actor y no hay SMTP
// (se entrega al log de ficheros); en otro caso es un broadcast de sistema.
func (h *NotificationHandlers) addressed(evt sharedEvents.DomainEvent, meta map[string]interface{}) notificationApp.EventNotification {
	userID, email := evt.Actor()
	email = sharedUtils.FirstNonEmpty(email, h.opts.FallbackEmail)

	in := notificationApp.EventNotification{
		Event:    evt,
		Priority: notificationDomain.PriorityMedium,
		Metadata: meta,
	}
	if email == "" && (userID == "" || h.opts.MailEnabled) {
		in.Channel = notificationDomain.ChannelSystem
		return in
	}
	in.Channel = notificationDomain.ChannelEmail
	in.RecipientUserID = userID
	in.RecipientEmail = email
	return in
}

func (h *NotificationHandlers) notify(ctx context.Context, in notificationApp.EventNotification) error {
	n, err := h.service.NotifyEvent(ctx, in)
	if err != nil {
		return err
	}
	h.log.Debug("Notification created from event",
		zap.String("notification_id", n.ID.String()),
		zap.String("event_type", string(in.Event.Type)),
		zap.String("status", string(n.Status)))
	return nil
}
