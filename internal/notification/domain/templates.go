package domain

import (
	"fmt"
	"strings"
	"time"

	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
)

// Placeholder sustituye a cualquier campo ausente en el texto.
const Placeholder = "N/A"

type Template struct {
	Title string
	Body  string
}

// Builder convierte eventos en título y cuerpo. Es puro salvo por el reloj,
// que sólo se usa cuando un user.login no trae hora.
type Builder struct {
	now func() time.Time
}

func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{now: now}
}

// Build aplica el template del tipo de evento al payload.
func (b *Builder) Build(eventType sharedEvents.EventType, payload map[string]interface{}) Template {
	return b.render(sharedEvents.PayloadFor(eventType, payload), time.Time{})
}

// BuildEvent usa además la hora del evento como hora de login por defecto.
func (b *Builder) BuildEvent(evt sharedEvents.DomainEvent) Template {
	return b.render(evt.Typed(), evt.ProducedAt)
}

func (b *Builder) render(p sharedEvents.Payload, eventTime time.Time) Template {
	switch v := p.(type) {
	case sharedEvents.PassportCreatedPayload:
		return Template{
			Title: "New Battery Passport Created",
			Body: fmt.Sprintf("A new battery passport has been created successfully.\n\nBattery Identifier: %s\nModel: %s\nManufacturer: %s",
				orPlaceholder(v.BatteryIdentifier), orPlaceholder(v.ModelName), orPlaceholder(v.ManufacturerName)),
		}
	case sharedEvents.PassportUpdatedPayload:
		fields := Placeholder
		if len(v.UpdatedFields) > 0 {
			fields = strings.Join(v.UpdatedFields, ", ")
		}
		return Template{
			Title: "Battery Passport Updated",
			Body: fmt.Sprintf("A battery passport has been updated.\n\nBattery Identifier: %s\nUpdated Fields: %s",
				orPlaceholder(v.BatteryIdentifier), fields),
		}
	case sharedEvents.PassportDeletedPayload:
		return Template{
			Title: "Battery Passport Deleted",
			Body: fmt.Sprintf("A battery passport has been deleted.\n\nBattery Identifier: %s\nDeleted By: %s",
				orPlaceholder(v.BatteryIdentifier), orDefault(v.DeletedBy, "System")),
		}
	case sharedEvents.DocumentUploadedPayload:
		size := Placeholder
		if v.FileSize > 0 {
			size = fmt.Sprintf("%.2f MB", v.FileSize/1024/1024)
		}
		return Template{
			Title: "Document Uploaded Successfully",
			Body: fmt.Sprintf("A new document has been uploaded to the system.\n\nFile Name: %s\nSize: %s",
				orPlaceholder(v.FileName), size),
		}
	case sharedEvents.DocumentDeletedPayload:
		return Template{
			Title: "Document Deleted",
			Body: fmt.Sprintf("A document has been deleted from the system.\n\nFile Name: %s\nDeleted By: %s",
				orPlaceholder(v.FileName), orDefault(v.DeletedBy, "System")),
		}
	case sharedEvents.UserRegisteredPayload:
		return Template{
			Title: "Welcome to Battery Passport System",
			Body:  "Thank you for registering with the Battery Passport System!\n\nYour account has been created successfully. You can now login and start using the system.",
		}
	case sharedEvents.UserLoginPayload:
		at := v.LoginAt
		if at.IsZero() {
			at = eventTime
		}
		if at.IsZero() {
			at = b.now()
		}
		return Template{
			Title: "Successful Login",
			Body: fmt.Sprintf("You have successfully logged into your account.\n\nLogin Time: %s\nIf this wasn't you, please contact support immediately.",
				at.UTC().Format(time.RFC1123)),
		}
	case sharedEvents.SystemAlertPayload:
		return Template{
			Title: "System Alert",
			Body:  orDefault(v.Message, "A system alert has been triggered."),
		}
	case sharedEvents.GeneralInfoPayload:
		return Template{
			Title: orDefault(v.Title, "Information"),
			Body:  orDefault(v.Message, "This is a general information notification."),
		}
	default:
		return Template{
			Title: "Notification",
			Body:  "You have a new notification from the system.",
		}
	}
}

func orPlaceholder(s string) string {
	return orDefault(s, Placeholder)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
