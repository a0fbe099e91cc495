package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/passport-notifier/internal/shared/domain"
	sharedQuery "github.com/davicafu/passport-notifier/internal/shared/infra/platform/query"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("notification not found")
	ErrForbidden    = errors.New("forbidden")
	ErrNotRetryable = errors.New("notification cannot be retried")
	// ErrAnalyticsUnavailable indica que no hay almacén analítico configurado.
	ErrAnalyticsUnavailable = errors.New("delivery analytics not configured")
)

// --- Repositorio de Notifications ---
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	Update(ctx context.Context, n *Notification) error
	// List devuelve la página pedida y el total de registros que cumplen el criterio.
	List(ctx context.Context, criteria sharedDomain.Criteria, pagination sharedQuery.OffsetPagination, sort sharedQuery.Sort) ([]*Notification, int, error)
	CountByStatus(ctx context.Context, criteria sharedDomain.Criteria) (map[Status]int, error)
}

// --- Entrega ---

type MailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// MailTransport envía un correo y devuelve el Message-ID asignado.
type MailTransport interface {
	Send(ctx context.Context, msg MailMessage) (string, error)
}

// FileSink persiste el registro de una notificación y devuelve la ruta escrita.
type FileSink interface {
	Write(name string, content []byte) (string, error)
}

const (
	MethodEmail = "email"
	MethodFile  = "file"
)

// DeliveryRecord es una fila de analítica por intento de entrega.
type DeliveryRecord struct {
	NotificationID uuid.UUID
	EventType      string
	Channel        Channel
	Method         string
	Success        bool
	Attempt        int
	Duration       time.Duration
	At             time.Time
}

type DeliveryRecorder interface {
	Record(ctx context.Context, rec DeliveryRecord) error
}

// DTO para transportar los resultados de la consulta de tendencia.
type DailyDeliveryTrend struct {
	Day    time.Time `json:"day"`
	Sent   int       `json:"sent"`
	Failed int       `json:"failed"`
}

type DeliveryAnalytics interface {
	GetDailyTrend(ctx context.Context, start, end time.Time) ([]DailyDeliveryTrend, error)
}

// ---------- Helpers comunes (cache keys, etc.) ----------

const StatsGenerationKey = "notification:stats:gen"

func NotificationCacheKeyByID(id uuid.UUID) string {
	return fmt.Sprintf("notification:id:%s", id.String())
}

// StatsCacheKey cambia con cada generación, así una mutación invalida las stats de todos los viewers.
func StatsCacheKey(generation string, v Viewer) string {
	scope := "user:" + v.UserID
	if v.IsAdmin() {
		scope = "admin"
	}
	return fmt.Sprintf("notification:stats:%s:%s", generation, scope)
}
