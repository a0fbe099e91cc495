package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	notificationDomain "github.com/davicafu/passport-notifier/internal/notification/domain"
	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
	sharedCache "github.com/davicafu/passport-notifier/internal/shared/infra/platform/cache"
	sharedQuery "github.com/davicafu/passport-notifier/internal/shared/infra/platform/query"
	sharedUtils "github.com/davicafu/passport-notifier/internal/shared/infra/utils"
)

// NotificationService define los casos de uso de notificaciones: creación desde
// eventos o HTTP, consultas por viewer y reintento manual.
type NotificationService struct {
	repo       notificationDomain.NotificationRepository
	engine     *DeliveryEngine
	builder    *notificationDomain.Builder
	cache      notificationCache
	analytics  notificationDomain.DeliveryAnalytics
	maxRetries int
	now        func() time.Time
	log        *zap.Logger
}

type ServiceOptions struct {
	MaxRetries int
	Analytics  notificationDomain.DeliveryAnalytics // opcional
}

// NewNotificationService es el constructor del servicio.
func NewNotificationService(
	repo notificationDomain.NotificationRepository,
	engine *DeliveryEngine,
	cache sharedCache.Cache,
	opts ServiceOptions,
	log *zap.Logger,
) *NotificationService {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = notificationDomain.DefaultMaxRetries
	}
	return &NotificationService{
		repo:       repo,
		engine:     engine,
		builder:    notificationDomain.NewBuilder(time.Now),
		cache:      notificationCache{cache: cache, log: log},
		analytics:  opts.Analytics,
		maxRetries: opts.MaxRetries,
		now:        time.Now,
		log:        log,
	}
}

// ---------------- Creación ----------------

// CreateNotification valida antes de escribir nada. Los emails se entregan en segundo
// plano: el registro devuelto es el guardado (pending) y el resultado se ve al releerlo.
func (s *NotificationService) CreateNotification(ctx context.Context, params notificationDomain.NewNotificationParams) (*notificationDomain.Notification, error) {
	n, err := s.newNotification(params)
	if err != nil {
		return nil, err
	}
	if err := s.create(ctx, n); err != nil {
		return nil, err
	}

	if n.Channel == notificationDomain.ChannelEmail {
		s.engine.DeliverAsync(n)
	}
	return n, nil
}

// CreateSystemNotification registra un aviso interno, visible para todos.
func (s *NotificationService) CreateSystemNotification(ctx context.Context, eventType sharedEvents.EventType, title, body string, metadata map[string]interface{}) (*notificationDomain.Notification, error) {
	n, err := s.newNotification(notificationDomain.NewNotificationParams{
		Channel:   notificationDomain.ChannelSystem,
		EventType: eventType,
		Title:     title,
		Body:      body,
		Priority:  notificationDomain.PriorityMedium,
		Metadata:  metadata,
	})
	if err != nil {
		return nil, err
	}
	if err := s.create(ctx, n); err != nil {
		return nil, err
	}

	s.log.Info("[SYSTEM NOTIFICATION] "+n.Title,
		zap.String("notification_id", n.ID.String()),
		zap.String("event_type", string(eventType)))
	return n, nil
}

// EventNotification describe a quién y cómo notificar un evento de dominio.
type EventNotification struct {
	Event           sharedEvents.DomainEvent
	Channel         notificationDomain.Channel
	Priority        notificationDomain.Priority
	RecipientUserID string
	RecipientEmail  string
	Metadata        map[string]interface{}
}

// NotifyEvent construye la notificación a partir del template del evento, la guarda
// y, si es email, la entrega en línea. El registro devuelto refleja el resultado.
func (s *NotificationService) NotifyEvent(ctx context.Context, in EventNotification) (*notificationDomain.Notification, error) {
	tpl := s.builder.BuildEvent(in.Event)

	n, err := s.newNotification(notificationDomain.NewNotificationParams{
		Channel:         in.Channel,
		EventType:       in.Event.Type,
		Title:           tpl.Title,
		Body:            tpl.Body,
		RecipientUserID: in.RecipientUserID,
		RecipientEmail:  in.RecipientEmail,
		Priority:        in.Priority,
		Metadata:        in.Metadata,
	})
	if err != nil {
		return nil, err
	}
	if err := s.create(ctx, n); err != nil {
		return nil, err
	}

	if n.Channel != notificationDomain.ChannelEmail {
		return n, nil
	}
	if _, err := s.engine.Deliver(ctx, n); err != nil {
		return n, err
	}
	return n, nil
}

// ---------------- Consultas ----------------

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type Page struct {
	Items      []*notificationDomain.Notification `json:"notifications"`
	Pagination Pagination                         `json:"pagination"`
}

type Stats struct {
	Total    int            `json:"total"`
	Unread   int            `json:"unread"`
	ByStatus map[string]int `json:"byStatus"`
}

// ListNotifications devuelve las notificaciones visibles, más recientes primero.
func (s *NotificationService) ListNotifications(ctx context.Context, viewer notificationDomain.Viewer, filter notificationDomain.ListFilter, page, limit int) (*Page, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", notificationDomain.ErrValidation, filter.Status)
	}
	if filter.Channel != "" && !filter.Channel.IsValid() {
		return nil, fmt.Errorf("%w: unknown type %q", notificationDomain.ErrValidation, filter.Channel)
	}

	pagination := sharedQuery.PageToOffset(page, limit)
	items, total, err := s.repo.List(ctx, notificationDomain.ListCriteria(viewer, filter), pagination, sharedQuery.NewestFirst)
	if err != nil {
		s.log.Error("Failed to list notifications", zap.String("user_id", viewer.UserID), zap.Error(err))
		return nil, err
	}
	if items == nil {
		items = []*notificationDomain.Notification{}
	}

	return &Page{
		Items: items,
		Pagination: Pagination{
			Page:  pagination.Page(),
			Limit: pagination.Limit,
			Total: total,
			Pages: (total + pagination.Limit - 1) / pagination.Limit,
		},
	}, nil
}

// GetNotification obtiene una notificación usando cache-aside con reintentos.
// La visibilidad se comprueba también en los hits de caché.
func (s *NotificationService) GetNotification(ctx context.Context, viewer notificationDomain.Viewer, id uuid.UUID) (*notificationDomain.Notification, error) {
	// 1. Intentar obtener de la caché
	if n, hit := s.cache.getByID(ctx, id); hit {
		if !n.VisibleTo(viewer) {
			return nil, notificationDomain.ErrNotFound
		}
		return n, nil
	}

	// 2. Si es 'miss', ir al repositorio con reintentos
	n, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	// 3. Actualizar caché para la próxima vez
	s.cache.setByID(ctx, n)

	if !n.VisibleTo(viewer) {
		return nil, notificationDomain.ErrNotFound
	}
	return n, nil
}

// MarkAsRead es idempotente.
func (s *NotificationService) MarkAsRead(ctx context.Context, viewer notificationDomain.Viewer, id uuid.UUID) (*notificationDomain.Notification, error) {
	n, err := s.loadVisible(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if n.Status == notificationDomain.StatusRead {
		return n, nil
	}

	n.MarkRead(s.now())
	if err := s.repo.Update(ctx, n); err != nil {
		s.log.Error("Failed to mark notification as read", zap.String("notification_id", id.String()), zap.Error(err))
		return nil, err
	}
	s.cache.invalidate(ctx, id)
	return n, nil
}

// DeleteNotification hace un borrado lógico.
func (s *NotificationService) DeleteNotification(ctx context.Context, viewer notificationDomain.Viewer, id uuid.UUID) error {
	n, err := s.loadVisible(ctx, viewer, id)
	if err != nil {
		return err
	}

	n.SoftDelete(s.now())
	if err := s.repo.Update(ctx, n); err != nil {
		s.log.Error("Failed to delete notification", zap.String("notification_id", id.String()), zap.Error(err))
		return err
	}
	s.cache.invalidate(ctx, id)
	return nil
}

// Stats cuenta las notificaciones visibles por estado. Se cachea por viewer
// hasta la siguiente mutación.
func (s *NotificationService) Stats(ctx context.Context, viewer notificationDomain.Viewer) (*Stats, error) {
	key := s.cache.statsKey(ctx, viewer)
	if st, hit := s.cache.getStats(ctx, key); hit {
		return st, nil
	}

	counts, err := s.repo.CountByStatus(ctx, notificationDomain.VisibleToCriteria{Viewer: viewer})
	if err != nil {
		s.log.Error("Failed to compute notification stats", zap.String("user_id", viewer.UserID), zap.Error(err))
		return nil, err
	}

	st := &Stats{ByStatus: make(map[string]int, len(counts))}
	for status, c := range counts {
		st.ByStatus[string(status)] = c
		st.Total += c
		if status != notificationDomain.StatusRead {
			st.Unread += c
		}
	}

	s.cache.setStats(ctx, key, st)
	return st, nil
}

// ---------------- Administración ----------------

// RetryDelivery reintenta a mano una entrega fallida. Sólo admins.
func (s *NotificationService) RetryDelivery(ctx context.Context, viewer notificationDomain.Viewer, id uuid.UUID) (*notificationDomain.Notification, DeliveryResult, error) {
	if !viewer.IsAdmin() {
		return nil, DeliveryResult{}, notificationDomain.ErrForbidden
	}
	n, result, err := s.engine.Redeliver(ctx, id)
	if err != nil {
		if errors.Is(err, notificationDomain.ErrNotRetryable) {
			s.log.Info("Retry rejected", zap.String("notification_id", id.String()), zap.Error(err))
		}
		return nil, result, err
	}
	return n, result, nil
}

// DeliveryTrend consulta la analítica de entregas. Sólo admins.
func (s *NotificationService) DeliveryTrend(ctx context.Context, viewer notificationDomain.Viewer, from, to time.Time) ([]notificationDomain.DailyDeliveryTrend, error) {
	if !viewer.IsAdmin() {
		return nil, notificationDomain.ErrForbidden
	}
	if s.analytics == nil {
		return nil, notificationDomain.ErrAnalyticsUnavailable
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: 'from' must be before 'to'", notificationDomain.ErrValidation)
	}
	return s.analytics.GetDailyTrend(ctx, from, to)
}

// ---------------- Helpers ----------------

func (s *NotificationService) newNotification(p notificationDomain.NewNotificationParams) (*notificationDomain.Notification, error) {
	if p.MaxRetries == nil {
		maxRetries := s.maxRetries
		p.MaxRetries = &maxRetries
	}
	if p.Now.IsZero() {
		p.Now = s.now()
	}
	return notificationDomain.NewNotification(p)
}

func (s *NotificationService) create(ctx context.Context, n *notificationDomain.Notification) error {
	if err := s.repo.Create(ctx, n); err != nil {
		s.log.Error("Failed to create notification", zap.String("notification_id", n.ID.String()), zap.Error(err))
		return err
	}
	s.cache.invalidate(ctx, uuid.Nil)
	return nil
}

func (s *NotificationService) load(ctx context.Context, id uuid.UUID) (*notificationDomain.Notification, error) {
	var n *notificationDomain.Notification
	err := sharedUtils.Retry(ctx, 3, 100*time.Millisecond, func() error {
		var errRetry error
		n, errRetry = s.repo.GetByID(ctx, id)
		if errors.Is(errRetry, notificationDomain.ErrNotFound) {
			return sharedUtils.Permanent(errRetry)
		}
		return errRetry
	})
	if err != nil {
		if errors.Is(err, notificationDomain.ErrNotFound) {
			s.log.Warn("Notification not found", zap.String("notification_id", id.String()))
		} else {
			s.log.Error("Failed to fetch notification", zap.String("notification_id", id.String()), zap.Error(err))
		}
		return nil, err
	}
	return n, nil
}

// loadVisible lee siempre del repositorio: las mutaciones no parten de la caché.
func (s *NotificationService) loadVisible(ctx context.Context, viewer notificationDomain.Viewer, id uuid.UUID) (*notificationDomain.Notification, error) {
	n, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !n.VisibleTo(viewer) {
		return nil, notificationDomain.ErrNotFound
	}
	return n, nil
}
