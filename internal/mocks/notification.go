package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	notificationDomain "github.com/davicafu/passport-notifier/internal/notification/domain"
	sharedDomain "github.com/davicafu/passport-notifier/internal/shared/domain"
	sharedQuery "github.com/davicafu/passport-notifier/internal/shared/infra/platform/query"
)

// InMemoryNotificationRepo simula NotificationRepository. Guarda y devuelve copias,
// como haría una base de datos real.
type InMemoryNotificationRepo struct {
	Notifications map[uuid.UUID]*notificationDomain.Notification
	Creates       int
	Updates       int
	// UpdateErr, si se fija, se devuelve en cada Update.
	UpdateErr error
	mu        sync.Mutex
}

// Verificación estática
var _ notificationDomain.NotificationRepository = (*InMemoryNotificationRepo)(nil)

func NewInMemoryNotificationRepo() *InMemoryNotificationRepo {
	return &InMemoryNotificationRepo{
		Notifications: make(map[uuid.UUID]*notificationDomain.Notification),
	}
}

// --- Implementación de la interfaz NotificationRepository ---

func (r *InMemoryNotificationRepo) Create(ctx context.Context, n *notificationDomain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Notifications[n.ID]; ok {
		return fmt.Errorf("notification %s already exists", n.ID)
	}
	r.Notifications[n.ID] = n.Clone()
	r.Creates++
	return nil
}

func (r *InMemoryNotificationRepo) GetByID(ctx context.Context, id uuid.UUID) (*notificationDomain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.Notifications[id]
	if !ok {
		return nil, notificationDomain.ErrNotFound
	}
	return n.Clone(), nil
}

func (r *InMemoryNotificationRepo) Update(ctx context.Context, n *notificationDomain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	if _, ok := r.Notifications[n.ID]; !ok {
		return notificationDomain.ErrNotFound
	}
	r.Notifications[n.ID] = n.Clone()
	r.Updates++
	return nil
}

func (r *InMemoryNotificationRepo) List(
	ctx context.Context,
	criteria sharedDomain.Criteria,
	pagination sharedQuery.OffsetPagination,
	sorts sharedQuery.Sort,
) ([]*notificationDomain.Notification, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.filter(criteria)

	// Ordenar
	sort.SliceStable(list, func(i, j int) bool {
		return compareNotifications(list[i], list[j], sorts.Field, sorts.Desc)
	})

	// Paginar
	total := len(list)
	start := pagination.Offset
	if start > total {
		return []*notificationDomain.Notification{}, total, nil
	}
	end := total
	if pagination.Limit > 0 && start+pagination.Limit < total {
		end = start + pagination.Limit
	}

	out := make([]*notificationDomain.Notification, 0, end-start)
	for _, n := range list[start:end] {
		out = append(out, n.Clone())
	}
	return out, total, nil
}

func (r *InMemoryNotificationRepo) CountByStatus(ctx context.Context, criteria sharedDomain.Criteria) (map[notificationDomain.Status]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[notificationDomain.Status]int)
	for _, n := range r.filter(criteria) {
		counts[n.Status]++
	}
	return counts, nil
}

// Get devuelve el registro almacenado sin pasar por la interfaz (para asserts).
func (r *InMemoryNotificationRepo) Get(id uuid.UUID) *notificationDomain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Notifications[id].Clone()
}

// All devuelve todas las notificaciones almacenadas.
func (r *InMemoryNotificationRepo) All() []*notificationDomain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*notificationDomain.Notification, 0, len(r.Notifications))
	for _, n := range r.Notifications {
		out = append(out, n.Clone())
	}
	return out
}

// --- Lógica de filtrado y ordenamiento del mock ---

func (r *InMemoryNotificationRepo) filter(criteria sharedDomain.Criteria) []*notificationDomain.Notification {
	var conds []sharedDomain.Criterion
	if criteria != nil {
		conds = criteria.ToConditions()
	}
	var list []*notificationDomain.Notification
	for _, n := range r.Notifications {
		if matchAll(n, conds) {
			list = append(list, n)
		}
	}
	return list
}

func matchAll(n *notificationDomain.Notification, conds []sharedDomain.Criterion) bool {
	for _, cond := range conds {
		if !matchCriterion(n, cond) {
			return false // Si una condición no coincide, el registro no pasa el filtro
		}
	}
	return true
}

func matchCriterion(n *notificationDomain.Notification, cond sharedDomain.Criterion) bool {
	if cond.Op == sharedDomain.OpAnyOf {
		for _, alt := range cond.Any {
			if matchCriterion(n, alt) {
				return true
			}
		}
		return false
	}

	var actual string
	switch strings.ToLower(cond.Field) {
	case notificationDomain.FieldIsActive:
		actual = fmt.Sprintf("%v", n.IsActive)
	case notificationDomain.FieldStatus:
		actual = string(n.Status)
	case notificationDomain.FieldChannel:
		actual = string(n.Channel)
	case notificationDomain.FieldRecipientUserID:
		actual = n.RecipientUserID
	default:
		return false
	}

	expected := fmt.Sprintf("%v", cond.Value)
	switch cond.Op {
	case sharedDomain.OpEq:
		return actual == expected
	case sharedDomain.OpNe:
		return actual != expected
	default:
		return false
	}
}

func compareNotifications(a, b *notificationDomain.Notification, field string, desc bool) bool {
	var result bool
	switch strings.ToLower(field) {
	case "status":
		result = a.Status < b.Status
	case "created_at":
		if a.CreatedAt.Equal(b.CreatedAt) {
			result = a.ID.String() < b.ID.String()
		} else {
			result = a.CreatedAt.Before(b.CreatedAt)
		}
	default: // Orden por defecto
		result = a.ID.String() < b.ID.String()
	}
	if desc {
		return !result
	}
	return result
}
