package domain

import (
	shared "github.com/davicafu/passport-notifier/internal/shared/domain"
)

// --- Criterios Específicos para el Dominio Notification ---

// Nombres neutrales de campo; cada repositorio los traduce a su esquema.
const (
	FieldIsActive        = "is_active"
	FieldStatus          = "status"
	FieldChannel         = "channel"
	FieldRecipientUserID = "recipient_user_id"
	FieldCreatedAt       = "created_at"
)

// ActiveCriteria excluye las notificaciones borradas.
type ActiveCriteria struct{}

func (ActiveCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: FieldIsActive, Op: shared.OpEq, Value: true}}
}

type StatusCriteria struct {
	Status Status
}

func (c StatusCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: FieldStatus, Op: shared.OpEq, Value: string(c.Status)}}
}

type ChannelCriteria struct {
	Channel Channel
}

func (c ChannelCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: FieldChannel, Op: shared.OpEq, Value: string(c.Channel)}}
}

// -----------------------------------------------------------

// VisibleToCriteria traduce Notification.VisibleTo a condiciones de consulta.
type VisibleToCriteria struct {
	Viewer Viewer
}

func (c VisibleToCriteria) ToConditions() []shared.Criterion {
	conds := ActiveCriteria{}.ToConditions()
	if c.Viewer.IsAdmin() {
		return conds
	}
	if c.Viewer.UserID == "" {
		return append(conds, shared.Criterion{Field: FieldChannel, Op: shared.OpNe, Value: string(ChannelEmail)})
	}
	return append(conds, shared.AnyOf(
		shared.Criterion{Field: FieldRecipientUserID, Op: shared.OpEq, Value: c.Viewer.UserID},
		shared.Criterion{Field: FieldChannel, Op: shared.OpNe, Value: string(ChannelEmail)},
	))
}

// ListFilter son los filtros opcionales del listado.
type ListFilter struct {
	Status  Status
	Channel Channel
}

// ListCriteria combina visibilidad y filtros.
func ListCriteria(v Viewer, f ListFilter) shared.Criteria {
	crits := []shared.Criteria{VisibleToCriteria{Viewer: v}}
	if f.Status != "" {
		crits = append(crits, StatusCriteria{Status: f.Status})
	}
	if f.Channel != "" {
		crits = append(crits, ChannelCriteria{Channel: f.Channel})
	}
	return shared.And(crits...)
}
