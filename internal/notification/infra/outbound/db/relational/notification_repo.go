package relational

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	notificationDomain "github.com/davicafu/passport-notifier/internal/notification/domain"
	sharedDomain "github.com/davicafu/passport-notifier/internal/shared/domain"
	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
	sharedQuery "github.com/davicafu/passport-notifier/internal/shared/infra/platform/query"
	sharedUtils "github.com/davicafu/passport-notifier/internal/shared/infra/utils"
)

const selectColumns = `id, channel, event_type, title, message, recipient_user_id, recipient_email,
	priority, status, metadata, retry_count, max_retries, sent_at, read_at, is_active, created_at, updated_at`

// Campos neutrales que se pueden filtrar u ordenar; coinciden con las columnas.
var allowedFields = map[string]bool{
	notificationDomain.FieldIsActive:        true,
	notificationDomain.FieldStatus:          true,
	notificationDomain.FieldChannel:         true,
	notificationDomain.FieldRecipientUserID: true,
	notificationDomain.FieldCreatedAt:       true,
	"updated_at":                            true,
	"priority":                              true,
}

var allowedOps = map[sharedDomain.Operator]bool{
	sharedDomain.OpEq:  true,
	sharedDomain.OpNe:  true,
	sharedDomain.OpGt:  true,
	sharedDomain.OpGte: true,
	sharedDomain.OpLt:  true,
	sharedDomain.OpLte: true,
}

// NotificationRepoSQL implementa NotificationRepository para Postgres y SQLite.
type NotificationRepoSQL struct {
	db      *sql.DB
	dialect Dialect
}

// Verificación estática
var _ notificationDomain.NotificationRepository = (*NotificationRepoSQL)(nil)

func NewNotificationRepoSQL(db *sql.DB, dialect Dialect) *NotificationRepoSQL {
	return &NotificationRepoSQL{db: db, dialect: dialect}
}

// ------------------ Escritura ------------------

func (r *NotificationRepoSQL) Create(ctx context.Context, n *notificationDomain.Notification) error {
	meta, err := marshalMetadata(n.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, r.dialect.rebind(`
		INSERT INTO notifications (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		n.ID.String(), string(n.Channel), string(n.EventType), n.Title, n.Body, n.RecipientUserID, n.RecipientEmail,
		string(n.Priority), string(n.Status), r.dialect.jsonArg(meta), n.RetryCount, n.MaxRetries,
		nullTime(n.SentAt), nullTime(n.ReadAt), n.IsActive, n.CreatedAt.UTC(), n.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *NotificationRepoSQL) Update(ctx context.Context, n *notificationDomain.Notification) error {
	meta, err := marshalMetadata(n.Metadata)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`
		UPDATE notifications SET status=?, metadata=?, retry_count=?, max_retries=?, sent_at=?, read_at=?,
		       is_active=?, recipient_email=?, updated_at=?
		 WHERE id=?`),
		string(n.Status), r.dialect.jsonArg(meta), n.RetryCount, n.MaxRetries, nullTime(n.SentAt), nullTime(n.ReadAt),
		n.IsActive, n.RecipientEmail, n.UpdatedAt.UTC(), n.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		return notificationDomain.ErrNotFound
	}
	return nil
}

// ------------------ Lectura ------------------

func (r *NotificationRepoSQL) GetByID(ctx context.Context, id uuid.UUID) (*notificationDomain.Notification, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(`SELECT `+selectColumns+` FROM notifications WHERE id=?`), id.String())

	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notificationDomain.ErrNotFound
		}
		return nil, fmt.Errorf("db scan error: %w", err)
	}
	return n, nil
}

func (r *NotificationRepoSQL) List(
	ctx context.Context,
	criteria sharedDomain.Criteria,
	pagination sharedQuery.OffsetPagination,
	sort sharedQuery.Sort,
) ([]*notificationDomain.Notification, int, error) {
	whereSQL, args, err := buildWhere(criteria)
	if err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := r.dialect.rebind("SELECT COUNT(*) FROM notifications" + whereSQL)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db count error: %w", err)
	}

	if sort.Field == "" || !allowedFields[sort.Field] {
		sort = sharedQuery.NewestFirst
	}
	dir := sharedUtils.Ternary(sort.Desc, "DESC", "ASC")
	query := fmt.Sprintf("SELECT %s FROM notifications%s ORDER BY %s %s, id %s LIMIT ? OFFSET ?",
		selectColumns, whereSQL, sort.Field, dir, dir)

	limit := pagination.Limit
	if limit <= 0 {
		limit = sharedQuery.DefaultLimit
	}
	args = append(args, limit, pagination.Offset)

	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var list []*notificationDomain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("db scan error: %w", err)
		}
		list = append(list, n)
	}
	return list, total, rows.Err()
}

func (r *NotificationRepoSQL) CountByStatus(ctx context.Context, criteria sharedDomain.Criteria) (map[notificationDomain.Status]int, error) {
	whereSQL, args, err := buildWhere(criteria)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		r.dialect.rebind("SELECT status, COUNT(*) FROM notifications"+whereSQL+" GROUP BY status"), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	counts := make(map[notificationDomain.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[notificationDomain.Status(status)] = count
	}
	return counts, rows.Err()
}

// ------------------ Helpers ------------------

// buildWhere traduce criterios a SQL con placeholders ?. Los grupos AnyOf se
// anidan entre paréntesis con OR.
func buildWhere(criteria sharedDomain.Criteria) (string, []interface{}, error) {
	if criteria == nil {
		return "", nil, nil
	}
	conds := criteria.ToConditions()
	if len(conds) == 0 {
		return "", nil, nil
	}

	var clauses []string
	var args []interface{}
	for _, c := range conds {
		clause, condArgs, err := buildCondition(c)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
		args = append(args, condArgs...)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func buildCondition(c sharedDomain.Criterion) (string, []interface{}, error) {
	if c.Op == sharedDomain.OpAnyOf {
		if len(c.Any) == 0 {
			return "1=0", nil, nil
		}
		var parts []string
		var args []interface{}
		for _, alt := range c.Any {
			part, altArgs, err := buildCondition(alt)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, part)
			args = append(args, altArgs...)
		}
		return "(" + strings.Join(parts, " OR ") + ")", args, nil
	}

	if !allowedFields[c.Field] {
		return "", nil, fmt.Errorf("unsupported filter field %q", c.Field)
	}
	if !allowedOps[c.Op] {
		return "", nil, fmt.Errorf("unsupported filter operator %q", c.Op)
	}
	return fmt.Sprintf("%s %s ?", c.Field, c.Op), []interface{}{c.Value}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*notificationDomain.Notification, error) {
	var n notificationDomain.Notification
	var channel, eventType, priority, status string
	var meta []byte
	var sentAt, readAt sql.NullTime
	if err := row.Scan(
		&n.ID, &channel, &eventType, &n.Title, &n.Body, &n.RecipientUserID, &n.RecipientEmail,
		&priority, &status, &meta, &n.RetryCount, &n.MaxRetries, &sentAt, &readAt, &n.IsActive,
		&n.CreatedAt, &n.UpdatedAt,
	); err != nil {
		return nil, err
	}

	n.Channel = notificationDomain.Channel(channel)
	n.EventType = sharedEvents.EventType(eventType)
	n.Priority = notificationDomain.Priority(priority)
	n.Status = notificationDomain.Status(status)
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	n.SentAt = timePtr(sentAt)
	n.ReadAt = timePtr(readAt)

	n.Metadata = map[string]interface{}{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &n.Metadata); err != nil {
			return nil, fmt.Errorf("invalid JSON metadata in row %s: %w", n.ID, err)
		}
	}
	return &n, nil
}

func marshalMetadata(meta map[string]interface{}) ([]byte, error) {
	if meta == nil {
		meta = map[string]interface{}{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return raw, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
