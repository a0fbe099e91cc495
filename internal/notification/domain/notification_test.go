package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
)

var t0 = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func newEmail(t *testing.T, recipient string) *Notification {
	t.Helper()
	n, err := NewNotification(NewNotificationParams{
		Channel:         ChannelEmail,
		EventType:       sharedEvents.PassportCreated,
		Title:           "t",
		Body:            "b",
		RecipientUserID: recipient,
		Now:             t0,
	})
	require.NoError(t, err)
	return n
}

func TestNewNotification_Defaults(t *testing.T) {
	// Arrange & Act
	n := newEmail(t, "u1")

	// Assert
	assert.Equal(t, StatusPending, n.Status)
	assert.Equal(t, PriorityMedium, n.Priority)
	assert.Equal(t, DefaultMaxRetries, n.MaxRetries)
	assert.True(t, n.IsActive)
	assert.Nil(t, n.SentAt)
	assert.NotNil(t, n.Metadata)
}

func TestNewNotification_NonEmailIsSent(t *testing.T) {
	n, err := NewNotification(NewNotificationParams{Channel: ChannelSystem, Title: "t", Body: "b", Now: t0})

	require.NoError(t, err)
	assert.Equal(t, StatusSent, n.Status)
	require.NotNil(t, n.SentAt)
	assert.Equal(t, t0, *n.SentAt)
}

func TestNewNotification_Validation(t *testing.T) {
	negative := -1
	tests := []struct {
		name   string
		params NewNotificationParams
	}{
		{"email sin destinatario", NewNotificationParams{Channel: ChannelEmail, Title: "t", Body: "b"}},
		{"sin título", NewNotificationParams{Channel: ChannelSystem, Body: "b"}},
		{"sin mensaje", NewNotificationParams{Channel: ChannelSystem, Title: "t", Body: "   "}},
		{"canal desconocido", NewNotificationParams{Channel: "sms", Title: "t", Body: "b"}},
		{"prioridad desconocida", NewNotificationParams{Channel: ChannelInfo, Title: "t", Body: "b", Priority: "urgent"}},
		{"maxRetries negativo", NewNotificationParams{Channel: ChannelInfo, Title: "t", Body: "b", MaxRetries: &negative}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewNotification(tt.params)
			assert.Nil(t, n)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}

func TestNewNotification_EmailByAddressOnly(t *testing.T) {
	n, err := NewNotification(NewNotificationParams{Channel: ChannelEmail, Title: "t", Body: "b", RecipientEmail: "a@b.test"})

	require.NoError(t, err)
	assert.Equal(t, StatusPending, n.Status)
}

func TestMarkFailed_RetryAccounting(t *testing.T) {
	n := newEmail(t, "u1")

	for i := 1; i <= DefaultMaxRetries; i++ {
		assert.True(t, n.MarkFailed(t0))
		assert.Equal(t, i, n.RetryCount)
	}

	assert.False(t, n.CanRetry())
	assert.True(t, n.IsFrozen())
	assert.False(t, n.MarkFailed(t0))
	assert.Equal(t, DefaultMaxRetries, n.RetryCount)
	assert.Equal(t, StatusFailed, n.Status)
}

func TestCanRetry(t *testing.T) {
	n := newEmail(t, "u1")
	assert.False(t, n.CanRetry(), "pending no es reintentable")

	n.MarkFailed(t0)
	assert.True(t, n.CanRetry())

	n.MarkSent(t0)
	assert.False(t, n.CanRetry())
	assert.Equal(t, 1, n.RetryCount, "MarkSent conserva el historial de intentos")
}

func TestMarkRead_Idempotent(t *testing.T) {
	n := newEmail(t, "u1")
	n.MarkSent(t0)

	n.MarkRead(t0.Add(time.Minute))
	first := *n.ReadAt
	n.MarkRead(t0.Add(time.Hour))

	assert.Equal(t, StatusRead, n.Status)
	assert.Equal(t, first, *n.ReadAt)
	assert.False(t, n.IsUnread())
}

func TestVisibleTo(t *testing.T) {
	owner := Viewer{UserID: "u1", Role: "user"}
	other := Viewer{UserID: "u2", Role: "user"}
	admin := Viewer{UserID: "a1", Role: RoleAdmin}

	email := newEmail(t, "u1")
	system, _ := NewNotification(NewNotificationParams{Channel: ChannelSystem, Title: "t", Body: "b"})

	assert.True(t, email.VisibleTo(owner))
	assert.True(t, email.VisibleTo(admin))
	assert.False(t, email.VisibleTo(other))
	assert.False(t, email.VisibleTo(Viewer{}))

	assert.True(t, system.VisibleTo(other))
	assert.True(t, system.VisibleTo(Viewer{}))

	email.SoftDelete(t0)
	assert.False(t, email.VisibleTo(owner))
	assert.False(t, email.VisibleTo(admin))
}

func TestClone_IsIndependent(t *testing.T) {
	n := newEmail(t, "u1")
	n.SetMeta("k", "v")
	n.MarkSent(t0)

	c := n.Clone()
	c.SetMeta("k", "changed")
	*c.SentAt = t0.Add(time.Hour)

	assert.Equal(t, "v", n.Metadata["k"])
	assert.Equal(t, t0, *n.SentAt)
}

func TestStatsCacheKey(t *testing.T) {
	assert.Equal(t, "notification:stats:g1:admin", StatsCacheKey("g1", Viewer{UserID: "a", Role: RoleAdmin}))
	assert.Equal(t, "notification:stats:g1:user:u1", StatsCacheKey("g1", Viewer{UserID: "u1"}))
}
