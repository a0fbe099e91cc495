package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/passport-notifier/internal/mocks"
	notificationDomain "github.com/davicafu/passport-notifier/internal/notification/domain"
	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
	"github.com/davicafu/passport-notifier/internal/shared/infra/observability"
)

func seedEmail(t *testing.T, repo *mocks.InMemoryNotificationRepo, email string) *notificationDomain.Notification {
	t.Helper()
	n, err := notificationDomain.NewNotification(notificationDomain.NewNotificationParams{
		Channel:         notificationDomain.ChannelEmail,
		EventType:       sharedEvents.PassportCreated,
		Title:           "New Battery Passport Created",
		Body:            "Battery Identifier: B-1",
		RecipientUserID: "u1",
		RecipientEmail:  email,
		Metadata:        map[string]interface{}{"passportId": "p1"},
	})
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), n))
	return n
}

func fileSinkReturning(path string, err error) *mocks.MockFileSink {
	sink := new(mocks.MockFileSink)
	sink.On("Write", mock.MatchedBy(func(name string) bool {
		return strings.HasPrefix(name, "notification-") && strings.HasSuffix(name, ".txt")
	}), mock.Anything).Return(path, err)
	return sink
}

func TestDeliver_FileFallbackSuccess(t *testing.T) {
	// Arrange
	repo := mocks.NewInMemoryNotificationRepo()
	recorder := &mocks.RecordingRecorder{}
	sink := fileSinkReturning("notifications/notification-x.txt", nil)
	engine := NewDeliveryEngine(DeliveryEngineDeps{Repo: repo, Sink: sink, Recorder: recorder, Metrics: observability.NewMetrics()}, 0, zap.NewNop())
	n := seedEmail(t, repo, "")

	// Act
	result, err := engine.Deliver(context.Background(), n)

	// Assert
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, notificationDomain.MethodFile, result.Method)

	stored := repo.Get(n.ID)
	assert.Equal(t, notificationDomain.StatusSent, stored.Status)
	assert.NotNil(t, stored.SentAt)
	assert.Equal(t, "notifications/notification-x.txt", stored.Metadata["logFilePath"])
	assert.Equal(t, 0, stored.RetryCount)

	records := recorder.All()
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.Equal(t, 1, records[0].Attempt)
	sink.AssertExpectations(t)
}

func TestDeliver_FileFailureCountsRetry(t *testing.T) {
	repo := mocks.NewInMemoryNotificationRepo()
	engine := NewDeliveryEngine(DeliveryEngineDeps{Repo: repo, Sink: fileSinkReturning("", errors.New("disk full"))}, 0, nil)
	n := seedEmail(t, repo, "")

	result, err := engine.Deliver(context.Background(), n)

	require.NoError(t, err)
	assert.False(t, result.Success)
	stored := repo.Get(n.ID)
	assert.Equal(t, notificationDomain.StatusFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, "disk full", stored.Metadata["lastError"])
}

func TestDeliver_MailSuccess(t *testing.T) {
	repo := mocks.NewInMemoryNotificationRepo()
	mail := new(mocks.MockMailTransport)
	mail.On("Send", mock.Anything, mock.MatchedBy(func(msg notificationDomain.MailMessage) bool {
		return msg.To == "ops@acme.test" && msg.Subject == "New Battery Passport Created"
	})).Return("<abc@passport>", nil)
	engine := NewDeliveryEngine(DeliveryEngineDeps{Repo: repo, Mail: mail}, time.Second, nil)
	n := seedEmail(t, repo, "ops@acme.test")

	result, err := engine.Deliver(context.Background(), n)

	require.NoError(t, err)
	assert.Equal(t, notificationDomain.MethodEmail, result.Method)
	stored := repo.Get(n.ID)
	assert.Equal(t, notificationDomain.StatusSent, stored.Status)
	assert.Equal(t, "<abc@passport>", stored.Metadata["emailMessageId"])
	mail.AssertExpectations(t)
}

func TestDeliver_RetriesFreezeAtMax(t *testing.T) {
	repo := mocks.NewInMemoryNotificationRepo()
	mail := new(mocks.MockMailTransport)
	mail.On("Send", mock.Anything, mock.Anything).Return("", errors.New("smtp 451"))
	engine := NewDeliveryEngine(DeliveryEngineDeps{Repo: repo, Mail: mail}, time.Second, nil)
	n := seedEmail(t, repo, "ops@acme.test")

	for i := 0; i < notificationDomain.DefaultMaxRetries+2; i++ {
		_, err := engine.Deliver(context.Background(), n)
		require.NoError(t, err)
	}

	stored := repo.Get(n.ID)
	assert.Equal(t, notificationDomain.StatusFailed, stored.Status)
	assert.Equal(t, notificationDomain.DefaultMaxRetries, stored.RetryCount)
	assert.False(t, stored.CanRetry())
	mail.AssertNumberOfCalls(t, "Send", notificationDomain.DefaultMaxRetries)
}

type blockingTransport struct{}

func (blockingTransport) Send(ctx context.Context, _ notificationDomain.MailMessage) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestDeliver_MailTimeoutIsAFailure(t *testing.T) {
	repo := mocks.NewInMemoryNotificationRepo()
	engine := NewDeliveryEngine(DeliveryEngineDeps{Repo: repo, Mail: blockingTransport{}}, 20*time.Millisecond, nil)
	n := seedEmail(t, repo, "ops@acme.test")

	result, err := engine.Deliver(context.Background(), n)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, context.DeadlineExceeded.Error())
	stored := repo.Get(n.ID)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, true, stored.Metadata["deliveryUncertain"])
}

func TestDeliver_FileFailureIsNotUncertain(t *testing.T) {
	repo := mocks.NewInMemoryNotificationRepo()
	engine := NewDeliveryEngine(DeliveryEngineDeps{Repo: repo, Sink: fileSinkReturning("", context.DeadlineExceeded)}, 0, nil)
	n := seedEmail(t, repo, "")

	_, err := engine.Deliver(context.Background(), n)

	require.NoError(t, err)
	assert.NotContains(t, repo.Get(n.ID).Metadata, "deliveryUncertain")
}

func TestDeliver_MailWithoutAddressFails(t *testing.T) {
	repo := mocks.NewInMemoryNotificationRepo()
	mail := new(mocks.MockMailTransport)
	engine := NewDeliveryEngine(DeliveryEngineDeps{Repo: repo, Mail: mail}, time.Second, nil)
	n := seedEmail(t, repo, "")

	result, err := engine.Deliver(context.Background(), n)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, notificationDomain.StatusFailed, repo.Get(n.ID).Status)
	mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDeliver_PersistFailureIsReturned(t *testing.T) {
	repo := mocks.NewInMemoryNotificationRepo()
	engine := NewDeliveryEngine(DeliveryEngineDeps{Repo: repo, Sink: fileSinkReturning("x.txt", nil)}, 0, nil)
	n := seedEmail(t, repo, "")
	repo.UpdateErr = errors.New("db down")

	result, err := engine.Deliver(context.Background(), n)

	assert.Error(t, err)
	assert.True(t, result.Success, "la entrega ocurrió aunque no se pudo persistir")
	assert.Equal(t, notificationDomain.StatusPending, repo.Get(n.ID).Status)
}

func TestDeliver_SkipsNonEmailAndDelivered(t *testing.T) {
	repo := mocks.NewInMemoryNotificationRepo()
	sink := new(mocks.MockFileSink)
	engine := NewDeliveryEngine(DeliveryEngineDeps{Repo: repo, Sink: sink}, 0, nil)

	system, _ := notificationDomain.NewNotification(notificationDomain.NewNotificationParams{
		Channel: notificationDomain.ChannelSystem, Title: "t", Body: "b",
	})
	sent := seedEmail(t, repo, "")
	sent.MarkSent(time.Now())

	r1, _ := engine.Deliver(context.Background(), system)
	r2, _ := engine.Deliver(context.Background(), sent)

	assert.False(t, r1.Attempted)
	assert.False(t, r2.Attempted)
	sink.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
}

func TestDeliverAsync_CloseDrains(t *testing.T) {
	repo := mocks.NewInMemoryNotificationRepo()
	engine := NewDeliveryEngine(DeliveryEngineDeps{Repo: repo, Sink: fileSinkReturning("x.txt", nil)}, 0, nil)
	n := seedEmail(t, repo, "")

	engine.DeliverAsync(n)
	require.NoError(t, engine.Close(context.Background()))

	assert.Equal(t, notificationDomain.StatusSent, repo.Get(n.ID).Status)
	assert.Equal(t, notificationDomain.StatusPending, n.Status, "el llamador conserva su copia")
}

func TestRedeliver(t *testing.T) {
	repo := mocks.NewInMemoryNotificationRepo()
	sink := new(mocks.MockFileSink)
	sink.On("Write", mock.Anything, mock.Anything).Return("", errors.New("disk full")).Once()
	sink.On("Write", mock.Anything, mock.Anything).Return("ok.txt", nil)
	engine := NewDeliveryEngine(DeliveryEngineDeps{Repo: repo, Sink: sink}, 0, nil)
	n := seedEmail(t, repo, "")

	// pending: no reintentable
	_, _, err := engine.Redeliver(context.Background(), n.ID)
	assert.ErrorIs(t, err, notificationDomain.ErrNotRetryable)

	_, err = engine.Deliver(context.Background(), n)
	require.NoError(t, err)

	got, result, err := engine.Redeliver(context.Background(), n.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, notificationDomain.StatusSent, got.Status)
	assert.Equal(t, 1, got.RetryCount)

	// El éxito limpia el rastro del intento fallido
	stored := repo.Get(n.ID)
	assert.NotContains(t, stored.Metadata, "lastError")
	assert.Equal(t, "ok.txt", stored.Metadata["logFilePath"])
}

func TestRedeliver_ClearsUncertainMailAttempt(t *testing.T) {
	repo := mocks.NewInMemoryNotificationRepo()
	engine := NewDeliveryEngine(DeliveryEngineDeps{Repo: repo, Mail: blockingTransport{}}, 20*time.Millisecond, nil)
	n := seedEmail(t, repo, "ops@acme.test")

	_, err := engine.Deliver(context.Background(), n)
	require.NoError(t, err)
	require.Equal(t, true, repo.Get(n.ID).Metadata["deliveryUncertain"])

	mail := new(mocks.MockMailTransport)
	mail.On("Send", mock.Anything, mock.Anything).Return("<retry@passport>", nil)
	retrying := NewDeliveryEngine(DeliveryEngineDeps{Repo: repo, Mail: mail}, time.Second, nil)

	got, result, err := retrying.Redeliver(context.Background(), n.ID)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotContains(t, got.Metadata, "lastError")
	assert.NotContains(t, got.Metadata, "deliveryUncertain")
	assert.Equal(t, "<retry@passport>", got.Metadata["emailMessageId"])
}

func TestFormatLogRecord(t *testing.T) {
	n, _ := notificationDomain.NewNotification(notificationDomain.NewNotificationParams{
		Channel:         notificationDomain.ChannelEmail,
		EventType:       sharedEvents.PassportDeleted,
		Title:           "Battery Passport Deleted",
		Body:            "gone",
		RecipientUserID: "u1",
		Priority:        notificationDomain.PriorityHigh,
		Metadata:        map[string]interface{}{"passportId": "p1"},
	})
	at := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

	content := string(FormatLogRecord(n, at))

	lines := strings.Split(content, "\n")
	assert.Equal(t, "Notification Log - Mon, 19 Oct 2026 09:30:00 UTC", lines[0])
	assert.Contains(t, content, "Event Type: passport.deleted\n")
	assert.Contains(t, content, "Type: email\n")
	assert.Contains(t, content, "Recipient: N/A\n")
	assert.Contains(t, content, "Status: logged_to_file\n")
	assert.Contains(t, content, "Priority: high\n")
	assert.Contains(t, content, "Metadata: {\n  \"passportId\": \"p1\"\n}")
	assert.True(t, strings.HasSuffix(content, "----------------------------------------------"))

	name := LogFileName(n, at)
	assert.Equal(t, "notification-2026-10-19T09-30-00.000Z-"+n.ID.String()[:8]+".txt", name)
}

func TestRenderMail(t *testing.T) {
	n, _ := notificationDomain.NewNotification(notificationDomain.NewNotificationParams{
		Channel:        notificationDomain.ChannelEmail,
		Title:          "Alert <script>",
		Body:           "line one\nline two",
		RecipientEmail: "ops@acme.test",
		Metadata:       map[string]interface{}{"passportId": "p1"},
	})

	msg, err := RenderMail(n, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, "ops@acme.test", msg.To)
	assert.Equal(t, "Alert <script>", msg.Subject)
	assert.Contains(t, msg.HTML, "Alert &lt;script&gt;")
	assert.Contains(t, msg.HTML, "line one<br>line two")
	assert.Contains(t, msg.HTML, "Details:")
	assert.Contains(t, msg.HTML, "&copy; 2026")
	assert.Equal(t, "Alert <script>\n\nline one\nline two\n\nDetails: {\n  \"passportId\": \"p1\"\n}", msg.Text)
}
