package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	notificationDomain "github.com/davicafu/passport-notifier/internal/notification/domain"
	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
)

// MockMailTransport simula el envío SMTP.
type MockMailTransport struct {
	mock.Mock
}

func (m *MockMailTransport) Send(ctx context.Context, msg notificationDomain.MailMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

// MockFileSink simula el volcado a fichero.
type MockFileSink struct {
	mock.Mock
}

func (m *MockFileSink) Write(name string, content []byte) (string, error) {
	args := m.Called(name, content)
	return args.String(0), args.Error(1)
}

// MockPublisher simula un publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, evt sharedEvents.DomainEvent) error {
	args := m.Called(ctx, topic, evt)
	return args.Error(0)
}

// RecordingRecorder guarda los intentos de entrega en memoria.
type RecordingRecorder struct {
	mu      sync.Mutex
	Records []notificationDomain.DeliveryRecord
}

func (r *RecordingRecorder) Record(ctx context.Context, rec notificationDomain.DeliveryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Records = append(r.Records, rec)
	return nil
}

func (r *RecordingRecorder) All() []notificationDomain.DeliveryRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notificationDomain.DeliveryRecord(nil), r.Records...)
}

// Verificación estática
var (
	_ notificationDomain.MailTransport    = (*MockMailTransport)(nil)
	_ notificationDomain.FileSink         = (*MockFileSink)(nil)
	_ notificationDomain.DeliveryRecorder = (*RecordingRecorder)(nil)
)
