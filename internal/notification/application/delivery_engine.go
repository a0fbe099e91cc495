package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	notificationDomain "github.com/davicafu/passport-notifier/internal/notification/domain"
	"github.com/davicafu/passport-notifier/internal/shared/infra/observability"
	sharedCache "github.com/davicafu/passport-notifier/internal/shared/infra/platform/cache"
)

const (
	DefaultMailTimeout  = 10 * time.Second
	asyncDeliveryBudget = 30 * time.Second
)

var errNoRecipientEmail = errors.New("no recipient email address")

// DeliveryResult resume un intento.
type DeliveryResult struct {
	Attempted bool
	Method    string
	Success   bool
	MessageID string
	FilePath  string
	Error     string
}

type DeliveryEngineDeps struct {
	Repo     notificationDomain.NotificationRepository
	Mail     notificationDomain.MailTransport // nil = volcado a fichero
	Sink     notificationDomain.FileSink
	Recorder notificationDomain.DeliveryRecorder
	Cache    sharedCache.Cache
	Metrics  *observability.Metrics
}

// DeliveryEngine ejecuta la máquina de estados pending → sent | failed.
type DeliveryEngine struct {
	repo        notificationDomain.NotificationRepository
	mail        notificationDomain.MailTransport
	sink        notificationDomain.FileSink
	recorder    notificationDomain.DeliveryRecorder
	cache       notificationCache
	metrics     *observability.Metrics
	mailTimeout time.Duration
	now         func() time.Time
	log         *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDeliveryEngine(deps DeliveryEngineDeps, mailTimeout time.Duration, log *zap.Logger) *DeliveryEngine {
	if log == nil {
		log = zap.NewNop()
	}
	if mailTimeout <= 0 {
		mailTimeout = DefaultMailTimeout
	}
	return &DeliveryEngine{
		repo:        deps.Repo,
		mail:        deps.Mail,
		sink:        deps.Sink,
		recorder:    deps.Recorder,
		cache:       notificationCache{cache: deps.Cache, log: log},
		metrics:     deps.Metrics,
		mailTimeout: mailTimeout,
		now:         time.Now,
		log:         log,
	}
}

// Method indica cómo se entregarán los emails con la configuración actual.
func (e *DeliveryEngine) Method() string {
	if e.mail == nil {
		return notificationDomain.MethodFile
	}
	return notificationDomain.MethodEmail
}

// Deliver intenta entregar n y persiste el resultado antes de volver. Un fallo de
// entrega es estado (failed), no error; el error se reserva para no poder persistirlo.
func (e *DeliveryEngine) Deliver(ctx context.Context, n *notificationDomain.Notification) (DeliveryResult, error) {
	if n.Channel != notificationDomain.ChannelEmail {
		return DeliveryResult{}, nil
	}
	switch {
	case n.Status == notificationDomain.StatusSent || n.Status == notificationDomain.StatusRead:
		return DeliveryResult{}, nil
	case n.Status == notificationDomain.StatusFailed && n.IsFrozen():
		e.log.Warn("Notification exhausted its retries, not attempting",
			zap.String("notification_id", n.ID.String()),
			zap.Int("retry_count", n.RetryCount))
		return DeliveryResult{}, nil
	}

	start := e.now()
	attempt := n.RetryCount + 1
	result := DeliveryResult{Attempted: true, Method: e.Method()}

	var err error
	if e.mail == nil {
		result.FilePath, err = e.writeLog(n, start)
	} else {
		result.MessageID, err = e.sendMail(ctx, n, start)
	}

	finished := e.now()
	if err != nil {
		result.Error = err.Error()
		n.SetMeta("lastError", err.Error())
		if e.mail != nil && errors.Is(err, context.DeadlineExceeded) {
			// El envío SMTP sigue en curso tras el timeout y puede llegar a salir.
			n.SetMeta("deliveryUncertain", true)
		}
		n.MarkFailed(finished)
		e.log.Error("❌ Notification delivery failed",
			zap.String("notification_id", n.ID.String()),
			zap.String("method", result.Method),
			zap.Int("retry_count", n.RetryCount),
			zap.Error(err))
	} else {
		result.Success = true
		n.DeleteMeta("lastError", "deliveryUncertain")
		if result.FilePath != "" {
			n.SetMeta("logFilePath", result.FilePath)
		}
		if result.MessageID != "" {
			n.SetMeta("emailMessageId", result.MessageID)
		}
		n.MarkSent(finished)
		e.log.Info("✅ Notification delivered",
			zap.String("notification_id", n.ID.String()),
			zap.String("method", result.Method),
			zap.String("file_path", result.FilePath),
			zap.String("message_id", result.MessageID))
	}

	outcome := observability.OutcomeOK
	if !result.Success {
		outcome = observability.OutcomeError
	}
	e.metrics.DeliveryAttempt(result.Method, outcome, finished.Sub(start))
	e.record(ctx, n, result, attempt, finished.Sub(start), finished)

	if perr := e.repo.Update(ctx, n); perr != nil {
		// El correo puede haber salido ya: el registro queda desfasado respecto a la realidad.
		e.log.Error("Failed to persist delivery outcome",
			zap.String("notification_id", n.ID.String()),
			zap.Bool("delivered", result.Success),
			zap.Error(perr))
		return result, fmt.Errorf("persist delivery outcome: %w", perr)
	}
	e.cache.invalidate(ctx, n.ID)

	return result, nil
}

// DeliverAsync entrega una copia de n en segundo plano. Close espera a que terminen.
func (e *DeliveryEngine) DeliverAsync(n *notificationDomain.Notification) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.log.Warn("Delivery engine closed, notification left pending",
			zap.String("notification_id", n.ID.String()))
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	pending := n.Clone()
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), asyncDeliveryBudget)
		defer cancel()
		if _, err := e.Deliver(ctx, pending); err != nil {
			e.log.Error("Async delivery failed", zap.String("notification_id", pending.ID.String()), zap.Error(err))
		}
	}()
}

// Redeliver es el reintento manual: sólo para registros failed con reintentos disponibles.
func (e *DeliveryEngine) Redeliver(ctx context.Context, id uuid.UUID) (*notificationDomain.Notification, DeliveryResult, error) {
	n, err := e.repo.GetByID(ctx, id)
	if err != nil {
		return nil, DeliveryResult{}, err
	}
	if !n.IsActive {
		return nil, DeliveryResult{}, notificationDomain.ErrNotFound
	}
	if !n.CanRetry() {
		return n, DeliveryResult{}, fmt.Errorf("%w: status %s, %d/%d attempts",
			notificationDomain.ErrNotRetryable, n.Status, n.RetryCount, n.MaxRetries)
	}
	result, err := e.Deliver(ctx, n)
	return n, result, err
}

// Close deja de aceptar entregas asíncronas y espera las pendientes.
func (e *DeliveryEngine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *DeliveryEngine) writeLog(n *notificationDomain.Notification, at time.Time) (string, error) {
	if e.sink == nil {
		return "", errors.New("no file sink configured")
	}
	return e.sink.Write(LogFileName(n, at), FormatLogRecord(n, at))
}

func (e *DeliveryEngine) sendMail(ctx context.Context, n *notificationDomain.Notification, at time.Time) (string, error) {
	if n.RecipientEmail == "" {
		return "", errNoRecipientEmail
	}
	msg, err := RenderMail(n, at)
	if err != nil {
		return "", err
	}

	mailCtx, cancel := context.WithTimeout(ctx, e.mailTimeout)
	defer cancel()
	return e.mail.Send(mailCtx, msg)
}

func (e *DeliveryEngine) record(ctx context.Context, n *notificationDomain.Notification, res DeliveryResult, attempt int, d time.Duration, at time.Time) {
	if e.recorder == nil {
		return
	}
	err := e.recorder.Record(ctx, notificationDomain.DeliveryRecord{
		NotificationID: n.ID,
		EventType:      string(n.EventType),
		Channel:        n.Channel,
		Method:         res.Method,
		Success:        res.Success,
		Attempt:        attempt,
		Duration:       d,
		At:             at.UTC(),
	})
	if err != nil {
		e.log.Warn("Delivery analytics record failed", zap.String("notification_id", n.ID.String()), zap.Error(err))
	}
}
