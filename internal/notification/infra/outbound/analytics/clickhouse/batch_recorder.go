package clickhouse

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	notificationDomain "github.com/davicafu/passport-notifier/internal/notification/domain"
)

type BatchWriter interface {
	LogBatch(ctx context.Context, recs []notificationDomain.DeliveryRecord) error
}

// BatchRecorder acumula registros en memoria y los vuelca por lotes, por tamaño o por intervalo.
type BatchRecorder struct {
	writer   BatchWriter
	size     int
	interval time.Duration
	log      *zap.Logger

	mu  sync.Mutex
	buf []notificationDomain.DeliveryRecord
}

// Verificación estática
var _ notificationDomain.DeliveryRecorder = (*BatchRecorder)(nil)

func NewBatchRecorder(writer BatchWriter, size int, interval time.Duration, log *zap.Logger) *BatchRecorder {
	if size <= 0 {
		size = 100
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BatchRecorder{writer: writer, size: size, interval: interval, log: log}
}

// Record nunca bloquea en la red salvo cuando el lote se llena.
func (b *BatchRecorder) Record(ctx context.Context, rec notificationDomain.DeliveryRecord) error {
	b.mu.Lock()
	b.buf = append(b.buf, rec)
	full := len(b.buf) >= b.size
	b.mu.Unlock()

	if full {
		return b.Flush(ctx)
	}
	return nil
}

// Flush escribe lo acumulado. Si falla, el lote se descarta.
func (b *BatchRecorder) Flush(ctx context.Context) error {
	b.mu.Lock()
	batch := b.buf
	b.buf = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := b.writer.LogBatch(ctx, batch); err != nil {
		b.log.Warn("Dropping delivery analytics batch", zap.Int("records", len(batch)), zap.Error(err))
		return err
	}
	return nil
}

// Run vuelca periódicamente hasta que ctx termina; entonces hace un último volcado.
func (b *BatchRecorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = b.Flush(flushCtx)
			return nil
		case <-ticker.C:
			_ = b.Flush(ctx)
		}
	}
}

func (b *BatchRecorder) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}
