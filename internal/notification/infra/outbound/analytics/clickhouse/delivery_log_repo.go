package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	notificationDomain "github.com/davicafu/passport-notifier/internal/notification/domain"
)

type Options struct {
	Addr     string
	Database string
	Username string
	Password string
}

// DeliveryLogRepo guarda un registro por intento de entrega y sirve la tendencia diaria.
type DeliveryLogRepo struct {
	db *sql.DB
}

// Verificación estática de la interfaz.
var (
	_ notificationDomain.DeliveryRecorder  = (*DeliveryLogRepo)(nil)
	_ notificationDomain.DeliveryAnalytics = (*DeliveryLogRepo)(nil)
)

// NewDeliveryLogRepo es el constructor.
func NewDeliveryLogRepo(ctx context.Context, opts Options) (*DeliveryLogRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
	})

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}

	return &DeliveryLogRepo{db: conn}, nil
}

func (r *DeliveryLogRepo) Close() error { return r.db.Close() }

// Record inserta un único intento.
func (r *DeliveryLogRepo) Record(ctx context.Context, rec notificationDomain.DeliveryRecord) error {
	return r.LogBatch(ctx, []notificationDomain.DeliveryRecord{rec})
}

// LogBatch inserta un lote de intentos. ClickHouse funciona mejor con inserciones en lotes.
func (r *DeliveryLogRepo) LogBatch(ctx context.Context, recs []notificationDomain.DeliveryRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO notification_deliveries (notification_id, event_type, channel, method, success, attempt, duration_ms, event_time)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(
			ctx,
			rec.NotificationID,
			rec.EventType,
			string(rec.Channel),
			rec.Method,
			boolToUInt8(rec.Success),
			uint32(rec.Attempt),
			uint64(rec.Duration.Milliseconds()),
			rec.At,
		); err != nil {
			// Si un registro falla, se descarta el lote entero.
			tx.Rollback()
			return fmt.Errorf("failed to exec statement for notification %s: %w", rec.NotificationID, err)
		}
	}

	return tx.Commit()
}

func (r *DeliveryLogRepo) GetDailyTrend(ctx context.Context, start, end time.Time) ([]notificationDomain.DailyDeliveryTrend, error) {
	query := `
		SELECT
			toStartOfDay(event_time) AS day,
			countIf(success = 1) AS sent,
			countIf(success = 0) AS failed
		FROM notification_deliveries
		WHERE event_time BETWEEN ? AND ?
		GROUP BY day
		ORDER BY day
	`
	rows, err := r.db.QueryContext(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trends []notificationDomain.DailyDeliveryTrend
	for rows.Next() {
		var trend notificationDomain.DailyDeliveryTrend
		var sent, failed uint64
		if err := rows.Scan(&trend.Day, &sent, &failed); err != nil {
			return nil, err
		}
		trend.Sent, trend.Failed = int(sent), int(failed)
		trends = append(trends, trend)
	}
	return trends, rows.Err()
}

// InitSchema crea la tabla en ClickHouse si no existe.
// Se particiona por mes y se ordena por los campos habituales de consulta.
func (r *DeliveryLogRepo) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS notification_deliveries (
			notification_id UUID,
			event_type      String,
			channel         LowCardinality(String),
			method          LowCardinality(String),
			success         UInt8,
			attempt         UInt32,
			duration_ms     UInt64,
			event_time      DateTime64(3)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(event_time)
		ORDER BY (event_type, event_time);
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
