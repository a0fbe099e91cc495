package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
)

var ErrConnectionClosed = errors.New("kafka connection closed")

type ConnectionConfig struct {
	Brokers     []string
	ClientID    string
	DialTimeout time.Duration
}

// Connection es el ciclo de vida explícito del cliente Kafka: conectar, entregar
// writer/readers y cerrarlo todo en orden. La posee el composition root.
type Connection struct {
	cfg    ConnectionConfig
	dialer *kafka.Dialer
	log    *zap.Logger

	mu      sync.Mutex
	writer  *kafka.Writer
	readers []*kafka.Reader
	closed  bool
}

func NewConnection(cfg ConnectionConfig, log *zap.Logger) *Connection {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Connection{
		cfg: cfg,
		dialer: &kafka.Dialer{
			ClientID: cfg.ClientID,
			Timeout:  cfg.DialTimeout,
		},
		log: log,
	}
}

// Connect comprueba que al menos un broker responde y prepara el writer compartido.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	if c.writer != nil {
		return nil
	}
	if len(c.cfg.Brokers) == 0 {
		return fmt.Errorf("%w: no brokers configured", sharedEvents.ErrTransport)
	}

	var dialErr error
	for _, broker := range c.cfg.Brokers {
		conn, err := c.dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			dialErr = errors.Join(dialErr, fmt.Errorf("%s: %w", broker, err))
			continue
		}
		_ = conn.Close()
		dialErr = nil
		break
	}
	if dialErr != nil {
		return fmt.Errorf("%w: %w", sharedEvents.ErrTransport, dialErr)
	}

	// Sin Topic: cada mensaje lleva el suyo (un topic por tipo de evento).
	c.writer = &kafka.Writer{
		Addr:                   kafka.TCP(c.cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Transport:              &kafka.Transport{ClientID: c.cfg.ClientID, DialTimeout: c.cfg.DialTimeout},
	}

	c.log.Info("✅ Kafka conectado", zap.Strings("brokers", c.cfg.Brokers))
	return nil
}

// Writer devuelve el writer compartido, o nil si aún no se ha conectado.
func (c *Connection) Writer() *kafka.Writer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writer
}

// NewReader crea un miembro del consumer group suscrito a todos los topics indicados.
// La conexión cierra los readers que entrega.
func (c *Connection) NewReader(topics []string, groupID string) (*kafka.Reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrConnectionClosed
	}
	if len(topics) == 0 || groupID == "" {
		return nil, fmt.Errorf("reader needs topics and a group id")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.cfg.Brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		Dialer:      c.dialer,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
		MaxWait:     time.Second,
		StartOffset: kafka.LastOffset,
	})
	c.readers = append(c.readers, reader)
	return reader, nil
}

// Close es idempotente.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs error
	for _, r := range c.readers {
		if err := r.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("closing reader: %w", err))
		}
	}
	c.readers = nil

	if c.writer != nil {
		if err := c.writer.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("closing writer: %w", err))
		}
		c.writer = nil
	}

	c.log.Info("Kafka desconectado")
	return errs
}
