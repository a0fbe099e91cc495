package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrSourceClosed = errors.New("message source closed")

const (
	DefaultHandlerTimeout = 30 * time.Second
	DefaultShutdownGrace  = 10 * time.Second
	fetchRetryDelay       = 500 * time.Millisecond
)

// MessageSource es lo que necesita un miembro del grupo; *kafka.Reader lo cumple.
type MessageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Verificación estática
var _ MessageSource = (*kafka.Reader)(nil)

// MessageHandler procesa un mensaje ya leído. El error sólo se registra: el mensaje
// se confirma igualmente y no se vuelve a entregar.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg kafka.Message) error
}

type ConsumerOptions struct {
	HandlerTimeout time.Duration
	ShutdownGrace  time.Duration
}

// ConsumerAdapter es el "oído" que escucha en Kafka: un bucle por miembro del grupo.
type ConsumerAdapter struct {
	sources []MessageSource
	handler MessageHandler
	opts    ConsumerOptions
	log     *zap.Logger
}

func NewConsumerAdapter(sources []MessageSource, handler MessageHandler, opts ConsumerOptions, log *zap.Logger) *ConsumerAdapter {
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = DefaultHandlerTimeout
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = DefaultShutdownGrace
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ConsumerAdapter{sources: sources, handler: handler, opts: opts, log: log}
}

// Run bloquea hasta que ctx se cancela y todos los miembros han terminado.
// Los handlers en curso disponen de ShutdownGrace para acabar; después se cierran las fuentes.
func (c *ConsumerAdapter) Run(ctx context.Context) error {
	c.log.Info("🎧 Iniciando consumidor de eventos...", zap.Int("members", len(c.sources)))

	drainCtx, cancelDrain := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelDrain()

	stopped := make(chan struct{})
	var watcher sync.WaitGroup
	watcher.Add(1)
	go func() {
		defer watcher.Done()
		select {
		case <-ctx.Done():
		case <-stopped:
			return
		}
		timer := time.NewTimer(c.opts.ShutdownGrace)
		defer timer.Stop()
		select {
		case <-timer.C:
			c.log.Warn("Shutdown grace expired, cancelling in-flight handlers")
			cancelDrain()
		case <-stopped:
		}
	}()

	var g errgroup.Group
	for member, src := range c.sources {
		member, src := member, src
		g.Go(func() error {
			c.consume(ctx, drainCtx, member, src)
			return nil
		})
	}
	runErr := g.Wait()

	close(stopped)
	watcher.Wait()

	var closeErr error
	for _, src := range c.sources {
		if err := src.Close(); err != nil {
			closeErr = errors.Join(closeErr, err)
		}
	}

	c.log.Info("Consumidor de eventos detenido.")
	return errors.Join(runErr, closeErr)
}

func (c *ConsumerAdapter) consume(ctx, drainCtx context.Context, member int, src MessageSource) {
	log := c.log.With(zap.Int("member", member))

	for {
		msg, err := src.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, ErrSourceClosed) {
				return
			}
			log.Error("Error al leer mensaje de Kafka", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		if err := c.safeHandle(drainCtx, msg); err != nil {
			log.Error("Error processing message",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}

		if err := src.CommitMessages(drainCtx, msg); err != nil {
			log.Error("Error committing message",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
	}
}

func (c *ConsumerAdapter) safeHandle(parent context.Context, msg kafka.Message) (err error) {
	ctx, cancel := context.WithTimeout(parent, c.opts.HandlerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.handler.HandleMessage(ctx, msg)
}
