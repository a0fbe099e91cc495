package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/passport-notifier/internal/config"
	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
	infraEvents "github.com/davicafu/passport-notifier/internal/shared/infra/events"
	"github.com/davicafu/passport-notifier/pkg/logger"
)

const (
	exitOK        = 0
	exitFailed    = 1
	exitBadUsage  = 2
	connectBudget = 10 * time.Second
)

// emitter publica un único evento de dominio, como lo haría un servicio productor.
func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("emitter", flag.ContinueOnError)
	fs.SetOutput(stderr)
	eventType := fs.String("type", "", "event type, e.g. passport.created")
	payload := fs.String("payload", "{}", "event payload as a JSON object")
	topic := fs.String("topic", "", "destination topic (defaults to the event type)")
	strict := fs.Bool("strict", false, "exit non-zero when the event cannot be published")
	if err := fs.Parse(args); err != nil {
		return exitBadUsage
	}

	evt, err := parseEvent(*eventType, *payload, time.Now())
	if err != nil {
		fmt.Fprintf(stderr, "emitter: %v\n", err)
		return exitBadUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "emitter: %v\n", err)
		return exitFailed
	}
	logger.Init(cfg.Logging.Level)
	log := logger.Logger()
	defer log.Sync()

	if *topic == "" {
		*topic = evt.Type.String()
	}

	if err := publish(cfg.Kafka, *topic, evt, *strict, log); err != nil {
		log.Error("❌ Event not published", zap.String("event_type", evt.Type.String()), zap.Error(err))
		if *strict {
			return exitFailed
		}
	}
	return exitOK
}

// publish en modo estricto devuelve el error del broker; si no, emite best-effort
// y espera al envío en curso antes de salir.
func publish(cfg config.KafkaConfig, topic string, evt sharedEvents.DomainEvent, strict bool, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), connectBudget)
	defer cancel()

	conn := infraEvents.NewConnection(infraEvents.ConnectionConfig{
		Brokers:  cfg.BrokerList(),
		ClientID: cfg.ClientID,
	}, log)
	defer conn.Close()

	if err := conn.Connect(ctx); err != nil {
		return err
	}
	publisher := infraEvents.NewKafkaPublisher(conn.Writer(), cfg.PublishTimeout, nil, log)

	if strict {
		return publisher.Publish(ctx, topic, evt)
	}

	emitter := infraEvents.NewBestEffortPublisher(publisher, cfg.PublishTimeout, log)
	emitter.Emit(topic, evt)
	return emitter.Close(ctx)
}

func parseEvent(eventType, payload string, now time.Time) (sharedEvents.DomainEvent, error) {
	t, err := sharedEvents.ParseEventType(eventType)
	if err != nil {
		return sharedEvents.DomainEvent{}, err
	}

	fields := map[string]interface{}{}
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return sharedEvents.DomainEvent{}, fmt.Errorf("invalid -payload: %w", err)
	}
	if fields == nil {
		return sharedEvents.DomainEvent{}, fmt.Errorf("invalid -payload: expected a JSON object")
	}
	return sharedEvents.NewDomainEvent(t, fields, now), nil
}
