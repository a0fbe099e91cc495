package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davicafu/passport-notifier/internal/config"
	notificationApp "github.com/davicafu/passport-notifier/internal/notification/application"
	notificationDomain "github.com/davicafu/passport-notifier/internal/notification/domain"
	notificationEvents "github.com/davicafu/passport-notifier/internal/notification/infra/inbound/events"
	notificationHttp "github.com/davicafu/passport-notifier/internal/notification/infra/inbound/http"
	"github.com/davicafu/passport-notifier/internal/notification/infra/outbound/analytics/clickhouse"
	"github.com/davicafu/passport-notifier/internal/notification/infra/outbound/db/mongodb"
	"github.com/davicafu/passport-notifier/internal/notification/infra/outbound/db/relational"
	"github.com/davicafu/passport-notifier/internal/notification/infra/outbound/filesystem"
	"github.com/davicafu/passport-notifier/internal/notification/infra/outbound/mail"
	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
	"github.com/davicafu/passport-notifier/internal/shared/infra/auth"
	infraEvents "github.com/davicafu/passport-notifier/internal/shared/infra/events"
	"github.com/davicafu/passport-notifier/internal/shared/infra/observability"
	sharedBus "github.com/davicafu/passport-notifier/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/passport-notifier/internal/shared/infra/platform/cache"
	"github.com/davicafu/passport-notifier/pkg/logger"
)

const closeTimeout = 10 * time.Second

// ---------------- Main ----------------
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level) // inicializa zap
	log := logger.Logger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	// ---------------- DB ----------------
	repo, closeStore, err := openStore(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("failed to open notification store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}

	// ---------------- Cache ----------------
	cacheInstance := openCache(ctx, cfg.Redis, log)

	// -------------- Delivery --------------
	deps := notificationApp.DeliveryEngineDeps{
		Repo:    repo,
		Sink:    filesystem.NewNotificationLogSink(cfg.Notifications.LogPath),
		Cache:   cacheInstance,
		Metrics: metrics,
	}
	if cfg.EmailEnabled() {
		deps.Mail = mail.NewSMTPTransport(mail.Config{
			Host:      cfg.SMTP.Host,
			Port:      cfg.SMTP.Port,
			Username:  cfg.SMTP.Username,
			Password:  cfg.SMTP.Password,
			FromName:  cfg.SMTP.FromName,
			FromEmail: cfg.SMTP.FromEmail,
			UseSSL:    cfg.SMTP.UseSSL,
		}, log)
		log.Info("📧 Email notifications enabled", zap.String("host", cfg.SMTP.Host))
	} else {
		log.Info("📁 Email disabled, notifications go to log files", zap.String("dir", cfg.Notifications.LogPath))
	}

	serviceOpts := notificationApp.ServiceOptions{MaxRetries: cfg.Notifications.MaxRetries}
	var deliveryLog *clickhouse.DeliveryLogRepo
	var recorder *clickhouse.BatchRecorder
	if cfg.ClickHouse.Addr != "" {
		deliveryLog, err = openDeliveryLog(ctx, cfg.ClickHouse)
		if err != nil {
			log.Warn("⚠️ ClickHouse no disponible, analítica deshabilitada", zap.Error(err))
		} else {
			recorder = clickhouse.NewBatchRecorder(deliveryLog, cfg.ClickHouse.BatchSize, cfg.ClickHouse.FlushInterval, log)
			deps.Recorder = recorder
			serviceOpts.Analytics = deliveryLog
			log.Info("✅ ClickHouse conectado, analítica de entregas habilitada")
		}
	}

	engine := notificationApp.NewDeliveryEngine(deps, cfg.Notifications.MailTimeout, log)

	// --------------- Servicio --------------
	notificationService := notificationApp.NewNotificationService(repo, engine, cacheInstance, serviceOpts, log)

	dispatcher := notificationEvents.NewDispatcher(metrics, log)
	notificationEvents.NewNotificationHandlers(notificationService, notificationEvents.HandlerOptions{
		FallbackEmail: cfg.Notifications.EventRecipient,
		MailEnabled:   cfg.EmailEnabled(),
	}, log).RegisterAll(dispatcher)

	// ---------------- Events ---------------
	var publisher sharedBus.EventPublisher
	var sources []infraEvents.MessageSource
	var conn *infraEvents.Connection

	if cfg.Kafka.Enabled {
		log.Info("🚀 Usando Kafka como bus de eventos", zap.Strings("brokers", cfg.Kafka.BrokerList()))

		conn = infraEvents.NewConnection(infraEvents.ConnectionConfig{
			Brokers:  cfg.Kafka.BrokerList(),
			ClientID: cfg.Kafka.ClientID,
		}, log)
		if err := conn.Connect(ctx); err != nil {
			log.Fatal("failed to connect to Kafka", zap.Error(err))
		}
		publisher = infraEvents.NewKafkaPublisher(conn.Writer(), cfg.Kafka.PublishTimeout, metrics, log)

		for i := 0; i < cfg.Kafka.Members; i++ {
			reader, err := conn.NewReader(cfg.Kafka.TopicList(), cfg.Kafka.GroupID)
			if err != nil {
				log.Fatal("failed to create Kafka reader", zap.Error(err))
			}
			sources = append(sources, reader)
		}
	} else {
		log.Info("⚡️ Usando bus de eventos en memoria (canales de Go)")

		bus := infraEvents.NewInMemoryEventBus()
		publisher = bus
		sources = subscribeInMemory(bus, cfg.Kafka)
	}

	emitter := infraEvents.NewBestEffortPublisher(publisher, cfg.Kafka.PublishTimeout, log)
	consumer := infraEvents.NewConsumerAdapter(sources, dispatcher, infraEvents.ConsumerOptions{
		HandlerTimeout: cfg.Kafka.HandlerTimeout,
		ShutdownGrace:  cfg.Kafka.ShutdownGrace,
	}, log)

	// ---------------- HTTP ----------------
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), metrics.GinMiddleware())

	resolver := buildResolver(cfg.Auth, log)
	notificationHttp.RegisterNotificationRoutes(router,
		notificationHttp.NewNotificationHandler(notificationService, log),
		auth.GinMiddleware(resolver, log))
	notificationHttp.RegisterOpsRoutes(router, cfg.EmailEnabled(), metrics.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// ---------------- Run ----------------
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		if recorder != nil {
			_ = recorder.Run(recorderCtx)
		}
	}()

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.Run(consumerCtx)
	})
	g.Go(func() error {
		log.Info("🚀 Server running", zap.String("url", "http://localhost:"+cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("🛑 Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP shutdown incomplete", zap.Error(err))
		}
		stopConsumer()
		return nil
	})

	emitter.Emit(string(sharedEvents.GeneralInfo), sharedEvents.NewDomainEvent(sharedEvents.GeneralInfo, map[string]interface{}{
		"title":   "Notification service started",
		"message": fmt.Sprintf("%s is accepting events", cfg.Service.Name),
	}, time.Now()))

	if err := g.Wait(); err != nil {
		log.Error("❌ Service stopped with error", zap.Error(err))
	}

	// ---------------- Shutdown ----------------
	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	parts := shutdownParts{
		Emitter: emitter,
		Engine:  engine,
		StopRecorder: func(context.Context) error {
			stopRecorder()
			<-recorderDone
			return nil
		},
		Store: closeStore,
		Cache: cacheInstance,
	}
	if conn != nil {
		parts.Transport = conn
	}
	if deliveryLog != nil {
		parts.DeliveryLog = deliveryLog
	}
	runShutdown(closeCtx, shutdownPlan(parts), log)

	log.Info("👋 Bye")
}

// subscribeInMemory aplica al bus en memoria la misma lista de topics que al grupo de Kafka.
func subscribeInMemory(bus *infraEvents.InMemoryEventBus, cfg config.KafkaConfig) []infraEvents.MessageSource {
	return []infraEvents.MessageSource{bus.Subscribe(100, cfg.TopicList()...)}
}

// buildResolver valida primero con el secreto local y, si hay auth.service_url,
// delega después en el servicio de autenticación.
func buildResolver(cfg config.AuthConfig, log *zap.Logger) auth.Resolver {
	local := auth.NewJWTResolver(cfg.JWTSecret, cfg.Issuer, cfg.TokenTTL)
	if cfg.ServiceURL == "" {
		return local
	}
	remote, err := auth.NewProfileResolver(cfg.ServiceURL, cfg.ServiceTimeout)
	if err != nil {
		log.Warn("⚠️ Auth service url inválida, sólo se valida el JWT local", zap.Error(err))
		return local
	}
	log.Info("🔐 Validación remota de tokens habilitada", zap.String("url", cfg.ServiceURL))
	return auth.Chain{local, remote}
}

// openStore elige el adapter de persistencia según storage.driver.
func openStore(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (notificationDomain.NotificationRepository, func(context.Context) error, error) {
	if cfg.Driver == "mongodb" {
		client, err := mongodb.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		repo, err := mongodb.NewNotificationRepoMongoDB(ctx, client, cfg.MongoDatabase)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Warn("failed to ensure MongoDB indexes", zap.Error(err))
		}
		log.Info("✅ MongoDB conectado", zap.String("database", cfg.MongoDatabase))
		return repo, client.Disconnect, nil
	}

	dialect, err := relational.DialectFor(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}
	db, err := relational.Open(ctx, dialect, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	log.Info("✅ Base de datos conectada", zap.String("driver", dialect.Name))
	return relational.NewNotificationRepoSQL(db, dialect), func(context.Context) error { return db.Close() }, nil
}

// openCache usa Redis si responde; si no, caché en memoria.
func openCache(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) sharedCache.Cache {
	if cfg.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
		redisCache := sharedCache.NewRedisCache(rdb, cfg.CacheTTL).WithPrefix(cfg.KeyPrefix)
		err := redisCache.Ping(ctx)
		if err == nil {
			log.Info("✅ Redis conectado, cache habilitado")
			return redisCache
		}
		log.Warn("⚠️ Redis no disponible, cache en memoria", zap.Error(err))
		_ = redisCache.Close()
	}
	return sharedCache.NewInMemoryCache(cfg.CacheTTL, 3*cfg.CacheTTL)
}

func openDeliveryLog(ctx context.Context, cfg config.ClickHouseConfig) (*clickhouse.DeliveryLogRepo, error) {
	repo, err := clickhouse.NewDeliveryLogRepo(ctx, clickhouse.Options{
		Addr:     cfg.Addr,
		Database: cfg.Database,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, err
	}
	if err := repo.InitSchema(ctx); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return repo, nil
}
