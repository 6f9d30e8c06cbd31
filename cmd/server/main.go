// Command server runs the shopkit process managers: the in-process event
// bus, the outbox relay, the timeout sweep and the ops HTTP server.
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
	biddingapp "github.com/shopkit/backend/internal/application/bidding"
	customerapp "github.com/shopkit/backend/internal/application/customer"
	eventapp "github.com/shopkit/backend/internal/application/event"
	identityapp "github.com/shopkit/backend/internal/application/identity"
	inventoryapp "github.com/shopkit/backend/internal/application/inventory"
	paymentapp "github.com/shopkit/backend/internal/application/payment"
	"github.com/shopkit/backend/internal/application/saga"
	shopapp "github.com/shopkit/backend/internal/application/shop"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/infrastructure/cache"
	"github.com/shopkit/backend/internal/infrastructure/config"
	"github.com/shopkit/backend/internal/infrastructure/event"
	"github.com/shopkit/backend/internal/infrastructure/logger"
	"github.com/shopkit/backend/internal/infrastructure/mail"
	"github.com/shopkit/backend/internal/infrastructure/messaging"
	"github.com/shopkit/backend/internal/infrastructure/persistence"
	"github.com/shopkit/backend/internal/infrastructure/persistence/models"
	"github.com/shopkit/backend/internal/infrastructure/resilience"
	"github.com/shopkit/backend/internal/infrastructure/scheduler"
	"github.com/shopkit/backend/internal/infrastructure/telemetry"
	"github.com/shopkit/backend/internal/interfaces/http/handler"
	"github.com/shopkit/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "shopkit: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	tel, err := setupTelemetry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer tel.shutdown(log)

	// Re-create the logger with the OTLP bridge once the provider exists.
	if tel.logs != nil && tel.logs.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: tel.logs,
			Level:          logger.ParseLevel(cfg.Log.Level),
		})
		bridged, err := logger.New(logCfg, otelCore)
		if err != nil {
			return fmt.Errorf("initialize bridged logger: %w", err)
		}
		log = bridged
	}
	log = log.With(zap.String("service", cfg.App.Name))

	log.Info("Starting shopkit backend",
		zap.String("version", version),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database,
		logger.NewGormLogger(log.Named("gorm"), logger.GormConfig{
			Level:         logger.GormLevel(cfg.Log.Level),
			SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
		}))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Database.Driver == config.DriverSQLite {
		// postgres schemas come from cmd/migrate
		if err := db.AutoMigrate(models.AllModels()...); err != nil {
			return fmt.Errorf("auto-migrate sqlite schema: %w", err)
		}
	}
	if err := tel.instrumentDB(ctx, cfg, db, log); err != nil {
		return err
	}
	log.Info("Database connected")

	// Events: in-process bus, transactional outbox, inline dispatch after commit.
	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	runner := event.QueueRunner{}
	bus := event.NewInMemoryEventBus(log.Named("bus"), event.WithRunner(runner))
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	dispatcher := event.NewCommittedEventDispatcher(bus, runner, outboxRepo, log.Named("dispatch"))
	unitOfWork := persistence.NewGormUnitOfWork(db.DB, event.NewOutboxPublisher(serializer), dispatcher, log)

	// Facades
	transport, err := mail.NewTransport(ctx, cfg, log)
	if err != nil {
		return err
	}
	renderer, err := customerapp.NewRenderer()
	if err != nil {
		return fmt.Errorf("load mail templates: %w", err)
	}
	facades := saga.Facades{
		Identity:  identityapp.NewFacade(unitOfWork, log.Named("identity")),
		Shop:      shopapp.NewFacade(unitOfWork, log.Named("shop")),
		Inventory: inventoryapp.NewFacade(unitOfWork, log.Named("inventory")),
		Customer:  customerapp.NewFacade(unitOfWork, transport, renderer, cfg.Mail.From, log.Named("customer")),
		Payment:   paymentapp.NewFacade(unitOfWork, log.Named("payment")),
		Bidding:   biddingapp.NewFacade(unitOfWork, log.Named("bidding")),
	}

	// Process managers
	procmans := persistence.NewGormProcessManagerRepository(db.DB)
	sagaMetrics, err := telemetry.NewSagaMetrics(telemetry.SagaMetricsConfig{
		Meter:        tel.meter("saga"),
		Logger:       log,
		StateCounter: procmans,
	})
	if err != nil {
		return fmt.Errorf("create saga metrics: %w", err)
	}
	sagaMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
	defer sagaMetrics.Stop()

	module := saga.NewModule(facades, procmans, saga.Config{
		Handler: saga.HandlerConfig{
			MaxRetries:   cfg.Saga.MaxRetries,
			RetryBackoff: cfg.Saga.RetryBackoff,
		},
		SweepBatch: cfg.Saga.SweepBatch,
	}, log.Named("saga"), saga.WithObserver(sagaMetrics))
	module.Bind(bus)

	// Optional Kafka stream of every posted event.
	idempotency, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).
		CreateStore(ctx, cfg.Event.IdempotencyStore)
	if err != nil {
		return err
	}
	defer func() {
		_ = idempotency.Close()
	}()
	if cfg.Event.KafkaEnabled {
		kafkaCfg := messaging.KafkaForwarderConfig{
			Brokers:      cfg.Event.KafkaBrokers,
			Topic:        cfg.Event.KafkaTopic,
			Source:       cfg.Event.KafkaEventSource,
			WriteTimeout: cfg.Event.KafkaWriteTimeout,
		}
		forwarder := messaging.NewKafkaEventForwarder(messaging.NewKafkaWriter(kafkaCfg), kafkaCfg,
			resilience.NewBreaker(resilience.DefaultBreakerConfig("kafka"), log), log.Named("kafka"))
		defer func() {
			if err := forwarder.Close(); err != nil {
				log.Error("Error closing kafka writer", zap.Error(err))
			}
		}()
		bus.SubscribeAll(event.NewIdempotentHandler("kafka", forwarder, idempotency, log,
			event.WithIdempotencyConfig(shared.IdempotencyConfig{TTL: cfg.Event.IdempotencyTTL, Enabled: true})))
		log.Info("Kafka forwarding enabled",
			zap.Strings("brokers", kafkaCfg.Brokers),
			zap.String("topic", kafkaCfg.Topic),
		)
	}

	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	defer func() {
		if err := bus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Relay for entries the inline dispatch did not acknowledge.
	if cfg.Event.ProcessorEnabled {
		relayCfg := event.DefaultOutboxProcessorConfig()
		relayCfg.BatchSize = cfg.Event.BatchSize
		relayCfg.PollInterval = cfg.Event.PollInterval
		relayCfg.GracePeriod = cfg.Event.GracePeriod
		relayCfg.CleanupEnabled = cfg.Event.CleanupEnabled
		relayCfg.CleanupRetention = cfg.Event.CleanupRetention
		relay := event.NewOutboxProcessor(outboxRepo, bus, serializer, relayCfg, log.Named("outbox"))
		relay.SetObserver(sagaMetrics)
		if err := relay.Start(ctx); err != nil {
			return fmt.Errorf("start outbox processor: %w", err)
		}
		defer func() {
			if err := relay.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
		log.Info("Outbox processor started",
			zap.Int("batch_size", relayCfg.BatchSize),
			zap.Duration("poll_interval", relayCfg.PollInterval),
		)
	}

	if cfg.Saga.SweepEnabled {
		sweep := scheduler.NewProcessManagerTimeoutScheduler(module.Timeouts, log.Named("timeouts"),
			scheduler.ProcessManagerTimeoutSchedulerConfig{
				Enabled:  true,
				Interval: cfg.Saga.SweepInterval,
			})
		if err := sweep.Start(ctx); err != nil {
			return fmt.Errorf("start timeout scheduler: %w", err)
		}
		defer func() {
			if err := sweep.Stop(context.Background()); err != nil {
				log.Error("Error stopping timeout scheduler", zap.Error(err))
			}
		}()
	}

	// Ops HTTP server
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		Profiling:      cfg.Telemetry.ProfilingEnabled,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Meter:          tel.meter("http.server"),
	}, log.Named("http"))
	if err != nil {
		return fmt.Errorf("build http engine: %w", err)
	}

	checks := map[string]handler.CheckFunc{"database": db.Ping}
	if pinger, ok := idempotency.(interface{ Ping(context.Context) error }); ok {
		checks["redis"] = pinger.Ping
	}
	handler.NewHealthHandler(version, 2*time.Second, checks, log).RegisterRoutes(engine)

	router.NewRouter(engine).
		Register(handler.NewProcmanHandler(saga.NewQueryService(procmans), log)).
		Register(handler.NewOutboxHandler(eventapp.NewOutboxService(outboxRepo, log), log)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Ops server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("ops server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited gracefully")
	return nil
}
