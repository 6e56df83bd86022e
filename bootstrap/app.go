// Package bootstrap wires configuration, storage, and the engines into a
// runnable application. main stays a thin shell around App.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"vigil/alerting"
	"vigil/config"
	"vigil/correlate"
	"vigil/detect"
	"vigil/escalate"
	"vigil/notify"
	"vigil/service"
	"vigil/storage"
)

// App holds every long-lived component of the engine
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	Events storage.EventRepository
	Alerts storage.AlertRepository

	Queue        *notify.Queue
	Materializer *alerting.Materializer
	Detection    *detect.Engine
	Correlation  *correlate.Engine
	Escalation   *escalate.Monitor
	Scheduler    *service.Scheduler

	mongoClient *mongo.Client
	redisClient *redis.Client
	shutdownCh  chan struct{}
}

// NewApp loads configuration and initializes all components without starting
// any background work
func NewApp(ctx context.Context) (*App, error) {
	app := &App{shutdownCh: make(chan struct{})}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	logger, err := initLogger(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = logger.Sugar()
	app.Sugar.Infow("Vigil starting", "storage", cfg.Storage.Backend)

	if err := app.initStorage(ctx); err != nil {
		return nil, err
	}

	app.Queue = notify.NewQueue(cfg.Notifications.QueueSize, app.Sugar)
	app.Materializer = alerting.NewMaterializer(app.Alerts, app.Queue, app.Sugar)

	app.Detection = detect.NewEngine(app.Events, app.Materializer,
		detectionRules(cfg), cfg.Detection.Window, app.Sugar)
	app.Correlation = correlate.NewEngine(app.Events, app.Alerts, app.Materializer,
		correlationRules(cfg), app.Sugar)

	ledger, err := app.initLedger()
	if err != nil {
		return nil, err
	}
	app.Escalation = escalate.NewMonitor(app.Alerts, app.Queue, ledger,
		escalationTiers(cfg), app.Sugar)

	app.Scheduler = service.NewScheduler(app.Sugar)
	app.Scheduler.Register("detection", cfg.Detection.Interval, app.Detection.RunCycle)
	app.Scheduler.Register("correlation", cfg.Correlation.Interval, app.Correlation.RunCycle)
	app.Scheduler.Register("escalation", cfg.Escalation.Interval, app.Escalation.RunScan)

	return app, nil
}

// Start launches the cycle scheduler
func (a *App) Start(ctx context.Context) error {
	a.Scheduler.Start(ctx)
	a.Sugar.Infow("Vigil started",
		"detection_interval", a.Config.Detection.Interval,
		"correlation_interval", a.Config.Correlation.Interval,
		"escalation_interval", a.Config.Escalation.Interval)
	return nil
}

// WaitForShutdown blocks until SIGINT or SIGTERM
func (a *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		a.Sugar.Infow("Shutdown signal received", "signal", sig)
	case <-a.shutdownCh:
	}
}

// Shutdown stops the scheduler and releases external connections
func (a *App) Shutdown() {
	close(a.shutdownCh)
	a.Scheduler.Stop()

	if a.mongoClient != nil {
		if err := a.mongoClient.Disconnect(context.Background()); err != nil {
			a.Sugar.Warnw("Failed to disconnect from MongoDB", "error", err)
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.Sugar.Warnw("Failed to close Redis client", "error", err)
		}
	}

	a.Sugar.Infow("Vigil stopped")
	_ = a.Logger.Sync()
}

func (a *App) initStorage(ctx context.Context) error {
	switch a.Config.Storage.Backend {
	case config.BackendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(a.Config.Storage.Mongo.URI))
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			return fmt.Errorf("MongoDB ping failed: %w", err)
		}
		a.mongoClient = client

		store := storage.NewMongoStore(client.Database(a.Config.Storage.Mongo.Database), a.Sugar)
		if err := store.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to ensure MongoDB indexes: %w", err)
		}
		a.Events, a.Alerts = store, store
	default:
		store := storage.NewMemoryStore()
		a.Events, a.Alerts = store, store
	}
	return nil
}

func (a *App) initLedger() (escalate.Ledger, error) {
	if a.Config.Redis.Enabled {
		a.redisClient = redis.NewClient(&redis.Options{
			Addr: a.Config.Redis.Addr,
			DB:   a.Config.Redis.DB,
		})
		return escalate.NewRedisLedger(a.redisClient), nil
	}
	ledger, err := escalate.NewMemoryLedger(a.Config.Escalation.LedgerSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize escalation ledger: %w", err)
	}
	return ledger, nil
}

func initLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(level)); err == nil {
		cfg.Level = lvl
	}
	return cfg.Build()
}
