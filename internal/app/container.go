package app

import (
	"context"
	"fmt"

	"github.com/kapu/fclog-bot-go/internal/adapter"
	"github.com/kapu/fclog-bot-go/internal/config"
	"github.com/kapu/fclog-bot-go/internal/constants"
	"github.com/kapu/fclog-bot-go/internal/iris"
	"github.com/kapu/fclog-bot-go/internal/metrics"
	"github.com/kapu/fclog-bot-go/internal/service/cache"
	"github.com/kapu/fclog-bot-go/internal/service/database"
	"github.com/kapu/fclog-bot-go/internal/service/notification"
	"github.com/kapu/fclog-bot-go/internal/service/roster"
	"github.com/kapu/fclog-bot-go/internal/service/scheduler"
	"github.com/kapu/fclog-bot-go/internal/service/store"
	"github.com/kapu/fclog-bot-go/internal/util"
	"github.com/kapu/fclog-bot-go/internal/webhook"
	"go.uber.org/zap"
)

// Container bundles the assembled services of the roster tracker.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	Postgres      *database.PostgresService
	Cache         *cache.CacheService
	Store         *store.Repository
	Notifier      *notification.Notifier
	Scheduler     *scheduler.Scheduler
	Metrics       *metrics.Metrics
	MetricsServer *metrics.Server

	closers []func()
}

// Close releases connections in reverse construction order.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build assembles all infrastructure services. Connections are verified and
// the schema is migrated here so the scheduler starts against a ready store.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	// Cache and database
	cacheSvc, err := cache.NewCacheService(cache.CacheConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache service: %w", err)
	}
	closers = append(closers, func() {
		_ = cacheSvc.Close()
	})

	postgresSvc, err := database.NewPostgresService(database.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres service: %w", err)
	}
	closers = append(closers, func() {
		_ = postgresSvc.Close()
	})

	if err := postgresSvc.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	repo := store.NewRepository(postgresSvc, cfg.FreeCompany.ID, logger)
	metricsSvc := metrics.New(nil)

	// Delivery
	formatter := adapter.NewResponseFormatter("")
	readiness := map[string]metrics.ReadinessCheck{
		"postgres": postgresSvc.Ping,
		"redis":    cacheSvc.Ping,
	}
	var chat notification.ChatSender
	if cfg.Iris.BaseURL != "" {
		irisClient := iris.NewClient(cfg.Iris.BaseURL, logger)
		chat = irisClient
		readiness["iris"] = irisClient.Ping
	}
	targets := notification.NewTargetFactory(chat, webhook.NewClient(cfg.Notification.DeliveryTimeout, logger), formatter, logger)
	breakers := util.NewBreakerSet(
		constants.CircuitBreakerConfig.FailureThreshold,
		constants.CircuitBreakerConfig.ResetTimeout,
		logger,
	)
	notifier := notification.NewNotifier(targets, breakers, metricsSvc, notification.NotifierOptions{
		LodestoneBaseURL: cfg.Roster.LodestoneBaseURL,
		Timeout:          cfg.Notification.DeliveryTimeout,
		Concurrency:      constants.DeliveryConfig.Concurrency,
	}, logger)

	configSource, err := newConfigSource(cfg, cacheSvc, logger)
	if err != nil {
		return nil, err
	}

	fetcher, err := newFetcher(cfg, logger)
	if err != nil {
		return nil, err
	}

	sched := scheduler.NewScheduler(scheduler.Dependencies{
		Fetcher:  fetcher,
		Store:    repo,
		Notifier: notifier,
		Config:   configSource,
		Locker:   cacheSvc,
		Recorder: cacheSvc,
		Metrics:  metricsSvc,
	}, scheduler.Options{
		OrganizationID: cfg.FreeCompany.ID,
		Interval:       cfg.Scheduler.Interval,
		FetchTimeout:   cfg.Scheduler.FetchTimeout,
		PersistTimeout: constants.SchedulerConfig.PersistTimeout,
		LockTTL:        constants.SchedulerConfig.LockTTL,
		RunOnStart:     cfg.Scheduler.RunOnStart,
	}, logger)

	var metricsServer *metrics.Server
	if cfg.Metrics.Addr != "" {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr, metricsSvc, readiness, logger)
	}

	logger.Info("Services assembled",
		zap.String("organization_id", cfg.FreeCompany.ID),
		zap.String("roster_source", fetcher.Source()),
		zap.String("notification_source", cfg.Notification.Source),
		zap.Bool("chat_bridge", chat != nil),
		zap.Bool("metrics", metricsServer != nil),
	)

	return &Container{
		Config:        cfg,
		Logger:        logger,
		Postgres:      postgresSvc,
		Cache:         cacheSvc,
		Store:         repo,
		Notifier:      notifier,
		Scheduler:     sched,
		Metrics:       metricsSvc,
		MetricsServer: metricsServer,
		closers:       closers,
	}, nil
}

func newFetcher(cfg *config.Config, logger *zap.Logger) (roster.Fetcher, error) {
	switch cfg.Roster.Source {
	case config.RosterSourceXIVAPI:
		return roster.NewXIVAPIFetcher(cfg.Roster.XIVAPIBaseURL, cfg.Roster.XIVAPIKey, cfg.Scheduler.FetchTimeout, logger), nil
	case config.RosterSourceLodestone:
		return roster.NewLodestoneFetcher(cfg.Roster.LodestoneBaseURL, cfg.Scheduler.FetchTimeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown roster source %q", cfg.Roster.Source)
	}
}

func newConfigSource(cfg *config.Config, cacheSvc *cache.CacheService, logger *zap.Logger) (notification.ConfigSource, error) {
	var source notification.ConfigSource
	switch cfg.Notification.Source {
	case config.NotificationSourceEnv:
		source = notification.NewStaticSource(cfg.Notification.Static())
	case config.NotificationSourceFile:
		source = notification.NewFileSource(cfg.Notification.File)
	case config.NotificationSourceRedis:
		source = notification.NewStoreSource(cacheSvc)
	default:
		return nil, fmt.Errorf("unknown notification source %q", cfg.Notification.Source)
	}
	return notification.NewFallbackSource(source, logger), nil
}
