package application

import (
	"context"
	"fmt"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/application/usecase"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/repository"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/service"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/auth"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/config"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/eventbus"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/kafka"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/monitoring"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/persistence"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/quickresponse"
	redisinfra "github.com/eben2468/srcwebsite-sub012/internal/infrastructure/redis"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/storage"
	httpServer "github.com/eben2468/srcwebsite-sub012/internal/interfaces/http"
	"github.com/eben2468/srcwebsite-sub012/internal/interfaces/telegram"
	"github.com/eben2468/srcwebsite-sub012/internal/interfaces/websocket"
	"github.com/eben2468/srcwebsite-sub012/pkg/safego"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const eventBufferSize = 1024

// App 应用程序
type App struct {
	// 配置
	config *config.Config
	logger *zap.Logger
	db     *gorm.DB
	store  repository.Store

	// 事件与监控
	bus     *eventbus.InMemoryBus
	monitor *monitoring.Monitor

	// 应用服务
	chat     *usecase.ChatService
	accounts *usecase.AccountService

	// 可选基础设施
	redis     *goredis.Client
	relay     *redisinfra.Relay
	kafkaSink *kafka.Sink
	qrWatcher *quickresponse.Watcher

	// 接口层
	hub        *websocket.Hub
	httpServer *httpServer.Server

	unsubscribe []func()
	cancel      context.CancelFunc
}

// NewApp 创建应用程序（依赖注入容器）
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := config.Bootstrap(logger); err != nil {
		logger.Warn("Bootstrap failed (non-fatal)", zap.Error(err))
	}

	app := &App{
		config:  cfg,
		logger:  logger,
		bus:     eventbus.NewInMemoryBus(logger, eventBufferSize),
		monitor: monitoring.NewMonitor(logger),
	}
	app.bus.OnDrop(func(string) { app.monitor.IncEventDropped() })

	if err := app.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	// 可选组件失败时降级运行
	app.initRedis(ctx)
	app.initKafka()

	if err := app.initApplicationServices(); err != nil {
		return nil, fmt.Errorf("failed to init application services: %w", err)
	}

	if err := app.seedData(ctx); err != nil {
		return nil, fmt.Errorf("failed to seed data: %w", err)
	}

	app.initInterfaces()
	return app, nil
}

// NewAppCLI creates a lightweight app for admin commands: database and
// services only, no HTTP, push or brokers.
func NewAppCLI(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{
		config:  cfg,
		logger:  logger,
		monitor: monitoring.NewMonitor(logger),
	}
	if err := app.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}
	if err := app.initApplicationServices(); err != nil {
		return nil, fmt.Errorf("failed to init application services: %w", err)
	}
	return app, nil
}

// initRepositories 初始化仓储层
func (app *App) initRepositories() error {
	db, err := persistence.NewDBConnection(&app.config.Database, app.logger)
	if err != nil {
		return err
	}
	app.db = db
	app.store = persistence.NewGormStore(db)
	app.logger.Info("Database ready", zap.String("type", app.config.Database.Type))
	return nil
}

func (app *App) initRedis(ctx context.Context) {
	if !app.config.Redis.Enabled {
		return
	}
	client, err := redisinfra.NewClient(ctx, &app.config.Redis)
	if err != nil {
		app.logger.Warn("Redis unavailable, running single-instance without rate limits", zap.Error(err))
		return
	}
	app.redis = client
	app.relay = redisinfra.NewRelay(client, app.config.Redis.Channel, app.logger)
}

func (app *App) initKafka() {
	if !app.config.Kafka.Enabled {
		return
	}
	sc, err := kafka.NewSaramaConfig(&app.config.Kafka)
	if err != nil {
		app.logger.Warn("Invalid kafka config, event sink disabled", zap.Error(err))
		return
	}
	producer, err := kafka.NewProducer(app.config.Kafka.Brokers, sc)
	if err != nil {
		app.logger.Warn("Kafka unavailable, event sink disabled", zap.Error(err))
		return
	}
	app.kafkaSink = kafka.NewSink(producer, app.config.Kafka.Topic, app.logger)
}

// initApplicationServices 初始化应用服务
func (app *App) initApplicationServices() error {
	cfg := app.config
	presence := service.NewPresencePolicy(cfg.Presence.StaleAfter)
	assignment := service.NewAssignmentPolicy(presence, cfg.Presence.ExcludeStaleFromAssignment)

	opts := []usecase.Option{
		usecase.WithMetrics(app.monitor),
		usecase.WithRenderer(quickresponse.NewRenderer()),
	}
	if cfg.Uploads.Dir != "" {
		files, err := storage.NewLocalStorage(cfg.Uploads.Dir, "/uploads", cfg.Uploads.MaxBytes)
		if err != nil {
			return err
		}
		opts = append(opts, usecase.WithFileStorage(files))
	}
	if app.redis != nil && cfg.Redis.RateLimit.Enabled {
		opts = append(opts, usecase.WithRateLimiter(
			redisinfra.NewLimiter(app.redis, cfg.Redis.RateLimit.Limit, cfg.Redis.RateLimit.Window),
		))
	}

	var bus eventbus.Publisher
	if app.bus != nil {
		bus = app.bus
	}
	app.chat = usecase.NewChatService(app.store, assignment, presence, bus, usecase.Options{
		WelcomeMessage:   cfg.Chat.WelcomeMessage,
		EndedMessage:     cfg.Chat.EndedMessage,
		MessagePageLimit: cfg.Chat.MessagePageLimit,
		DashboardLimit:   cfg.Chat.DashboardLimit,
		MaxUploadBytes:   cfg.Uploads.MaxBytes,
		AllowedUploads:   cfg.Uploads.AllowedTypes,
	}, app.logger, opts...)

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	app.accounts = usecase.NewAccountService(app.store.Users(), tokens, app.logger)
	return nil
}

// seedData loads the quick response catalog file when one is configured.
func (app *App) seedData(ctx context.Context) error {
	path := app.config.QuickResponses.File
	if path == "" {
		return nil
	}
	n, err := quickresponse.Sync(ctx, app.store.QuickResponses(), path)
	if err != nil {
		return err
	}
	app.logger.Info("Quick responses loaded", zap.String("path", path), zap.Int("count", n))
	if app.config.QuickResponses.Watch {
		app.qrWatcher = quickresponse.NewWatcher(path, app.store.QuickResponses(), app.logger)
	}
	return nil
}

// initInterfaces 初始化接口层并挂载事件订阅者
func (app *App) initInterfaces() {
	app.hub = websocket.NewHub(app.logger)
	app.hub.SetMetrics(app.monitor)
	if app.relay != nil {
		app.hub.SetRelay(app.relay)
	}

	app.unsubscribe = append(app.unsubscribe,
		app.hub.Attach(app.bus),
		monitoring.NewEventRecorder(app.monitor).Attach(app.bus),
	)
	if app.kafkaSink != nil {
		app.unsubscribe = append(app.unsubscribe, app.kafkaSink.Attach(app.bus))
	}
	if tg := app.config.Telegram; tg.Enabled {
		bot, err := telegram.NewBot(tg.BotToken)
		if err != nil {
			app.logger.Warn("Telegram unavailable, queue alerts disabled", zap.Error(err))
		} else {
			alert := telegram.NewQueueAlert(bot, tg.ChatID, app.logger)
			app.unsubscribe = append(app.unsubscribe, alert.Attach(app.bus))
		}
	}

	app.httpServer = httpServer.NewServer(app.config.Server, httpServer.Deps{
		Chat:       app.chat,
		Accounts:   app.accounts,
		Hub:        app.hub,
		Monitor:    app.monitor,
		CookieName: app.config.Auth.CookieName,
		UploadsDir: app.config.Uploads.Dir,
	}, app.logger)
}

// Start 启动后台任务和 HTTP 服务
func (app *App) Start(ctx context.Context) error {
	ctx, app.cancel = context.WithCancel(ctx)

	safego.Go(app.logger, "ws-hub", func() { app.hub.Run(ctx) })
	safego.Go(app.logger, "monitor", func() { app.monitor.StartCollector(ctx, time.Minute) })

	if app.relay != nil {
		safego.Loop(ctx, app.logger, "redis-relay", 2*time.Second, func(ctx context.Context) error {
			return app.relay.Run(ctx, app.hub.DeliverRaw)
		})
	}
	if app.qrWatcher != nil {
		safego.Loop(ctx, app.logger, "quick-response-watcher", 5*time.Second, app.qrWatcher.Run)
	}

	return app.httpServer.Start(ctx)
}

// Stop 优雅关闭
func (app *App) Stop(ctx context.Context) error {
	var firstErr error
	if app.httpServer != nil {
		if err := app.httpServer.Stop(ctx); err != nil {
			firstErr = err
		}
	}
	if app.cancel != nil {
		app.cancel()
	}
	for _, unsub := range app.unsubscribe {
		unsub()
	}
	if app.bus != nil {
		app.bus.Close()
	}
	if app.kafkaSink != nil {
		if err := app.kafkaSink.Close(); err != nil {
			app.logger.Warn("Failed to close kafka producer", zap.Error(err))
		}
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		if sqlDB, err := app.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	app.logger.Info("Application stopped")
	return firstErr
}

// Chat 聊天服务
func (app *App) Chat() *usecase.ChatService {
	return app.chat
}

// Accounts 账号服务
func (app *App) Accounts() *usecase.AccountService {
	return app.accounts
}

// Store 仓储集合
func (app *App) Store() repository.Store {
	return app.store
}

// Logger 获取日志器
func (app *App) Logger() *zap.Logger {
	return app.logger
}

// AppConfig 获取配置
func (app *App) AppConfig() *config.Config {
	return app.config
}

// Features reports which optional integrations came up.
func (app *App) Features() (redisOn, kafkaOn, telegramOn bool) {
	return app.redis != nil, app.kafkaSink != nil, app.config.Telegram.Enabled
}
