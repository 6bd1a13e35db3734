package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Freeeeeet/roomslots/internal/api"
	"github.com/Freeeeeet/roomslots/internal/config"
	"github.com/Freeeeeet/roomslots/internal/controller"
	"github.com/Freeeeeet/roomslots/internal/events"
	"github.com/Freeeeeet/roomslots/internal/lock"
	"github.com/Freeeeeet/roomslots/internal/notify"
	"github.com/Freeeeeet/roomslots/internal/repository"
	"github.com/Freeeeeet/roomslots/internal/repository/base"
	"github.com/Freeeeeet/roomslots/internal/service"
	"github.com/Freeeeeet/roomslots/internal/storage"
)

const (
	shutdownTimeout = 10 * time.Second
	redisDocPrefix  = "roomslots:doc:"
	redisLockPrefix = "roomslots:lock:"
	minRedisLockTTL = 30 * time.Second
)

// redisLockTTL outlives the longest locked section with a store timeout of margin.
func redisLockTTL(storeTimeout time.Duration) time.Duration {
	ttl := base.HoldLimit(storeTimeout) + storeTimeout
	if ttl < minRedisLockTTL {
		return minRedisLockTTL
	}
	return ttl
}

// App owns the long-lived components of the server process
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	server    *echo.Echo
	scheduler *Scheduler
	bot       *controller.BotController

	closers []func()
}

// New connects the configured backends and wires the services
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required to serve the HTTP API")
	}

	rdb, err := a.connectRedis(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	store, err := a.openStore(ctx, rdb)
	if err != nil {
		a.Close()
		return nil, err
	}

	var locker lock.Locker
	if cfg.LockDriver == "redis" {
		locker = lock.NewRedisLocker(rdb, redisLockPrefix, redisLockTTL(cfg.StoreTimeout), logger)
	} else {
		locker = lock.NewKeyedMutex()
	}

	b := base.NewRepository(store, locker, cfg.StoreTimeout)
	templateRepo := repository.NewTemplateRepository(b, logger)
	slotRepo := repository.NewSlotRepository(b, logger)
	accessRepo := repository.NewAccessRepository(b, logger)
	contactRepo := repository.NewContactRepository(b, logger)

	dispatchers := notify.Multi{notify.LogDispatcher{Logger: logger}}

	var botInstance *bot.Bot
	if cfg.TelegramToken != "" {
		botInstance, err = bot.New(cfg.TelegramToken)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create telegram bot: %w", err)
		}
		dispatchers = append(dispatchers, notify.NewTelegramDispatcher(botInstance, contactRepo, logger))
	}

	if cfg.SMTPHost != "" {
		dispatchers = append(dispatchers, notify.NewEmailDispatcher(notify.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			UseTLS:   cfg.SMTPUseTLS,
			From:     cfg.MailFrom,
		}, contactRepo, logger))
	}

	var publisher events.EventPublisher = events.Nop{}
	if cfg.NatsURL != "" {
		p, nc, err := events.NewNatsPublisher(cfg.NatsURL, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		a.closers = append(a.closers, func() { _ = nc.Drain() })
		publisher = p
	}

	bookingService := service.NewBookingService(templateRepo, slotRepo, accessRepo, dispatchers, publisher,
		service.BookingConfig{Location: cfg.Location(), CancelWindow: cfg.CancelWindow}, logger)
	scheduleService := service.NewScheduleService(templateRepo, cfg.FirstHour, cfg.LastHour, logger)
	accessService := service.NewAccessService(accessRepo, contactRepo, logger)

	handler := api.NewHandler(bookingService, scheduleService, accessService, logger)
	a.server = api.NewRouter(handler, api.RouterConfig{
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		RateLimit: cfg.RateLimit,
	}, logger)

	a.scheduler = NewScheduler(bookingService, cfg.MaterializeInterval, cfg.MaterializeDays, logger)

	if botInstance != nil {
		a.bot = controller.NewBotController(botInstance, bookingService, scheduleService, accessService, logger)
	}

	return a, nil
}

func (a *App) connectRedis(ctx context.Context) (*redis.Client, error) {
	if a.cfg.RedisAddr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	a.closers = append(a.closers, func() { _ = rdb.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, a.cfg.StoreTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	a.logger.Info("Connected to Redis", zap.String("addr", a.cfg.RedisAddr))
	return rdb, nil
}

func (a *App) openStore(ctx context.Context, rdb *redis.Client) (storage.Store, error) {
	switch a.cfg.StoreDriver {
	case "postgres":
		pool, err := OpenPostgres(ctx, a.cfg.DBDSN, a.cfg.StoreTimeout)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)

		migrator, err := NewMigrator(pool, a.logger)
		if err != nil {
			return nil, err
		}
		defer migrator.Close()
		if err := migrator.Run(ctx); err != nil {
			return nil, err
		}
		return storage.NewPostgresStore(pool), nil
	case "redis":
		return storage.NewRedisStore(rdb, redisDocPrefix), nil
	default:
		a.logger.Warn("Using the in-memory store; data is lost on restart")
		return storage.NewMemoryStore(), nil
	}
}

// OpenPostgres creates a pool and checks the connection
func OpenPostgres(ctx context.Context, dsn string, timeout time.Duration) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// Run serves until ctx is canceled, then shuts everything down
func (a *App) Run(ctx context.Context) error {
	a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	if a.bot != nil {
		if err := a.bot.RegisterHandlers(ctx); err != nil {
			a.logger.Warn("Bot commands menu not set", zap.Error(err))
		}
		go a.bot.Start(ctx)
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", zap.String("addr", a.cfg.HTTPAddr))
		if err := a.server.Start(a.cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close releases the backend connections in reverse order
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
