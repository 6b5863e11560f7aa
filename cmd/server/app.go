package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Ruben-Makrati/gamified-bible-study-app/config"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/application/command"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/application/eventhandler"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/application/query"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/lesson"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/identity"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/messaging"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/docstore"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/postgres"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/redis"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/repository"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/Ruben-Makrati/gamified-bible-study-app/internal/interface/http"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/interface/http/handlers"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/circuitbreaker"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/logger"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/retry"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/timeutil"
)

// app содержит собранные зависимости процесса.
type app struct {
	cfg *config.Config
	log *logger.Logger

	store       docstore.Store
	redisClient *redis.Client
	bus         *messaging.InMemoryEventBus

	seedLessons *command.SeedLessonsHandler
	server      *httpapi.Server

	closers []func() error
}

// newLogger настраивает zap-логгер по конфигурации.
func newLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = logger.Format(cfg.Observability.LogFormat)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts).With(
		logger.String("service", cfg.App.Name),
		logger.String("version", cfg.App.Version),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE
// ══════════════════════════════════════════════════════════════════════════════

// openStore подключается к выбранному бэкенду, повторяя попытки при старте.
func (a *app) openStore(ctx context.Context) error {
	policy := retry.StartupPolicy()
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		a.log.Warn("store not ready, retrying",
			logger.String("backend", a.cfg.Store.Backend),
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	}

	var store docstore.Store
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		store, err = a.dialStore(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("open %s store: %w", a.cfg.Store.Backend, err)
	}

	breaker := circuitbreaker.StoreBreaker(docstore.IsBackendFailure, func(name string, from, to circuitbreaker.State) {
		a.log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
	a.store = docstore.Guard(store, breaker)
	a.closers = append(a.closers, a.store.Close)

	a.log.Info("document store ready", logger.String("backend", a.cfg.Store.Backend))
	return nil
}

func (a *app) dialStore(ctx context.Context) (docstore.Store, error) {
	switch a.cfg.Store.Backend {
	case config.BackendMemory:
		a.log.Warn("using in-memory store, data is lost on restart")
		return docstore.NewMemoryStore(), nil

	case config.BackendPostgres:
		conn, err := postgres.NewConnection(ctx, a.postgresConfig())
		if err != nil {
			return nil, err
		}
		return postgres.NewDocumentStore(conn), nil

	case config.BackendSQLite:
		return sqlite.Open(ctx, a.cfg.SQLite.Path)

	case config.BackendRedis:
		client, err := a.redisConn(ctx)
		if err != nil {
			return nil, err
		}
		return redis.NewDocumentStore(client), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", a.cfg.Store.Backend)
	}
}

func (a *app) postgresConfig() postgres.Config {
	pc := postgres.DefaultConfig(a.cfg.Database.URL)
	pc.MaxConns = int32(a.cfg.Database.MaxConns)
	pc.MinConns = int32(a.cfg.Database.MinConns)
	pc.MaxConnLifetime = a.cfg.Database.ConnMaxLifetime
	pc.MaxConnIdleTime = a.cfg.Database.ConnMaxIdleTime
	return pc
}

// redisConn возвращает общий клиент для хранилища и кеша уроков.
func (a *app) redisConn(ctx context.Context) (*redis.Client, error) {
	if a.redisClient != nil {
		return a.redisClient, nil
	}

	rc := redis.DefaultConfig()
	rc.Addr = a.cfg.Redis.Address()
	rc.Password = a.cfg.Redis.Password
	rc.DB = a.cfg.Redis.DB
	rc.Prefix = a.cfg.Redis.Prefix
	rc.PoolSize = a.cfg.Redis.PoolSize
	rc.MinIdleConns = a.cfg.Redis.MinIdleConns
	rc.DialTimeout = a.cfg.Redis.DialTimeout
	rc.ReadTimeout = a.cfg.Redis.ReadTimeout
	rc.WriteTimeout = a.cfg.Redis.WriteTimeout

	client, err := redis.NewClient(ctx, rc)
	if err != nil {
		return nil, err
	}
	a.redisClient = client
	if a.cfg.Store.Backend != config.BackendRedis {
		a.closers = append(a.closers, client.Close)
	}
	return client, nil
}

// migrate применяет схему для бэкендов, которым она нужна.
func (a *app) migrate(ctx context.Context) error {
	switch a.cfg.Store.Backend {
	case config.BackendPostgres:
		conn, err := postgres.NewConnection(ctx, a.postgresConfig())
		if err != nil {
			return err
		}
		defer conn.Close()

		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			return err
		}
		a.log.Info("postgres migrations applied", logger.Int("count", applied))
		return nil

	case config.BackendSQLite:
		// Open сам создаёт схему.
		s, err := sqlite.Open(ctx, a.cfg.SQLite.Path)
		if err != nil {
			return err
		}
		a.log.Info("sqlite schema ready", logger.String("path", a.cfg.SQLite.Path))
		return s.Close()

	default:
		a.log.Info("backend needs no migrations", logger.String("backend", a.cfg.Store.Backend))
		return nil
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION
// ══════════════════════════════════════════════════════════════════════════════

// build собирает репозитории, обработчики и HTTP-сервер.
func build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	if cfg.Store.Backend == config.BackendPostgres {
		if err := a.migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	if err := a.openStore(ctx); err != nil {
		a.close()
		return nil, err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Репозитории
	// ─────────────────────────────────────────────────────────────────────────
	users := repository.NewProgressRepository(a.store)
	lessonRepo := repository.NewLessonRepository(a.store)
	accounts := repository.NewAccountRepository(a.store)
	feeds := repository.NewActivityRepository(a.store)

	var catalog lesson.Catalog = lessonRepo
	var invalidator command.CatalogInvalidator
	var redisClient *redis.Client
	if cfg.Redis.CacheEnabled {
		client, err := a.redisConn(ctx)
		if err != nil {
			log.Warn("redis unavailable, lesson cache disabled", logger.Err(err))
		} else {
			cache := redis.NewLessonCache(lessonRepo, client, cfg.Redis.CacheTTL, log)
			catalog, invalidator, redisClient = cache, cache, client
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Шина событий
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	a.bus = messaging.NewInMemoryEventBus(busCfg)

	if cfg.Features.IsEnabled(config.FeatureActivityFeed, nil) {
		feed := eventhandler.NewActivityFeedHandler(feeds, log, eventhandler.DefaultActivityFeedConfig())
		if err := feed.Register(a.bus); err != nil {
			a.close()
			return nil, fmt.Errorf("register activity feed: %w", err)
		}
	}
	if cfg.Features.IsEnabled(config.FeatureEventLog, nil) {
		if err := eventhandler.NewEventLogHandler(log).Register(a.bus); err != nil {
			a.close()
			return nil, fmt.Errorf("register event log: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Команды и запросы
	// ─────────────────────────────────────────────────────────────────────────
	clock := timeutil.NewSystemClock(cfg.App.Location)
	sequential := cfg.Features.IsEnabled(config.FeatureSequentialUnlock, nil)

	createProfile := command.NewCreateProfileHandler(users, a.bus, clock, log)
	a.seedLessons = command.NewSeedLessonsHandler(catalog, invalidator, a.bus, clock, log)

	auth, err := identity.NewProvider(identity.Config{
		Secret:     cfg.Auth.JWTSecret,
		TokenTTL:   cfg.Auth.TokenTTL,
		Issuer:     cfg.Auth.Issuer,
		BcryptCost: cfg.Auth.BcryptCost,
	}, accounts, createProfile, clock, log)
	if err != nil {
		a.close()
		return nil, err
	}

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("store", handlers.NewPingCheck(a.store))
	if redisClient != nil && cfg.Store.Backend != config.BackendRedis {
		health.AddCheck("redis", handlers.NewPingCheck(redisClient))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpapi.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.TrustedProxies = cfg.HTTP.TrustedProxies
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpCfg.AdminKey = cfg.HTTP.AdminKey
	httpCfg.Version = cfg.App.Version
	if cfg.App.Debug {
		httpCfg.Mode = gin.DebugMode
	}

	a.server, err = httpapi.NewServer(httpCfg, httpapi.Dependencies{
		Auth:           auth,
		CompleteLesson: command.NewCompleteLessonHandler(users, catalog, a.bus, clock, log, command.CompleteLessonConfig{SequentialUnlock: sequential}),
		SeedLessons:    a.seedLessons,
		ListLessons:    query.NewListLessonsHandler(users, catalog, sequential),
		GetLesson:      query.NewGetLessonHandler(users, catalog, sequential),
		GetDashboard:   query.NewGetDashboardHandler(users, catalog, sequential),
		GetProfile:     query.NewGetProfileHandler(users),
		GetActivity:    query.NewGetActivityHandler(feeds),
		HealthChecker:  health,
		Retry:          retry.StorePolicy(shared.IsRetryable),
		Logger:         log,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	log.Info("application assembled",
		logger.String("backend", cfg.Store.Backend),
		logger.Bool("lesson_cache", invalidator != nil),
		logger.Bool("sequential_unlock", sequential),
		logger.String("timezone", cfg.App.Location.String()),
	)
	return a, nil
}

// close освобождает ресурсы в обратном порядке.
func (a *app) close() error {
	var errs []error
	if a.bus != nil {
		errs = append(errs, a.bus.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
