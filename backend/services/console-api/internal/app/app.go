package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libdb "evconsole/backend/libs/db"
	libredis "evconsole/backend/libs/redis"
	"evconsole/backend/services/console-api/internal/authz"
	"evconsole/backend/services/console-api/internal/config"
	httpserver "evconsole/backend/services/console-api/internal/http"
	"evconsole/backend/services/console-api/internal/http/handlers"
	"evconsole/backend/services/console-api/internal/jobs"
	"evconsole/backend/services/console-api/internal/metrics"
	"evconsole/backend/services/console-api/internal/password"
	redisstore "evconsole/backend/services/console-api/internal/redis"
	"evconsole/backend/services/console-api/internal/repository"
	"evconsole/backend/services/console-api/internal/repository/memory"
	"evconsole/backend/services/console-api/internal/service"
	"evconsole/backend/services/console-api/internal/ws"
)

// App wires console-api dependencies.
type App struct {
	server      *httpserver.Server
	scheduler   *jobs.Scheduler
	hub         *ws.Hub
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

type stores struct {
	bookings service.BookingStore
	stations service.StationStore
	users    service.UserStore
	owners   service.OwnerStore
}

// New constructs the application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}
	metrics.Init()

	st, err := a.openStores(cfg)
	if err != nil {
		return nil, err
	}

	var cache service.SessionCache
	if cfg.Redis.Addr != "" {
		a.redisClient, err = libredis.NewRedisClient(libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app: redis: %w", err)
		}
		cache = redisstore.NewStore(a.redisClient, cfg.Redis.TTL)
	}

	tokens := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.ExpiresIn)
	hasher := password.NewBcryptHasher(0)
	authService := service.NewAuthService(st.users, hasher, tokens, logger)
	if cfg.Bootstrap.Username != "" {
		if _, err := authService.EnsureUser(ctx, cfg.Bootstrap.Username, cfg.Bootstrap.Password, authz.RoleBackoffice); err != nil {
			a.Close()
			return nil, fmt.Errorf("app: bootstrap user: %w", err)
		}
	}

	a.hub = ws.NewHub(logger)
	opts := []service.BookingOption{service.WithEventPublisher(a.hub)}
	if cache != nil {
		opts = append(opts, service.WithSessionCache(cache))
	}
	stationService := service.NewStationService(st.stations, st.users, logger)
	bookingService := service.NewBookingService(st.bookings, st.stations, logger, opts...)
	ownerService := service.NewOwnerService(st.owners)
	userService := service.NewUserService(st.users, hasher, logger)

	a.scheduler, err = jobs.NewScheduler(cfg.Sweep.Schedule, jobs.NewOverdueSweep(st.bookings, logger), cfg.Sweep.Timeout, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	pingers := map[string]handlers.Pinger{}
	if a.db != nil {
		pingers["postgres"] = a.db
	}
	if a.redisClient != nil {
		client := a.redisClient
		pingers["redis"] = handlers.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
	}

	feed := ws.NewServer(a.hub, cfg.WS.WriteTimeout, cfg.WS.PingInterval, cfg.OriginAllowed, logger)
	router := httpserver.NewRouter(httpserver.RouterDeps{
		Login:         handlers.NewLoginHandler(authService, logger),
		Health:        handlers.NewHealthHandler(pingers),
		Metrics:       metrics.Handler(),
		Stations:      handlers.NewStationHandlers(stationService, logger),
		Bookings:      handlers.NewBookingHandlers(bookingService, logger),
		Users:         handlers.NewUserHandlers(userService, logger),
		Owner:         handlers.NewOwnerHandler(ownerService, logger),
		Owners:        handlers.NewOwnerListHandler(ownerService, logger),
		BookingFeed:   feed.HandleWS,
		Authenticator: tokens,
		AllowOrigin:   cfg.OriginAllowed,
		Logger:        logger,
	})
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, httpserver.ServerOptions{
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		OnShutdown:      a.hub.CloseAll,
	}, logger)
	return a, nil
}

func (a *App) openStores(cfg *config.Config) (stores, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		a.logger.Warn("using in-memory storage; data is lost on restart")
		m := memory.New()
		return stores{bookings: m.Bookings, stations: m.Stations, users: m.Users, owners: m.Owners}, nil
	case config.StoragePostgres:
		sqlDB, err := libdb.NewPostgresDB(cfg.Database.DSN, libdb.PoolOptions{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			ConnLifetime: cfg.Database.ConnLifetime,
		})
		if err != nil {
			return stores{}, fmt.Errorf("app: postgres: %w", err)
		}
		a.db = sqlDB
		return stores{
			bookings: repository.NewBookingRepository(sqlDB),
			stations: repository.NewStationRepository(sqlDB),
			users:    repository.NewUserRepository(sqlDB),
			owners:   repository.NewOwnerRepository(sqlDB),
		}, nil
	default:
		return stores{}, errors.New("app: unknown storage " + cfg.Storage)
	}
}

// Run serves HTTP and runs the scheduler until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.scheduler.Run(ctx)
	}()

	err := a.server.Run(ctx)
	cancel()
	a.hub.CloseAll()
	wg.Wait()
	return err
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
