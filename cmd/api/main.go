package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic/internal/api"
	"clinic/internal/config"
	"clinic/internal/database"
	"clinic/internal/domain"
	"clinic/internal/events"
	"clinic/internal/lock"
	"clinic/internal/logging"
	"clinic/internal/metrics"
	"clinic/internal/repository"
	"clinic/internal/service"
	"clinic/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const healthRefreshInterval = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient, err := initRedis(cfg, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	backend, err := initLockBackend(cfg, db, redisClient)
	if err != nil {
		return err
	}
	locker := lock.NewCoordinator(backend, cfg.Booking.LockWait, logging.Component(logger, "lock"))
	logger.Info().Str("backend", cfg.Booking.LockBackend).Dur("ttl", cfg.Booking.LockTTL).Dur("wait", cfg.Booking.LockWait).
		Msg("slot lock configured")

	memoryLimiter := repository.NewMemoryRateLimiter()
	var limiter domain.RateLimiter = memoryLimiter
	if redisClient != nil {
		limiter = repository.NewFailoverRateLimiter(repository.NewRedisRateLimiter(redisClient), memoryLimiter, logger)
	}

	eventBus := events.NewEventBus(logger)
	eventBus.Subscribe(events.AuditHandler(logging.Component(logger, "audit")), events.AllTypes...)

	serviceLogger := logging.Component(logger, "service")
	services := api.Services{
		Auth: service.NewAuthService(db, db, eventBus, cfg.Auth.TokenTTL, cfg.Auth.BcryptCost, serviceLogger),
		Reservations: service.NewReservationService(db, db, locker, limiter, eventBus, service.ReservationOptions{
			LockTTL:         cfg.Booking.LockTTL,
			RateLimit:       cfg.Booking.ReserveRateLimit,
			RateLimitWindow: cfg.Booking.ReserveRateWindow,
		}, serviceLogger),
		Catalog: service.NewCatalogService(db, db, db),
		Admin:   service.NewAdminService(db, db, db, db, locker, eventBus, cfg.Booking.LockTTL, serviceLogger),
	}

	checks := map[string]api.HealthChecker{"store": db, "lock": locker}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, logger)
	startMaintenance(ctx, cfg, db, memoryLimiter, logger)

	httpServer := api.NewHTTPServer(cfg.API, cfg.Auth, services, limiter, checks, logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, checks, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		go grpcServer.WatchHealth(ctx, healthRefreshInterval)
	}

	return startServers(ctx, grpcServer, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

// initRedis подключается к Redis, если он настроен. Для блокировок на Redis
// недоступность сервера фатальна; иначе продолжаем без него.
func initRedis(cfg *config.Config, logger *zerolog.Logger) (*redis.Client, error) {
	if cfg.Redis.Address == "" {
		return nil, nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := repository.Ping(ctx, client); err != nil {
		_ = client.Close()
		if cfg.Booking.LockBackend == config.LockBackendRedis {
			return nil, fmt.Errorf("redis is required for the lock backend: %w", err)
		}
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil, nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client, nil
}

func initLockBackend(cfg *config.Config, db *database.DB, redisClient *redis.Client) (lock.Backend, error) {
	switch cfg.Booking.LockBackend {
	case config.LockBackendRedis:
		if redisClient == nil {
			return nil, errors.New("redis lock backend selected but redis is not configured")
		}
		return lock.NewRedisLocker(redisClient), nil
	case config.LockBackendSQLite:
		return lock.NewStoreLocker(db), nil
	case config.LockBackendMemory:
		return lock.NewMemoryLocker(), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Booking.LockBackend)
	}
}

func startMaintenance(ctx context.Context, cfg *config.Config, db *database.DB, limiter *repository.MemoryRateLimiter, logger *zerolog.Logger) {
	sweeper := worker.NewSweeper(cfg.Maintenance.SweepInterval, worker.RetryPolicy{}, logging.Component(logger, "sweeper"),
		worker.TokenSweep(db),
		worker.LeaseSweep(db),
		worker.RateLimitSweep(limiter),
	)
	go sweeper.Start(ctx)

	if cfg.Backup.Enabled {
		backups := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
		go backups.Start(ctx)
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	if cfg.API.HTTP.Enabled {
		go func() {
			errCh <- httpServer.Start()
		}()
	}

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("grpc", grpcServer != nil).Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		if runErr != nil {
			logger.Error().Err(runErr).Msg("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.HTTP.ShutdownTimeout)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
