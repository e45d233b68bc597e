package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"driverbook/internal/app"
	"driverbook/internal/config"
	"driverbook/internal/handler"
	"driverbook/internal/messaging"
	internalRedis "driverbook/internal/redis"
	"driverbook/internal/repository"
	"driverbook/internal/repository/memory"
	"driverbook/internal/repository/postgres"
	"driverbook/internal/service"
	"driverbook/internal/storage"
)

// repositories groups the storage backends selected by STORAGE_DRIVER.
type repositories struct {
	bookings     repository.BookingRepository
	discounts    repository.DiscountRepository
	availability repository.AvailabilityRepository
	commissions  repository.CommissionRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic comes first so the database driver can be instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			logger.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	var repos repositories
	switch cfg.Database.Driver {
	case "memory":
		repos = repositories{
			bookings:     memory.NewBookingRepository(),
			discounts:    memory.NewDiscountRepository(),
			availability: memory.NewAvailabilityRepository(),
			commissions:  memory.NewCommissionRepository(),
		}
		logger.Warn("using in-memory storage, data is lost on restart")
	default:
		db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		logger.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Host))

		repos = repositories{
			bookings:     postgres.NewBookingRepository(db),
			discounts:    postgres.NewDiscountRepository(db),
			availability: postgres.NewAvailabilityRepository(db),
			commissions:  postgres.NewCommissionRepository(db),
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	var slipStorage service.SlipStorage
	if cfg.Storage.Bucket != "" {
		s3Storage, err := storage.NewS3SlipStorage(ctx, cfg.Storage.Region, cfg.Storage.Bucket, cfg.Storage.CDNDomain)
		if err != nil {
			logger.Fatal("failed to initialize slip storage", zap.Error(err))
		}
		slipStorage = s3Storage
	}

	server, bookingService := wireServer(cfg, repos, redisClient, slipStorage, nrApp, logger)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var consumerDone chan struct{}
	if cfg.Kafka.Enabled {
		consumer, err := messaging.NewOfferConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.OffersTopic, bookingService, logger)
		if err != nil {
			logger.Fatal("failed to start offer consumer", zap.Error(err))
		}
		consumerDone = make(chan struct{})
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(runCtx); err != nil {
				logger.Error("offer consumer stopped", zap.Error(err))
			}
		}()
		defer consumer.Close()
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-runCtx.Done()
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if consumerDone != nil {
		select {
		case <-consumerDone:
		case <-shutdownCtx.Done():
			logger.Warn("offer consumer did not stop in time")
		}
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server and the booking service
// shared with the offer consumer.
func wireServer(
	cfg *config.Config,
	repos repositories,
	redisClient *redis.Client,
	slipStorage service.SlipStorage,
	nrApp *newrelic.Application,
	logger *zap.Logger,
) (*http.Server, *service.BookingService) {
	// Locker and cache stay nil interfaces without Redis.
	var (
		locker        internalRedis.Locker
		earningsCache internalRedis.EarningsCache
	)
	if redisClient != nil {
		locker = internalRedis.NewLockStore(redisClient)
		earningsCache = internalRedis.NewCacheStore(redisClient)
	}

	validate := validator.New()

	notificationService := service.NewNotificationService(logger)
	availabilityService := service.NewAvailabilityService(repos.availability, validate, logger)
	bookingService := service.NewBookingService(
		repos.bookings,
		repos.discounts,
		availabilityService,
		notificationService,
		earningsCache,
		validate,
		logger,
		cfg.Engine.BaseCommissionRate,
	)
	discountService := service.NewDiscountService(
		repos.discounts,
		repos.bookings,
		locker,
		earningsCache,
		notificationService,
		validate,
		logger,
		cfg.Engine.SweepLockTTL,
		cfg.Engine.SweepLockWait,
	)
	earningsService := service.NewEarningsService(
		repos.bookings,
		repos.discounts,
		repos.commissions,
		slipStorage,
		earningsCache,
		logger,
		cfg.Engine.StatementDueDay,
	)

	router := app.NewRouter(app.RouterDeps{
		BookingHandler:         handler.NewBookingHandler(bookingService),
		DiscountHandler:        handler.NewDiscountHandler(discountService),
		AvailabilityHandler:    handler.NewAvailabilityHandler(availabilityService),
		EarningsHandler:        handler.NewEarningsHandler(earningsService),
		RedisClient:            redisClient,
		NewRelicApp:            nrApp,
		Logger:                 logger,
		AllowedOrigins:         cfg.Server.AllowedOrigins,
		AdminRequestsPerMinute: cfg.Server.AdminRequestsPerMinute,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, bookingService
}
