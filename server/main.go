package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tourly/api/routes"
	"tourly/internal/bookings"
	"tourly/internal/ledger"
	"tourly/internal/notifications"
	"tourly/internal/operations"
	"tourly/internal/pricing"
	"tourly/internal/shared/config"
	"tourly/internal/shared/database"
	"tourly/internal/workers"
	"tourly/pkg/cache"
	"tourly/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		appLogger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Set Gin mode (debug/release)
	gin.SetMode(cfg.GinMode)

	// Initialize DB
	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	cacheService := cache.NewService(db.GetRedisClient())

	// Notification producer feeds the operator-notifications topic. The
	// engine keeps running without it; money movements are never gated on
	// delivery.
	var notificationService notifications.Service
	producerConfig := notifications.DefaultKafkaProducerConfig()
	producerConfig.Brokers = cfg.Kafka.Brokers
	producerConfig.NotificationTopic = cfg.Kafka.NotificationTopic

	producer, err := notifications.NewKafkaNotificationProducer(producerConfig)
	if err != nil {
		appLogger.Error("failed to initialize Kafka producer", slog.Any("error", err))
		appLogger.Info("Continuing without notification delivery")
	} else {
		notificationService = notifications.NewService(producer, appLogger)
		defer func() {
			if err := notificationService.Close(); err != nil {
				appLogger.Error("error closing notification service", slog.Any("error", err))
			}
		}()
	}

	// Wire repositories and services. The ledger sits at the bottom;
	// bookings and operations mutate it inside their own transactions.
	ledgerRepo := ledger.NewRepository(db.GetPostgreSQL())
	ledgerService := ledger.NewService(db.GetPostgreSQL(), ledgerRepo)

	bookingRepo := bookings.NewRepository(db.GetPostgreSQL(), ledgerRepo)
	operationRepo := operations.NewRepository(db.GetPostgreSQL(), bookingRepo, ledgerRepo)

	operationService := operations.NewService(operationRepo, operationNotifier(notificationService), &operations.ServiceConfig{
		CancellationWindow: cfg.Workers.CancellationWindow(),
		OccupancyThreshold: cfg.Workers.OccupancyThreshold,
		BatchSize:          cfg.Workers.BatchSize,
		Pricing: pricing.Rules{
			WindowDays:     cfg.Pricing.EarlyBirdWindowDays,
			MinAdvanceDays: cfg.Pricing.MinAdvanceDays,
			DiscountRate:   cfg.Pricing.DiscountRate,
		},
	}, appLogger)

	bookingService := bookings.NewService(bookingRepo, operationService, bookingNotifier(notificationService), &bookings.ServiceConfig{
		ReservationTTL:        15 * time.Minute,
		MaturationDelay:       cfg.Workers.MaturationDelay(),
		CommissionRate:        cfg.Workers.CommissionRate,
		BatchSize:             cfg.Workers.BatchSize,
		MaturationMaxFailures: cfg.Workers.MaturationMaxFailures,
	}, appLogger)

	// Background workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	runner := workers.NewRunner(cacheService, appLogger)
	runner.Register(workers.NewExpirationReaper(bookingService, cfg.Workers.ReaperInterval))
	runner.Register(workers.NewAutoCancellationJob(operationService, cfg.Workers.AutoCancelInterval))
	runner.Register(workers.NewRevenueMaturationJob(bookingService, cfg.Workers.MaturationInterval))
	runner.Start(workerCtx)

	// Ops surface
	engine := routes.NewEngine(cfg)
	appRouter := routes.NewRouter(cfg, db, runner, notificationService, ledgerService, bookingService, operationService)
	appRouter.SetupRoutes(engine)

	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		appLogger.Info("🚀 Engine running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("version", Version),
			slog.Duration("reaper_interval", cfg.Workers.ReaperInterval),
			slog.Duration("auto_cancel_interval", cfg.Workers.AutoCancelInterval),
			slog.Duration("maturation_interval", cfg.Workers.MaturationInterval),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down...")

	runner.Stop()
	workerCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Engine exited gracefully")
}

// operationNotifier adapts the notification service to the local interface
// the operations package declares. A nil service disables delivery.
func operationNotifier(svc notifications.Service) operations.NotificationService {
	if svc == nil {
		return nil
	}
	return svc
}

// bookingNotifier adapts the notification service to the local interface
// the bookings package declares
func bookingNotifier(svc notifications.Service) bookings.NotificationService {
	if svc == nil {
		return nil
	}
	return svc
}
