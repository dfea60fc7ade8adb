package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/openvax/vaxclinic-platform/internal/api/router"
	"github.com/openvax/vaxclinic-platform/internal/appointments"
	"github.com/openvax/vaxclinic-platform/internal/availability"
	"github.com/openvax/vaxclinic-platform/internal/children"
	"github.com/openvax/vaxclinic-platform/internal/clinics"
	appconfig "github.com/openvax/vaxclinic-platform/internal/config"
	"github.com/openvax/vaxclinic-platform/internal/events"
	"github.com/openvax/vaxclinic-platform/internal/inventory"
	"github.com/openvax/vaxclinic-platform/internal/observability/metrics"
	"github.com/openvax/vaxclinic-platform/internal/records"
	"github.com/openvax/vaxclinic-platform/internal/vaccines"
	"github.com/openvax/vaxclinic-platform/pkg/logging"
)

func newRedisClient(cfg *appconfig.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting vaxclinic-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.AuthJWTSecret == "" {
		logger.Error("AUTH_JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := newRedisClient(cfg)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	} else {
		logger.Warn("redis not configured, clinic schedules fall back to defaults")
	}

	// Repositories.
	clinicsRepo := clinics.NewRepository(pool)
	statsRepo := clinics.NewStatsRepository(pool)
	vaccinesRepo := vaccines.NewRepository(pool)
	childrenRepo := children.NewRepository(pool)
	inventoryRepo := inventory.NewRepository(pool)
	recordsRepo := records.NewRepository(pool)
	apptRepo := appointments.NewRepository(pool)

	scheduleStore := clinics.NewScheduleStore(redisClient, clinics.ScheduleDefaults{
		StartHour:   cfg.SlotStartHour,
		EndHour:     cfg.SlotEndHour,
		SlotMinutes: cfg.SlotDurationMinutes,
	})

	outbox := events.NewOutbox(pool)
	deliverer := events.NewDeliverer(outbox, events.NewLogHandler(logger),
		cfg.OutboxInterval, cfg.OutboxBatchSize, logger)
	go deliverer.Run(ctx)

	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)

	service := appointments.NewService(
		apptRepo, clinicsRepo, scheduleStore, vaccinesRepo, childrenRepo,
		inventoryRepo, recordsRepo, outbox, bookingMetrics,
		cfg.BookingHorizonDays, logger,
	)

	r := router.New(router.Config{
		Logger:             logger,
		JWTSecret:          cfg.AuthJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
		Availability:       availability.NewHandler(clinicsRepo, scheduleStore, apptRepo, cfg.BookingHorizonDays, logger),
		Appointments:       appointments.NewHandler(service, logger),
		Clinics:            clinics.NewHandler(clinicsRepo, scheduleStore, logger),
		Stats:              clinics.NewStatsHandler(statsRepo, logger),
		Inventory:          inventory.NewHandler(inventoryRepo, logger),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
