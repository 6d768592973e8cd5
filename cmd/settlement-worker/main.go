package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/petalroute/petalroute-backend/internal/cron"
	"github.com/petalroute/petalroute-backend/internal/merchants"
	"github.com/petalroute/petalroute-backend/internal/settlements"
	"github.com/petalroute/petalroute-backend/pkg/config"
	"github.com/petalroute/petalroute-backend/pkg/db"
	"github.com/petalroute/petalroute-backend/pkg/logger"
	"github.com/petalroute/petalroute-backend/pkg/metrics"
	"github.com/petalroute/petalroute-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "settlement-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "settlement-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	merchantsRepo := merchants.NewRepository(dbClient.DB())
	settlementsSvc, err := settlements.NewService(settlements.ServiceParams{
		Repo:      settlements.NewRepository(dbClient.DB()),
		Tx:        dbClient,
		Merchants: merchantsRepo,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlements service", err)
		os.Exit(1)
	}

	settlementJob, err := cron.NewSettlementJob(cron.SettlementJobParams{
		Logger:   logg,
		Batch:    settlementsSvc,
		Weekday:  time.Weekday(cfg.Settlement.Weekday),
		Hour:     cfg.Settlement.Hour,
		Location: cfg.Settlement.Location(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redis.LockKey("settlement-worker"), cfg.Settlement.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	worker, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(settlementJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(registry),
		Interval: cfg.Settlement.CheckInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"weekday":  cfg.Settlement.Weekday,
		"hour":     cfg.Settlement.Hour,
		"timezone": cfg.Settlement.Timezone,
	})
	logg.Info(ctx, "starting settlement worker")

	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		logg.Error(ctx, "settlement worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "settlement worker shut down")
}
