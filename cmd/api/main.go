package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/petalroute/petalroute-backend/api/routes"
	"github.com/petalroute/petalroute-backend/internal/coupons"
	"github.com/petalroute/petalroute-backend/internal/ledger"
	"github.com/petalroute/petalroute-backend/internal/merchants"
	"github.com/petalroute/petalroute-backend/internal/orders"
	"github.com/petalroute/petalroute-backend/internal/pricing"
	"github.com/petalroute/petalroute-backend/internal/settlements"
	"github.com/petalroute/petalroute-backend/pkg/config"
	"github.com/petalroute/petalroute-backend/pkg/db"
	"github.com/petalroute/petalroute-backend/pkg/logger"
	"github.com/petalroute/petalroute-backend/pkg/migrate"
	"github.com/petalroute/petalroute-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

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

	calculator, err := pricing.NewCalculator(cfg.Orders, cfg.Points)
	if err != nil {
		logg.Error(context.Background(), "failed to build pricing calculator", err)
		os.Exit(1)
	}

	merchantsRepo := merchants.NewRepository(dbClient.DB())
	merchantsSvc, err := merchants.NewService(merchantsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create merchants service", err)
		os.Exit(1)
	}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	couponsSvc, err := coupons.NewService(coupons.ServiceParams{
		Repo:     coupons.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Validity: cfg.Points.GrantValidity(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create coupons service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:       orders.NewRepository(dbClient.DB()),
		Tx:         dbClient,
		Calculator: calculator,
		Ledger:     ledgerSvc,
		Coupons:    couponsSvc,
		Accounts:   merchantsRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Orders:      ordersSvc,
			Merchants:   merchantsSvc,
			Ledger:      ledgerSvc,
			Coupons:     couponsSvc,
			Settlements: settlementsSvc,
			Metrics:     registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
