package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/arjunkapur/swiftkart-backend/api/controllers"
	"github.com/arjunkapur/swiftkart-backend/api/routes"
	"github.com/arjunkapur/swiftkart-backend/internal/delivery"
	"github.com/arjunkapur/swiftkart-backend/internal/orderlock"
	"github.com/arjunkapur/swiftkart-backend/internal/orders"
	"github.com/arjunkapur/swiftkart-backend/internal/payments"
	"github.com/arjunkapur/swiftkart-backend/internal/returns"
	"github.com/arjunkapur/swiftkart-backend/pkg/config"
	"github.com/arjunkapur/swiftkart-backend/pkg/db"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	"github.com/arjunkapur/swiftkart-backend/pkg/gateway"
	"github.com/arjunkapur/swiftkart-backend/pkg/logger"
	"github.com/arjunkapur/swiftkart-backend/pkg/metrics"
	"github.com/arjunkapur/swiftkart-backend/pkg/migrate"
	"github.com/arjunkapur/swiftkart-backend/pkg/otp"
	"github.com/arjunkapur/swiftkart-backend/pkg/outbox"
	"github.com/arjunkapur/swiftkart-backend/pkg/redis"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reconcilerMetrics := metrics.NewReconcilerMetrics(registry)

	lockManager, err := orderlock.NewManager(redisClient, cfg.OrderLock)
	if err != nil {
		logg.Error(context.Background(), "failed to create lock manager", err)
		os.Exit(1)
	}
	otpService := otp.NewService(redisClient, cfg.OTP)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ordersRepo := orders.NewRepository(dbClient.DB())
	deliveryRepo := delivery.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())
	returnsRepo := returns.NewRepository(dbClient.DB())

	gateways := map[enums.PaymentGateway]gateway.Client{
		enums.PaymentGatewaySMEPay:   gateway.NewSMEPay(cfg.SMEPay, logg),
		enums.PaymentGatewayCashfree: gateway.NewCashfree(cfg.Cashfree, logg),
	}
	defaultGateway, err := enums.ParsePaymentGateway(cfg.Payments.DefaultGateway)
	if err != nil {
		logg.Error(context.Background(), "invalid default payment gateway", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxService, lockManager)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}
	paymentsService, err := payments.NewService(paymentsRepo, ordersRepo, dbClient, outboxService, lockManager, otpService, gateways, defaultGateway, reconcilerMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}
	deliveryService, err := delivery.NewService(deliveryRepo, ordersRepo, dbClient, outboxService, lockManager, otpService, paymentsService)
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery service", err)
		os.Exit(1)
	}
	returnsService, err := returns.NewService(returnsRepo, ordersRepo, dbClient, outboxService, lockManager, otpService)
	if err != nil {
		logg.Error(context.Background(), "failed to create returns service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Deps{
		Config: cfg,
		Logger: logg,
		Pingers: map[string]controllers.Pinger{
			"db":    dbClient,
			"redis": redisClient,
		},
		Registry: registry,
		Orders:   ordersService,
		Delivery: deliveryService,
		Payments: paymentsService,
		Returns:  returnsService,
	})

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logCtx := logg.WithField(context.Background(), "port", cfg.App.Port)
		logg.Info(logCtx, "api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(context.Background(), "http server failed", err)
			stop()
		}
	}()

	<-shutdownCtx.Done()
	logg.Info(context.Background(), "shutting down api")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logg.Error(ctx, "graceful shutdown failed", err)
	}
}
