package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arjunkapur/swiftkart-backend/internal/notifications"
	"github.com/arjunkapur/swiftkart-backend/internal/orderlock"
	"github.com/arjunkapur/swiftkart-backend/internal/orders"
	"github.com/arjunkapur/swiftkart-backend/internal/payments"
	"github.com/arjunkapur/swiftkart-backend/pkg/config"
	"github.com/arjunkapur/swiftkart-backend/pkg/db"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	"github.com/arjunkapur/swiftkart-backend/pkg/gateway"
	"github.com/arjunkapur/swiftkart-backend/pkg/logger"
	"github.com/arjunkapur/swiftkart-backend/pkg/metrics"
	"github.com/arjunkapur/swiftkart-backend/pkg/otp"
	"github.com/arjunkapur/swiftkart-backend/pkg/outbox"
	"github.com/arjunkapur/swiftkart-backend/pkg/pubsub"
	"github.com/arjunkapur/swiftkart-backend/pkg/redis"
)

// The notifier binary hosts the two background loops: the outbox drain to
// Pub/Sub and the bounded payment status poller.
func main() {
	logg := logger.New(logger.Options{ServiceName: "notifier"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "notifier",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer pubsubClient.Close()

	publisher, err := notifications.NewTopicPublisher(pubsubClient.NotificationPublisher())
	if err != nil {
		logg.Error(ctx, "failed to create topic publisher", err)
		os.Exit(1)
	}
	dispatcher, err := notifications.NewDispatcher(outbox.NewRepository(dbClient.DB()), publisher, cfg.Outbox, logg)
	if err != nil {
		logg.Error(ctx, "failed to create dispatcher", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reconcilerMetrics := metrics.NewReconcilerMetrics(registry)

	gateways := map[enums.PaymentGateway]gateway.Client{
		enums.PaymentGatewaySMEPay:   gateway.NewSMEPay(cfg.SMEPay, logg),
		enums.PaymentGatewayCashfree: gateway.NewCashfree(cfg.Cashfree, logg),
	}
	defaultGateway, err := enums.ParsePaymentGateway(cfg.Payments.DefaultGateway)
	if err != nil {
		logg.Error(ctx, "invalid default payment gateway", err)
		os.Exit(1)
	}

	lockManager, err := orderlock.NewManager(redisClient, cfg.OrderLock)
	if err != nil {
		logg.Error(ctx, "failed to create lock manager", err)
		os.Exit(1)
	}
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersRepo := orders.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())

	otpService := otp.NewService(redisClient, cfg.OTP)

	paymentsService, err := payments.NewService(paymentsRepo, ordersRepo, dbClient, outboxService, lockManager, otpService, gateways, defaultGateway, reconcilerMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create payments service", err)
		os.Exit(1)
	}
	poller := payments.NewPoller(paymentsRepo, ordersRepo, paymentsService, gateways, cfg.Polling, reconcilerMetrics, logg)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error(context.Background(), "metrics server failed", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			logg.Error(context.Background(), "dispatcher stopped", err)
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
			logg.Error(context.Background(), "poller stopped", err)
			stop()
		}
	}()

	logg.Info(ctx, "notifier running")
	<-ctx.Done()
	logg.Info(context.Background(), "shutting down notifier")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	wg.Wait()
}
