package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/ibrahimkeyboad/tappay/internal/adapter/handler"
	"github.com/ibrahimkeyboad/tappay/internal/adapter/middleware"
	"github.com/ibrahimkeyboad/tappay/internal/adapter/storage"
	"github.com/ibrahimkeyboad/tappay/internal/core/config"
	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
	"github.com/ibrahimkeyboad/tappay/internal/core/identity"
	"github.com/ibrahimkeyboad/tappay/internal/core/notifications"
	"github.com/ibrahimkeyboad/tappay/internal/core/payreq"
	"github.com/ibrahimkeyboad/tappay/internal/core/transfer"
	"github.com/ibrahimkeyboad/tappay/internal/core/worker"
)

func main() {
	// 1. Setup Logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 2. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("❌ Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connect to Storage
	backend, err := storage.Open(ctx, cfg.StorageDriver, cfg.DatabaseURL)
	if err != nil {
		slog.Error("❌ Storage connection failed", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	slog.Info("🗄️ Storage ready", "driver", backend.Driver)

	// 4. Event delivery
	publisher, closePublishers := buildPublishers(cfg, logger)
	dispatcher := worker.NewDispatcher(cfg.EventBuffer, publisher, logger)
	dispatcher.Start(cfg.EventWorkers)

	// 5. Core services
	mode := identity.Strict
	if cfg.AutoProvisionCards {
		mode = identity.AutoProvision
	}
	resolver := identity.NewResolver(backend.Accounts, identity.Config{
		Mode:                     mode,
		Currency:                 domain.Currency(cfg.Currency),
		StarterBalanceMinCents:   cfg.StarterBalanceMinCents,
		StarterBalanceMaxCents:   cfg.StarterBalanceMaxCents,
		RegistrationBalanceCents: cfg.RegistrationBalanceCents,
	}, logger)
	engine := transfer.NewEngine(backend.Accounts, dispatcher, logger)

	maxAmount, err := domain.ToMinor(cfg.MaxRequestAmount)
	if err != nil {
		slog.Error("❌ Invalid MAX_REQUEST_AMOUNT", "error", err)
		os.Exit(1)
	}
	broker := payreq.NewBroker(engine,
		payreq.WithTTL(cfg.PaymentRequestTTL),
		payreq.WithMaxAmount(maxAmount),
		payreq.WithPublisher(dispatcher),
		payreq.WithLogger(logger),
	)
	janitorDone := worker.StartJanitor(ctx, broker, cfg.JanitorInterval, logger)

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          handler.ErrorHandler,
	})
	app.Use(cors.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger(logger))

	handler.SetupRoutes(app, handler.Handlers{
		Account:     &handler.AccountHandler{Resolver: resolver, Store: backend.Accounts},
		Tap:         &handler.TapHandler{Resolver: resolver},
		Transaction: &handler.TransactionHandler{Engine: engine},
		Payment:     &handler.PaymentHandler{Broker: broker},
		Health:      &handler.HealthHandler{DB: backend.Accounts},
	}, backend.Idempotency)

	go func() {
		slog.Info("🚀 Server starting", "env", cfg.Env, "port", cfg.Port, "auto_provision", cfg.AutoProvisionCards)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
			stop()
		}
	}()

	// Block here until we receive a stop signal
	<-ctx.Done()
	slog.Info("🛑 Shutting down server...")

	// Stop accepting requests first so nothing publishes into a closed dispatcher
	if err := app.Shutdown(); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	<-janitorDone
	dispatcher.Shutdown()
	closePublishers()

	backend.Close()
	slog.Info("✅ Storage connection closed")

	slog.Info("👋 Server exited successfully")
}

// buildPublishers returns the configured event sinks and a func that
// releases them.
func buildPublishers(cfg *config.Config, logger *slog.Logger) (notifications.Publisher, func()) {
	var pubs notifications.Multi
	closers := []func(){}

	if cfg.WebhookURL != "" {
		if cfg.WebhookSecret == "" {
			slog.Warn("⚠️ WEBHOOK_SECRET is missing, webhooks will be unsigned")
		}
		pubs = append(pubs, notifications.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret))
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := notifications.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			slog.Error("❌ Kafka unavailable, events will not be streamed", "error", err)
		} else {
			pubs = append(pubs, kafka)
			closers = append(closers, func() {
				if err := kafka.Close(); err != nil {
					slog.Error("Failed to close kafka producer", "error", err)
				}
			})
		}
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(pubs) == 0 {
		slog.Info("No event sinks configured")
		return notifications.Nop{}, closeAll
	}
	return pubs, closeAll
}
