package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"gota/internal/amqp"
	"gota/internal/auth"
	"gota/internal/cache"
	"gota/internal/classify"
	"gota/internal/classify/llm"
	"gota/internal/cli"
	"gota/internal/config"
	apphttp "gota/internal/http"
	"gota/internal/log"
	"gota/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()
	stores := be.Stores

	// Without a broker the spreadsheet mirror is only refreshed by the
	// worker's periodic resync.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	authSvc := auth.NewService(stores.Users, stores.Sessions, cfg.SessionDuration, logger)
	caches := cache.NewManager(logger)
	caches.Register(authSvc.Cache())

	expenses := services.NewExpenseService(stores.Expenses, publisher, services.ExpenseOptions{
		DailyLimit: cfg.DailyExpenseLimit,
		DraftTTL:   cfg.DraftTTL,
	}, logger)
	caches.Register(expenses.Tracker().Cache())
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	svc := apphttp.Services{
		Auth:      authSvc,
		Expenses:  expenses,
		Income:    services.NewIncomeService(stores.Income, logger),
		Config:    services.NewConfigService(stores.Config, publisher, logger),
		Dashboard: services.NewDashboardService(stores.Expenses, stores.Income, stores.Config, logger),
		Analytics: services.NewAnalyticsService(stores.Expenses, stores.Income, stores.Config, logger),
		Export:    services.NewExportService(stores.Expenses, stores.Config, logger),
		Parse:     services.NewParseService(newClassifier(cfg, logger), stores.Config, logger),
		Account:   services.NewAccountService(stores, authSvc, publisher, logger, expenses.ForgetUser),
		Health:    stores.Health,
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		SecureCookies:      cfg.SecureCookies,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
	}, svc)
	if err != nil {
		logger.Error("Failed to configure server", log.FieldError, err)
		os.Exit(1)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		m := srv.Metrics()
		logger.Info("Server metrics",
			"total_requests", m.Requests.TotalRequests,
			"server_failures", m.Requests.ServerFailures,
			"rate_limited", m.RateLimit.TotalHits,
			"suspicious_requests", m.Security.SuspiciousRequests,
			"invalid_ip_attempts", m.Security.InvalidIPAttempts)
	})

	logger.Info("Starting gota server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}

// newClassifier returns nil when no model is configured; parsing then
// answers as unavailable.
func newClassifier(cfg *config.Config, logger *log.Logger) *classify.Classifier {
	if cfg.LLMAPIKey == "" {
		logger.Info("Expense parser disabled - no LLM_API_KEY provided")
		return nil
	}
	client := llm.New(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMTimeout)
	logger.Info("Expense parser enabled", "model", cfg.LLMModel)
	return classify.NewClassifier(client, logger)
}
