package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	config "github.com/lizTheDeveloper/llm-tutor-sub000/configs"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/application/services"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/ports"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/db"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/email"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/health"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/httpserver"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/metrics"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/redis"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/repositories"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	logger := utils.NewLogger(cfg.Log)
	logger.Info("Starting quota gate...")

	if cfg.JWT.Secret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	database, err := db.NewDatabaseWithConfig(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database: ", err)
	}
	defer database.Close()
	logger.Info("Connected to principal directory database")

	if err := database.Migrate(cfg.Database.MigrationsPath); err != nil {
		logger.Warn("Failed to run migrations: ", err)
	}

	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis: ", err)
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis successfully")

	// Shared store repositories
	windowRepo := repositories.NewWindowCounterRedisRepository(redisClient, cfg.Gate.WindowKeyPrefix)
	ledgerRepo := repositories.NewCostLedgerRedisRepository(redisClient, cfg.Gate.CostKeyPrefix, cfg.Gate.CostRecordSafetyMargin)

	// Principal directory: postgres behind a shared Redis cache
	redisCache := redis.NewRedisCache(redisClient, repositories.DirectoryCachePrefix)
	baseDirectory := repositories.NewPrincipalRepository(database.DB, logger)
	directory := repositories.NewCachingPrincipalDirectory(baseDirectory, redisCache, cfg.Gate.DirectoryCacheTTL)

	gateMetrics := metrics.NewGateMetrics(nil)

	resolver := services.NewTierResolverService(directory, cfg.Limits, cfg.Gate.TierCacheTTL, logger)

	gate := services.NewEnforcementGateService(resolver, windowRepo, ledgerRepo, gateMetrics, &services.EnforcementGateConfig{
		StoreTimeout:        cfg.Gate.StoreTimeout,
		DirectoryTimeout:    cfg.Gate.DirectoryTimeout,
		WindowFailurePolicy: services.WindowFailurePolicy(cfg.Gate.WindowFailurePolicy),
	}, logger)

	var notifier ports.AlertNotifier
	if cfg.Alert.SendGridAPIKey != "" && cfg.Alert.To != "" {
		n, err := email.NewAlertNotifier(&email.AlertConfig{
			SendGridAPIKey: cfg.Alert.SendGridAPIKey,
			FromEmail:      cfg.Alert.FromEmail,
			FromName:       cfg.Alert.FromName,
			To:             cfg.Alert.To,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize alert notifier: ", err)
		}
		notifier = n
	} else {
		logger.Info("E-mail budget alerts disabled; warnings are logged only")
	}

	updater := services.NewBudgetUpdaterService(ledgerRepo, resolver, services.NewPricing(cfg.Limits.Pricing), notifier, gateMetrics, &services.BudgetUpdaterConfig{
		WriteTimeout:     cfg.Gate.BudgetWriteTimeout,
		WarningThreshold: cfg.Gate.CostWarningThreshold,
	}, logger)

	reporter := services.NewUsageReportService(resolver, windowRepo, ledgerRepo, logger)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 1m", func() {
		if n := resolver.PurgeExpired(); n > 0 {
			logger.WithFields(logrus.Fields{"purged": n}).Debug("tier cache purged")
		}
	}); err != nil {
		logger.Fatal("Failed to schedule tier cache purge: ", err)
	}
	scheduler.Start()

	serverConfig := &httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		TLSCertFile:  cfg.Server.TLSCertFile,
		TLSKeyFile:   cfg.Server.TLSKeyFile,
		JWTSecret:    cfg.JWT.Secret,
		JWTIssuer:    cfg.JWT.Issuer,
	}

	deps := httpserver.ServerDeps{
		Gate:             gate,
		BudgetUpdater:    updater,
		UsageReporter:    reporter,
		OperationClasses: cfg.Limits.OperationClasses(),
		HealthCheckers:   []ports.HealthChecker{health.NewDBHealthChecker(database), health.NewRedisHealthChecker(redisClient)},
	}
	server := httpserver.NewServer(serverConfig, logger, deps)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: ", err)
		}
	}()

	logger.WithFields(logrus.Fields{
		"addr":                  cfg.Server.Host + ":" + cfg.Server.Port,
		"operation_classes":     deps.OperationClasses,
		"fallback_tier":         cfg.Limits.FallbackTier,
		"window_failure_policy": cfg.Gate.WindowFailurePolicy,
	}).Info("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown: ", err)
	}
	<-scheduler.Stop().Done()
	if err := updater.Close(ctx); err != nil {
		logger.WithError(err).Error("Pending budget writes were abandoned")
	}

	logger.Info("Server exited")
}
