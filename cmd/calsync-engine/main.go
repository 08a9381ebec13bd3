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

	"go.uber.org/zap"

	"github.com/finledger/calsync/internal/audit"
	"github.com/finledger/calsync/internal/config"
	"github.com/finledger/calsync/internal/database"
	"github.com/finledger/calsync/internal/gcal"
	"github.com/finledger/calsync/internal/handler"
	"github.com/finledger/calsync/internal/repository"
	"github.com/finledger/calsync/internal/scheduler"
	"github.com/finledger/calsync/internal/service"
	"github.com/finledger/calsync/internal/vault"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(db)

	logger.Info("database connected")

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		return err
	}
	logger.Info("migrations completed")

	// Initialize repositories
	eventRepo := repository.NewEventRepository(db)
	mappingRepo := repository.NewMappingRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	recorder := audit.NewRecorder(auditRepo, logger)

	// Initialize calendar provider client
	gcalClient := gcal.NewClient(cfg.GoogleClientID, cfg.GoogleClientSecret, logger)

	// Initialize token vault
	cipher, err := vault.NewCipher(cfg.VaultMasterKey)
	if err != nil {
		return err
	}
	tokenVault := vault.New(cipher, credentialRepo, gcalClient, recorder, logger)

	// Initialize sync services
	orchestrator := service.NewOrchestrator(service.Config{
		SyncWindow: time.Duration(cfg.SyncWindowDays) * 24 * time.Hour,
		LoopGuard:  time.Duration(cfg.LoopGuardWindow) * time.Second,
		Retry: service.RetryPolicy{
			MaxAttempts:    cfg.MaxRetries,
			InitialBackoff: time.Duration(cfg.RetryBackoff) * time.Second,
		},
	}, eventRepo, mappingRepo, settingsRepo, tokenVault, gcalClient, recorder, logger)

	channelManager := service.NewChannelManager(settingsRepo, mappingRepo, tokenVault, gcalClient, recorder, logger, cfg.WebhookURL)

	router := handler.NewRouter(handler.RouterDeps{
		Sync:        handler.NewSyncHandler(orchestrator, channelManager, logger),
		Webhook:     handler.NewWebhookHandler(settingsRepo, orchestrator, logger),
		Settings:    handler.NewSettingsHandler(settingsRepo, logger),
		Credentials: handler.NewCredentialsHandler(tokenVault, logger),
		Audit:       handler.NewAuditHandler(recorder, logger),
		JWTSecret:   cfg.JWTSecret,
		Logger:      logger,
	})

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start periodic jobs
	sched := scheduler.New(settingsRepo, orchestrator, channelManager, logger, scheduler.Config{
		IncrementalSpec:    cfg.IncrementalSpec,
		ChannelRenewalSpec: cfg.ChannelRenewalSpec,
	})
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
	}

	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
		return err
	}

	logger.Info("server stopped")
	return nil
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
