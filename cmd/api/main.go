package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"compras/internal/config"
	"compras/internal/database"
	"compras/internal/handlers"
	"compras/internal/logger"
	"compras/internal/notify"
	"compras/internal/realtime"
	"compras/internal/services"
	"compras/internal/storage"
	"compras/internal/validator"

	_ "compras/internal/docs" // Import swagger docs
)

// @title           Compras API
// @version         1.0
// @description     Purchase requests, approval workflow and monthly budget control.

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownTimeout = 15 * time.Second

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run(ctx context.Context) error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	validator.Register()

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("failed to close database: %v", err)
		}
	}()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	files, err := storage.NewLocal(appConfig.MediaRoot)
	if err != nil {
		return fmt.Errorf("failed to prepare media root: %w", err)
	}

	hub := realtime.NewHub(appConfig.AllowedOrigins, logger.Named("realtime"))
	go hub.Run(ctx)

	// Services
	db := dbManager.DB()
	loc := appConfig.Location
	notificationService := services.NewNotificationService(db, services.NotificationOptions{
		MaxAttempts: appConfig.Notify.MaxAttempts,
		RetryDelay:  appConfig.Notify.RetryDelay,
	})
	userService := services.NewUserService(db, notificationService)
	directoryService := services.NewDirectoryService(db)
	catalogService := services.NewCatalogService(db)
	budgetService := services.NewBudgetService(db, loc)
	requestService := services.NewRequestService(db, loc, budgetService, notificationService, files, hub)
	reportService := services.NewReportService(db, loc)
	auditService := services.NewAuditService(db)

	dispatcher := notify.NewDispatcher(
		notificationService,
		notify.NewSender(appConfig.Email, logger.Named("email")),
		notify.Options{
			PollInterval: appConfig.Notify.PollInterval,
			BatchSize:    appConfig.Notify.BatchSize,
			Workers:      appConfig.Notify.Workers,
			FrontendURL:  appConfig.FrontendURL,
		},
		logger.Named("notify"),
	)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	rt := &handlers.Router{
		Auth:           handlers.NewAuthHandler(userService, auditService),
		Users:          handlers.NewUserHandler(userService, auditService),
		Directory:      handlers.NewDirectoryHandler(directoryService, auditService),
		Catalog:        handlers.NewCatalogHandler(catalogService, auditService),
		Budgets:        handlers.NewBudgetHandler(budgetService, auditService),
		Requests:       handlers.NewRequestHandler(requestService, auditService),
		Reports:        handlers.NewReportHandler(reportService),
		Notification:   handlers.NewNotificationHandler(notificationService, dispatcher),
		Realtime:       handlers.NewRealtimeHandler(hub, userService),
		AllowedOrigins: appConfig.AllowedOrigins,
		ServiceAPIKey:  appConfig.ServiceAPIKey,
		Ping:           dbManager.Ping,
	}

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           rt.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting compras backend server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
