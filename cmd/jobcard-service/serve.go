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

	"github.com/spf13/cobra"

	"jobcard-service/internal/auth"
	"jobcard-service/internal/config"
	"jobcard-service/internal/db"
	httphandler "jobcard-service/internal/http"
	"jobcard-service/internal/http/middleware"
	"jobcard-service/internal/logger"
	"jobcard-service/internal/model"
	"jobcard-service/internal/repository"
	"jobcard-service/internal/service"
	"jobcard-service/internal/sop"
	"jobcard-service/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations and start the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appLogger := logger.New(cfg.Environment)

	database, err := db.New(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	registry, err := sop.NewRegistry(sop.DefaultTemplates())
	if err != nil {
		return fmt.Errorf("failed to load sop templates: %w", err)
	}

	blobs, err := storage.New(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("failed to init blob store: %w", err)
	}

	overrideRoles := make([]model.UserRole, 0, len(cfg.SOP.OverrideRoles))
	for _, role := range cfg.SOP.OverrideRoles {
		overrideRoles = append(overrideRoles, model.UserRole(role))
	}

	jobCardRepo := repository.NewJobCardRepository(database)
	overrideRepo := repository.NewOverrideRepository(database)
	transactor := repository.NewTransactor(database)

	auditor := service.NewOverrideAuditor(overrideRepo, cfg.SOP.MinOverrideReasonLen, overrideRoles)
	workflowService := service.NewWorkflowService(jobCardRepo, transactor, registry, auditor, blobs, appLogger)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	mediaRoot := ""
	if cfg.Blob.Driver == config.BlobDriverLocal && cfg.Blob.PublicBaseURL == "" {
		mediaRoot = cfg.Blob.LocalRoot
	}

	handler := httphandler.NewHandler(workflowService, appLogger)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, mediaRoot)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info().Str("addr", addr).Str("blob_driver", cfg.Blob.Driver).Msg("starting jobcard service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	appLogger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
