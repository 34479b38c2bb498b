package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"flota/internal/advisor"
	"flota/internal/cache"
	"flota/internal/cli"
	apphttp "flota/internal/http"
	applog "flota/internal/log"
	"flota/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	store := cli.InitBackend(ctx, logger, cfg)

	fleet := services.NewFleetService(store.Backend,
		services.WithLogger(logger.WithComponent(applog.ComponentFleet)))

	ai, err := advisor.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	if err != nil {
		logger.Error("Failed to initialize advisor", applog.FieldError, err)
		os.Exit(1)
	}
	if !ai.Enabled() {
		logger.Info("Advisor disabled - no GEMINI_API_KEY provided")
	}

	caches := cache.NewManager(logger.Logger)
	for _, c := range ai.Caches() {
		caches.Register(c)
	}
	caches.StartCleanup(5 * time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, fleet, apphttp.Options{
		Advisor:      ai,
		PasswordHash: cfg.DashboardPasswordHash,
		Logger:       logger,
	})
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		caches.Stop()
		if err := store.Close(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	logger.Info("Starting flota server",
		"port", cfg.Port,
		applog.FieldBackend, cfg.DataBackend,
		"advisor", ai.Enabled(),
		"password_gate", cfg.DashboardPasswordHash != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
