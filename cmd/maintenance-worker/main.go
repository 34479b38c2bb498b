package main

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"flota/internal/amqp"
	"flota/internal/cli"
	applog "flota/internal/log"
	"flota/internal/services"
	"flota/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentMaintenance)
	logger.Info("Starting maintenance-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AlertScanSchedule == "" {
		logger.Error("ALERT_SCAN_SCHEDULE cannot be empty")
		os.Exit(1)
	}

	store := cli.InitBackend(context.Background(), logger, cfg)
	defer store.Close()

	fleet := services.NewFleetService(store.Backend,
		services.WithLogger(logger.WithComponent(applog.ComponentFleet)))

	// Alerts go to the broker when one is configured, otherwise to the log only.
	var publisher worker.AlertPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		logger.Info("Publishing alerts", "queue", client.AlertQueue())
	}

	scanner := worker.NewAlertScanner(fleet, publisher, logger.Logger)
	scheduler := cron.New()
	if _, err := scanner.Schedule(scheduler, cfg.AlertScanSchedule, 2*time.Minute); err != nil {
		logger.Error("Invalid alert scan schedule", applog.FieldError, err, "schedule", cfg.AlertScanSchedule)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		<-scheduler.Stop().Done()
	})

	// Run once at startup so a fresh deploy reports immediately.
	if n, err := scanner.Scan(ctx); err != nil {
		logger.Error("Startup alert scan failed", applog.FieldError, err)
	} else {
		logger.Info("Startup alert scan done", "alerts", n)
	}

	scheduler.Start()
	logger.Info("Alert scan scheduled", "schedule", cfg.AlertScanSchedule)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Maintenance worker stopped")
}
