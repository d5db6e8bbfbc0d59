package main

import (
	"context"
	"os"
	"time"

	"billcal/internal/cli"
	applog "billcal/internal/log"
	"billcal/internal/notify"
	"billcal/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentRollover)

	logger.Info("Starting rollover-worker")

	if err := cfg.ValidateRolloverWorker(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	res := cli.InitBackend(context.Background(), logger.Logger, cfg)

	enricher := services.NewEventEnricher(res.Store, cfg.EnrichConcurrency)
	// The web app keeps its own month cache.
	bills := services.NewBillService(res.Store, enricher, res.Publisher, nil)

	var sender notify.Sender
	if cfg.MailgunEnabled() {
		sender = notify.NewMailgunSender(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.ReminderFrom, cfg.ReminderTo)
		logger.Info("Mailgun reminders enabled", "domain", cfg.MailgunDomain, "recipients", len(cfg.ReminderTo))
	} else {
		sender = notify.NewLogSender(logger.WithComponent(applog.ComponentReminder).Logger)
		logger.Info("Mailgun not configured, reminders are logged only")
	}

	rollover := services.NewRolloverProcessor(res.Store, bills)
	reminder := services.NewReminderProcessor(res.Store, enricher, sender, cfg.ReminderWindowDays)

	scheduler := services.NewScheduler(
		services.SchedulerConfig{Interval: cfg.RolloverInterval},
		services.Job{Name: "rollover", Run: rollover.Process},
		services.Job{Name: "reminder", Run: reminder.Process},
	)

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := scheduler.Stop(stopCtx); err != nil {
			logger.Error("Scheduler stop error", "error", err)
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		return
	}
	logger.Info("Rollover worker configured",
		"interval", cfg.RolloverInterval,
		"reminder_window_days", cfg.ReminderWindowDays,
		"backend", cfg.DataBackend)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Rollover-worker shutdown complete")
}
