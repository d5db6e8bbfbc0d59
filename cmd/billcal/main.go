package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"billcal/internal/cache"
	"billcal/internal/cli"
	apphttp "billcal/internal/http"
	applog "billcal/internal/log"
	"billcal/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	res := cli.InitBackend(context.Background(), logger.Logger, cfg)

	enricher := services.NewEventEnricher(res.Store, cfg.EnrichConcurrency)
	bills := services.NewBillService(res.Store, enricher, res.Publisher, cache.NewMonthEvents(cfg.CacheTTL))

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Bills:              bills,
		Pinger:             res.Pinger,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting billcal server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp", cfg.AMQPEnabled())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
