package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/akeren/waitlist-intake/config"
	"github.com/akeren/waitlist-intake/domain"
	"github.com/akeren/waitlist-intake/internal/log"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := log.NewLoggerWithJSONOutput()

	autoMigrate := false

	for _, arg := range os.Args[1:] {
		if strings.ToLower(arg) == "--auto-migrate" || strings.ToLower(arg) == "-m" {
			autoMigrate = true
			break
		}
	}

	appConfig, err := config.LoadApplicationConfiguration(logger, autoMigrate)
	if err != nil {
		logger.Error("Failed to load application configuration", "error", err.Error())
		os.Exit(1)
	}

	domain.SetupCoreDomain(appConfig)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 2)
	go func() {
		if err := appConfig.RouterService.RunHTTPServer(); err != nil {
			serverErr <- err
		}
	}()
	go func() {
		if err := appConfig.RouterService.RunOpsServer(); err != nil {
			serverErr <- err
		}
	}()

	logger.Info("Waitlist intake service started")

	select {
	case err := <-serverErr:
		logger.Error("Server error", "error", err)
		shutdown(appConfig, logger)
		os.Exit(1)
	case sig := <-quit:
		logger.Info("Shutdown signal received, shutting down gracefully...", "signal", sig.String())
		shutdown(appConfig, logger)
		logger.Info("Graceful shutdown completed")
	}
}

func shutdown(appConfig *config.ApplicationConfig, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := appConfig.RouterService.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	} else {
		logger.Info("HTTP servers shut down gracefully")
	}
	appConfig.Cleanup()
}
