package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"drivematch/internal/bootstrap"
	"drivematch/internal/platform/config"
	"drivematch/internal/platform/logger"
)

// main wires high-level dependencies and runs the HTTP API until SIGINT or
// SIGTERM. Business logic lives in internal service packages.
func main() {
	// a missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Serve(ctx); err != nil {
		log.Error("server exited", "error", err)
		app.Close()
		os.Exit(1)
	}
}
