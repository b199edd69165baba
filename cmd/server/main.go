package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"parkingserver/internal/app"
	"parkingserver/internal/config"
	"parkingserver/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	l, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer l.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.NewApp(cfg, l).Run(ctx); err != nil {
		l.Error("Server stopped: %v", err)
		os.Exit(1)
	}
}
