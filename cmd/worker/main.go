package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"resultportal/internal/app"
	"resultportal/internal/audit"
	"resultportal/internal/config"
	"resultportal/internal/logging"
)

// Worker consumes audit events published by the API and logs them.
func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.QueueBackend == "memory" {
		logger.Fatal("worker needs a shared queue; set QUEUE_BACKEND to redis or kafka")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := app.OpenQueue(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("backend init failed", zap.Error(err))
	}
	defer backends.Close()

	if err := audit.Run(ctx, backends.Queue, logger); err != nil {
		logger.Error("worker stopped", zap.Error(err))
	}
}
