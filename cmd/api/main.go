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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"resultportal/internal/app"
	"resultportal/internal/audit"
	"resultportal/internal/cloudinary"
	"resultportal/internal/config"
	"resultportal/internal/handler"
	"resultportal/internal/httpmiddleware"
	"resultportal/internal/ingest"
	"resultportal/internal/logging"
	"resultportal/internal/metrics"
	"resultportal/internal/results"
)

const defaultSecret = "your-secret-key-change-in-production"

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api server failed", zap.Error(err))
	}
}

func run(cfg config.App, logger *zap.Logger) error {
	for _, w := range cfg.Warnings {
		logger.Warn("config", zap.String("warning", w))
	}
	if cfg.SessionSecret == defaultSecret {
		logger.Warn("SESSION_SECRET is the built-in default; set it before exposing the portal")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backends.Close()

	m := metrics.New(nil)

	authSvc, err := backends.AuthService(cfg, logger)
	if err != nil {
		return err
	}
	authSvc.WithObserver(m)

	var archive handler.Archiver
	if cfg.CloudinaryConfigured() {
		c := cfg.Cloudinary
		archive = cloudinary.New(c.CloudName, c.APIKey, c.APISecret, c.Folder)
		logger.Info("workbook archive enabled", zap.String("cloud", c.CloudName))
	} else {
		logger.Info("workbook archive disabled (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	h := handler.New(handler.Deps{
		Auth:           authSvc,
		Results:        results.NewService(backends.Repo, backends.Queue, logger).WithObserver(m),
		Pipeline:       ingest.NewPipeline(backends.Repo, logger).WithObserver(m),
		Archive:        archive,
		Events:         backends.Queue,
		Limiter:        backends.Limiter(cfg),
		Health:         backends.Health,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinLogger(logger, "/healthz", "/metrics"))
	r.Use(httpmiddleware.CORS(cfg.CORSOrigins))
	r.Use(httpmiddleware.SecurityHeaders())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.QueueBackend == "memory" {
		// nothing else can drain an in-process queue
		g.Go(func() error { return audit.Run(gctx, backends.Queue, logger.Named("audit")) })
	}
	g.Go(func() error {
		logger.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.StoreBackend),
			zap.String("queue", cfg.QueueBackend),
			zap.Bool("otp", authSvc.OTPEnabled()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}
