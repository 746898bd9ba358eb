package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"salesboard/internal/api"
	"salesboard/internal/config"
	"salesboard/internal/engine"
	"salesboard/internal/export"
	"salesboard/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := telemetry.NewLogger(cfg.Log, os.Stderr)
	metrics := telemetry.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.Configure(e)
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: cfg.Server.AllowOrigins}))
	e.Use(middleware.Recover())
	e.Use(metrics.Middleware())
	e.Use(telemetry.RequestLogger(logger))
	if cfg.Server.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit))))
	}

	// The API is live immediately and answers 503 until the load below publishes.
	h := api.NewHandler(cfg.Dashboard.TopN, logger, metrics)
	h.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	go func() {
		if err := load(ctx, cfg, h, metrics); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			// A partial dashboard is never served.
			logger.Fatal().Err(err).Str("source", cfg.Data.Source).Msg("load failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("server ready, data loading in background")
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}

func load(ctx context.Context, cfg *config.Config, h *api.Handler, metrics *telemetry.Metrics) error {
	log := zerolog.Ctx(ctx)
	t0 := time.Now()

	src, err := engine.NewSource(ctx, cfg.Data.Source, engine.S3Options{
		Region:          cfg.Data.S3.Region,
		Endpoint:        cfg.Data.S3.Endpoint,
		PathStyle:       cfg.Data.S3.PathStyle,
		AccessKeyID:     cfg.Data.S3.AccessKeyID,
		SecretAccessKey: cfg.Data.S3.SecretAccessKey,
		SessionToken:    cfg.Data.S3.SessionToken,
	})
	if err != nil {
		return err
	}
	d, err := engine.Build(ctx, src)
	if err != nil {
		return err
	}
	h.SetData(d)

	elapsed := time.Since(t0)
	store := d.Store()
	metrics.ObserveLoad(store.Len(), len(store.PeriodDict), elapsed)
	log.Info().Dur("elapsed", elapsed).Int("rows", store.Len()).Msg("dashboard published")

	if cfg.Snapshot.SQLitePath != "" {
		if err := export.WriteSQLite(ctx, cfg.Snapshot.SQLitePath, d); err != nil {
			// Snapshot failures are logged only.
			log.Error().Err(err).Str("path", cfg.Snapshot.SQLitePath).Msg("sqlite snapshot failed")
			return nil
		}
		log.Info().Str("path", cfg.Snapshot.SQLitePath).Msg("sqlite snapshot written")
	}
	return nil
}
