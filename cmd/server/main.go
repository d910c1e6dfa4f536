// Command server runs the newsletter backend: the admin HTTP API and the
// background delivery worker that drains the outbox.
//
// Startup order: env + config, logging, database (open, migrate, tracing),
// OpenTelemetry, email gateway client, delivery worker, HTTP server. Shutdown
// reverses it on SIGINT/SIGTERM: stop accepting requests, stop the worker,
// flush traces. In-flight delivery tasks not yet committed simply stay in the
// queue and are picked up on the next start.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-newsletter-backend/internal/config"
	"github.com/tbourn/go-newsletter-backend/internal/delivery"
	"github.com/tbourn/go-newsletter-backend/internal/email"
	httpapi "github.com/tbourn/go-newsletter-backend/internal/http"
	"github.com/tbourn/go-newsletter-backend/internal/observability"
	"github.com/tbourn/go-newsletter-backend/internal/repo"
	"github.com/tbourn/go-newsletter-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Logging
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	// Database
	dsn := cfg.DBDSN
	if cfg.DBDriver == repo.DriverSQLite {
		dsn = cfg.DBPath
	}
	db, err := repo.Open(cfg.DBDriver, dsn)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	if err := repo.EnableTracing(db); err != nil {
		log.Fatal().Err(err).Msg("enable database tracing")
	}

	// Tracing
	ctx := context.Background()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup opentelemetry")
	}

	// Delivery worker
	gateway := email.NewClient(cfg.Email.BaseURL, cfg.Email.Token, cfg.Email.Sender, cfg.Email.Timeout)
	worker := delivery.NewWorker(db, gateway, email.IsPermanent, delivery.Options{
		PollInterval: cfg.Delivery.PollInterval,
		MaxAttempts:  cfg.Delivery.MaxAttempts,
		RetryBase:    cfg.Delivery.RetryBase,
		RetryCap:     cfg.Delivery.RetryCap,
	})
	if err := worker.Start(); err != nil {
		log.Fatal().Err(err).Msg("start delivery worker")
	}

	// HTTP server
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Wait for termination signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	if err := worker.Stop(); err != nil {
		log.Error().Err(err).Msg("delivery worker shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("opentelemetry shutdown")
	}

	log.Info().Msg("bye")
}
