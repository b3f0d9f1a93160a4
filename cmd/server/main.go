// Command server runs the power-bank rental backend: the storefront REST
// API, the payment/cabinet/bot webhooks, and their supporting middleware.
//
// Startup order: env → config → logging → tracing → database → seed data →
// router → HTTP server with graceful shutdown.
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

	"github.com/stigerapp/go-rental-backend/internal/config"
	"github.com/stigerapp/go-rental-backend/internal/gateway/bajie"
	"github.com/stigerapp/go-rental-backend/internal/gateway/cloudpayments"
	"github.com/stigerapp/go-rental-backend/internal/gateway/telegram"
	httpapi "github.com/stigerapp/go-rental-backend/internal/http"
	"github.com/stigerapp/go-rental-backend/internal/observability"
	"github.com/stigerapp/go-rental-backend/internal/repo"
	"github.com/stigerapp/go-rental-backend/internal/services"
	"github.com/stigerapp/go-rental-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// Best-effort .env for local development; real deployments use the
	// environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	gw := httpapi.Gateways{
		Payments: cloudpayments.NewClient(cfg.CloudPayments.APIURL, cfg.CloudPayments.PublicID, cfg.CloudPayments.Secret, cfg.GatewayTimeout),
		Hardware: bajie.NewClient(cfg.Bajie.APIURL, cfg.Bajie.Username, cfg.Bajie.Password, cfg.GatewayTimeout),
		Notifier: telegram.NewClient(cfg.Telegram.BotToken, cfg.GatewayTimeout),
	}

	locSvc := &services.LocationService{DB: db, Hardware: gw.Hardware}
	if err := locSvc.Seed(ctx); err != nil {
		log.Fatal().Err(err).Msg("location seed failed")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, gw, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("version", version).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped")
}
