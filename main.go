package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"kabconnect-backend/internal/api"
	"kabconnect-backend/internal/config"
	"kabconnect-backend/internal/database"
	"kabconnect-backend/internal/metrics"
	"kabconnect-backend/internal/payment"
	"kabconnect-backend/internal/portal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := newLogger(cfg.Logging)

	// Initialize database
	log.Info().Str("path", cfg.Database.Path).Msg("initializing database")
	db, err := database.Open(database.Config{Path: cfg.Database.Path})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	// Stores and services
	voucherRepo := database.NewVoucherRepo(db)
	sessionRepo := database.NewSessionRepo(db)

	m := metrics.New(prometheus.DefaultRegisterer)
	portalSvc := portal.NewService(voucherRepo, sessionRepo, cfg.Portal.MaxConnections, m, log)

	sweeper := portal.NewSweeper(sessionRepo, cfg.Portal.SweepInterval(), cfg.Portal.SessionMaxAge(), m, log)
	sweeper.Start()
	defer sweeper.Stop()

	// Payment gateway is optional; the portal runs without it and
	// vouchers are then settled via POST /vouchers/:code/paid.
	var payments *payment.Client
	if cfg.Paystack.SecretKey != "" {
		payments, err = payment.NewClient(cfg.Paystack.BaseURL, cfg.Paystack.SecretKey, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize payment client")
		}
	} else {
		log.Warn().Msg("no paystack secret key configured, payment routes disabled")
	}

	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	// Routes. Login attempts are throttled per client IP since voucher
	// codes can be brute-forced.
	limiter := api.DefaultRateLimiter()
	defer limiter.Stop()
	api.RegisterRoutes(e, api.NewHandler(portalSvc, voucherRepo, payments, log), limiter)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Serve until interrupted, then drain in-flight requests.
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("captive portal running")
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Format == "json" {
		log = zerolog.New(os.Stdout)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return log.Level(level).With().Timestamp().Logger()
}
