package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/msu-life/auth-service/config"
	"github.com/msu-life/auth-service/internal/email"
	"github.com/msu-life/auth-service/internal/health"
	"github.com/msu-life/auth-service/internal/infrastructure/postgres"
	ctxlog "github.com/msu-life/auth-service/internal/log"
	"github.com/msu-life/auth-service/internal/metrics"
	"github.com/msu-life/auth-service/internal/session"
	httptransport "github.com/msu-life/auth-service/internal/transport/http"
	"github.com/msu-life/auth-service/internal/transport/http/handler"
	"github.com/msu-life/auth-service/internal/transport/http/middleware"
	"github.com/msu-life/auth-service/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	userRepo := postgres.NewUserRepository(pool)
	codeRepo := postgres.NewCodeRepository(pool)

	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	sessions := session.NewCodec([]byte(cfg.SessionSecret), time.Duration(cfg.SessionTTLSeconds)*time.Second)

	authUsecase := usecase.NewAuthUsecase(userRepo, codeRepo, sender, sessions, logger, usecase.AuthConfig{
		AllowedDomain:   cfg.AllowedEmailDomain,
		Pepper:          cfg.OTPPepper,
		CodeTTL:         time.Duration(cfg.OTPTTLSeconds) * time.Second,
		RateMax:         cfg.OTPRateMax,
		RateWindow:      time.Duration(cfg.OTPRateWindowSec) * time.Second,
		DebugReturnCode: cfg.Env != "production" || cfg.OTPDebugReturnCode,
		DemoBypass:      cfg.OTPDemoBypass,
	})

	secureCookies := cfg.Env == "production"
	authHandler := handler.NewAuthHandler(authUsecase, cfg.SessionTTLSeconds, secureCookies, logger)
	adminHandler := handler.NewAdminHandler(userRepo, logger)
	sessionMW := middleware.NewSessions(sessions, userRepo, cfg.AdminEmailSet(), secureCookies, logger)

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, authHandler, adminHandler, sessionMW),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
