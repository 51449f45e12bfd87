package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mathshelp/mathshelp25/internal/activities"
	"github.com/mathshelp/mathshelp25/internal/app"
	"github.com/mathshelp/mathshelp25/internal/auth"
	"github.com/mathshelp/mathshelp25/internal/catalog"
	"github.com/mathshelp/mathshelp25/internal/platform/cache"
	"github.com/mathshelp/mathshelp25/internal/platform/db"
	"github.com/mathshelp/mathshelp25/internal/shared"
	"github.com/mathshelp/mathshelp25/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, view buffering disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	verifier := auth.NewAuth0Verifier(cfg.Auth0Domain, cfg.Auth0Audience, auth.WithKeyTTL(cfg.JWKSKeyTTL))

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, logger)

	authmw := auth.Middleware{Verifier: verifier, Resolver: usersService, Logger: logger}

	idempotencyStore := shared.NewIdempotencyStore(pool)

	usersHandler := users.NewHandler(logger, usersService, authmw)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, redisClient, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService, authmw)

	activitiesRepo := activities.NewRepository(pool)
	activitiesService := activities.NewService(activitiesRepo, redisClient, logger)
	activitiesHandler := activities.NewHandler(logger, activitiesService, authmw, idempotencyStore)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		UsersHandler:      usersHandler,
		CatalogHandler:    catalogHandler,
		ActivitiesHandler: activitiesHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
