package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/marketai/marketai-admin/internal/access"
	"github.com/marketai/marketai-admin/internal/app"
	"github.com/marketai/marketai-admin/internal/audit"
	audithttp "github.com/marketai/marketai-admin/internal/audit/http"
	"github.com/marketai/marketai-admin/internal/auth"
	"github.com/marketai/marketai-admin/internal/observability"
	"github.com/marketai/marketai-admin/internal/platform/cache"
	"github.com/marketai/marketai-admin/internal/platform/db"
	"github.com/marketai/marketai-admin/internal/shared"
	"github.com/marketai/marketai-admin/internal/users"
	"github.com/marketai/marketai-admin/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	table, err := access.LoadTableFile(cfg.AccessPolicyFile)
	if err != nil {
		logger.Error("load access policy", slog.String("path", cfg.AccessPolicyFile), slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "marketai_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	tokens := auth.NewTokenVerifier(cfg.TokenSecret, cfg.TokenIssuer)
	if tokens == nil {
		logger.Info("bearer authentication disabled, TOKEN_SECRET not set")
	}

	metrics := observability.NewMetrics()
	guards := access.Middleware{Table: table, Logger: logger, Recorder: metrics}

	jobClient, err := jobs.NewClient(redisOpts.AsynqOpt())
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	userRepo := users.NewRepository(dbpool)
	userService := users.NewService(userRepo, table, jobClient, logger)
	usersHandler := users.NewHandler(logger, userService, guards)

	authService := auth.NewService(auth.NewRepository(dbpool, userRepo))
	authHandler := auth.NewHandler(auth.HandlerParams{
		Logger:   logger,
		Service:  authService,
		Sessions: sessionManager,
		CSRF:     csrfManager,
		Tokens:   tokens,
		Table:    table,
		Guards:   guards,
	})
	authenticator := auth.NewAuthenticator(tokens, userRepo, logger)

	inspector := asynq.NewInspector(redisOpts.AsynqOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Authenticator:  authenticator,
		Guards:         guards,
		AuthHandler:    authHandler,
		AccessHandler:  access.NewHandler(logger, table, guards),
		UsersHandler:   usersHandler,
		AuditHandler:   audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), guards),
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
