package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/clinea-his/clinea-his/internal/app"
	"github.com/clinea-his/clinea-his/internal/auth"
	"github.com/clinea-his/clinea-his/internal/authz"
	"github.com/clinea-his/clinea-his/internal/businessday"
	businessdayhttp "github.com/clinea-his/clinea-his/internal/businessday/http"
	"github.com/clinea-his/clinea-his/internal/gate"
	"github.com/clinea-his/clinea-his/internal/observability"
	"github.com/clinea-his/clinea-his/internal/platform/cache"
	"github.com/clinea-his/clinea-his/internal/platform/db"
	"github.com/clinea-his/clinea-his/internal/roles"
	"github.com/clinea-his/clinea-his/internal/shared"
	"github.com/clinea-his/clinea-his/internal/users"
	"github.com/clinea-his/clinea-his/jobs"
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

	if err := db.Migrate(cfg.PGDSN); err != nil {
		logger.Error("apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "clinea_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	metrics := observability.NewMetrics()

	authzRepo, err := authz.NewRepository(ctx, pool, logger)
	if err != nil {
		logger.Error("init capability repository", slog.Any("error", err))
		os.Exit(1)
	}
	if err := authzRepo.SeedCatalog(ctx); err != nil {
		logger.Error("seed capability catalog", slog.Any("error", err))
		os.Exit(1)
	}
	engine := authz.NewEngine()

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)

	authService := auth.NewService(usersRepo, rolesRepo, authzRepo, auth.NewSessionRepository(pool))
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	dayRepo := businessday.NewRepository(pool)
	dayService := businessday.NewService(dayRepo, logger)
	dayService.OnClosed(func(businessday.ClosureRecord) {
		metrics.ClosureRecorded()
	})

	poller := businessday.NewPoller(dayService, logger, cfg.DriftPollInterval)
	poller.OnState(func(state businessday.DayState) {
		metrics.SetRestrictedMode(state.Drifted)
	})
	go poller.Run(ctx)

	accessGate := gate.New(engine)
	gateMiddleware := gate.NewMiddleware(accessGate, logger)
	gateMiddleware.OnDenied(func(code authz.Code) {
		metrics.AuthzDenied(string(code))
	})

	rolesHandler := roles.NewHandler(logger, rolesService, gateMiddleware)
	usersHandler := users.NewHandler(logger, usersService, gateMiddleware)
	authzHandler := authz.NewHandler(logger, authzRepo, engine, gateMiddleware)
	dayHandler := businessdayhttp.NewHandler(logger, dayService, gateMiddleware)
	gateHandler := gate.NewHandler(logger, accessGate, poller)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Gate:           gateMiddleware,
		AuthHandler:    authHandler,
		RolesHandler:   rolesHandler,
		UsersHandler:   usersHandler,
		AuthzHandler:   authzHandler,
		DayHandler:     dayHandler,
		GateHandler:    gateHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
		Pool:           pool,
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
