package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/recruitdesk/recruitdesk/internal/app"
	"github.com/recruitdesk/recruitdesk/internal/auth"
	"github.com/recruitdesk/recruitdesk/internal/authz"
	authzhttp "github.com/recruitdesk/recruitdesk/internal/authz/http"
	"github.com/recruitdesk/recruitdesk/internal/employment"
	"github.com/recruitdesk/recruitdesk/internal/observability"
	"github.com/recruitdesk/recruitdesk/internal/platform/cache"
	"github.com/recruitdesk/recruitdesk/internal/platform/db"
	"github.com/recruitdesk/recruitdesk/internal/rbac"
	"github.com/recruitdesk/recruitdesk/internal/shared"
	"github.com/recruitdesk/recruitdesk/internal/users"
	"github.com/recruitdesk/recruitdesk/jobs"
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

	policy, err := authz.NewPolicy(authz.DefaultGrants())
	if err != nil {
		logger.Error("build role table", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	report, err := rbac.NewService(dbpool).Sync(ctx, policy)
	if err != nil {
		logger.Error("sync role table", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("role table synced",
		slog.Int("roles", report.Roles),
		slog.Int("permissions", report.Permissions),
		slog.Int("grants", report.Grants))

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionName, cfg.SessionTTL, cfg.IsProduction())
	auditor := shared.NewAuditLogger(dbpool)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() { _ = inspector.Close() }()

	usersRepo := users.NewRepository(dbpool)
	jobsRepo := employment.NewRepository(dbpool)
	resolver := authz.NewResolver(authz.StoreSet{
		authz.ResourceUsers: usersRepo,
		authz.ResourceJobs:  jobsRepo,
	})
	engine := authz.NewEngine(policy, resolver, authz.WithObserver(metrics))

	usersService := users.NewService(usersRepo, engine, jobClient, sessionManager, auditor, logger)
	jobsService := employment.NewService(jobsRepo, engine, usersService, auditor, logger)
	authService := auth.NewService(auth.NewRepository(dbpool))

	rbacMiddleware := rbac.Middleware{Engine: engine, Principals: usersService, Logger: logger}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		RBACMiddleware:     rbacMiddleware,
		AuthHandler:        auth.NewHandler(logger, authService, sessionManager),
		UsersHandler:       users.NewHandler(logger, usersService, rbacMiddleware),
		JobsHandler:        employment.NewHandler(logger, jobsService, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, engine),
		AuthzHandler:       authzhttp.NewHandler(logger, engine),
		QueueHandler:       jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppShutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
