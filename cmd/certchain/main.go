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

	"github.com/certchain/certchain/internal/access"
	"github.com/certchain/certchain/internal/app"
	"github.com/certchain/certchain/internal/auth"
	"github.com/certchain/certchain/internal/certs"
	"github.com/certchain/certchain/internal/identity"
	"github.com/certchain/certchain/internal/institutions"
	"github.com/certchain/certchain/internal/ledger"
	"github.com/certchain/certchain/internal/observability"
	"github.com/certchain/certchain/internal/platform/cache"
	"github.com/certchain/certchain/internal/platform/db"
	"github.com/certchain/certchain/internal/shared"
	"github.com/certchain/certchain/internal/view"
	"github.com/certchain/certchain/jobs"
	"github.com/certchain/certchain/report"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
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

	sessionManager := shared.NewSessionManager(redisClient, "certchain_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	identityRepo := identity.NewRepository(dbpool)
	roleCache := access.NewRoleCache(redisClient, cfg.RoleCacheTTL)
	resolver := access.NewResolver(identityRepo, roleCache, logger)

	identityService := identity.NewService(identityRepo, auditLogger, resolver, logger)
	identityHandler := identity.NewHandler(logger, identityService, templates, csrfManager)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, resolver, templates, sessionManager, csrfManager)

	institutionsRepo := institutions.NewRepository(dbpool)
	institutionsService := institutions.NewService(institutionsRepo, auditLogger, logger)
	institutionsHandler := institutions.NewHandler(logger, institutionsService, templates, csrfManager)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("create jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	gateway := ledger.NewClient(cfg.LedgerGatewayURL)
	if err := gateway.Ping(ctx); err != nil {
		logger.Warn("ledger gateway ping", slog.Any("error", err))
	}

	certsRepo := certs.NewRepository(dbpool)
	certsService := certs.NewService(certs.ServiceConfig{
		Repo:       certsRepo,
		Gateway:    gateway,
		Enqueuer:   jobsClient,
		Audit:      auditLogger,
		Idem:       idempotencyStore,
		Membership: institutionsService,
		Logger:     logger,
		ClaimTTL:   cfg.ClaimTokenTTL,
		BaseURL:    cfg.AppBaseURL,
	})
	pdfClient := report.NewClient(cfg.GotenbergURL)
	certsHandler := certs.NewHandler(logger, certsService, pdfClient, templates, csrfManager)

	pages := app.NewPages(logger, templates, csrfManager, identityService, certsService, institutionsService, auditLogger)
	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Templates:           templates,
		SessionManager:      sessionManager,
		CSRFManager:         csrfManager,
		Resolver:            resolver,
		AuthHandler:         authHandler,
		IdentityHandler:     identityHandler,
		InstitutionsHandler: institutionsHandler,
		CertsHandler:        certsHandler,
		Pages:               pages,
		JobHandler:          jobHandler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
}
