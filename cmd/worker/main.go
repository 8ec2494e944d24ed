package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/certchain/certchain/internal/app"
	"github.com/certchain/certchain/internal/certs"
	"github.com/certchain/certchain/internal/institutions"
	"github.com/certchain/certchain/internal/ledger"
	"github.com/certchain/certchain/internal/observability"
	"github.com/certchain/certchain/internal/platform/cache"
	"github.com/certchain/certchain/internal/platform/db"
	"github.com/certchain/certchain/internal/shared"
	"github.com/certchain/certchain/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

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

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	institutionsRepo := institutions.NewRepository(pool)
	institutionsService := institutions.NewService(institutionsRepo, auditLogger, logger)

	gateway := ledger.NewClient(cfg.LedgerGatewayURL)
	if err := gateway.Ping(ctx); err != nil {
		logger.Warn("ledger gateway ping", slog.Any("error", err))
	}

	certsRepo := certs.NewRepository(pool)
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

	mailer := jobs.NewSMTPMailer(fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort), cfg.SMTPFrom)
	metrics := observability.NewMetrics()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: jobs.NewSendEmailHandler(mailer, metrics, logger)},
			{Type: jobs.TaskTypeCertMint, Handler: jobs.NewCertMintHandler(certsService, metrics, logger)},
			{Type: jobs.TaskTypeCertTransfer, Handler: jobs.NewCertTransferHandler(certsService, metrics, logger)},
			{Type: jobs.TaskTypeClaimSweep, Handler: jobs.NewClaimSweepHandler(certsService, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 * * * *", Task: jobs.NewClaimSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
