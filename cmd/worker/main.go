package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/clinea-his/clinea-his/internal/app"
	"github.com/clinea-his/clinea-his/internal/businessday"
	jobmetrics "github.com/clinea-his/clinea-his/internal/jobs"
	"github.com/clinea-his/clinea-his/internal/platform/db"
	"github.com/clinea-his/clinea-his/jobs"
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	dayRepo := businessday.NewRepository(pool)
	dayService := businessday.NewService(dayRepo, logger)
	poller := businessday.NewPoller(dayService, logger, cfg.DriftPollInterval)

	metrics := jobmetrics.NewMetrics(nil)
	driftJob := jobs.NewDriftScanJob(poller, logger, metrics)

	driftTask, err := jobs.NewDriftScanTask(jobs.DriftScanPayload{Source: "cron"})
	if err != nil {
		logger.Error("build drift scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDriftScan, Handler: driftJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.DriftScanCron, Task: driftTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
