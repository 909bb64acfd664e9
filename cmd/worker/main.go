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

	"github.com/tailorhub/tailorhub/internal/activity"
	"github.com/tailorhub/tailorhub/internal/app"
	jobmetrics "github.com/tailorhub/tailorhub/internal/jobs"
	"github.com/tailorhub/tailorhub/internal/notify"
	"github.com/tailorhub/tailorhub/internal/observability"
	"github.com/tailorhub/tailorhub/internal/orders"
	"github.com/tailorhub/tailorhub/internal/payments"
	"github.com/tailorhub/tailorhub/internal/platform/db"
	"github.com/tailorhub/tailorhub/internal/shared"
	"github.com/tailorhub/tailorhub/jobs"
)

// metricsAddr serves the worker's Prometheus endpoint.
const metricsAddr = ":9091"

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
	loc := cfg.Location()

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	queue := jobs.NewClient(redisOpts)
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()
	dispatcher := notify.NewDispatcher(queue, logger)
	dispatcher.OnFailure(func(kind notify.Kind) {
		metrics.Notification(string(kind), "enqueue", false)
	})

	activityLogger := activity.NewLogger(activity.NewRepository(pool), logger)
	defer activityLogger.Wait()
	ordersService := orders.NewService(orders.NewRepository(pool), payments.NewRepository(pool), activityLogger, loc)

	var sms notify.SMSSender
	if cfg.SMSGatewayURL != "" {
		sms = notify.NewSMSGateway(cfg.SMSGatewayURL, cfg.SMSAPIKey, cfg.SMSSender)
	} else {
		logger.Warn("SMS_GATEWAY_URL not set, sms notifications disabled")
	}
	mailer := notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword)
	sender := notify.NewSender(mailer, sms, notify.NewFormatter(cfg.AppCurrency, loc), logger)

	notificationJob := jobs.NewNotificationJob(sender, metrics, loc, logger)
	reminderJob := jobs.NewReminderScanJob(ordersService, dispatcher, jobMetrics, loc, logger)
	cleanupJob := jobs.NewKeyCleanupJob(shared.NewIdempotencyStore(pool), jobs.DefaultKeyRetention, jobMetrics, logger)

	handlers := jobs.NotificationHandlers(notificationJob)
	handlers = append(handlers,
		jobs.TaskHandler{Type: jobs.TaskReminderScan, Handler: reminderJob.Handle},
		jobs.TaskHandler{Type: jobs.TaskKeyCleanup, Handler: cleanupJob.Handle},
	)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Location:    loc,
		Handlers:    handlers,
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReminderCron, Task: jobs.NewReminderScanTask()},
			{Spec: "30 3 * * *", Task: jobs.NewKeyCleanupTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
