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
	"github.com/tailorhub/tailorhub/internal/auth"
	"github.com/tailorhub/tailorhub/internal/branches"
	"github.com/tailorhub/tailorhub/internal/customers"
	"github.com/tailorhub/tailorhub/internal/notify"
	"github.com/tailorhub/tailorhub/internal/observability"
	"github.com/tailorhub/tailorhub/internal/orders"
	"github.com/tailorhub/tailorhub/internal/payments"
	"github.com/tailorhub/tailorhub/internal/platform/cache"
	"github.com/tailorhub/tailorhub/internal/platform/db"
	"github.com/tailorhub/tailorhub/internal/reports"
	"github.com/tailorhub/tailorhub/internal/shared"
	"github.com/tailorhub/tailorhub/internal/users"
	"github.com/tailorhub/tailorhub/jobs"
	"github.com/tailorhub/tailorhub/report"
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
	loc := cfg.Location()

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

	sessionManager := shared.NewSessionManager(redisClient, "tailorhub_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()

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

	activityRepo := activity.NewRepository(dbpool)
	activityLogger := activity.NewLogger(activityRepo, logger)
	// Flush pending activity entries after the server has drained.
	defer activityLogger.Wait()
	activityService := activity.NewService(activityRepo)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, activityLogger)

	authService := auth.NewService(usersRepo, auth.NewRepository(dbpool))

	branchesService := branches.NewService(branches.NewRepository(dbpool), activityLogger)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	customersService := customers.NewService(customers.NewRepository(dbpool), activityLogger).
		WithReportCache(reportCache, logger)

	paymentsRepo := payments.NewRepository(dbpool)
	ordersService := orders.NewService(orders.NewRepository(dbpool), paymentsRepo, activityLogger, loc).
		WithReportCache(reportCache, logger)
	paymentsService := payments.NewService(paymentsRepo, payments.Deps{
		Activity: activityLogger,
		Notifier: dispatcher,
		Cache:    reportCache,
		Metrics:  metrics,
		Logger:   logger,
		Location: loc,
	})
	reportsService := reports.NewService(paymentsService, ordersService, activityService, reportCache, loc)
	pdfClient := report.NewClient(cfg.GotenbergURL)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		PrincipalLoader:  usersService,
		AuthHandler:      auth.NewHandler(logger, authService, sessionManager, csrfManager),
		BranchesHandler:  branches.NewHandler(logger, branchesService),
		UsersHandler:     users.NewHandler(logger, usersService),
		CustomersHandler: customers.NewHandler(logger, customersService),
		OrdersHandler:    orders.NewHandler(logger, ordersService),
		PaymentsHandler:  payments.NewHandler(logger, paymentsService, loc).WithIdempotency(shared.NewIdempotencyStore(dbpool)),
		ReportsHandler:   reports.NewHandler(logger, reportsService, pdfClient),
		ActivityHandler:  activity.NewHandler(logger, activityService, loc),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		Checks: map[string]app.Pinger{
			"postgres": dbpool,
			"redis": app.PingFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}),
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("timezone", loc.String()))
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
