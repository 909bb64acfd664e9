package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/tailorhub/tailorhub/internal/jobs"
	"github.com/tailorhub/tailorhub/internal/notify"
	"github.com/tailorhub/tailorhub/internal/orders"
)

// jobReminderScan labels the scan in job metrics and logs.
const jobReminderScan = "reminder_scan"

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DueOrders lists open orders that warrant a reminder today.
// *orders.Service satisfies it.
type DueOrders interface {
	DueForReminder(ctx context.Context) ([]orders.View, error)
}

// ReminderQueue queues one reminder per order and day.
// *notify.Dispatcher satisfies it.
type ReminderQueue interface {
	DueReminder(ctx context.Context, p notify.Payload, day string)
}

// ReminderScanJob walks every branch's open orders and queues reminders for
// those in a reminder tier with an outstanding balance.
type ReminderScanJob struct {
	Orders   DueOrders
	Queue    ReminderQueue
	Metrics  *jobmetrics.Metrics
	Location *time.Location
	Logger   *slog.Logger
	clock    func() time.Time
}

// NewReminderScanJob initialises the reminder scan handler.
func NewReminderScanJob(orders DueOrders, queue ReminderQueue, metrics *jobmetrics.Metrics, loc *time.Location, logger *slog.Logger) *ReminderScanJob {
	return &ReminderScanJob{Orders: orders, Queue: queue, Metrics: metrics, Location: loc, Logger: logger, clock: time.Now}
}

// Handle executes the scan.
func (j *ReminderScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Orders == nil || j.Queue == nil {
		return errors.New("reminder scan: handler not configured")
	}
	start := time.Now()
	tracker := j.metrics().Track(jobReminderScan)
	logger := j.logger()

	due, err := j.Orders.DueForReminder(ctx)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return tracker.End(err)
	}

	day := j.now().In(j.location()).Format("2006-01-02")
	perTier := make(map[string]int)
	for _, v := range due {
		if !v.Balance.IsPositive() {
			continue
		}
		j.Queue.DueReminder(ctx, reminderPayload(v), day)
		perTier[string(v.Urgency)]++
	}
	queued := 0
	for tier, n := range perTier {
		j.metrics().AddReminders(tier, n)
		queued += n
	}

	logger.Info("completed reminder scan",
		slog.Int("candidates", len(due)),
		slog.Int("queued", queued),
		slog.Duration("duration", time.Since(start)))
	return tracker.End(nil)
}

func reminderPayload(v orders.View) notify.Payload {
	return notify.Payload{
		Customer: notify.Customer{
			FullName:    v.Customer.FullName,
			PhoneNumber: v.Customer.PhoneNumber,
			Email:       v.Customer.Email,
		},
		OrderID:     v.ID,
		OrderNumber: v.OrderNumber,
		Description: v.Description,
		DueDate:     v.DueDate,
		Balance:     v.Balance,
		BranchID:    v.BranchID,
	}
}

func (j *ReminderScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", jobReminderScan))
	}
	return slog.Default().With(slog.String("job", jobReminderScan))
}

func (j *ReminderScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReminderScanJob) location() *time.Location {
	if j.Location != nil {
		return j.Location
	}
	return time.UTC
}

func (j *ReminderScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}
