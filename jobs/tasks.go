package jobs

import (
	"github.com/hibiken/asynq"

	"github.com/tailorhub/tailorhub/internal/notify"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueNotifications mirrors the queue notification tasks are routed to.
	QueueNotifications = notify.QueueNotifications
	// TaskReminderScan is the cron task that queues due-date reminders.
	TaskReminderScan = "reminders:scan"
)

// NewReminderScanTask constructs the scan task registered with the scheduler.
func NewReminderScanTask() *asynq.Task {
	return asynq.NewTask(TaskReminderScan, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}
