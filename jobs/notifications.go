package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tailorhub/tailorhub/internal/notify"
	"github.com/tailorhub/tailorhub/internal/tracking"
)

// Delivery sends a decoded notification. *notify.Sender satisfies it.
type Delivery interface {
	Send(ctx context.Context, p notify.Payload, tier tracking.Tier) notify.Outcome
}

// NotificationRecorder counts delivery attempts per channel.
type NotificationRecorder interface {
	Notification(kind, channel string, ok bool)
}

// NotificationJob delivers queued payment confirmations and reminders.
// Channel failures are absorbed by the sender, so a task only fails on a
// malformed payload, which is never retried.
type NotificationJob struct {
	Sender   Delivery
	Recorder NotificationRecorder
	Location *time.Location
	Logger   *slog.Logger
	clock    func() time.Time
}

// NewNotificationJob initialises the notification handler.
func NewNotificationJob(sender Delivery, recorder NotificationRecorder, loc *time.Location, logger *slog.Logger) *NotificationJob {
	return &NotificationJob{Sender: sender, Recorder: recorder, Location: loc, Logger: logger, clock: time.Now}
}

// Handle processes notify:payment and notify:reminder tasks.
func (j *NotificationJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sender == nil {
		return errors.New("notification: handler not configured")
	}
	p, err := notify.DecodeTask(t)
	if err != nil {
		j.logger().Warn("dropping malformed notification", slog.String("type", t.Type()), slog.Any("error", err))
		return asynq.SkipRetry
	}
	tier := j.tier(p)
	out := j.Sender.Send(ctx, p, tier)
	if out.Skipped {
		j.logger().Debug("reminder no longer due", slog.String("order_number", p.OrderNumber), slog.String("tier", string(tier)))
		return nil
	}
	if j.Recorder != nil {
		if out.EmailTried {
			j.Recorder.Notification(string(p.Kind), "email", out.Email)
		}
		if out.SMSTried {
			j.Recorder.Notification(string(p.Kind), "sms", out.SMS)
		}
	}
	return nil
}

// tier re-derives urgency from the payload's due date at delivery time, so a
// reminder that waited in the queue uses the days remaining on delivery day.
func (j *NotificationJob) tier(p notify.Payload) tracking.Tier {
	if p.DueDate.IsZero() {
		return tracking.TierSafe
	}
	loc := j.Location
	if loc == nil {
		loc = time.UTC
	}
	days := tracking.DaysToDue(tracking.DateIn(p.DueDate, loc), j.now(), loc)
	return tracking.Classify(days)
}

func (j *NotificationJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", "notification"))
	}
	return slog.Default().With(slog.String("job", "notification"))
}

func (j *NotificationJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}
