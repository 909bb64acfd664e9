package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueNotifications carries customer-facing messages.
	QueueNotifications = "notifications"
	// TaskTypePayment is the task type for payment confirmations.
	TaskTypePayment = "notify:payment"
	// TaskTypeReminder is the task type for due-date reminders.
	TaskTypeReminder = "notify:reminder"
)

// TaskType returns the asynq task type for kind.
func TaskType(kind Kind) (string, error) {
	switch kind {
	case KindPaymentConfirmation:
		return TaskTypePayment, nil
	case KindDueReminder:
		return TaskTypeReminder, nil
	}
	return "", fmt.Errorf("notify: unknown kind %q", kind)
}

// NewTask encodes p as an asynq task.
func NewTask(p Payload) (*asynq.Task, error) {
	typ, err := TaskType(p.Kind)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, data, asynq.Queue(QueueNotifications), asynq.MaxRetry(3), asynq.Timeout(time.Minute)), nil
}

// DecodeTask reads the payload of a notification task.
func DecodeTask(t *asynq.Task) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher queues notifications without waiting for delivery. Enqueue
// failures are logged and dropped; the triggering operation has already
// committed.
type Dispatcher struct {
	client Enqueuer
	logger *slog.Logger
	onFail func(kind Kind)
}

// NewDispatcher constructs a Dispatcher. A nil client disables dispatch.
func NewDispatcher(client Enqueuer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{client: client, logger: logger}
}

// OnFailure registers a hook invoked when enqueueing fails.
func (d *Dispatcher) OnFailure(fn func(kind Kind)) {
	d.onFail = fn
}

// PaymentReceived queues a payment confirmation.
func (d *Dispatcher) PaymentReceived(ctx context.Context, p Payload) {
	p.Kind = KindPaymentConfirmation
	d.dispatch(ctx, p)
}

// DueReminder queues a due-date reminder. Uniqueness per order and day keeps
// repeated scans from spamming the customer.
func (d *Dispatcher) DueReminder(ctx context.Context, p Payload, day string) {
	p.Kind = KindDueReminder
	d.dispatch(ctx, p, asynq.TaskID("reminder:"+p.OrderID+":"+day))
}

func (d *Dispatcher) dispatch(ctx context.Context, p Payload, opts ...asynq.Option) {
	if d == nil || d.client == nil {
		return
	}
	task, err := NewTask(p)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_, err = d.client.EnqueueContext(ctx, task, opts...)
	}
	if err == nil {
		return
	}
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		d.logger.Debug("notification already queued", slog.String("order_id", p.OrderID))
		return
	}
	d.logger.Warn("notification enqueue failed",
		slog.String("kind", string(p.Kind)),
		slog.String("order_number", p.OrderNumber),
		slog.Any("error", err))
	if d.onFail != nil {
		d.onFail(p.Kind)
	}
}
