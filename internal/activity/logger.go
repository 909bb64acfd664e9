package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Writer persists audit entries.
type Writer interface {
	Insert(ctx context.Context, e Entry) error
}

// Logger records audit entries in the background. Failures are logged and
// dropped: a mutation never fails because its audit entry could not be written.
type Logger struct {
	writer  Writer
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewLogger constructs a Logger.
func NewLogger(writer Writer, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		writer:  writer,
		logger:  logger,
		timeout: 5 * time.Second,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Log dispatches e and returns immediately. The write outlives the caller's
// context cancellation but is bounded by the logger timeout.
func (l *Logger) Log(ctx context.Context, e Entry) {
	if l == nil || l.writer == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = l.now()
	}
	detached := context.WithoutCancel(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("activity log panic", slog.Any("panic", r))
			}
		}()
		writeCtx, cancel := context.WithTimeout(detached, l.timeout)
		defer cancel()
		if err := l.writer.Insert(writeCtx, e); err != nil {
			l.logger.Warn("activity log write failed",
				slog.String("action", string(e.Action)),
				slog.String("entity", string(e.Entity)),
				slog.String("entity_id", e.EntityID),
				slog.Any("error", err))
		}
	}()
}

// Wait blocks until in-flight writes finish. Used on shutdown and in tests.
func (l *Logger) Wait() {
	if l == nil {
		return
	}
	l.wg.Wait()
}
