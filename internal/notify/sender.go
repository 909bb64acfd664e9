package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/tailorhub/tailorhub/internal/tracking"
)

// EmailSender delivers one email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Sender picks channels for a payload and delivers on each. Channel failures
// are logged and reflected in the outcome, never returned.
type Sender struct {
	email  EmailSender
	sms    SMSSender
	format Formatter
	logger *slog.Logger
	now    func() time.Time
}

// NewSender constructs a Sender. Either channel may be nil to disable it.
func NewSender(email EmailSender, sms SMSSender, format Formatter, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{email: email, sms: sms, format: format, logger: logger, now: time.Now}
}

// Send delivers p. Reminders for orders in a tier that needs none are skipped.
func (s *Sender) Send(ctx context.Context, p Payload, tier tracking.Tier) Outcome {
	if p.Kind == KindDueReminder && !tier.NeedsReminder() {
		return Outcome{Skipped: true}
	}
	today := s.now()
	var out Outcome
	if s.email != nil && p.Customer.Email != "" {
		out.EmailTried = true
		if err := s.email.SendEmail(ctx, p.Customer.Email, s.format.Subject(p), s.format.Body(p, today)); err != nil {
			s.logger.Warn("email delivery failed", slog.String("order_number", p.OrderNumber), slog.Any("error", err))
		} else {
			out.Email = true
		}
	}
	if s.sms != nil && p.Customer.PhoneNumber != "" {
		out.SMSTried = true
		if err := s.sms.SendSMS(ctx, p.Customer.PhoneNumber, s.format.Short(p, today)); err != nil {
			s.logger.Warn("sms delivery failed", slog.String("order_number", p.OrderNumber), slog.Any("error", err))
		} else {
			out.SMS = true
		}
	}
	s.logger.Info("notification sent",
		slog.String("kind", string(p.Kind)),
		slog.String("order_number", p.OrderNumber),
		slog.Bool("email", out.Email),
		slog.Bool("sms", out.SMS))
	return out
}
