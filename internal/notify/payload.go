// Package notify delivers payment confirmations and due-date reminders to
// customers by email and SMS.
package notify

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes notification templates.
type Kind string

const (
	KindPaymentConfirmation Kind = "payment_confirmation"
	KindDueReminder         Kind = "due_reminder"
)

// Customer is the recipient.
type Customer struct {
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email,omitempty"`
}

// Payload is everything a channel needs to render a message.
type Payload struct {
	Kind        Kind            `json:"kind"`
	Customer    Customer        `json:"customer"`
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Description string          `json:"description"`
	DueDate     time.Time       `json:"due_date"`
	Balance     decimal.Decimal `json:"balance"`
	Amount      decimal.Decimal `json:"amount,omitempty"`
	BranchID    string          `json:"branch_id,omitempty"`
}

// Outcome reports which channels accepted the message.
type Outcome struct {
	Email   bool `json:"email"`
	SMS     bool `json:"sms"`
	Skipped bool `json:"skipped,omitempty"`

	// EmailTried and SMSTried record which channels were attempted.
	EmailTried bool `json:"-"`
	SMSTried   bool `json:"-"`
}

// Delivered reports whether any channel accepted the message.
func (o Outcome) Delivered() bool { return o.Email || o.SMS }
