// Package orders manages tailoring orders and derives their payment and
// due-date state on every read.
package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tailorhub/tailorhub/internal/payments"
	"github.com/tailorhub/tailorhub/internal/tracking"
)

// Status is an order's workflow state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusReady      Status = "READY"
	StatusCollected  Status = "COLLECTED"
	StatusCancelled  Status = "CANCELLED"
)

// Statuses lists every status in workflow order.
func Statuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusReady, StatusCollected, StatusCancelled}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusReady, StatusCollected, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the order can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCollected || s == StatusCancelled
}

var forward = map[Status]Status{
	StatusPending:    StatusInProgress,
	StatusInProgress: StatusReady,
	StatusReady:      StatusCollected,
}

// CanTransition reports whether an order may move from s to next. Orders
// advance one step at a time and any open order may be cancelled.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	return forward[s] == next
}

// CustomerRef is the customer summary carried with an order.
type CustomerRef struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email,omitempty"`
	BranchID    string `json:"-"`
}

// Order is the stored record.
type Order struct {
	ID          string          `json:"id"`
	OrderNumber string          `json:"order_number"`
	CustomerID  string          `json:"customer_id"`
	Customer    CustomerRef     `json:"customer"`
	BranchID    string          `json:"branch_id"`
	BranchName  string          `json:"branch_name,omitempty"`
	Description string          `json:"description"`
	Images      []string        `json:"images"`
	Total       decimal.Decimal `json:"total_amount"`
	Status      Status          `json:"status"`
	OrderDate   time.Time       `json:"order_date"`
	DueDate     time.Time       `json:"due_date"`
	CreatedBy   string          `json:"created_by"`
	UpdatedBy   string          `json:"updated_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// View is an order with its derived state. It is computed on every read and
// never stored.
type View struct {
	Order
	Payments     []payments.Payment `json:"payments,omitempty"`
	AmountPaid   decimal.Decimal    `json:"amount_paid"`
	Balance      decimal.Decimal    `json:"balance"`
	DaysToDue    int                `json:"days_to_due"`
	Urgency      tracking.Tier      `json:"urgency"`
	UrgencyLabel string             `json:"urgency_label"`
}

// Enrich derives paid amount, balance and urgency for o as of today in loc.
func Enrich(o Order, ps []payments.Payment, today time.Time, loc *time.Location) View {
	paid := tracking.AmountPaid(payments.Amounts(ps))
	days := tracking.DaysToDue(tracking.DateIn(o.DueDate, loc), today, loc)
	tier := tracking.Classify(days)
	return View{
		Order:        o,
		Payments:     ps,
		AmountPaid:   paid,
		Balance:      tracking.Balance(o.Total, paid),
		DaysToDue:    days,
		Urgency:      tier,
		UrgencyLabel: tracking.Label(tier, days),
	}
}

// ListQuery filters order listings.
type ListQuery struct {
	BranchID   string
	Status     Status
	Urgency    tracking.Tier
	CustomerID string
	Search     string
	OpenOnly   bool
	Page       int
	PerPage    int
}

// Criteria is the storage-level filter built from a ListQuery.
type Criteria struct {
	Status     Status
	CustomerID string
	Search     string
	OpenOnly   bool
	DueFrom    *time.Time
	DueTo      *time.Time
	Page       int
	PerPage    int
}

// DueCount is the number of open orders due on one date.
type DueCount struct {
	Date  time.Time
	Count int
}
