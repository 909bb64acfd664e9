// Package payments records and lists payments against orders.
package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// Method is how a payment was made.
type Method string

const (
	MethodCash  Method = "CASH"
	MethodMomo  Method = "MOMO"
	MethodCard  Method = "CARD"
	MethodOther Method = "OTHER"
)

// Methods lists every payment method in display order.
func Methods() []Method {
	return []Method{MethodCash, MethodMomo, MethodCard, MethodOther}
}

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodMomo, MethodCard, MethodOther:
		return true
	}
	return false
}

// Payment is an immutable receipt against an order.
type Payment struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"payment_date"`
	Method    Method          `json:"payment_method"`
	Note      string          `json:"note,omitempty"`
	CreatedBy string          `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`

	// Populated by range listings.
	OrderNumber  string `json:"order_number,omitempty"`
	BranchID     string `json:"branch_id,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
}

// Amounts extracts the amounts of ps.
func Amounts(ps []Payment) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ps))
	for i, p := range ps {
		out[i] = p.Amount
	}
	return out
}

// OrderSnapshot is the locked order row a payment is recorded against.
type OrderSnapshot struct {
	ID            string
	OrderNumber   string
	BranchID      string
	Description   string
	Total         decimal.Decimal
	DueDate       time.Time
	Cancelled     bool
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
}

// RecordInput is a payment to record.
type RecordInput struct {
	Amount decimal.Decimal
	Method Method
	PaidAt time.Time
	Note   string
}

// Receipt is the outcome of a recorded payment.
type Receipt struct {
	Payment Payment         `json:"payment"`
	Balance decimal.Decimal `json:"balance"`
}
