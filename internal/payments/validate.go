package payments

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tailorhub/tailorhub/internal/shared"
	"github.com/tailorhub/tailorhub/internal/tracking"
)

var (
	// ErrInvalidAmount is returned for zero, negative or sub-cent amounts.
	ErrInvalidAmount = fmt.Errorf("%w: payment amount must be greater than zero", shared.ErrValidation)
	// ErrExceedsBalance is returned when a payment would overpay the order.
	ErrExceedsBalance = fmt.Errorf("%w: payment amount exceeds the outstanding balance", shared.ErrValidation)
	// ErrConcurrentPayment is returned when another payment for the same order
	// committed first. The client should reload and retry.
	ErrConcurrentPayment = fmt.Errorf("%w: another payment for this order was just recorded, please retry", shared.ErrValidation)
	// ErrInvalidMethod is returned for unknown payment methods.
	ErrInvalidMethod = fmt.Errorf("%w: unknown payment method", shared.ErrValidation)
	// ErrOrderCancelled is returned when paying a cancelled order.
	ErrOrderCancelled = fmt.Errorf("%w: order is cancelled", shared.ErrValidation)
	// ErrInvalidRange is returned when a range ends before it starts.
	ErrInvalidRange = fmt.Errorf("%w: end date is before start date", shared.ErrValidation)
	// ErrOrderNotFound is returned for missing or invisible orders.
	ErrOrderNotFound = fmt.Errorf("%w: order", shared.ErrNotFound)
)

// Validate checks amount against the order total and the payments already
// recorded, returning the balance left after the payment. Paying exactly the
// outstanding balance is allowed.
func Validate(total decimal.Decimal, existing []decimal.Decimal, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return decimal.Zero, fmt.Errorf("%w: at most two decimal places", ErrInvalidAmount)
	}
	balance := tracking.Balance(total, tracking.AmountPaid(existing))
	if amount.GreaterThan(balance) {
		return decimal.Zero, fmt.Errorf("%w: outstanding %s", ErrExceedsBalance, balance.StringFixed(2))
	}
	return balance.Sub(amount), nil
}
