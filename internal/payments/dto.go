package payments

import "github.com/shopspring/decimal"

// RecordPaymentRequest is the body of POST /orders/{id}/payments.
type RecordPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      Method          `json:"payment_method" validate:"required,oneof=CASH MOMO CARD OTHER"`
	PaymentDate string          `json:"payment_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Note        string          `json:"note,omitempty" validate:"max=500"`
}
