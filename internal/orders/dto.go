package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateOrderRequest opens an order. OrderDate defaults to today in the
// business time zone.
type CreateOrderRequest struct {
	CustomerID  string
	Description string
	Images      []string
	TotalAmount decimal.Decimal
	OrderDate   *time.Time
	DueDate     time.Time
}

// createOrderBody is the wire form of CreateOrderRequest. Dates are YYYY-MM-DD.
type createOrderBody struct {
	CustomerID  string          `json:"customer_id" validate:"required"`
	Description string          `json:"description" validate:"required,max=2000"`
	Images      []string        `json:"images,omitempty" validate:"max=20,dive,required,max=500"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OrderDate   string          `json:"order_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DueDate     string          `json:"due_date" validate:"required,datetime=2006-01-02"`
}

// UpdateOrderRequest edits an open order. Nil fields are left unchanged.
type UpdateOrderRequest struct {
	Description *string
	Images      *[]string
	TotalAmount *decimal.Decimal
	DueDate     *time.Time
}

type updateOrderBody struct {
	Description *string          `json:"description,omitempty" validate:"omitempty,min=1,max=2000"`
	Images      *[]string        `json:"images,omitempty" validate:"omitempty,max=20,dive,required,max=500"`
	TotalAmount *decimal.Decimal `json:"total_amount,omitempty"`
	DueDate     *string          `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type statusBody struct {
	Status Status `json:"status" validate:"required,oneof=PENDING IN_PROGRESS READY COLLECTED CANCELLED"`
}
