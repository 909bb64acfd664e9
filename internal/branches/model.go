// Package branches manages the shop locations that scope every customer,
// order and payment.
package branches

import "time"

// Branch is one physical shop.
type Branch struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	IsActive  bool      `json:"is_active"`
	UserCount int       `json:"user_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListQuery filters branch listings.
type ListQuery struct {
	IncludeInactive bool
}
