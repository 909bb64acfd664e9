// Package customers manages the customers of each branch.
package customers

import "time"

// Customer belongs to exactly one branch.
type Customer struct {
	ID          string    `json:"id"`
	FullName    string    `json:"full_name"`
	PhoneNumber string    `json:"phone_number"`
	Email       string    `json:"email,omitempty"`
	BranchID    string    `json:"branch_id"`
	BranchName  string    `json:"branch_name,omitempty"`
	OrderCount  int       `json:"order_count"`
	CreatedBy   string    `json:"created_by"`
	UpdatedBy   string    `json:"updated_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListQuery filters customer listings.
type ListQuery struct {
	BranchID string
	Search   string
	Page     int
	PerPage  int
}
