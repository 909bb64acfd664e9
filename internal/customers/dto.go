package customers

// CreateCustomerRequest is the body of POST /customers. BranchID is honoured
// for admins only.
type CreateCustomerRequest struct {
	FullName    string `json:"full_name" validate:"required,max=200"`
	PhoneNumber string `json:"phone_number" validate:"required,max=30"`
	Email       string `json:"email,omitempty" validate:"omitempty,email,max=200"`
	BranchID    string `json:"branch_id,omitempty"`
}

// UpdateCustomerRequest is the body of PUT /customers/{id}. Omitted fields
// keep their value; an empty email clears it.
type UpdateCustomerRequest struct {
	FullName    *string `json:"full_name,omitempty" validate:"omitempty,min=1,max=200"`
	PhoneNumber *string `json:"phone_number,omitempty" validate:"omitempty,min=1,max=30"`
	Email       *string `json:"email,omitempty" validate:"omitempty,max=200"`
	BranchID    *string `json:"branch_id,omitempty"`
}
