package branches

// CreateBranchRequest is the body of POST /branches.
type CreateBranchRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Address string `json:"address,omitempty" validate:"max=300"`
	Phone   string `json:"phone,omitempty" validate:"max=30"`
}

// UpdateBranchRequest is the body of PUT /branches/{id}.
type UpdateBranchRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Address  *string `json:"address,omitempty" validate:"omitempty,max=300"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	IsActive *bool   `json:"is_active,omitempty"`
}
