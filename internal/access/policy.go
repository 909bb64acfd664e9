package access

import "fmt"

// ResolveBranchID picks the branch an operation acts on. Admins may target any
// requested branch and otherwise keep their own (possibly unrestricted) scope.
// Non-admins always act on their own branch; requested is ignored.
func ResolveBranchID(p Principal, requested string) (Scope, error) {
	if p.IsAdmin() {
		if requested != "" {
			return Scoped(requested), nil
		}
		return p.Branch, nil
	}
	if _, ok := p.Branch.BranchID(); !ok {
		return Scope{}, ErrNoBranch
	}
	return p.Branch, nil
}

// RequireBranch is ResolveBranchID for operations that need one concrete branch,
// such as creating a customer.
func RequireBranch(p Principal, requested string) (string, error) {
	scope, err := ResolveBranchID(p, requested)
	if err != nil {
		return "", err
	}
	id, ok := scope.BranchID()
	if !ok {
		return "", ErrNoBranch
	}
	return id, nil
}

// HasAccessToBranch reports whether p may see records of branchID.
func HasAccessToBranch(p Principal, branchID string) bool {
	if p.IsAdmin() {
		return true
	}
	own, ok := p.Branch.BranchID()
	return ok && own == branchID
}

// BuildBranchFilter returns the query restriction for p.
func BuildBranchFilter(p Principal) (Filter, error) {
	if p.IsAdmin() {
		return Filter{}, nil
	}
	own, ok := p.Branch.BranchID()
	if !ok {
		return Filter{}, fmt.Errorf("%w: user %s", ErrUnassigned, p.ID)
	}
	return Filter{branchID: own, scoped: true}, nil
}

// Guard is the single visibility chokepoint for fetched records: it returns
// notFound when p cannot see branchID, so callers surface it exactly like a
// missing row.
func Guard(p Principal, branchID string, notFound error) error {
	if HasAccessToBranch(p, branchID) {
		return nil
	}
	return notFound
}

// CanWrite reports whether p may mutate branch data.
func CanWrite(p Principal) error {
	switch p.Role {
	case RoleAdmin, RoleStaff:
		return nil
	default:
		return ErrReadOnly
	}
}

// RequireAdmin rejects non-admin principals.
func RequireAdmin(p Principal) error {
	if !p.IsAdmin() {
		return ErrAdminOnly
	}
	return nil
}

// ValidateRoleBranch enforces that STAFF and VIEWER carry a branch and ADMIN
// carries none.
func ValidateRoleBranch(role Role, branch Scope) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrRoleBranch, role)
	}
	_, scoped := branch.BranchID()
	switch role {
	case RoleAdmin:
		if scoped {
			return fmt.Errorf("%w: ADMIN must not be assigned to a branch", ErrRoleBranch)
		}
	default:
		if !scoped {
			return fmt.Errorf("%w: %s must be assigned to a branch", ErrRoleBranch, role)
		}
	}
	return nil
}
