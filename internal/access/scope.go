// Package access decides which branch data a principal may read or write.
//
// Every list, read and write path on customers, orders, payments and activity
// goes through BuildBranchFilter or Guard. A resource in a branch the caller
// cannot see is reported as not found, never as forbidden, so branch
// membership of a record is not leaked.
package access

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tailorhub/tailorhub/internal/shared"
)

// Role is a user's permission level.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleStaff  Role = "STAFF"
	RoleViewer Role = "VIEWER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleViewer:
		return true
	}
	return false
}

var (
	// ErrNoBranch is returned when a non-admin action has no concrete branch.
	ErrNoBranch = fmt.Errorf("%w: no branch available for this user", shared.ErrValidation)
	// ErrUnassigned flags a non-admin principal without a branch.
	ErrUnassigned = errors.New("access: user not assigned to a branch")
	// ErrRoleBranch is returned when role and branch assignment disagree.
	ErrRoleBranch = fmt.Errorf("%w: role and branch assignment are inconsistent", shared.ErrValidation)
	// ErrReadOnly is returned when a viewer attempts a mutation.
	ErrReadOnly = fmt.Errorf("%w: read-only role", shared.ErrForbidden)
	// ErrAdminOnly is returned for administrative actions attempted by others.
	ErrAdminOnly = fmt.Errorf("%w: administrator role required", shared.ErrForbidden)
)

// Scope is either every branch or exactly one.
type Scope struct {
	branchID string
	all      bool
}

// Unrestricted returns the scope covering every branch.
func Unrestricted() Scope {
	return Scope{all: true}
}

// Scoped returns a scope limited to branchID. An empty id yields the zero
// Scope, which matches nothing.
func Scoped(branchID string) Scope {
	if branchID == "" {
		return Scope{}
	}
	return Scope{branchID: branchID}
}

// ScopeFromNullable converts a nullable branch column into a Scope.
func ScopeFromNullable(branchID *string) Scope {
	if branchID == nil || *branchID == "" {
		return Unrestricted()
	}
	return Scoped(*branchID)
}

// IsUnrestricted reports whether the scope covers every branch.
func (s Scope) IsUnrestricted() bool { return s.all }

// BranchID returns the single branch and true for scoped values.
func (s Scope) BranchID() (string, bool) {
	if s.all || s.branchID == "" {
		return "", false
	}
	return s.branchID, true
}

// IsZero reports an empty scope: neither unrestricted nor bound to a branch.
func (s Scope) IsZero() bool { return !s.all && s.branchID == "" }

// Nullable renders the scope as a nullable column value.
func (s Scope) Nullable() *string {
	if id, ok := s.BranchID(); ok {
		return &id
	}
	return nil
}

func (s Scope) String() string {
	switch {
	case s.all:
		return "all"
	case s.branchID == "":
		return "none"
	default:
		return s.branchID
	}
}

// Principal is the authenticated actor as supplied by the session layer.
type Principal struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	Branch     Scope  `json:"-"`
	BranchName string `json:"branch_name,omitempty"`
}

// IsAdmin reports whether p holds the ADMIN role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// BranchIDOrEmpty returns the principal's branch, or "" when unrestricted.
func (p Principal) BranchIDOrEmpty() string {
	id, _ := p.Branch.BranchID()
	return id
}

// Filter constrains queries to the branches a principal may see.
type Filter struct {
	branchID string
	scoped   bool
}

// IsEmpty reports a filter that restricts nothing.
func (f Filter) IsEmpty() bool { return !f.scoped }

// BranchID returns the enforced branch, if any.
func (f Filter) BranchID() (string, bool) { return f.branchID, f.scoped }

// Allows reports whether a record in branchID passes the filter.
func (f Filter) Allows(branchID string) bool {
	return !f.scoped || f.branchID == branchID
}

// Where renders the filter as a SQL predicate on column using placeholder
// $argPos. An empty filter yields "TRUE" and no args.
func (f Filter) Where(column string, argPos int) (string, []any) {
	if !f.scoped {
		return "TRUE", nil
	}
	return column + " = $" + strconv.Itoa(argPos), []any{f.branchID}
}

// Narrow combines the filter with an optional requested branch. Admins may
// narrow to any branch; for scoped filters a different request matches nothing
// and reports false.
func (f Filter) Narrow(requested string) (Filter, bool) {
	if requested == "" {
		return f, true
	}
	if f.scoped && f.branchID != requested {
		return f, false
	}
	return Filter{branchID: requested, scoped: true}, true
}
