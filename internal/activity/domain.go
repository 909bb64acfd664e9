// Package activity keeps the append-only audit trail of mutations.
package activity

import (
	"time"

	"github.com/tailorhub/tailorhub/internal/access"
)

// Action is the kind of mutation recorded.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Entity is the record type an entry refers to.
type Entity string

const (
	EntityOrder    Entity = "ORDER"
	EntityCustomer Entity = "CUSTOMER"
	EntityPayment  Entity = "PAYMENT"
	EntityUser     Entity = "USER"
	EntityBranch   Entity = "BRANCH"
)

// Entities lists every entity kind in display order.
func Entities() []Entity {
	return []Entity{EntityOrder, EntityCustomer, EntityPayment, EntityUser, EntityBranch}
}

// Entry is one audit record. UserName is a snapshot taken at write time.
type Entry struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	UserName    string         `json:"user_name"`
	BranchID    *string        `json:"branch_id,omitempty"`
	Action      Action         `json:"action"`
	Entity      Entity         `json:"entity"`
	EntityID    string         `json:"entity_id,omitempty"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	At          time.Time      `json:"timestamp"`
}

// NewEntry builds an entry attributed to p. branchID is the branch of the
// affected record; empty means the record is not branch-bound.
func NewEntry(p access.Principal, action Action, entity Entity, entityID, branchID, description string) Entry {
	e := Entry{
		UserID:      p.ID,
		UserName:    p.Name,
		Action:      action,
		Entity:      entity,
		EntityID:    entityID,
		Description: description,
	}
	if branchID != "" {
		e.BranchID = &branchID
	}
	return e
}

// WithMeta attaches an opaque metadata payload.
func (e Entry) WithMeta(meta map[string]any) Entry {
	e.Metadata = meta
	return e
}

// ListQuery filters the activity listing.
type ListQuery struct {
	BranchID string
	UserID   string
	Entity   Entity
	Action   Action
	From     time.Time
	To       time.Time
	Page     int
	PerPage  int
}

// UserCount is the number of entries one user produced.
type UserCount struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Count    int    `json:"count"`
}

// UserSummary aggregates one user's activity.
type UserSummary struct {
	UserID   string         `json:"user_id"`
	Total    int            `json:"total"`
	ByEntity map[Entity]int `json:"by_entity"`
	Recent   int            `json:"recent"`
	Since    time.Time      `json:"since"`
}

// BranchSummary aggregates a branch's activity.
type BranchSummary struct {
	BranchID string         `json:"branch_id,omitempty"`
	Total    int            `json:"total"`
	ByEntity map[Entity]int `json:"by_entity"`
	Recent   int            `json:"recent"`
	Since    time.Time      `json:"since"`
	TopUsers []UserCount    `json:"top_users"`
}
