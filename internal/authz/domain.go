package authz

import (
	"errors"
	"time"
)

// Rights is the effective create/update/delete/read decision for one
// principal and one capability. Read is implied by the existence of a grant.
type Rights struct {
	CanRead   bool `json:"can_read"`
	CanCreate bool `json:"can_create"`
	CanUpdate bool `json:"can_update"`
	CanDelete bool `json:"can_delete"`
}

// FullRights grants everything, used for the administrator bypass.
func FullRights() Rights {
	return Rights{CanRead: true, CanCreate: true, CanUpdate: true, CanDelete: true}
}

// NoRights denies everything, used for unknown capabilities.
func NoRights() Rights {
	return Rights{}
}

// Verb selects one field of Rights in CanAct style checks.
type Verb string

const (
	VerbRead   Verb = "read"
	VerbCreate Verb = "create"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
)

// For returns the Rights field matching the verb; unknown verbs deny.
func (r Rights) For(verb Verb) bool {
	switch verb {
	case VerbRead:
		return r.CanRead
	case VerbCreate:
		return r.CanCreate
	case VerbUpdate:
		return r.CanUpdate
	case VerbDelete:
		return r.CanDelete
	default:
		return false
	}
}

// Grant is a stored (role, capability) pair with its three booleans.
type Grant struct {
	RoleID         int64
	CapabilityCode Code
	CanCreate      bool
	CanUpdate      bool
	CanDelete      bool
	CreatedAt      time.Time
}

// ErrUnknownCapability rejects writes against codes outside the catalog.
var ErrUnknownCapability = errors.New("authz: unknown capability code")

// ErrInvalidVerb rejects grant toggles for verbs that are not stored.
var ErrInvalidVerb = errors.New("authz: invalid grant verb")
