package roles

import (
	"errors"
	"time"
)

// Role carries the master switches applied to every member of the role.
// CanEdit vetoes create/update on every capability, CanDelete vetoes delete,
// CanPrint gates printing. RecordEditable and RecordDeletable protect the
// role row itself from being renamed or removed.
type Role struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Color           string    `json:"color"`
	CanEdit         bool      `json:"can_edit"`
	CanDelete       bool      `json:"can_delete"`
	CanPrint        bool      `json:"can_print"`
	RecordEditable  bool      `json:"record_editable"`
	RecordDeletable bool      `json:"record_deletable"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateRoleInput is the payload for creating a role.
type CreateRoleInput struct {
	Name      string
	Color     string
	CanEdit   bool
	CanDelete bool
	CanPrint  bool
}

// UpdateRoleInput is the payload for updating a role's name and switches.
type UpdateRoleInput struct {
	Name      string
	Color     string
	CanEdit   bool
	CanDelete bool
	CanPrint  bool
}

var (
	ErrRoleNotFound  = errors.New("roles: role not found")
	ErrDuplicateName = errors.New("roles: role name already exists")
	ErrRoleProtected = errors.New("roles: role is protected")
	ErrRoleInUse     = errors.New("roles: role still has users")
)
