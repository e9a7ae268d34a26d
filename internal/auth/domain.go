package auth

import (
	"context"

	"github.com/clinea-his/clinea-his/internal/roles"
	"github.com/clinea-his/clinea-his/internal/shared"
	"github.com/clinea-his/clinea-his/internal/users"
)

// UserDirectory resolves accounts for login and principal refresh.
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (users.User, error)
	GetUserByUsername(ctx context.Context, username string) (users.User, error)
}

// RoleDirectory resolves the role master switches at login time.
type RoleDirectory interface {
	GetRole(ctx context.Context, id int64) (roles.Role, error)
}

// GrantSource resolves the capability grants cached on the principal.
type GrantSource interface {
	GrantsForRole(ctx context.Context, roleID int64) (map[string]shared.GrantRights, error)
}
